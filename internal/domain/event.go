package domain

import (
	"context"
	"time"
)

// Event is the read model of a persisted family calendar entry. It is the
// payload published on the broadcast topic.
type Event struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	When      time.Time `json:"when"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

type NewEvent struct {
	Title string
	When  time.Time
	Notes *string
}

type EventRepository interface {
	Create(ctx context.Context, e NewEvent, createdAt time.Time) (*Event, error)
	Get(ctx context.Context, id int64) (*Event, error)
	List(ctx context.Context) ([]Event, error)
}

// EventPublisher is notified after an event is durably created. It must not block.
type EventPublisher interface {
	PublishAsync(e Event)
}
