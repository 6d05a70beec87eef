package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/familyhub/internal/domain"
)

// Service orchestrates the event use cases.
type Service struct {
	events    domain.EventRepository
	publisher domain.EventPublisher
	clock     clockwork.Clock
}

func NewService(events domain.EventRepository, publisher domain.EventPublisher, clock clockwork.Clock) *Service {
	return &Service{events: events, publisher: publisher, clock: clock}
}

// CreateEvent stores the event and hands the stored read model to the
// publisher. The publish outcome never affects the result.
func (s *Service) CreateEvent(ctx context.Context, ne domain.NewEvent) (*domain.Event, error) {
	e, err := s.events.Create(ctx, ne, s.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.publisher.PublishAsync(*e)
	return e, nil
}

func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	return s.events.Get(ctx, id)
}

func (s *Service) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.events.List(ctx)
}
