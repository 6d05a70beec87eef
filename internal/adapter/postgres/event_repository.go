package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/familyhub/internal/domain"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

var _ domain.EventRepository = (*EventRepo)(nil)

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

const eventColumns = "id, title, starts_at, notes, created_at"

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	if err := row.Scan(&e.ID, &e.Title, &e.When, &e.Notes, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.When = e.When.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

func (r *EventRepo) Create(ctx context.Context, ne domain.NewEvent, createdAt time.Time) (*domain.Event, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO events (title, starts_at, notes, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+eventColumns,
		ne.Title, ne.When, ne.Notes, createdAt)

	e, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	return e, nil
}

func (r *EventRepo) Get(ctx context.Context, id int64) (*domain.Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)

	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// List returns all events ordered by start time, ties broken by id.
func (r *EventRepo) List(ctx context.Context) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY starts_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
