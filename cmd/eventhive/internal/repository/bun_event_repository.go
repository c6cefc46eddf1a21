package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/uptrace/bun"
)

// BunEventRepository implements EventRepository using Bun ORM
type BunEventRepository struct {
	db *bun.DB
}

// NewBunEventRepository creates a new Bun-based event repository
func NewBunEventRepository(db *bun.DB) *BunEventRepository {
	return &BunEventRepository{db: db}
}

// Create inserts a new event
func (r *BunEventRepository) Create(ctx context.Context, event *models.Event) error {
	_, err := r.db.NewInsert().
		Model(event).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetByID retrieves an event with its organizer
func (r *BunEventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	event := new(models.Event)
	err := r.db.NewSelect().
		Model(event).
		Relation("Organizer").
		Where("e.id = ?", id).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// Update writes the editable event fields
func (r *BunEventRepository) Update(ctx context.Context, event *models.Event) error {
	res, err := r.db.NewUpdate().
		Model(event).
		Column("title", "description", "event_date", "location").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %d: %w", event.ID, ErrNotFound)
	}
	return nil
}

// DeleteCascade removes feedback and registrations before the event row
func (r *BunEventRepository) DeleteCascade(ctx context.Context, id int64) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*models.Feedback)(nil)).Where("event_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete event feedback: %w", err)
		}
		if _, err := tx.NewDelete().Model((*models.Registration)(nil)).Where("event_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete event registrations: %w", err)
		}

		res, err := tx.NewDelete().Model((*models.Event)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("event %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// ListUpcoming returns events on or after from, soonest first
func (r *BunEventRepository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]models.Event, error) {
	var events []models.Event
	q := r.db.NewSelect().
		Model(&events).
		Relation("Organizer").
		Where("e.event_date >= ?", from.UTC()).
		Order("e.event_date ASC", "e.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}

// ListByEventDate returns every event, soonest first
func (r *BunEventRepository) ListByEventDate(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := r.db.NewSelect().
		Model(&events).
		Relation("Organizer").
		Order("e.event_date ASC", "e.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListByDatePosted returns every event, newest posting first
func (r *BunEventRepository) ListByDatePosted(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := r.db.NewSelect().
		Model(&events).
		Relation("Organizer").
		Order("e.date_posted DESC", "e.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events by posting date: %w", err)
	}
	return events, nil
}

// ListByOrganizer returns the organizer's events, latest event date first
func (r *BunEventRepository) ListByOrganizer(ctx context.Context, organizerID int64) ([]models.Event, error) {
	var events []models.Event
	err := r.db.NewSelect().
		Model(&events).
		Where("e.organizer_id = ?", organizerID).
		Order("e.event_date DESC", "e.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list organizer events: %w", err)
	}
	return events, nil
}

// RegistrationCounts returns the registration count of every event,
// including events nobody registered for
func (r *BunEventRepository) RegistrationCounts(ctx context.Context) ([]EventRegistrationCount, error) {
	var counts []EventRegistrationCount
	err := r.db.NewSelect().
		TableExpr("events AS e").
		ColumnExpr("e.id AS event_id").
		ColumnExpr("e.title AS title").
		ColumnExpr("COUNT(r.user_id) AS registrations").
		Join("LEFT JOIN registrations AS r ON r.event_id = e.id").
		GroupExpr("e.id, e.title").
		OrderExpr("e.id ASC").
		Scan(ctx, &counts)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	return counts, nil
}
