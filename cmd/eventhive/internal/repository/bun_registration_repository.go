package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/uptrace/bun"
)

// BunRegistrationRepository implements RegistrationRepository using Bun ORM
type BunRegistrationRepository struct {
	db *bun.DB
}

// NewBunRegistrationRepository creates a new Bun-based registration repository
func NewBunRegistrationRepository(db *bun.DB) *BunRegistrationRepository {
	return &BunRegistrationRepository{db: db}
}

// Create inserts a registration. The composite primary key rejects duplicates,
// which surface as ErrAlreadyExists.
func (r *BunRegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	_, err := r.db.NewInsert().
		Model(registration).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("register user %d for event %d: %w", registration.UserID, registration.EventID, ErrAlreadyExists)
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// Get retrieves the registration for a user/event pair
func (r *BunRegistrationRepository) Get(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	registration := new(models.Registration)
	err := r.db.NewSelect().
		Model(registration).
		Where("r.user_id = ?", userID).
		Where("r.event_id = ?", eventID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("registration of user %d for event %d: %w", userID, eventID, ErrNotFound)
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return registration, nil
}

// Delete removes the registration for a user/event pair
func (r *BunRegistrationRepository) Delete(ctx context.Context, userID, eventID int64) error {
	res, err := r.db.NewDelete().
		Model((*models.Registration)(nil)).
		Where("user_id = ?", userID).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("registration of user %d for event %d: %w", userID, eventID, ErrNotFound)
	}
	return nil
}

// MarkAttended sets attended on an existing registration. It never creates a row.
func (r *BunRegistrationRepository) MarkAttended(ctx context.Context, userID, eventID int64) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.Registration)(nil)).
		Set("attended = ?", true).
		Where("user_id = ?", userID).
		Where("event_id = ?", eventID).
		Where("attended = ?", false).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark attended: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark attended: %w", err)
	}
	return n > 0, nil
}

// ListByUser returns the user's registrations with their events, soonest event first
func (r *BunRegistrationRepository) ListByUser(ctx context.Context, userID int64) ([]models.Registration, error) {
	var registrations []models.Registration
	err := r.db.NewSelect().
		Model(&registrations).
		Relation("Event").
		Where("r.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user registrations: %w", err)
	}

	sort.SliceStable(registrations, func(i, j int) bool {
		return registrations[i].Event.EventDate.Before(registrations[j].Event.EventDate)
	})
	return registrations, nil
}

// ListAttendees returns the event's registrations with their users, by username
func (r *BunRegistrationRepository) ListAttendees(ctx context.Context, eventID int64) ([]models.Registration, error) {
	var registrations []models.Registration
	err := r.db.NewSelect().
		Model(&registrations).
		Relation("User").
		Where("r.event_id = ?", eventID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list event attendees: %w", err)
	}

	sort.SliceStable(registrations, func(i, j int) bool {
		return registrations[i].User.Username < registrations[j].User.Username
	})
	return registrations, nil
}
