package repository

import (
	"context"
	"time"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
)

// UserRepository exposes persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)

	// DeleteCascade removes the user's feedback, registrations and sessions,
	// then the user, in one transaction.
	DeleteCascade(ctx context.Context, id int64) error
}

// EventRepository exposes persistence operations for events.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	Update(ctx context.Context, event *models.Event) error

	// DeleteCascade removes the event's feedback and registrations, then the
	// event, in one transaction.
	DeleteCascade(ctx context.Context, id int64) error

	// Query operations
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]models.Event, error)
	ListByEventDate(ctx context.Context) ([]models.Event, error)
	ListByDatePosted(ctx context.Context) ([]models.Event, error)
	ListByOrganizer(ctx context.Context, organizerID int64) ([]models.Event, error)
	RegistrationCounts(ctx context.Context) ([]EventRegistrationCount, error)
}

// EventRegistrationCount is one row of the admin dashboard summary.
type EventRegistrationCount struct {
	EventID       int64  `bun:"event_id"`
	Title         string `bun:"title"`
	Registrations int    `bun:"registrations"`
}

// RegistrationRepository exposes persistence operations for user/event registrations.
type RegistrationRepository interface {
	// Create inserts a registration; a duplicate pair yields ErrAlreadyExists.
	Create(ctx context.Context, registration *models.Registration) error
	Get(ctx context.Context, userID, eventID int64) (*models.Registration, error)
	Delete(ctx context.Context, userID, eventID int64) error

	// MarkAttended flips attended to true and reports whether a row changed.
	MarkAttended(ctx context.Context, userID, eventID int64) (bool, error)

	ListByUser(ctx context.Context, userID int64) ([]models.Registration, error)
	ListAttendees(ctx context.Context, eventID int64) ([]models.Registration, error)
}

// FeedbackRepository exposes persistence operations for event feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	Exists(ctx context.Context, userID, eventID int64) (bool, error)
	ListByEvent(ctx context.Context, eventID int64) ([]models.Feedback, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Feedback, error)
}

// SessionRepository exposes persistence operations for login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
	Revoke(ctx context.Context, id string) error
	DeleteStale(ctx context.Context, now time.Time) (int64, error)
}
