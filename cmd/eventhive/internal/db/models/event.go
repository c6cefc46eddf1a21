package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is something students can register for. OrganizerID is nil once the
// organizing account has been deleted.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Title       string    `bun:"title,notnull,type:varchar(140)"`
	Description string    `bun:"description,notnull"`
	DatePosted  time.Time `bun:"date_posted,notnull,default:current_timestamp"`
	EventDate   time.Time `bun:"event_date,notnull"`
	Location    string    `bun:"location,notnull,type:varchar(100)"`
	OrganizerID *int64    `bun:"organizer_id"`

	Organizer *User `bun:"rel:belongs-to,join:organizer_id=id"`
}

// OrganizedBy reports whether userID organizes the event.
func (e *Event) OrganizedBy(userID int64) bool {
	return e != nil && e.OrganizerID != nil && *e.OrganizerID == userID
}

// HasFinished reports whether the event date lies strictly before now.
func (e *Event) HasFinished(now time.Time) bool {
	return e.EventDate.Before(now)
}

// FilterFields exposes the event as a flat map for go-bexpr filters.
func (e *Event) FilterFields() map[string]any {
	var organizerID int64
	if e.OrganizerID != nil {
		organizerID = *e.OrganizerID
	}
	return map[string]any{
		"id":           e.ID,
		"title":        e.Title,
		"description":  e.Description,
		"location":     e.Location,
		"organizer_id": organizerID,
		"event_date":   e.EventDate.UTC().Format(time.RFC3339),
	}
}

// Registration links a user to an event. Attended is set by a verified QR scan.
type Registration struct {
	bun.BaseModel `bun:"table:registrations,alias:r"`

	UserID       int64     `bun:"user_id,pk"`
	EventID      int64     `bun:"event_id,pk"`
	Attended     bool      `bun:"attended,notnull,default:false"`
	RegisteredAt time.Time `bun:"registered_at,notnull,default:current_timestamp"`

	User  *User  `bun:"rel:belongs-to,join:user_id=id"`
	Event *Event `bun:"rel:belongs-to,join:event_id=id"`
}

// Feedback is a post-event rating left by a registered user.
type Feedback struct {
	bun.BaseModel `bun:"table:feedback,alias:f"`

	ID         int64     `bun:"id,pk,autoincrement"`
	Rating     int       `bun:"rating,notnull"`
	Comment    string    `bun:"comment,nullzero"`
	DatePosted time.Time `bun:"date_posted,notnull,default:current_timestamp"`
	UserID     int64     `bun:"user_id,notnull"`
	EventID    int64     `bun:"event_id,notnull"`

	Author *User `bun:"rel:belongs-to,join:user_id=id"`
}
