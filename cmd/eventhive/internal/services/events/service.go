// Package events implements event CRUD. Organizers manage their own events,
// Admins manage all of them; the decision goes through the casbin enforcer.
package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-bexpr"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/repository"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/telemetry"
)

const tracerName = "eventhive/services/events"

// Field limits
const (
	MaxTitleLength    = 140
	MaxLocationLength = 100
)

// Notices shown to the acting user.
const (
	MsgEventNotFound = "Event not found."
	MsgCreated       = "Your event has been created!"
	MsgUpdated       = "Your event has been updated successfully!"
	MsgDeleted       = "The event has been deleted successfully."
	MsgCannotCreate  = "You do not have permission to create events."
	MsgCannotEdit    = "You do not have permission to edit this event."
	MsgCannotDelete  = "You do not have permission to delete this event."
)

// evaluatorCacheSize bounds the compiled filter cache.
const evaluatorCacheSize = 128

// Input is the editable part of an event.
type Input struct {
	Title       string
	Description string
	EventDate   time.Time
	Location    string
}

// Validate returns field errors for missing or oversized values.
func (in Input) Validate() error {
	errs := apperr.FieldErrors{}
	switch title := strings.TrimSpace(in.Title); {
	case title == "":
		errs["title"] = "Title is required."
	case len([]rune(title)) > MaxTitleLength:
		errs["title"] = fmt.Sprintf("Title must be at most %d characters.", MaxTitleLength)
	}
	if strings.TrimSpace(in.Description) == "" {
		errs["description"] = "Description is required."
	}
	if in.EventDate.IsZero() {
		errs["event_date"] = "Event date is required."
	}
	switch location := strings.TrimSpace(in.Location); {
	case location == "":
		errs["location"] = "Location is required."
	case len([]rune(location)) > MaxLocationLength:
		errs["location"] = fmt.Sprintf("Location must be at most %d characters.", MaxLocationLength)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (in Input) apply(e *models.Event) {
	e.Title = strings.TrimSpace(in.Title)
	e.Description = strings.TrimSpace(in.Description)
	e.EventDate = in.EventDate.UTC()
	e.Location = strings.TrimSpace(in.Location)
}

// Service manages events.
type Service struct {
	events     repository.EventRepository
	authorizer *auth.Authorizer
	clock      clock.Clock
	evaluators *lru.Cache[string, *bexpr.Evaluator]
}

// NewService constructs a new Service instance.
func NewService(events repository.EventRepository, authorizer *auth.Authorizer) *Service {
	evaluators, err := lru.New[string, *bexpr.Evaluator](evaluatorCacheSize)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Service{
		events:     events,
		authorizer: authorizer,
		clock:      clock.New(),
		evaluators: evaluators,
	}
}

// WithClock replaces the wall clock (tests use clock.NewMock).
func (s *Service) WithClock(c clock.Clock) *Service {
	s.clock = c
	return s
}

// Upcoming returns up to limit events that have not started yet, soonest first.
func (s *Service) Upcoming(ctx context.Context, limit int) ([]models.Event, error) {
	return s.events.ListUpcoming(ctx, s.clock.Now().UTC(), limit)
}

// List returns every event by date ascending, keeping only those matching
// filter when it is non-empty. Filter fields are id, title, description,
// location, organizer_id and event_date (RFC 3339).
func (s *Service) List(ctx context.Context, filter string) ([]models.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "events.List",
		attribute.String(telemetry.AttrFilter, filter),
	)
	defer span.End()

	var evaluator *bexpr.Evaluator
	if filter = strings.TrimSpace(filter); filter != "" {
		var err error
		if evaluator, err = s.evaluator(filter); err != nil {
			return nil, err
		}
	}

	all, err := s.events.ListByEventDate(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if evaluator == nil {
		return all, nil
	}

	matched := make([]models.Event, 0, len(all))
	for i := range all {
		ok, err := evaluator.Evaluate(all[i].FilterFields())
		if err != nil {
			return nil, apperr.FieldErrors{"filter": fmt.Sprintf("Invalid filter: %v", err)}
		}
		if ok {
			matched = append(matched, all[i])
		}
	}
	return matched, nil
}

func (s *Service) evaluator(filter string) (*bexpr.Evaluator, error) {
	if cached, ok := s.evaluators.Get(filter); ok {
		return cached, nil
	}
	evaluator, err := bexpr.CreateEvaluator(filter)
	if err != nil {
		return nil, apperr.FieldErrors{"filter": fmt.Sprintf("Invalid filter: %v", err)}
	}
	s.evaluators.Add(filter, evaluator)
	return evaluator, nil
}

// Get returns an event with its organizer loaded.
func (s *Service) Get(ctx context.Context, id int64) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, MsgEventNotFound)
		}
		return nil, err
	}
	return event, nil
}

// CanManage reports whether actor may edit and delete event.
func (s *Service) CanManage(actor auth.Identity, event *models.Event) bool {
	ok, err := s.authorizer.Allowed(actor.Role, auth.EventEdit, auth.ScopeFor(event.OrganizedBy(actor.UserID)))
	if err != nil {
		log.Printf("WARNING: ownership check for event %d failed: %v", event.ID, err)
		return false
	}
	return ok
}

func (s *Service) authorize(actor auth.Identity, action auth.Action, event *models.Event) error {
	ok, err := s.authorizer.Allowed(actor.Role, action, auth.ScopeFor(event.OrganizedBy(actor.UserID)))
	if err != nil {
		return err
	}
	if !ok {
		if action == auth.EventDelete {
			return apperr.New(apperr.ErrForbidden, MsgCannotDelete)
		}
		return apperr.New(apperr.ErrForbidden, MsgCannotEdit)
	}
	return nil
}

// Create stores a new event organized by actor.
func (s *Service) Create(ctx context.Context, actor auth.Identity, in Input) (*models.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "events.Create",
		attribute.Int64(telemetry.AttrUserID, actor.UserID),
	)
	defer span.End()

	ok, err := s.authorizer.Allowed(actor.Role, auth.EventCreate, auth.ScopeOwn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.ErrForbidden, MsgCannotCreate)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	organizerID := actor.UserID
	event := &models.Event{
		DatePosted:  s.clock.Now().UTC(),
		OrganizerID: &organizerID,
	}
	in.apply(event)

	if err := s.events.Create(ctx, event); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64(telemetry.AttrEventID, event.ID))
	return event, nil
}

// Update changes an event's details. Only its organizer or an Admin may.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id int64, in Input) (*models.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "events.Update",
		attribute.Int64(telemetry.AttrUserID, actor.UserID),
		attribute.Int64(telemetry.AttrEventID, id),
	)
	defer span.End()

	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(actor, auth.EventEdit, event); err != nil {
		telemetry.AddEvent(span, "policy.denied", attribute.String(telemetry.AttrAction, string(auth.EventEdit)))
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	in.apply(event)
	if err := s.events.Update(ctx, event); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return event, nil
}

// Delete removes an event with its registrations and feedback. Only its
// organizer or an Admin may.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id int64) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "events.Delete",
		attribute.Int64(telemetry.AttrUserID, actor.UserID),
		attribute.Int64(telemetry.AttrEventID, id),
	)
	defer span.End()

	event, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(actor, auth.EventDelete, event); err != nil {
		telemetry.AddEvent(span, "policy.denied", attribute.String(telemetry.AttrAction, string(auth.EventDelete)))
		return err
	}

	if err := s.events.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.ErrNotFound, MsgEventNotFound)
		}
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}
