// Package dashboard assembles the read models behind the three role dashboards.
package dashboard

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/repository"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/telemetry"
)

const tracerName = "eventhive/services/dashboard"

// AdminView lists every user and event plus registration counts per event.
type AdminView struct {
	Users  []models.User
	Events []models.Event
	Counts []repository.EventRegistrationCount
}

// OrganizerEvent is one of the organizer's events with its attendees and feedback.
type OrganizerEvent struct {
	Event     models.Event
	Attendees []models.Registration
	Feedback  []models.Feedback
}

// AttendedCount returns how many attendees have been scanned in.
func (e OrganizerEvent) AttendedCount() int {
	n := 0
	for _, a := range e.Attendees {
		if a.Attended {
			n++
		}
	}
	return n
}

// OrganizerView lists the organizer's events, latest event date first.
type OrganizerView struct {
	Events []OrganizerEvent
}

// StudentEntry is one registration on the student dashboard.
type StudentEntry struct {
	Event         models.Event
	Attended      bool
	FeedbackGiven bool
	Finished      bool
}

// CanLeaveFeedback reports whether the feedback link should be offered.
func (e StudentEntry) CanLeaveFeedback() bool {
	return e.Finished && !e.FeedbackGiven
}

// StudentView lists the student's registrations, soonest event first.
type StudentView struct {
	Entries []StudentEntry
}

// Service builds dashboard views.
type Service struct {
	users         repository.UserRepository
	events        repository.EventRepository
	registrations repository.RegistrationRepository
	feedback      repository.FeedbackRepository
	clock         clock.Clock
}

// NewService constructs a new Service instance.
func NewService(
	users repository.UserRepository,
	events repository.EventRepository,
	registrations repository.RegistrationRepository,
	feedback repository.FeedbackRepository,
) *Service {
	return &Service{
		users:         users,
		events:        events,
		registrations: registrations,
		feedback:      feedback,
		clock:         clock.New(),
	}
}

// WithClock replaces the wall clock (tests use clock.NewMock).
func (s *Service) WithClock(c clock.Clock) *Service {
	s.clock = c
	return s
}

// Admin builds the admin dashboard.
func (s *Service) Admin(ctx context.Context) (*AdminView, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "dashboard.Admin",
		attribute.String(telemetry.AttrDashboard, "admin"),
	)
	defer span.End()

	users, err := s.users.List(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	events, err := s.events.ListByDatePosted(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	counts, err := s.events.RegistrationCounts(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &AdminView{Users: users, Events: events, Counts: counts}, nil
}

// Organizer builds the dashboard for the acting organizer.
func (s *Service) Organizer(ctx context.Context, actor auth.Identity) (*OrganizerView, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "dashboard.Organizer",
		attribute.String(telemetry.AttrDashboard, "organizer"),
		attribute.Int64(telemetry.AttrUserID, actor.UserID),
	)
	defer span.End()

	events, err := s.events.ListByOrganizer(ctx, actor.UserID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	view := &OrganizerView{Events: make([]OrganizerEvent, 0, len(events))}
	for _, event := range events {
		attendees, err := s.registrations.ListAttendees(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		feedback, err := s.feedback.ListByEvent(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		view.Events = append(view.Events, OrganizerEvent{Event: event, Attendees: attendees, Feedback: feedback})
	}
	return view, nil
}

// Student builds the dashboard for the acting student.
func (s *Service) Student(ctx context.Context, actor auth.Identity) (*StudentView, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "dashboard.Student",
		attribute.String(telemetry.AttrDashboard, "student"),
		attribute.Int64(telemetry.AttrUserID, actor.UserID),
	)
	defer span.End()

	registrations, err := s.registrations.ListByUser(ctx, actor.UserID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	given, err := s.feedback.ListByUser(ctx, actor.UserID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	reviewed := make(map[int64]bool, len(given))
	for _, fb := range given {
		reviewed[fb.EventID] = true
	}

	now := s.clock.Now().UTC()
	view := &StudentView{Entries: make([]StudentEntry, 0, len(registrations))}
	for _, reg := range registrations {
		if reg.Event == nil {
			continue
		}
		view.Entries = append(view.Entries, StudentEntry{
			Event:         *reg.Event,
			Attended:      reg.Attended,
			FeedbackGiven: reviewed[reg.EventID],
			Finished:      reg.Event.HasFinished(now),
		})
	}
	return view, nil
}
