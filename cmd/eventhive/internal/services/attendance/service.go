// Package attendance implements the per (user, event) lifecycle:
// Unregistered → Registered → Attended, with Registered → Unregistered on an
// explicit unregister. Attended is terminal. Feedback eligibility hangs off
// the same state.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/qr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/repository"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/telemetry"
)

const tracerName = "eventhive/services/attendance"

// MaxCommentLength bounds feedback comments.
const MaxCommentLength = 1000

// Notices shown to the acting user.
const (
	MsgRegistered         = "You have successfully registered for the event!"
	MsgAlreadyRegistered  = "You are already registered for this event."
	MsgUnregistered       = "You have successfully unregistered from the event."
	MsgNotRegistered      = "You are not registered for this event."
	MsgAlreadyAttended    = "Your attendance has already been confirmed for this event."
	MsgEventNotFound      = "Event not found."
	MsgScanNotFound       = "Invalid QR Code: User or Event not found."
	MsgFeedbackTooEarly   = "You can only leave feedback for events that have finished."
	MsgFeedbackNotJoined  = "You must be registered for an event to leave feedback."
	MsgFeedbackDuplicate  = "You have already submitted feedback for this event."
	MsgFeedbackSubmitted  = "Thank you for your feedback!"
	msgAttendanceFmt      = "Success! Attendance confirmed for %s at %s."
	msgAttendanceAgainFmt = "Attendance for %s at %s was already confirmed."
	msgNotRegisteredFmt   = "%s is not registered for %s."
)

// State is the lifecycle position of a (user, event) pair.
type State int

const (
	StateUnregistered State = iota
	StateRegistered
	StateAttended
)

func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateAttended:
		return "attended"
	default:
		return "unregistered"
	}
}

// Outcome reports the result of a register/unregister request. Changed is
// false for no-op requests, which still carry an informational Message.
type Outcome struct {
	Changed bool
	Message string
}

// VerifyResult is the JSON body returned to the scanner.
type VerifyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FeedbackInput is a submitted rating. Comment may be empty.
type FeedbackInput struct {
	Rating  int
	Comment string
}

// QRIssuer produces registration QR codes.
type QRIssuer interface {
	Issue(p qr.Payload) (string, error)
	Image(p qr.Payload) ([]byte, error)
	Discard(userID, eventID int64) error
}

// Service runs the registration/attendance state machine.
type Service struct {
	registrations repository.RegistrationRepository
	events        repository.EventRepository
	users         repository.UserRepository
	feedback      repository.FeedbackRepository
	issuer        QRIssuer
	metrics       *telemetry.AttendanceMetrics
	clock         clock.Clock
}

// NewService constructs a new Service instance.
func NewService(
	registrations repository.RegistrationRepository,
	events repository.EventRepository,
	users repository.UserRepository,
	feedback repository.FeedbackRepository,
) *Service {
	return &Service{
		registrations: registrations,
		events:        events,
		users:         users,
		feedback:      feedback,
		clock:         clock.New(),
	}
}

// WithQRIssuer sets the QR side effect run after a successful registration.
func (s *Service) WithQRIssuer(issuer QRIssuer) *Service {
	s.issuer = issuer
	return s
}

// WithMetrics counts lifecycle transitions.
func (s *Service) WithMetrics(m *telemetry.AttendanceMetrics) *Service {
	s.metrics = m
	return s
}

// WithClock replaces the wall clock (tests use clock.NewMock).
func (s *Service) WithClock(c clock.Clock) *Service {
	s.clock = c
	return s
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// State returns the lifecycle position of the pair.
func (s *Service) State(ctx context.Context, userID, eventID int64) (State, error) {
	reg, err := s.registrations.Get(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return StateUnregistered, nil
		}
		return StateUnregistered, err
	}
	if reg.Attended {
		return StateAttended, nil
	}
	return StateRegistered, nil
}

// IsRegistered reports whether the pair is Registered or Attended.
func (s *Service) IsRegistered(ctx context.Context, userID, eventID int64) (bool, error) {
	state, err := s.State(ctx, userID, eventID)
	if err != nil {
		return false, err
	}
	return state != StateUnregistered, nil
}

func (s *Service) getEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.ErrNotFound, MsgEventNotFound)
		}
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	return event, nil
}

// Register moves the actor from Unregistered to Registered and issues the QR
// code. Registering again is a no-op.
func (s *Service) Register(ctx context.Context, actor auth.Identity, eventID int64) (Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "attendance.Register",
		attribute.Int64(telemetry.AttrUserID, actor.UserID),
		attribute.Int64(telemetry.AttrEventID, eventID),
	)
	defer span.End()

	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		telemetry.RecordError(span, err)
		return Outcome{}, err
	}

	state, err := s.State(ctx, actor.UserID, eventID)
	if err != nil {
		telemetry.RecordError(span, err)
		return Outcome{}, err
	}
	if state != StateUnregistered {
		return Outcome{Message: MsgAlreadyRegistered}, nil
	}

	reg := &models.Registration{
		UserID:       actor.UserID,
		EventID:      eventID,
		RegisteredAt: s.now(),
	}
	if err := s.registrations.Create(ctx, reg); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return Outcome{Message: MsgAlreadyRegistered}, nil
		}
		telemetry.RecordError(span, err)
		return Outcome{}, err
	}
	telemetry.AddEvent(span, "registration.created")
	s.metrics.Record(ctx, telemetry.StepRegistered)

	s.issueQR(span, qr.Payload{UserID: actor.UserID, EventID: eventID, EventTitle: event.Title})

	return Outcome{Changed: true, Message: MsgRegistered}, nil
}

// issueQR runs the best-effort QR side effect; failures never undo the registration.
func (s *Service) issueQR(span trace.Span, p qr.Payload) {
	if s.issuer == nil {
		return
	}
	if _, err := s.issuer.Issue(p); err != nil {
		log.Printf("WARNING: qr code for event %d user %d not generated: %v", p.EventID, p.UserID, err)
		telemetry.AddEvent(span, "qr.failed", attribute.String("error", err.Error()))
		return
	}
	telemetry.AddEvent(span, "qr.issued")
}

// Unregister moves the actor from Registered back to Unregistered. It is
// permitted regardless of the event date.
func (s *Service) Unregister(ctx context.Context, actor auth.Identity, eventID int64) (Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "attendance.Unregister",
		attribute.Int64(telemetry.AttrUserID, actor.UserID),
		attribute.Int64(telemetry.AttrEventID, eventID),
	)
	defer span.End()

	if _, err := s.getEvent(ctx, eventID); err != nil {
		telemetry.RecordError(span, err)
		return Outcome{}, err
	}

	state, err := s.State(ctx, actor.UserID, eventID)
	if err != nil {
		telemetry.RecordError(span, err)
		return Outcome{}, err
	}
	switch state {
	case StateUnregistered:
		return Outcome{Message: MsgNotRegistered}, nil
	case StateAttended:
		return Outcome{Message: MsgAlreadyAttended}, nil
	}

	if err := s.registrations.Delete(ctx, actor.UserID, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Outcome{Message: MsgNotRegistered}, nil
		}
		telemetry.RecordError(span, err)
		return Outcome{}, err
	}
	telemetry.AddEvent(span, "registration.deleted")
	s.metrics.Record(ctx, telemetry.StepUnregistered)

	if s.issuer != nil {
		if err := s.issuer.Discard(actor.UserID, eventID); err != nil {
			log.Printf("WARNING: qr code for event %d user %d not removed: %v", eventID, actor.UserID, err)
		}
	}

	return Outcome{Changed: true, Message: MsgUnregistered}, nil
}

// Verify checks scanned QR data and marks the registration attended.
// Errors carry the InvalidPayload, NotFound or NotRegistered kinds.
func (s *Service) Verify(ctx context.Context, actor auth.Identity, data string) (VerifyResult, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "attendance.Verify",
		attribute.Int64(telemetry.AttrUserID, actor.UserID),
	)
	defer span.End()

	payload, err := qr.ParsePayload(data)
	if err != nil {
		telemetry.RecordError(span, err)
		return VerifyResult{}, err
	}
	span.SetAttributes(attribute.Int64(telemetry.AttrEventID, payload.EventID))

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return VerifyResult{}, err
	}
	event, eventErr := s.events.GetByID(ctx, payload.EventID)
	if eventErr != nil && !errors.Is(eventErr, repository.ErrNotFound) {
		return VerifyResult{}, eventErr
	}
	if user == nil || event == nil {
		return VerifyResult{}, apperr.New(apperr.ErrNotFound, MsgScanNotFound)
	}

	state, err := s.State(ctx, user.ID, event.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return VerifyResult{}, err
	}

	if state == StateRegistered {
		changed, err := s.registrations.MarkAttended(ctx, user.ID, event.ID)
		if err != nil {
			telemetry.RecordError(span, err)
			return VerifyResult{}, err
		}
		if changed {
			span.SetAttributes(attribute.String(telemetry.AttrOutcome, "confirmed"))
			s.metrics.Record(ctx, telemetry.StepCheckedIn)
			return VerifyResult{Success: true, Message: fmt.Sprintf(msgAttendanceFmt, user.Username, event.Title)}, nil
		}
		// The row was removed or already marked since it was read.
		if state, err = s.State(ctx, user.ID, event.ID); err != nil {
			telemetry.RecordError(span, err)
			return VerifyResult{}, err
		}
	}

	if state == StateAttended {
		span.SetAttributes(attribute.String(telemetry.AttrOutcome, "repeat"))
		s.metrics.Record(ctx, telemetry.StepRescanned)
		return VerifyResult{Success: true, Message: fmt.Sprintf(msgAttendanceAgainFmt, user.Username, event.Title)}, nil
	}
	telemetry.AddEvent(span, "attendance.rejected")
	s.metrics.Record(ctx, telemetry.StepScanRejected)
	return VerifyResult{}, apperr.New(apperr.ErrNotRegistered, fmt.Sprintf(msgNotRegisteredFmt, user.Username, event.Title))
}

// VerifyAttendance is Verify with every failure folded into the result.
func (s *Service) VerifyAttendance(ctx context.Context, actor auth.Identity, data string) VerifyResult {
	result, err := s.Verify(ctx, actor, data)
	if err == nil {
		return result
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return VerifyResult{Success: false, Message: appErr.Message}
	}

	log.Printf("ERROR: verify attendance: %v", err)
	return VerifyResult{Success: false, Message: "An error occurred: " + err.Error()}
}

// CheckFeedbackEligibility returns the event when the actor may leave feedback
// for it. Checks run in order: event exists, event finished, actor
// registered, no earlier feedback.
func (s *Service) CheckFeedbackEligibility(ctx context.Context, actor auth.Identity, eventID int64) (*models.Event, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if !event.HasFinished(s.now()) {
		return nil, apperr.New(apperr.ErrPrecondition, MsgFeedbackTooEarly)
	}

	registered, err := s.IsRegistered(ctx, actor.UserID, eventID)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, apperr.New(apperr.ErrNotRegistered, MsgFeedbackNotJoined)
	}

	exists, err := s.feedback.Exists(ctx, actor.UserID, eventID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.New(apperr.ErrConflict, MsgFeedbackDuplicate)
	}

	return event, nil
}

// SubmitFeedback stores the actor's rating for a finished event.
func (s *Service) SubmitFeedback(ctx context.Context, actor auth.Identity, eventID int64, input FeedbackInput) (*models.Feedback, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "attendance.SubmitFeedback",
		attribute.Int64(telemetry.AttrUserID, actor.UserID),
		attribute.Int64(telemetry.AttrEventID, eventID),
	)
	defer span.End()

	if _, err := s.CheckFeedbackEligibility(ctx, actor, eventID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := validateFeedback(input); err != nil {
		return nil, err
	}

	fb := &models.Feedback{
		Rating:     input.Rating,
		Comment:    strings.TrimSpace(input.Comment),
		DatePosted: s.now(),
		UserID:     actor.UserID,
		EventID:    eventID,
	}
	if err := s.feedback.Create(ctx, fb); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.Record(ctx, telemetry.StepFeedback)
	return fb, nil
}

func validateFeedback(input FeedbackInput) error {
	errs := apperr.FieldErrors{}
	if input.Rating < 1 || input.Rating > 5 {
		errs["rating"] = "Rating must be between 1 and 5."
	}
	if len([]rune(input.Comment)) > MaxCommentLength {
		errs["comment"] = fmt.Sprintf("Comment must be at most %d characters.", MaxCommentLength)
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// QRCode returns the PNG for the actor's registration, regenerating it when
// the stored file is gone.
func (s *Service) QRCode(ctx context.Context, actor auth.Identity, eventID int64) ([]byte, error) {
	event, err := s.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	registered, err := s.IsRegistered(ctx, actor.UserID, eventID)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, apperr.New(apperr.ErrNotRegistered, MsgNotRegistered)
	}
	if s.issuer == nil {
		return nil, fmt.Errorf("qr codes are not configured")
	}
	return s.issuer.Image(qr.Payload{UserID: actor.UserID, EventID: eventID, EventTitle: event.Title})
}
