package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/flash"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/attendance"
)

const studentDashboardPath = "/student_dashboard"

func outcomeCategory(o attendance.Outcome) string {
	if o.Changed {
		return flash.Success
	}
	return flash.Info
}

// HandleRegisterForEvent serves POST /register/{event_id}.
func HandleRegisterForEvent(attendanceSvc *attendance.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := pathID(r, "event_id")
		if err != nil {
			rd.NotFound(w, r)
			return
		}
		outcome, err := attendanceSvc.Register(r.Context(), identity(r), eventID)
		if err != nil {
			rd.fail(w, r, err)
			return
		}
		rd.Flash(w, r, outcomeCategory(outcome), outcome.Message)
		http.Redirect(w, r, "/events", http.StatusFound)
	}
}

// HandleUnregisterFromEvent serves POST /unregister/{event_id}.
func HandleUnregisterFromEvent(attendanceSvc *attendance.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := pathID(r, "event_id")
		if err != nil {
			rd.NotFound(w, r)
			return
		}
		outcome, err := attendanceSvc.Unregister(r.Context(), identity(r), eventID)
		if err != nil {
			rd.fail(w, r, err)
			return
		}
		rd.Flash(w, r, outcomeCategory(outcome), outcome.Message)
		http.Redirect(w, r, "/events", http.StatusFound)
	}
}

type feedbackView struct {
	Event   *models.Event
	Ratings []ratingOption
}

type ratingOption struct {
	Value int
	Label string
}

var ratingOptions = []ratingOption{
	{5, "Excellent"},
	{4, "Good"},
	{3, "Average"},
	{2, "Poor"},
	{1, "Terrible"},
}

// HandleFeedback serves GET and POST /feedback/{event_id}. Ineligible
// requests are sent back to the student dashboard with the reason.
func HandleFeedback(attendanceSvc *attendance.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := pathID(r, "event_id")
		if err != nil {
			rd.NotFound(w, r)
			return
		}
		current := identity(r)

		event, err := attendanceSvc.CheckFeedbackEligibility(r.Context(), current, eventID)
		if err != nil {
			if rejectFeedback(w, r, rd, err) {
				return
			}
			rd.fail(w, r, err)
			return
		}

		p := page{Title: "Submit Feedback", Form: feedbackForm{}, Data: feedbackView{Event: event, Ratings: ratingOptions}}
		if r.Method != http.MethodPost {
			rd.Render(w, r, http.StatusOK, "feedback", p)
			return
		}

		var form feedbackForm
		err = decodeForm(r, &form)
		if err == nil {
			_, err = attendanceSvc.SubmitFeedback(r.Context(), current, eventID, form.input())
		}
		if err != nil {
			if fields, ok := fieldErrorsOf(err); ok {
				p.Form, p.Errors = form, fields
				rd.Render(w, r, http.StatusUnprocessableEntity, "feedback", p)
				return
			}
			if rejectFeedback(w, r, rd, err) {
				return
			}
			rd.fail(w, r, err)
			return
		}

		rd.Flash(w, r, flash.Success, attendance.MsgFeedbackSubmitted)
		http.Redirect(w, r, studentDashboardPath, http.StatusFound)
	}
}

// rejectFeedback flashes an eligibility failure and redirects. It reports
// whether err was one.
func rejectFeedback(w http.ResponseWriter, r *http.Request, rd *Renderer, err error) bool {
	switch {
	case errors.Is(err, apperr.ErrPrecondition),
		errors.Is(err, apperr.ErrNotRegistered),
		errors.Is(err, apperr.ErrConflict):
		rd.Flash(w, r, noticeCategory(err), apperr.Message(err, err.Error()))
		http.Redirect(w, r, studentDashboardPath, http.StatusFound)
		return true
	}
	return false
}

// HandleScan renders the organizer's scanner page.
func HandleScan(rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rd.Render(w, r, http.StatusOK, "scan", page{Title: "Scan QR Code"})
	}
}

// HandleVerifyAttendance serves POST /qr/verify_attendance. The response is
// always {"success", "message"}; a body that fails the schema gets 400.
func HandleVerifyAttendance(attendanceSvc *attendance.Service, requests *RequestValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := requests.Decode(r.Body)
		if err != nil {
			log.Printf("verify attendance: rejected body: %v", err)
			writeJSON(w, http.StatusBadRequest, attendance.VerifyResult{
				Success: false,
				Message: "An error occurred: " + err.Error(),
			})
			return
		}

		result := attendanceSvc.VerifyAttendance(r.Context(), identity(r), req.QRData)
		writeJSON(w, http.StatusOK, result)
	}
}

// HandleQRCode serves GET /qr/code/{event_id}: the PNG for the student's
// registration.
func HandleQRCode(attendanceSvc *attendance.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := pathID(r, "event_id")
		if err != nil {
			rd.NotFound(w, r)
			return
		}
		png, err := attendanceSvc.QRCode(r.Context(), identity(r), eventID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotRegistered) {
				rd.Flash(w, r, flash.Info, apperr.Message(err, attendance.MsgNotRegistered))
				http.Redirect(w, r, studentDashboardPath, http.StatusFound)
				return
			}
			rd.fail(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "private, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("WARNING: encode response: %v", err)
	}
}
