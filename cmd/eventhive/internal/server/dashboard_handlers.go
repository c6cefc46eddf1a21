package server

import (
	"fmt"
	"net/http"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/flash"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/accounts"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/dashboard"
)

// HandleAdminDashboard renders users, events and registration counts.
func HandleAdminDashboard(dashboards *dashboard.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := dashboards.Admin(r.Context())
		if err != nil {
			rd.ServerError(w, r, err)
			return
		}
		rd.Render(w, r, http.StatusOK, "admin_dashboard", page{Title: "Admin Dashboard", Data: view})
	}
}

// HandleOrganizerDashboard renders the organizer's events with attendees and feedback.
func HandleOrganizerDashboard(dashboards *dashboard.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := dashboards.Organizer(r.Context(), identity(r))
		if err != nil {
			rd.ServerError(w, r, err)
			return
		}
		rd.Render(w, r, http.StatusOK, "organizer_dashboard", page{Title: "Organizer Dashboard", Data: view})
	}
}

// HandleStudentDashboard renders the student's registrations.
func HandleStudentDashboard(dashboards *dashboard.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := dashboards.Student(r.Context(), identity(r))
		if err != nil {
			rd.ServerError(w, r, err)
			return
		}
		rd.Render(w, r, http.StatusOK, "student_dashboard", page{Title: "My Dashboard", Data: view})
	}
}

// HandleDeleteUser serves POST /delete_user/{id}. Deleting oneself is
// refused with 403.
func HandleDeleteUser(accountSvc *accounts.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			rd.NotFound(w, r)
			return
		}
		user, err := accountSvc.DeleteUser(r.Context(), identity(r), id)
		if err != nil {
			rd.fail(w, r, err)
			return
		}
		rd.Flash(w, r, flash.Success, fmt.Sprintf(accounts.MsgUserDeletedFmt, user.Username))
		http.Redirect(w, r, "/admin_dashboard", http.StatusFound)
	}
}
