package server

import (
	"net/http"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/flash"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/attendance"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/events"
)

// homeEventLimit is how many upcoming events the homepage shows.
const homeEventLimit = 3

// eventCard is an event as listed to the current visitor.
type eventCard struct {
	Event      models.Event
	Registered bool
	CanManage  bool
}

type eventListView struct {
	Filter string
	Cards  []eventCard
}

type eventFormView struct {
	Action string
	Submit string
	Event  *models.Event
}

func buildCards(r *http.Request, list []models.Event, eventSvc *events.Service, attendanceSvc *attendance.Service) ([]eventCard, error) {
	current, signedIn := auth.GetUserFromContext(r.Context())
	cards := make([]eventCard, 0, len(list))
	for i := range list {
		card := eventCard{Event: list[i]}
		if signedIn {
			card.CanManage = eventSvc.CanManage(current, &list[i])
			if current.Is(models.RoleStudent) {
				registered, err := attendanceSvc.IsRegistered(r.Context(), current.UserID, list[i].ID)
				if err != nil {
					return nil, err
				}
				card.Registered = registered
			}
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// dashboardFor is where event mutations land afterwards.
func dashboardFor(current auth.Identity) string {
	if current.Is(models.RoleAdmin) {
		return "/admin_dashboard"
	}
	return "/organizer_dashboard"
}

// HandleHome lists the next few upcoming events.
func HandleHome(eventSvc *events.Service, attendanceSvc *attendance.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := eventSvc.Upcoming(r.Context(), homeEventLimit)
		if err != nil {
			rd.ServerError(w, r, err)
			return
		}
		cards, err := buildCards(r, list, eventSvc, attendanceSvc)
		if err != nil {
			rd.ServerError(w, r, err)
			return
		}
		rd.Render(w, r, http.StatusOK, "home", page{Title: "Welcome", Data: eventListView{Cards: cards}})
	}
}

// HandleEvents lists every event by date, optionally narrowed by ?filter=.
func HandleEvents(eventSvc *events.Service, attendanceSvc *attendance.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("filter")
		list, err := eventSvc.List(r.Context(), filter)
		if err != nil {
			if fields, ok := fieldErrorsOf(err); ok {
				rd.Render(w, r, http.StatusBadRequest, "events", page{
					Title:  "Upcoming Events",
					Errors: fields,
					Data:   eventListView{Filter: filter},
				})
				return
			}
			rd.ServerError(w, r, err)
			return
		}
		cards, err := buildCards(r, list, eventSvc, attendanceSvc)
		if err != nil {
			rd.ServerError(w, r, err)
			return
		}
		rd.Render(w, r, http.StatusOK, "events", page{Title: "Upcoming Events", Data: eventListView{Filter: filter, Cards: cards}})
	}
}

// submitEventForm decodes the event form. It returns the input, or false
// after rendering the form again with inline errors.
func submitEventForm(w http.ResponseWriter, r *http.Request, rd *Renderer, p page) (events.Input, bool) {
	var form eventForm
	err := decodeForm(r, &form)
	var in events.Input
	if err == nil {
		in, err = form.input()
	}
	if err != nil {
		fields, ok := fieldErrorsOf(err)
		if !ok {
			rd.ServerError(w, r, err)
			return events.Input{}, false
		}
		p.Form, p.Errors = form, fields
		rd.Render(w, r, http.StatusUnprocessableEntity, "event_form", p)
		return events.Input{}, false
	}
	return in, true
}

// HandleCreateEvent serves GET and POST /create_event.
func HandleCreateEvent(eventSvc *events.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := page{
			Title: "Create Event",
			Form:  eventForm{},
			Data:  eventFormView{Action: "/create_event", Submit: "Create Event"},
		}
		if r.Method != http.MethodPost {
			rd.Render(w, r, http.StatusOK, "event_form", p)
			return
		}

		in, ok := submitEventForm(w, r, rd, p)
		if !ok {
			return
		}
		if _, err := eventSvc.Create(r.Context(), identity(r), in); err != nil {
			if fields, ok := fieldErrorsOf(err); ok {
				p.Form, p.Errors = formEcho(r), fields
				rd.Render(w, r, http.StatusUnprocessableEntity, "event_form", p)
				return
			}
			rd.fail(w, r, err)
			return
		}

		rd.Flash(w, r, flash.Success, events.MsgCreated)
		http.Redirect(w, r, "/events", http.StatusFound)
	}
}

// HandleEditEvent serves GET and POST /edit_event/{id}. Only the event's
// organizer or an Admin gets past the ownership check.
func HandleEditEvent(eventSvc *events.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			rd.NotFound(w, r)
			return
		}
		event, err := eventSvc.Get(r.Context(), id)
		if err != nil {
			rd.fail(w, r, err)
			return
		}
		current := identity(r)
		if !eventSvc.CanManage(current, event) {
			rd.Forbidden(w, r, events.MsgCannotEdit)
			return
		}

		p := page{
			Title: "Edit Event",
			Form:  eventFormFrom(event),
			Data:  eventFormView{Action: r.URL.Path, Submit: "Update Event", Event: event},
		}
		if r.Method != http.MethodPost {
			rd.Render(w, r, http.StatusOK, "event_form", p)
			return
		}

		in, ok := submitEventForm(w, r, rd, p)
		if !ok {
			return
		}
		if _, err := eventSvc.Update(r.Context(), current, id, in); err != nil {
			if fields, ok := fieldErrorsOf(err); ok {
				p.Form, p.Errors = formEcho(r), fields
				rd.Render(w, r, http.StatusUnprocessableEntity, "event_form", p)
				return
			}
			rd.fail(w, r, err)
			return
		}

		rd.Flash(w, r, flash.Success, events.MsgUpdated)
		http.Redirect(w, r, dashboardFor(current), http.StatusFound)
	}
}

// HandleDeleteEvent serves POST /delete_event/{id}.
func HandleDeleteEvent(eventSvc *events.Service, rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			rd.NotFound(w, r)
			return
		}
		current := identity(r)
		if err := eventSvc.Delete(r.Context(), current, id); err != nil {
			rd.fail(w, r, err)
			return
		}

		rd.Flash(w, r, flash.Success, events.MsgDeleted)
		http.Redirect(w, r, dashboardFor(current), http.StatusFound)
	}
}

// formEcho re-reads the submitted event form for redisplay.
func formEcho(r *http.Request) eventForm {
	return eventForm{
		Title:       r.PostForm.Get("title"),
		Description: r.PostForm.Get("description"),
		EventDate:   r.PostForm.Get("event_date"),
		Location:    r.PostForm.Get("location"),
	}
}
