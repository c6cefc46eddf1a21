package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/flash"
	appmiddleware "github.com/eventhive/eventhive/cmd/eventhive/internal/middleware"
)

// errBadID is returned for a non-numeric path id.
var errBadID = apperr.New(apperr.ErrNotFound, "not found")

// pathID parses the named chi URL parameter as a positive row id.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// identity returns the signed-in user. Gated routes always have one.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.GetUserFromContext(r.Context())
	return id
}

// fail maps an error that no handler-specific branch consumed onto a
// response: NotFound renders 404, Forbidden renders 403 with the notice,
// Unauthorized goes to the login page and anything else is a 500.
func (rd *Renderer) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		rd.NotFound(w, r)
	case errors.Is(err, apperr.ErrForbidden):
		rd.Forbidden(w, r, apperr.Message(err, "Access denied."))
	case errors.Is(err, apperr.ErrUnauthorized):
		http.Redirect(w, r, appmiddleware.LoginRedirect(r), http.StatusFound)
	default:
		rd.ServerError(w, r, err)
	}
}

// noticeCategory picks the flash category for a domain rejection.
func noticeCategory(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotRegistered), errors.Is(err, apperr.ErrForbidden):
		return flash.Danger
	case errors.Is(err, apperr.ErrValidation):
		return flash.Warning
	default:
		return flash.Info
	}
}

// fieldErrorsOf extracts inline form errors from err.
func fieldErrorsOf(err error) (apperr.FieldErrors, bool) {
	var fields apperr.FieldErrors
	if errors.As(err, &fields) {
		return fields, true
	}
	return nil, false
}
