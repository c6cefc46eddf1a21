package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/accounts"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/attendance"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/events"
)

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	Remember bool   `form:"remember"`
}

type registerForm struct {
	Username        string `form:"username" validate:"required,min=2,max=20"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
	Role            string `form:"role" validate:"required,oneof=Student Organizer"`
}

func (f registerForm) input() accounts.SignupInput {
	return accounts.SignupInput{
		Username: f.Username,
		Email:    f.Email,
		Password: f.Password,
		Role:     models.Role(f.Role),
	}
}

type eventForm struct {
	Title       string `form:"title" validate:"required"`
	Description string `form:"description" validate:"required"`
	EventDate   string `form:"event_date" validate:"required,datetime=2006-01-02T15:04"`
	Location    string `form:"location" validate:"required"`
}

func eventFormFrom(e *models.Event) eventForm {
	return eventForm{
		Title:       e.Title,
		Description: e.Description,
		EventDate:   e.EventDate.UTC().Format(EventDateLayout),
		Location:    e.Location,
	}
}

func (f eventForm) input() (events.Input, error) {
	at, err := time.ParseInLocation(EventDateLayout, f.EventDate, time.UTC)
	if err != nil {
		return events.Input{}, apperr.FieldErrors{"event_date": "Use the format YYYY-MM-DDTHH:MM."}
	}
	return events.Input{
		Title:       f.Title,
		Description: f.Description,
		EventDate:   at,
		Location:    f.Location,
	}, nil
}

type feedbackForm struct {
	Rating  int    `form:"rating" validate:"required,min=1,max=5"`
	Comment string `form:"comment" validate:"max=1000"`
}

func (f feedbackForm) input() attendance.FeedbackInput {
	return attendance.FeedbackInput{Rating: f.Rating, Comment: f.Comment}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeForm parses the request body into dst and validates it. Validation
// problems come back as apperr.FieldErrors keyed by form field name.
func decodeForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "form",
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return fmt.Errorf("create form decoder: %w", err)
	}
	if err := decoder.Decode(flatten(r.PostForm)); err != nil {
		return apperr.FieldErrors{"form": "The submitted form could not be read."}
	}

	if err := validate.Struct(dst); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return fieldErrors(invalid)
		}
		return fmt.Errorf("validate form: %w", err)
	}
	return nil
}

// flatten keeps the first value of every field and trims surrounding space
// from everything except passwords.
func flatten(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		if !strings.Contains(key, "password") {
			v = strings.TrimSpace(v)
		}
		out[key] = v
	}
	return out
}

func fieldErrors(invalid validator.ValidationErrors) apperr.FieldErrors {
	errs := apperr.FieldErrors{}
	for _, fe := range invalid {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs[fe.Field()] = fieldMessage(fe)
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "eqfield":
		return "Field must be equal to password."
	case "oneof":
		return "Not a valid choice."
	case "datetime":
		return "Not a valid datetime value."
	case "min", "max":
		if fe.Kind() == reflect.String {
			if fe.Field() == "username" {
				return "Field must be between 2 and 20 characters long."
			}
			return fmt.Sprintf("Field must be at most %s characters long.", fe.Param())
		}
		return "Rating must be between 1 and 5."
	default:
		return "Invalid value."
	}
}
