package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/flash"
	appmiddleware "github.com/eventhive/eventhive/cmd/eventhive/internal/middleware"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/accounts"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/attendance"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/dashboard"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/events"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/telemetry"
)

// RouterOptions controls the construction of the EventHive HTTP router.
// Services, Authorizer and Flashes are required.
type RouterOptions struct {
	Accounts      *accounts.Service
	Events        *events.Service
	Attendance    *attendance.Service
	Dashboards    *dashboard.Service
	Authorizer    *auth.Authorizer
	Flashes       *flash.Store
	SecureCookies bool
	Metrics       *telemetry.ServerMetrics
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy. It lets a
// scanner page served from a dev server post to verify_attendance.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter assembles a chi.Router with shared middleware, the session
// middleware, the role gate and every EventHive page mounted.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	if opts.Accounts == nil || opts.Events == nil || opts.Attendance == nil || opts.Dashboards == nil {
		return nil, fmt.Errorf("router: all services are required")
	}
	if opts.Authorizer == nil || opts.Flashes == nil {
		return nil, fmt.Errorf("router: authorizer and flash store are required")
	}

	rd, err := NewRenderer(opts.Flashes)
	if err != nil {
		return nil, err
	}
	verifyRequests, err := NewVerifyRequestValidator()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(appmiddleware.NewSessionMiddleware(opts.Accounts, opts.SecureCookies))

	// Apply custom middleware passed from the caller.
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(rd.NotFound)

	// Public pages
	home := HandleHome(opts.Events, opts.Attendance, rd)
	r.Get("/", home)
	r.Get("/index", home)
	r.Get("/events", HandleEvents(opts.Events, opts.Attendance, rd))

	login := HandleLogin(opts.Accounts, rd, opts.SecureCookies)
	r.Get("/auth/login", login)
	r.Post("/auth/login", login)
	register := HandleRegister(opts.Accounts, rd)
	r.Get("/auth/register", register)
	r.Post("/auth/register", register)
	r.With(appmiddleware.RequireLogin).Get("/auth/logout", HandleLogout(opts.Accounts, rd, opts.SecureCookies))

	gate := appmiddleware.NewGate(opts.Authorizer, opts.Flashes)

	// Event management
	create := HandleCreateEvent(opts.Events, rd)
	r.With(gate.Require(auth.EventCreate)).Get("/create_event", create)
	r.With(gate.Require(auth.EventCreate)).Post("/create_event", create)
	edit := HandleEditEvent(opts.Events, rd)
	r.With(gate.Require(auth.EventEdit)).Get("/edit_event/{id}", edit)
	r.With(gate.Require(auth.EventEdit)).Post("/edit_event/{id}", edit)
	r.With(gate.Require(auth.EventDelete)).Post("/delete_event/{id}", HandleDeleteEvent(opts.Events, rd))

	// Registration lifecycle
	r.With(gate.Require(auth.RegistrationCreate)).Post("/register/{event_id}", HandleRegisterForEvent(opts.Attendance, rd))
	r.With(gate.Require(auth.RegistrationDelete)).Post("/unregister/{event_id}", HandleUnregisterFromEvent(opts.Attendance, rd))
	feedback := HandleFeedback(opts.Attendance, rd)
	r.With(gate.Require(auth.FeedbackSubmit)).Get("/feedback/{event_id}", feedback)
	r.With(gate.Require(auth.FeedbackSubmit)).Post("/feedback/{event_id}", feedback)

	// Dashboards
	r.With(gate.Require(auth.DashboardAdmin)).Get("/admin_dashboard", HandleAdminDashboard(opts.Dashboards, rd))
	r.With(gate.Require(auth.DashboardOrganizer)).Get("/organizer_dashboard", HandleOrganizerDashboard(opts.Dashboards, rd))
	r.With(gate.Require(auth.DashboardStudent)).Get("/student_dashboard", HandleStudentDashboard(opts.Dashboards, rd))
	r.With(gate.Require(auth.UserDelete)).Post("/delete_user/{id}", HandleDeleteUser(opts.Accounts, rd))

	// QR attendance
	r.Route("/qr", func(qr chi.Router) {
		qr.With(gate.Require(auth.AttendanceScan)).Get("/scan", HandleScan(rd))
		qr.With(gate.Require(auth.AttendanceVerify)).Post("/verify_attendance", HandleVerifyAttendance(opts.Attendance, verifyRequests))
		qr.With(gate.Require(auth.QRView)).Get("/code/{event_id}", HandleQRCode(opts.Attendance, rd))
	})

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r, nil
}
