package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/bunx"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/flash"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/qr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/repository"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/server"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/accounts"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/attendance"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/dashboard"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/services/events"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/telemetry"
)

const (
	qrImageSize       = 256
	qrCacheSize       = 512
	sessionSweepEvery = time.Hour
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the EventHive web server",
	Long:  `Starts the HTTP server serving the EventHive pages and the QR attendance endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				log.Printf("WARNING: %v", err)
			}
		}()

		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		dbMetrics, err := telemetry.NewDatabaseMetrics()
		if err != nil {
			return fmt.Errorf("failed to create database metrics: %w", err)
		}
		db.AddQueryHook(dbMetrics)

		log.Printf("Connected to database")

		if migrateOnStart {
			if err := migrateUp(ctx, db); err != nil {
				return err
			}
		}

		enforcer, err := auth.InitEnforcer(db)
		if err != nil {
			return fmt.Errorf("configure casbin enforcer: %w", err)
		}
		authorizer := auth.NewAuthorizer(enforcer)

		// Initialize repositories
		userRepo := repository.NewBunUserRepository(db)
		sessionRepo := repository.NewBunSessionRepository(db)
		eventRepo := repository.NewBunEventRepository(db)
		registrationRepo := repository.NewBunRegistrationRepository(db)
		feedbackRepo := repository.NewBunFeedbackRepository(db)

		qrStore, err := qr.NewFileStore(cfg.QRDir, qrCacheSize)
		if err != nil {
			return fmt.Errorf("failed to create qr store: %w", err)
		}
		qrGenerator := qr.NewGenerator(qr.NewPNGEncoder(qrImageSize), qrStore)

		authMetrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			return fmt.Errorf("failed to create auth metrics: %w", err)
		}
		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("failed to create server metrics: %w", err)
		}
		attendanceMetrics, err := telemetry.NewAttendanceMetrics()
		if err != nil {
			return fmt.Errorf("failed to create attendance metrics: %w", err)
		}

		// Initialize services
		accountSvc := accounts.NewService(userRepo, sessionRepo).
			WithSessionDurations(cfg.SessionDuration, cfg.RememberDuration).
			WithMetrics(authMetrics)
		eventSvc := events.NewService(eventRepo, authorizer)
		attendanceSvc := attendance.NewService(registrationRepo, eventRepo, userRepo, feedbackRepo).
			WithQRIssuer(qrGenerator).
			WithMetrics(attendanceMetrics)
		dashboardSvc := dashboard.NewService(userRepo, eventRepo, registrationRepo, feedbackRepo)

		r, err := server.NewRouter(server.RouterOptions{
			Accounts:      accountSvc,
			Events:        eventSvc,
			Attendance:    attendanceSvc,
			Dashboards:    dashboardSvc,
			Authorizer:    authorizer,
			Flashes:       flash.NewStore(cfg.CookieHashKey(), cfg.SecureCookies),
			SecureCookies: cfg.SecureCookies,
			Metrics:       serverMetrics,
		})
		if err != nil {
			return fmt.Errorf("failed to build router: %w", err)
		}

		sweepCtx, cancelSweep := context.WithCancel(ctx)
		defer cancelSweep()
		go sweepSessions(sweepCtx, accountSvc)

		// Create HTTP server
		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			log.Printf("Server URL: %s", cfg.ServerURL)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			// Graceful shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

// sweepSessions deletes expired and logged-out sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, accountSvc *accounts.Service) {
	ticker := time.NewTicker(sessionSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := accountSvc.PurgeStaleSessions(ctx)
			if err != nil {
				log.Printf("ERROR: session sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("session sweep removed %d stale sessions", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", true, "Apply pending database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}
