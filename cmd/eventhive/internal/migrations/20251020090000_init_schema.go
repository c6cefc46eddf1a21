package migrations

import (
	"context"
	"fmt"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth/bunadapter"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20251020090000, down_20251020090000)
}

// up_20251020090000 creates users, events, registrations, feedback, sessions and access_rules
func up_20251020090000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")
	_, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	if IsPostgreSQL(db) {
		_, err = db.ExecContext(ctx, `ALTER TABLE users ADD CONSTRAINT users_role_check CHECK (role IN ('Student', 'Organizer', 'Admin'))`)
		if err != nil {
			return fmt.Errorf("failed to add role constraint: %w", err)
		}
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating events table...")
	_, err = db.NewCreateTable().
		Model((*models.Event)(nil)).
		IfNotExists().
		ForeignKey(`(organizer_id) REFERENCES users(id) ON DELETE SET NULL`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_events_event_date ON events(event_date)`,
		`CREATE INDEX IF NOT EXISTS idx_events_organizer_id ON events(organizer_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create events index: %w", err)
		}
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating registrations table...")
	_, err = db.NewCreateTable().
		Model((*models.Registration)(nil)).
		IfNotExists().
		ForeignKey(`(user_id) REFERENCES users(id) ON DELETE CASCADE`).
		ForeignKey(`(event_id) REFERENCES events(id) ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create registrations table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_registrations_event_id ON registrations(event_id)`); err != nil {
		return fmt.Errorf("failed to create registrations index: %w", err)
	}
	fmt.Println(" OK")

	// No unique (user_id, event_id) here: one feedback per pair is checked by the service.
	fmt.Print(" [up] creating feedback table...")
	_, err = db.NewCreateTable().
		Model((*models.Feedback)(nil)).
		IfNotExists().
		ForeignKey(`(user_id) REFERENCES users(id) ON DELETE CASCADE`).
		ForeignKey(`(event_id) REFERENCES events(id) ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create feedback table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_feedback_event_user ON feedback(event_id, user_id)`); err != nil {
		return fmt.Errorf("failed to create feedback index: %w", err)
	}
	if IsPostgreSQL(db) {
		_, err = db.ExecContext(ctx, `ALTER TABLE feedback ADD CONSTRAINT feedback_rating_check CHECK (rating BETWEEN 1 AND 5)`)
		if err != nil {
			return fmt.Errorf("failed to add rating constraint: %w", err)
		}
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating sessions table...")
	_, err = db.NewCreateTable().
		Model((*models.Session)(nil)).
		IfNotExists().
		ForeignKey(`(user_id) REFERENCES users(id) ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`); err != nil {
		return fmt.Errorf("failed to create sessions index: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating access_rules table...")
	_, err = db.NewCreateTable().
		Model((*bunadapter.AccessRule)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create access_rules table: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20251020090000 drops all tables, children first
func down_20251020090000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping all tables...")

	tables := []string{
		"access_rules",
		"sessions",
		"feedback",
		"registrations",
		"events",
		"users",
	}
	for _, table := range tables {
		if err := dropTable(db, table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}

	fmt.Println(" OK")
	return nil
}
