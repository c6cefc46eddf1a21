package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/bunx"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/migrations"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database schema commands",
	Long:  `Commands for creating and inspecting the EventHive schema.`,
}

// migratorCommand builds a db subcommand that runs fn against a migrator
// for the configured database.
func migratorCommand(use, short string, fn func(ctx context.Context, db *bun.DB, m *migrate.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer bunx.Close(db)

			return fn(cmd.Context(), db, migrate.NewMigrator(db, migrations.Migrations))
		},
	}
}

// locked runs fn while holding the migration lock.
func locked(ctx context.Context, m *migrate.Migrator, fn func() error) error {
	if err := m.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := m.Unlock(ctx); err != nil {
			log.Printf("WARNING: failed to release migration lock: %v", err)
		}
	}()
	return fn()
}

// migrateUp creates the bookkeeping tables if needed and applies every
// pending migration. serve calls it on startup unless --migrate=false.
func migrateUp(ctx context.Context, db *bun.DB) error {
	m := migrate.NewMigrator(db, migrations.Migrations)
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}

	return locked(ctx, m, func() error {
		group, err := m.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if group.IsZero() {
			log.Printf("schema is up to date")
			return nil
		}
		log.Printf("applied migration group %d (%d migrations)", group.ID, len(group.Migrations))
		return nil
	})
}

func init() {
	dbCmd.AddCommand(
		migratorCommand("init", "Create the migration bookkeeping tables",
			func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
				if err := m.Init(ctx); err != nil {
					return fmt.Errorf("failed to initialize migrator: %w", err)
				}
				log.Printf("migration tables ready")
				return nil
			}),

		migratorCommand("migrate", "Apply pending migrations",
			func(ctx context.Context, db *bun.DB, _ *migrate.Migrator) error {
				return migrateUp(ctx, db)
			}),

		migratorCommand("status", "List migrations and whether they are applied",
			func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
				ms, err := m.MigrationsWithStatus(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				for _, mig := range ms {
					status := "pending"
					if mig.IsApplied() {
						status = fmt.Sprintf("applied (group %d)", mig.GroupID)
					}
					log.Printf("  %s: %s", mig.Name, status)
				}
				return nil
			}),

		migratorCommand("rollback", "Roll back the last migration group",
			func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
				return locked(ctx, m, func() error {
					group, err := m.Rollback(ctx)
					if err != nil {
						return fmt.Errorf("rollback failed: %w", err)
					}
					if group.IsZero() {
						log.Printf("nothing to roll back")
						return nil
					}
					log.Printf("rolled back migration group %d", group.ID)
					return nil
				})
			}),

		migratorCommand("lock", "Acquire the migration lock and keep it",
			func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
				if err := m.Lock(ctx); err != nil {
					return fmt.Errorf("failed to acquire migration lock: %w", err)
				}
				log.Printf("migration lock held; release it with 'db unlock'")
				return nil
			}),

		migratorCommand("unlock", "Force release of the migration lock",
			func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
				if err := m.Unlock(ctx); err != nil {
					return fmt.Errorf("failed to release migration lock: %w", err)
				}
				log.Printf("migration lock released")
				return nil
			}),
	)
	rootCmd.AddCommand(dbCmd)
}
