package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects every schema migration. Each migration file registers
// itself from init.
var Migrations = migrate.NewMigrations()
