package migrations

import (
	"context"
	"fmt"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth/bunadapter"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20251020090100, down_20251020090100)
}

// up_20251020090100 seeds the role/action matrix used by the access gate
func up_20251020090100(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding access rules...")

	for _, p := range auth.DefaultPolicies() {
		rule := bunadapter.NewPolicyRule(p.Rule()...)
		_, err := db.NewInsert().
			Model(rule).
			On("CONFLICT DO NOTHING"). // Idempotent
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed access rule %s: %w", rule, err)
		}
	}

	fmt.Println(" OK")
	return nil
}

// down_20251020090100 removes the seeded access rules
func down_20251020090100(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] removing seeded access rules...")

	for _, p := range auth.DefaultPolicies() {
		rule := bunadapter.NewPolicyRule(p.Rule()...)
		_, err := db.NewDelete().
			Model((*bunadapter.AccessRule)(nil)).
			Where("ptype = ?", rule.Ptype).
			Where("v0 = ?", rule.V0).
			Where("v1 = ?", rule.V1).
			Where("v2 = ?", rule.V2).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to remove access rule %s: %w", rule, err)
		}
	}

	fmt.Println(" OK")
	return nil
}
