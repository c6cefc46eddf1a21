package bunadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/uptrace/bun"
)

// Adapter stores casbin policies in the access_rules table through bun.
// Rules are keyed by all of their values, so inserts are idempotent.
type Adapter struct {
	db *bun.DB
}

// NewAdapter creates new Adapter by using bun's database connection.
// Expects DB table to be created in database.
func NewAdapter(db *bun.DB) (*Adapter, error) {
	if db == nil {
		return nil, fmt.Errorf("bun db is nil")
	}
	return &Adapter{db: db}, nil
}

// LoadPolicy loads policy from the database.
func (a *Adapter) LoadPolicy(m model.Model) error {
	var rules []*AccessRule

	if err := a.db.NewSelect().Model(&rules).Order("ptype", "v0", "v1", "v2").Scan(context.Background()); err != nil {
		return fmt.Errorf("failed to load policy from adapter db: %w", err)
	}

	for _, r := range rules {
		if r.isEmpty() {
			continue
		}
		if err := persist.LoadPolicyLine(r.String(), m); err != nil {
			return fmt.Errorf("load policy line %q: %w", r.String(), err)
		}
	}

	return nil
}

// SavePolicy replaces every stored rule with the rules held by the model.
func (a *Adapter) SavePolicy(m model.Model) error {
	var rules []*AccessRule
	for ptype, assertion := range m["p"] {
		for _, rule := range assertion.Policy {
			rules = append(rules, newAccessRule(ptype, rule))
		}
	}

	err := a.db.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*AccessRule)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return err
		}
		for _, r := range rules {
			if _, err := tx.NewInsert().Model(r).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save policy to adapter db: %w", err)
	}

	return nil
}

// AddPolicy adds a policy rule to the database.
func (a *Adapter) AddPolicy(_ string, ptype string, rule []string) error {
	_, err := a.db.NewInsert().
		Model(newAccessRule(ptype, rule)).
		On("CONFLICT DO NOTHING").
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to add adapter policy rule: %w", err)
	}
	return nil
}

// RemovePolicy removes a policy rule from the database.
func (a *Adapter) RemovePolicy(_ string, ptype string, rule []string) error {
	r := newAccessRule(ptype, rule)
	_, err := a.db.NewDelete().
		Model((*AccessRule)(nil)).
		Where("ptype = ?", r.Ptype).
		Where("v0 = ?", r.V0).
		Where("v1 = ?", r.V1).
		Where("v2 = ?", r.V2).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to remove adapter policy rule: %w", err)
	}
	return nil
}

// RemoveFilteredPolicy removes policy rules that match the filter from the database.
func (a *Adapter) RemoveFilteredPolicy(_ string, ptype string, fieldIndex int, fieldValues ...string) error {
	query := a.db.NewDelete().Model((*AccessRule)(nil)).Where("ptype = ?", ptype)

	columns := []string{"v0", "v1", "v2"}
	for i, value := range fieldValues {
		col := fieldIndex + i
		if col < 0 || col >= len(columns) {
			return fmt.Errorf("filter field index %d out of range", col)
		}
		if value == "" {
			continue
		}
		query = query.Where("? = ?", bun.Ident(columns[col]), value)
	}

	if _, err := query.Exec(context.Background()); err != nil {
		return fmt.Errorf("failed to remove filtered adapter policy: %w", err)
	}
	return nil
}

// AccessRule is a stored casbin rule: (ptype, subject, action, scope).
type AccessRule struct {
	bun.BaseModel `bun:"table:access_rules,alias:ar"`

	Ptype string `bun:"ptype,pk,type:varchar(16),notnull"` // Policy type: 'p'
	V0    string `bun:"v0,pk,type:varchar(64)"`            // Subject (role:<Role>)
	V1    string `bun:"v1,pk,type:varchar(64)"`            // Action
	V2    string `bun:"v2,pk,type:varchar(16)"`            // Scope (any/own)
}

func newAccessRule(ptype string, rule []string) *AccessRule {
	r := &AccessRule{Ptype: ptype}
	if len(rule) > 0 {
		r.V0 = rule[0]
	}
	if len(rule) > 1 {
		r.V1 = rule[1]
	}
	if len(rule) > 2 {
		r.V2 = rule[2]
	}
	return r
}

// NewPolicyRule builds a 'p' rule row from policy values.
func NewPolicyRule(values ...string) *AccessRule {
	return newAccessRule("p", values)
}

func (r *AccessRule) isEmpty() bool {
	return r.V0 == "" && r.V1 == "" && r.V2 == ""
}

func (r *AccessRule) String() string {
	values := []string{r.Ptype, r.V0, r.V1, r.V2}
	last := len(values) - 1
	for last > 0 && values[last] == "" {
		last--
	}
	return strings.Join(values[:last+1], ", ")
}
