package auth

import (
	_ "embed"
	"fmt"
	"log"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth/bunadapter"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/uptrace/bun"
)

//go:embed model.conf
var casbinModelContent string

// InitEnforcer creates a casbin enforcer backed by the access_rules table.
func InitEnforcer(db *bun.DB) (casbin.IEnforcer, error) {
	adapter, err := bunadapter.NewAdapter(db)
	if err != nil {
		return nil, fmt.Errorf("create casbin adapter: %w", err)
	}
	return NewEnforcer(adapter)
}

// NewEnforcer creates a casbin enforcer with the embedded model. A nil adapter
// yields an empty in-memory policy set.
func NewEnforcer(adapter persist.Adapter) (casbin.IEnforcer, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	if adapter == nil {
		enforcer, err := casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, fmt.Errorf("create casbin enforcer: %w", err)
		}
		return enforcer, nil
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policies: %w", err)
	}

	return enforcer, nil
}

// Authorizer answers role/action questions for the access gate and for
// ownership checks inside services.
type Authorizer struct {
	enforcer casbin.IEnforcer
}

// NewAuthorizer wraps an enforcer.
func NewAuthorizer(enforcer casbin.IEnforcer) *Authorizer {
	return &Authorizer{enforcer: enforcer}
}

// Allowed reports whether role may perform action at scope.
func (a *Authorizer) Allowed(role models.Role, action Action, scope Scope) (bool, error) {
	ok, err := a.enforcer.Enforce(role.Subject(), string(action), string(scope))
	if err != nil {
		return false, fmt.Errorf("enforce %s %s: %w", role, action, err)
	}
	return ok, nil
}

// RoleAllowed reports whether role may perform action on at least its own
// resources. This is the route-level question.
func (a *Authorizer) RoleAllowed(role models.Role, action Action) (bool, error) {
	return a.Allowed(role, action, ScopeOwn)
}

// AllowedRoles lists, in display order, the roles granted action.
func (a *Authorizer) AllowedRoles(action Action) []models.Role {
	var roles []models.Role
	for _, role := range models.Roles {
		ok, err := a.RoleAllowed(role, action)
		if err != nil {
			log.Printf("WARNING: role lookup for %s failed: %v", action, err)
			continue
		}
		if ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// Grant adds policies to the enforcer (and to storage when auto-save is on).
func (a *Authorizer) Grant(policies ...Policy) error {
	for _, p := range policies {
		rule := p.Rule()
		if _, err := a.enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return fmt.Errorf("grant %s %s: %w", p.Role, p.Action, err)
		}
	}
	return nil
}
