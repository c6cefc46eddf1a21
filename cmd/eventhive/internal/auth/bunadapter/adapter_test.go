package bunadapter_test

import (
	"context"
	"testing"

	"github.com/casbin/casbin/v2/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth/bunadapter"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/dbtest"
)

const testModel = `
[request_definition]
r = sub, act, scope

[policy_definition]
p = sub, act, scope

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.act == p.act && (p.scope == "any" || r.scope == p.scope)
`

func newModel(t *testing.T) model.Model {
	t.Helper()
	m, err := model.NewModelFromString(testModel)
	require.NoError(t, err)
	return m
}

func countRules(t *testing.T, a *bunadapter.Adapter) int {
	t.Helper()
	m := newModel(t)
	require.NoError(t, a.LoadPolicy(m))
	return len(m["p"]["p"].Policy)
}

func TestNewAdapter_NilDB(t *testing.T) {
	_, err := bunadapter.NewAdapter(nil)
	assert.Error(t, err)
}

func TestAdapter_RoundTrip(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	// Start from an empty table instead of the seeded rules.
	_, err := db.NewDelete().Model((*bunadapter.AccessRule)(nil)).Where("1 = 1").Exec(ctx)
	require.NoError(t, err)

	a, err := bunadapter.NewAdapter(db)
	require.NoError(t, err)
	assert.Equal(t, 0, countRules(t, a))

	require.NoError(t, a.AddPolicy("p", "p", []string{"role:Organizer", "event:edit", "own"}))
	require.NoError(t, a.AddPolicy("p", "p", []string{"role:Admin", "event:edit", "any"}))
	// Duplicate insert is ignored.
	require.NoError(t, a.AddPolicy("p", "p", []string{"role:Admin", "event:edit", "any"}))

	m := newModel(t)
	require.NoError(t, a.LoadPolicy(m))
	assert.ElementsMatch(t, [][]string{
		{"role:Organizer", "event:edit", "own"},
		{"role:Admin", "event:edit", "any"},
	}, m["p"]["p"].Policy)

	require.NoError(t, a.RemovePolicy("p", "p", []string{"role:Organizer", "event:edit", "own"}))
	assert.Equal(t, 1, countRules(t, a))

	t.Run("save replaces stored rules", func(t *testing.T) {
		m := newModel(t)
		m.AddPolicy("p", "p", []string{"role:Student", "feedback:submit", "any"})
		m.AddPolicy("p", "p", []string{"role:Student", "qr:view", "any"})
		require.NoError(t, a.SavePolicy(m))

		loaded := newModel(t)
		require.NoError(t, a.LoadPolicy(loaded))
		assert.ElementsMatch(t, [][]string{
			{"role:Student", "feedback:submit", "any"},
			{"role:Student", "qr:view", "any"},
		}, loaded["p"]["p"].Policy)
	})

	t.Run("filtered removal", func(t *testing.T) {
		require.NoError(t, a.RemoveFilteredPolicy("p", "p", 0, "role:Student", "qr:view"))
		assert.Equal(t, 1, countRules(t, a))

		err := a.RemoveFilteredPolicy("p", "p", 2, "any", "extra")
		assert.Error(t, err)
	})
}

func TestAccessRule_String(t *testing.T) {
	assert.Equal(t, "p, role:Admin, event:edit, any", bunadapter.NewPolicyRule("role:Admin", "event:edit", "any").String())
	assert.Equal(t, "p, role:Admin", bunadapter.NewPolicyRule("role:Admin").String())
}
