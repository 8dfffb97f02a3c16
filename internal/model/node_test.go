package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunKeys(t *testing.T) {
	assert.Equal(t, "users/0", RunKey("users", 0))

	t.Run("parse", func(t *testing.T) {
		name, stage, err := ParseRunKey("db.users/3")
		require.NoError(t, err)
		assert.Equal(t, "db.users", name)
		assert.Equal(t, 3, stage)

		for _, bad := range []string{"users", "/1", "users/", "users/x", "users/-1"} {
			_, _, err := ParseRunKey(bad)
			assert.Error(t, err, bad)
		}
	})

	t.Run("normalize wait", func(t *testing.T) {
		assert.Equal(t, "users/0", NormalizeWait("users"))
		assert.Equal(t, "users/2", NormalizeWait("users/2"))
		assert.Equal(t, "db.users/0", NormalizeWait("db.users"))
	})
}

func TestSplitName(t *testing.T) {
	schema, table, err := SplitName("users")
	require.NoError(t, err)
	assert.Empty(t, schema)
	assert.Equal(t, "users", table)

	schema, table, err = SplitName("crm.users")
	require.NoError(t, err)
	assert.Equal(t, "crm", schema)
	assert.Equal(t, "users", table)

	_, _, err = SplitName("a.b.c")
	assert.ErrorContains(t, err, "nested schemas")

	_, _, err = SplitName(".users")
	assert.Error(t, err)
}

func TestDefaultSource(t *testing.T) {
	cases := map[string]string{
		"users":       `SELECT * FROM "users"`,
		"order-items": `SELECT * FROM "order-items"`,
		"order":       `SELECT * FROM "order"`,
		"crm.users":   `SELECT * FROM "crm"."users"`,
		`odd"name`:    `SELECT * FROM "odd""name"`,
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := DefaultSource(name)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err := DefaultSource("a.b.c")
	assert.Error(t, err)
}

func TestProjectLastRun(t *testing.T) {
	n := &Node{Name: "orders", Runs: []*Run{{Key: "orders/0"}, {Key: "orders/1"}}}
	p := NewProject([]*Node{n}, nil)

	assert.Equal(t, []string{"orders/0", "orders/1"}, p.Keys)
	last, ok := p.LastRun("orders")
	require.True(t, ok)
	assert.Equal(t, "orders/1", last.Key)

	_, ok = p.LastRun("missing")
	assert.False(t, ok)
}

func TestErrorClassification(t *testing.T) {
	cfg := NewConfigError("a.node.hcl", "a/0", "func %s", "missing")
	assert.True(t, errors.Is(cfg, ErrConfig))
	assert.Equal(t, "configuration error in a.node.hcl (run a/0): func missing", cfg.Error())

	cyc := &CycleError{Cycles: [][]string{{"a/0", "b/0"}}}
	assert.True(t, errors.Is(cyc, ErrCycle))
	assert.True(t, errors.Is(cyc, ErrConfig))
	assert.Contains(t, cyc.Error(), "a/0 -> b/0 -> a/0")

	q := fmt.Errorf("wrapped: %w", &QueryError{Query: "SELECT 1", Err: errors.New("boom")})
	assert.True(t, errors.Is(q, ErrQuery))
	var qe *QueryError
	require.True(t, errors.As(q, &qe))
	assert.Equal(t, "SELECT 1", qe.Query)

	gen := &GenerationError{RunKey: "a/0", Index: 4, Err: errors.New("bad")}
	assert.True(t, errors.Is(gen, ErrGeneration))
	assert.False(t, errors.Is(gen, ErrQuery))
}
