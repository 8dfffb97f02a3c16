package integration_tests

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridseed/internal/testutil"
)

const seq25 = `WITH RECURSIVE r(i) AS (SELECT 1 UNION ALL SELECT i + 1 FROM r WHERE i < 25) SELECT i FROM r`

// Test for: query references order the runs without an explicit wait.
func TestCoreExecution_InferredDependencies(t *testing.T) {
	// --- Arrange ---
	// orders sorts before users on disk but reads from it.
	p := testutil.NewProject(t, map[string]string{
		"a_orders.node.hcl": `
name = "orders"
run {
  source = "SELECT id AS user_id FROM users"
  func "o" {
    result = { id = o.id, user_id = o.params.user_id }
  }
}
`,
		"b_users.node.hcl": `
name = "users"
run {
  source = "` + seq25 + `"
  func "u" {
    result = { id = u.id }
  }
}
`,
	})

	// --- Act ---
	result := p.Run(testutil.Options{})

	// --- Assert ---
	testutil.AssertRuns(t, result, []string{"users/0", "orders/0"}, nil)
	orders := testutil.ReadTable(t, p, "orders")
	require.Len(t, orders, 25)
	for i, row := range orders {
		assert.Equal(t, strconv.Itoa(i+1), row["user_id"])
	}
}

// Test for: the target count comes from the source query and every item gets
// a 1-based id.
func TestCoreExecution_TargetCountFromSource(t *testing.T) {
	p := testutil.NewProject(t, map[string]string{
		"items.node.hcl": `
run {
  source = "` + seq25 + `"
  func "a" {
    result = { id = a.id, index = a.index, param = a.params.i }
  }
}
`,
	})

	result := p.Run(testutil.Options{})

	testutil.AssertRuns(t, result, []string{"items/0"}, nil)
	assert.Equal(t, 25, result.Summary.TargetCount)
	rows := testutil.ReadTable(t, p, "items")
	require.Len(t, rows, 25)
	assert.Equal(t, map[string]string{"id": "1", "index": "0", "param": "1"}, rows[0])
	assert.Equal(t, map[string]string{"id": "25", "index": "24", "param": "25"}, rows[24])
}

// Test for: later stages rewrite the node's table from its previous state.
func TestCoreExecution_StagesRefineTheTable(t *testing.T) {
	p := testutil.NewProject(t, map[string]string{
		"users.node.hcl": `
run {
  source = "` + seq25 + `"
  func "u" {
    result = { id = u.id, score = u.id * 10 }
  }
}
run {
  func "u" {
    result = u.params.score > 100 ? { id = u.params.id, score = u.params.score, vip = true } : null
  }
}
`,
	})

	result := p.Run(testutil.Options{})

	testutil.AssertRuns(t, result, []string{"users/0", "users/1"}, nil)
	rows := testutil.ReadTable(t, p, "users")
	require.Len(t, rows, 15)
	assert.Equal(t, "11", rows[0]["id"])
	assert.Equal(t, "1", rows[0]["vip"])
}

// Test for: later stages read the node's table back even when its name is not
// a plain SQL identifier.
func TestCoreExecution_StagesOnUnquotedNames(t *testing.T) {
	stages := `
run {
  source = "` + seq25 + `"
  func "a" {
    result = { id = a.id }
  }
}
run {
  func "a" {
    result = a.params.id % 5 == 0 ? { id = a.params.id } : null
  }
}
`
	p := testutil.NewProject(t, map[string]string{
		"order-items.node.hcl": stages,
		"order.node.hcl":       stages,
	})

	result := p.Run(testutil.Options{})

	testutil.AssertRuns(t, result, []string{"order-items/0", "order-items/1", "order/0", "order/1"}, nil)
	for _, table := range []string{"order-items", "order"} {
		rows := testutil.ReadTable(t, p, table)
		require.Len(t, rows, 5, table)
		assert.Equal(t, "25", rows[4]["id"], table)
	}
}

// Test for: a wait entry orders runs that share no query reference.
func TestCoreExecution_ExplicitWait(t *testing.T) {
	p := testutil.NewProject(t, map[string]string{
		"a.node.hcl": `
run {
  source = "SELECT 1"
  wait   = ["b"]
  func "x" { result = { id = x.id } }
}
`,
		"b.node.hcl": `
run {
  source = "SELECT 1"
  func "x" { result = { id = x.id } }
}
`,
	})

	result := p.Run(testutil.Options{})
	testutil.AssertRuns(t, result, []string{"b/0", "a/0"}, nil)
}
