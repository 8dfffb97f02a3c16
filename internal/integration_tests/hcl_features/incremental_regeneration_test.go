package integration_tests

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridseed/internal/app"
	"github.com/vk/gridseed/internal/testutil"
)

const users = `
run {
  source = "SELECT 1 UNION ALL SELECT 2 UNION ALL SELECT 3"
  func "u" { result = { id = u.id } }
}
`

const orders = `
run {
  source = "SELECT id FROM users"
  func "o" { result = { id = o.id, user_id = o.params.id } }
}
`

const audit = `
run {
  source = "SELECT id FROM orders"
  func "a" { result = { order_id = a.params.id } }
}
`

func TestHCLFeatures_IncrementalRegeneration(t *testing.T) {
	p := testutil.NewProject(t, map[string]string{
		"users.node.hcl":  users,
		"orders.node.hcl": orders,
		"audit.node.hcl":  audit,
	})
	all := []string{"users/0", "orders/0", "audit/0"}

	testutil.AssertRuns(t, p.Run(testutil.Options{}), all, nil)

	t.Run("unchanged definitions are skipped", func(t *testing.T) {
		testutil.AssertRuns(t, p.Run(testutil.Options{}), nil, all)
	})

	t.Run("whitespace edits keep the version", func(t *testing.T) {
		p.Write(map[string]string{"users.node.hcl": strings.ReplaceAll(users, "  source =", "      source   =")})
		testutil.AssertRuns(t, p.Run(testutil.Options{}), nil, all)
	})

	t.Run("an edit regenerates the node and its descendants", func(t *testing.T) {
		p.Write(map[string]string{"orders.node.hcl": orders + "\n# comment\n"})
		testutil.AssertRuns(t, p.Run(testutil.Options{}), []string{"orders/0", "audit/0"}, []string{"users/0"})
	})

	t.Run("an edit at the root regenerates everything", func(t *testing.T) {
		p.Write(map[string]string{"users.node.hcl": `version = "2"` + "\n" + users})
		testutil.AssertRuns(t, p.Run(testutil.Options{}), all, nil)
	})

	t.Run("explicit version pins the node", func(t *testing.T) {
		p.Write(map[string]string{"users.node.hcl": `version = "2"` + "\n" + users + "\n# ignored\n"})
		testutil.AssertRuns(t, p.Run(testutil.Options{}), nil, all)
	})

	t.Run("purge regenerates everything", func(t *testing.T) {
		result := p.Run(testutil.Options{Mutate: func(c *app.Config) { c.Purge = true }})
		testutil.AssertRuns(t, result, all, nil)
	})
}

func TestHCLFeatures_SchemaQualifiedNames(t *testing.T) {
	p := testutil.NewProject(t, map[string]string{
		"crm/accounts.node.hcl": `
name = "crm.accounts"
run {
  source = "SELECT 1 UNION ALL SELECT 2"
  func "a" { result = { id = a.id } }
}
`,
		"contacts.node.hcl": `
run {
  source = "SELECT id FROM crm.accounts"
  func "c" { result = { account_id = c.params.id } }
}
`,
	})

	result := p.Run(testutil.Options{})
	testutil.AssertRuns(t, result, []string{"crm.accounts/0", "contacts/0"}, nil)
	rows := testutil.ReadTable(t, p, "contacts")
	require.Len(t, rows, 2)
	assert.Len(t, testutil.ReadTable(t, p, "crm.accounts"), 2)
}

func TestHCLFeatures_DefaultNameAndSource(t *testing.T) {
	p := testutil.NewProject(t, map[string]string{
		"nested/dir/things.node.hcl": `
run {
  source = "SELECT 'a' AS v UNION ALL SELECT 'b'"
  func "t" { result = { v = upper(t.params.v) } }
}
run {
  func "t" { result = { v = "${t.params.v}!" } }
}
`,
	})
	result := p.Run(testutil.Options{})
	testutil.AssertRuns(t, result, []string{"things/0", "things/1"}, nil)
	rows := testutil.ReadTable(t, p, "things")
	assert.Equal(t, []map[string]string{{"v": "A!"}, {"v": "B!"}}, rows)
}
