package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridseed/internal/testutil"
)

// Test for: generated values keep their kind through staging, storage and
// export.
func TestTypeSystem_ValueKinds(t *testing.T) {
	p := testutil.NewProject(t, map[string]string{
		"kinds.node.hcl": `
run {
  source = "SELECT 1"
  func "a" {
    result = {
      int    = 42
      float  = 1.5
      text   = "hello"
      flag   = true
      empty  = null
      list   = [1, 2]
      object = { k = "v" }
    }
  }
}
`,
	})

	result := p.Run(testutil.Options{})
	require.NoError(t, result.Err)

	rows := testutil.ReadTable(t, p, "kinds")
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{
		"int":    "42",
		"float":  "1.5",
		"text":   "hello",
		"flag":   "1",
		"empty":  "",
		"list":   "[1,2]",
		"object": `{"k":"v"}`,
	}, rows[0])
}

// Test for: a function returning null for every item creates an empty table
// that downstream queries can still read.
func TestTypeSystem_AllNullResults(t *testing.T) {
	p := testutil.NewProject(t, map[string]string{
		"blank.node.hcl": `
run {
  source = "SELECT 1 UNION ALL SELECT 2"
  func "a" { result = null }
}
`,
		"readers.node.hcl": `
run {
  source = "SELECT * FROM blank"
  func "a" { result = { id = a.id } }
}
`,
	})

	result := p.Run(testutil.Options{})
	testutil.AssertRuns(t, result, []string{"blank/0", "readers/0"}, nil)
	assert.Equal(t, 0, result.Summary.ItemCount)
	assert.Empty(t, testutil.ReadTable(t, p, "readers"))
}
