package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ReadTable reads an exported CSV table as a list of rows keyed by column.
func ReadTable(t *testing.T, p *Project, table string) []map[string]string {
	t.Helper()
	f, err := os.Open(filepath.Join(p.Out, table+".csv"))
	require.NoError(t, err)
	defer f.Close()

	lines, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, lines, "table %s has no header", table)

	header := lines[0]
	rows := make([]map[string]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = line[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// AssertRuns checks which runs a generation executed and skipped.
func AssertRuns(t *testing.T, result *HarnessResult, generated, skipped []string) {
	t.Helper()
	require.NoError(t, result.Err)
	require.NotNil(t, result.Summary)
	if generated == nil {
		require.Empty(t, result.Summary.Generated, "generated runs")
	} else {
		require.Equal(t, generated, result.Summary.Generated, "generated runs")
	}
	if skipped == nil {
		require.Empty(t, result.Summary.Skipped, "skipped runs")
	} else {
		require.Equal(t, skipped, result.Summary.Skipped, "skipped runs")
	}
}
