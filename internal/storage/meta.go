package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/gridseed/internal/model"
)

// SaveMeta records that runKey completed with version during generation genID.
func (s *Store) SaveMeta(ctx context.Context, genID, runKey, version string) error {
	stmt := `INSERT INTO ` + quoteIdent(MetaTable) + ` (run_key, version, generation_id) VALUES (?, ?, ?)
		ON CONFLICT(run_key) DO UPDATE SET version = excluded.version, generation_id = excluded.generation_id`
	if _, err := s.conn.ExecContext(ctx, stmt, runKey, version, genID); err != nil {
		return &model.QueryError{Query: stmt, Err: fmt.Errorf("saving metadata for %s: %w", runKey, err)}
	}
	return nil
}

// LoadMeta returns the metadata records that exist for the given run keys,
// ordered by run key.
func (s *Store) LoadMeta(ctx context.Context, runKeys []string) ([]model.Metadata, error) {
	if len(runKeys) == 0 {
		return nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(runKeys)), ", ")
	stmt := `SELECT run_key, version, generation_id FROM ` + quoteIdent(MetaTable) +
		` WHERE run_key IN (` + marks + `) ORDER BY run_key`
	args := make([]any, len(runKeys))
	for i, k := range runKeys {
		args[i] = k
	}

	rows, err := s.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, &model.QueryError{Query: stmt, Err: err}
	}
	defer rows.Close()

	var out []model.Metadata
	for rows.Next() {
		var m model.Metadata
		if err := rows.Scan(&m.RunKey, &m.Version, &m.GenerationID); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
