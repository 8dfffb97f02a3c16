package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
	"github.com/vk/gridseed/internal/tabular"
)

// DefaultPageSize is used by Export and Batches when no size is given.
const DefaultPageSize = 10000

// Export writes every persisted table except the metadata table into outPath
// as <table>.<format>, streaming pages of pageSize rows.
func (s *Store) Export(ctx context.Context, outPath, format string, pageSize int) error {
	logger := ctxlog.FromContext(ctx)
	if err := tabular.Validate(format); err != nil {
		return err
	}
	tables, err := s.Tables(ctx)
	if err != nil {
		return err
	}
	for _, table := range tables {
		path := filepath.Join(outPath, tabular.FileName(table, format))
		rows, err := s.exportTable(ctx, table, path, format, pageSize)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", table, err)
		}
		logger.Debug("Table exported.", "table", table, "path", path, "rows", rows)
	}
	logger.Info("📦 Tables exported.", "count", len(tables), "format", format, "path", outPath)
	return nil
}

func (s *Store) exportTable(ctx context.Context, table, path, format string, pageSize int) (int, error) {
	cols, err := s.Columns(ctx, table)
	if err != nil {
		return 0, err
	}
	w, err := tabular.Create(path, format, cols)
	if err != nil {
		return 0, err
	}

	total, err := tabular.Copy(w, s.Batches(ctx, table, pageSize))
	if err != nil {
		w.Close()
		return total, err
	}
	return total, w.Close()
}

// Batches returns a lazy, restartable sequence of pages over a persisted
// table. Every range over it queries from the first page again.
func (s *Store) Batches(ctx context.Context, table string, pageSize int) model.BatchSeq {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return func(yield func([]model.Record, error) bool) {
		qname, err := quoteName(table)
		if err != nil {
			yield(nil, err)
			return
		}
		q := "SELECT * FROM " + qname
		for page := 0; ; page++ {
			rows, err := s.Exec(ctx, q, page, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(rows) == 0 {
				return
			}
			if !yield(rows, nil) {
				return
			}
			if len(rows) < pageSize {
				return
			}
		}
	}
}
