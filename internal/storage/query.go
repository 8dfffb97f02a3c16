package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vk/gridseed/internal/model"
)

// trimQuery strips whitespace and trailing semicolons so the query can be
// used as a subquery.
func trimQuery(q string) string {
	return strings.TrimRight(strings.TrimSpace(q), "; \t\r\n")
}

// Count returns the number of rows q yields.
func (s *Store) Count(ctx context.Context, q string) (int, error) {
	stmt := "SELECT COUNT(*) FROM (" + trimQuery(q) + ")"
	var n int64
	if err := s.conn.QueryRowContext(ctx, stmt).Scan(&n); err != nil {
		return 0, &model.QueryError{Query: q, Err: err}
	}
	return int(n), nil
}

// Exec returns page `page` of q, i.e. rows [page*size, (page+1)*size).
func (s *Store) Exec(ctx context.Context, q string, page, size int) ([]model.Record, error) {
	_, rows, err := s.Page(ctx, q, page, size)
	return rows, err
}

// Page is Exec that also returns the column order.
func (s *Store) Page(ctx context.Context, q string, page, size int) ([]string, []model.Record, error) {
	if page < 0 || size <= 0 {
		return nil, nil, fmt.Errorf("invalid page %d of size %d", page, size)
	}
	stmt := "SELECT * FROM (" + trimQuery(q) + ") LIMIT ? OFFSET ?"
	rows, err := s.conn.QueryContext(ctx, stmt, size, page*size)
	if err != nil {
		return nil, nil, &model.QueryError{Query: q, Err: err}
	}
	cols, recs, err := scanRecords(rows)
	if err != nil {
		return nil, nil, &model.QueryError{Query: q, Err: err}
	}
	return cols, recs, nil
}

// Columns returns the column names of a persisted table.
func (s *Store) Columns(ctx context.Context, name string) ([]string, error) {
	qname, err := quoteName(name)
	if err != nil {
		return nil, err
	}
	stmt := "SELECT * FROM " + qname + " LIMIT 0"
	rows, err := s.conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, &model.QueryError{Query: stmt, Err: err}
	}
	defer rows.Close()
	return rows.Columns()
}

// Tables lists every persisted table except the metadata table, main schema
// first, then attached schemas by name.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	list := func(schema string) ([]string, error) {
		master := "sqlite_master"
		prefix := ""
		if schema != "" {
			master = quoteIdent(schema) + ".sqlite_master"
			prefix = schema + model.SchemaSeparator
		}
		stmt := "SELECT name FROM " + master + " WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
		rows, err := s.conn.QueryContext(ctx, stmt)
		if err != nil {
			return nil, &model.QueryError{Query: stmt, Err: err}
		}
		defer rows.Close()
		var names []string
		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				return nil, err
			}
			if schema == "" && n == MetaTable {
				continue
			}
			names = append(names, prefix+n)
		}
		return names, rows.Err()
	}

	tables, err := list("")
	if err != nil {
		return nil, err
	}
	for _, schema := range s.schemaNames() {
		more, err := list(schema)
		if err != nil {
			return nil, err
		}
		tables = append(tables, more...)
	}
	return tables, nil
}

func scanRecords(rows *sql.Rows) ([]string, []model.Record, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var out []model.Record
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		rec := make(model.Record, len(cols))
		for i, c := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = append([]byte(nil), b...)
			}
			rec[c] = v
		}
		out = append(out, rec)
	}
	return cols, out, rows.Err()
}
