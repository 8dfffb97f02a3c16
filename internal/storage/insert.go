package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
)

// emptyColumn is the only column of a table materialized from zero records.
const emptyColumn = "_"

// columnSet tracks column order and declared SQLite types while staged
// records are scanned.
type columnSet struct {
	names []string
	types map[string]string
}

func (c *columnSet) observe(r model.Record) {
	// Map order is random; sort new keys of this record for stable output.
	var fresh []string
	for k := range r {
		if _, ok := c.types[k]; !ok {
			fresh = append(fresh, k)
		}
	}
	sort.Strings(fresh)
	for _, k := range fresh {
		c.types[k] = "?"
		c.names = append(c.names, k)
	}
	for k, v := range r {
		if v == nil {
			continue
		}
		t := sqliteType(v)
		switch c.types[k] {
		case "?":
			c.types[k] = t
		case t, "":
		default:
			if (c.types[k] == "INTEGER" && t == "REAL") || (c.types[k] == "REAL" && t == "INTEGER") {
				c.types[k] = "REAL"
			} else {
				c.types[k] = ""
			}
		}
	}
}

func sqliteType(v any) string {
	switch v.(type) {
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	case []byte:
		return "BLOB"
	}
	return "TEXT"
}

// Insert materializes the table `name` from staged batch files with replace
// semantics: the previous table, if any, is dropped and recreated in the same
// transaction. A schema-qualified name attaches its schema when missing.
func (s *Store) Insert(ctx context.Context, name string, files []string) error {
	logger := ctxlog.FromContext(ctx)
	schema, _, err := model.SplitName(name)
	if err != nil {
		return err
	}
	qname, _ := quoteName(name)
	if err := s.ensureSchema(ctx, schema); err != nil {
		return err
	}

	cols := &columnSet{types: map[string]string{}}
	for _, f := range files {
		if err := ReadStaged(f, func(r model.Record) error { cols.observe(r); return nil }); err != nil {
			return err
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert of %s: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+qname); err != nil {
		return &model.QueryError{Query: "DROP TABLE " + qname, Err: err}
	}

	if len(cols.names) == 0 {
		if _, err := tx.ExecContext(ctx, "CREATE TABLE "+qname+" ("+quoteIdent(emptyColumn)+")"); err != nil {
			return &model.QueryError{Query: "CREATE TABLE " + qname, Err: err}
		}
		logger.Warn("No records generated, created an empty table.", "table", name)
		return tx.Commit()
	}

	defs := make([]string, len(cols.names))
	quoted := make([]string, len(cols.names))
	marks := make([]string, len(cols.names))
	for i, c := range cols.names {
		quoted[i] = quoteIdent(c)
		defs[i] = strings.TrimSpace(quoted[i] + " " + strings.Trim(cols.types[c], "?"))
		marks[i] = "?"
	}
	create := "CREATE TABLE " + qname + " (" + strings.Join(defs, ", ") + ")"
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return &model.QueryError{Query: create, Err: err}
	}

	insert := "INSERT INTO " + qname + " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return &model.QueryError{Query: insert, Err: err}
	}
	defer stmt.Close()

	var count int
	args := make([]any, len(cols.names))
	for _, f := range files {
		err := ReadStaged(f, func(r model.Record) error {
			for i, c := range cols.names {
				v, err := sqlValue(r[c])
				if err != nil {
					return fmt.Errorf("column %s: %w", c, err)
				}
				args[i] = v
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return &model.QueryError{Query: insert, Err: err}
			}
			count++
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert of %s: %w", name, err)
	}
	logger.Debug("Table materialized.", "table", name, "rows", count, "columns", len(cols.names))
	return nil
}

// sqlValue converts a decoded record value into a driver value.
func sqlValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool, int64, float64, string, []byte, time.Time:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint:
		return sqlValue(uint64(t))
	case uint64:
		if t > math.MaxInt64 {
			return float64(t), nil
		}
		return int64(t), nil
	case float32:
		return float64(t), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
