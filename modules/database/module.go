// Package database implements the `sql` hook action. It runs statements against a
// database in any phase and, on export, loads the node's rows with batched
// multi-row INSERTs.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
	"github.com/vk/gridseed/internal/registry"
	_ "modernc.org/sqlite"
)

const (
	defaultBatchSize      = 500
	defaultConnectTimeout = 30 * time.Second
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Open opens a database handle. Defaults to sql.Open.
	Open func(driver, dsn string) (*sql.DB, error)
}

// Input defines the arguments of a sql block.
type Input struct {
	Driver     string   `hcl:"driver"`
	DSN        string   `hcl:"dsn"`
	Statements []string `hcl:"statements,optional"`
	// Table overrides the target table on export. Defaults to the node name.
	Table          string `hcl:"table,optional"`
	BatchSize      int    `hcl:"batch_size,optional"`
	ConnectTimeout string `hcl:"connect_timeout,optional"`
}

// Exec is the handler for the 'sql' action.
func (m *Module) Exec(ctx context.Context, input *Input, args *model.HookArgs) error {
	logger := ctxlog.FromContext(ctx).With("driver", input.Driver)
	d, err := dialectFor(input.Driver)
	if err != nil {
		return err
	}

	db, err := m.connect(ctx, input)
	if err != nil {
		return err
	}
	defer db.Close()

	for i, stmt := range input.Statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return &model.QueryError{Query: stmt, Err: fmt.Errorf("statement %d: %w", i, err)}
		}
	}
	if len(input.Statements) > 0 {
		logger.Debug("Statements executed.", "count", len(input.Statements))
	}
	if args.Batches == nil {
		return nil
	}

	table := input.Table
	if table == "" {
		table = args.Name
	}
	size := input.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}

	rows := 0
	for page, err := range args.Batches {
		if err != nil {
			return err
		}
		for from := 0; from < len(page); from += size {
			chunk := page[from:min(from+size, len(page))]
			if err := insert(ctx, db, d, table, args.Columns, chunk); err != nil {
				return err
			}
			rows += len(chunk)
		}
	}
	logger.Info("📦 Node loaded into database.", "node", args.Name, "table", table, "rows", rows)
	return nil
}

// connect opens the database and pings it with exponential backoff until it
// answers or the connect timeout elapses.
func (m *Module) connect(ctx context.Context, input *Input) (*sql.DB, error) {
	open := m.Open
	if open == nil {
		open = sql.Open
	}
	timeout := defaultConnectTimeout
	if input.ConnectTimeout != "" {
		d, err := time.ParseDuration(input.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connect_timeout: %w", err)
		}
		timeout = d
	}

	db, err := open(input.Driver, input.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", input.Driver, err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = timeout
	ping := func() error { return db.PingContext(ctx) }
	notify := func(err error, next time.Duration) {
		ctxlog.FromContext(ctx).Warn("Database not reachable, retrying.", "error", err, "retry_in", next)
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", input.Driver, err)
	}
	return db, nil
}

// dialect captures identifier quoting and placeholder style.
type dialect struct {
	quote    string
	numbered bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres":
		return dialect{quote: `"`, numbered: true}, nil
	case "mysql":
		return dialect{quote: "`"}, nil
	case "sqlite":
		return dialect{quote: `"`}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql driver %q: must be one of postgres, mysql, sqlite", driver)
	}
}

func (d dialect) ident(name string) string {
	parts := strings.Split(name, model.SchemaSeparator)
	for i, p := range parts {
		parts[i] = d.quote + strings.ReplaceAll(p, d.quote, d.quote+d.quote) + d.quote
	}
	return strings.Join(parts, ".")
}

// insertStatement builds a multi-row INSERT for n rows.
func (d dialect) insertStatement(table string, columns []string, n int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.ident(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.ident(c))
	}
	b.WriteString(") VALUES ")
	arg := 0
	for r := 0; r < n; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			arg++
			if d.numbered {
				fmt.Fprintf(&b, "$%d", arg)
			} else {
				b.WriteByte('?')
			}
		}
		b.WriteByte(')')
	}
	return b.String()
}

func insert(ctx context.Context, db *sql.DB, d dialect, table string, columns []string, rows []model.Record) error {
	if len(rows) == 0 || len(columns) == 0 {
		return nil
	}
	stmt := d.insertStatement(table, columns, len(rows))
	values := make([]any, 0, len(rows)*len(columns))
	for _, r := range rows {
		for _, c := range columns {
			v, err := sqlValue(r[c])
			if err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
			values = append(values, v)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, stmt, values...); err != nil {
		tx.Rollback()
		return &model.QueryError{Query: stmt, Err: err}
	}
	return tx.Commit()
}

// sqlValue converts nested values to JSON text, which every target accepts.
func sqlValue(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any, model.Record:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("sql", registry.Action(m.Exec))
}
