// Package storage is gridseed's durable store: a SQLite database that holds
// every generated table together with the run metadata used for incremental
// runs, plus the scratch directory where batches are staged before they are
// materialized.
//
// Schema-qualified node names (`crm.users`) live in attached databases, one
// file per schema, which are re-attached whenever the store is opened.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
	_ "modernc.org/sqlite"
)

const (
	dbFile     = "gridseed.db"
	schemaDir  = "schemas"
	stagingDir = "data"

	// MetaTable is the reserved metadata table.
	MetaTable = "__meta"
)

// Store is the SQLite-backed durable store. All statements run on one
// connection so that attached schemas stay visible; a Store must not be used
// while iterating another of its result sets.
type Store struct {
	dir  string
	db   *sql.DB
	conn *sql.Conn

	mu      sync.Mutex
	schemas map[string]bool
}

// Open opens (or creates) the store rooted at dir.
func Open(ctx context.Context, dir string) (*Store, error) {
	logger := ctxlog.FromContext(ctx)
	if err := os.MkdirAll(filepath.Join(dir, schemaDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	path, err := filepath.Abs(filepath.Join(dir, dbFile))
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	s := &Store{dir: dir, db: db, conn: conn, schemas: map[string]bool{}}
	if err := s.init(ctx); err != nil {
		s.Close()
		return nil, err
	}
	logger.Debug("Store opened.", "path", path, "schemas", len(s.schemas))
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+quoteIdent(MetaTable)+` (
		run_key       TEXT PRIMARY KEY,
		version       TEXT NOT NULL,
		generation_id TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(s.dir, schemaDir, "*.db"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".db")
		if err := s.attach(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Dir returns the directory the store lives in.
func (s *Store) Dir() string { return s.dir }

// StagingDir returns the scratch directory for staged batches.
func (s *Store) StagingDir() string { return filepath.Join(s.dir, stagingDir) }

// Close releases the connection.
func (s *Store) Close() error {
	var errs []error
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Purge removes the whole store directory. It is only called on explicit
// request, before the store is opened.
func Purge(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to purge %s: %w", dir, err)
	}
	return nil
}

func (s *Store) ensureSchema(ctx context.Context, schema string) error {
	if schema == "" || strings.EqualFold(schema, "main") {
		return nil
	}
	if strings.EqualFold(schema, "temp") {
		return fmt.Errorf("schema name %q is reserved", schema)
	}
	s.mu.Lock()
	known := s.schemas[schema]
	s.mu.Unlock()
	if known {
		return nil
	}
	return s.attach(ctx, schema)
}

func (s *Store) attach(ctx context.Context, schema string) error {
	path := filepath.Join(s.dir, schemaDir, schema+".db")
	if _, err := s.conn.ExecContext(ctx, "ATTACH DATABASE ? AS "+quoteIdent(schema), path); err != nil {
		return fmt.Errorf("failed to attach schema %s: %w", schema, err)
	}
	s.mu.Lock()
	s.schemas[schema] = true
	s.mu.Unlock()
	return nil
}

func (s *Store) schemaNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.schemas))
	for n := range s.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// quoteIdent quotes a single SQL identifier.
func quoteIdent(s string) string { return model.QuoteIdent(s) }

// quoteName quotes a possibly schema-qualified table name.
func quoteName(name string) (string, error) { return model.QuoteName(name) }
