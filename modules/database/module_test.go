package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
)

func mockModule(t *testing.T) (*Module, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	m := &Module{Open: func(driver, dsn string) (*sql.DB, error) { return db, nil }}
	return m, mock
}

func page(recs ...model.Record) model.BatchSeq {
	return func(yield func([]model.Record, error) bool) {
		yield(recs, nil)
	}
}

func TestExec(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("statements", func(t *testing.T) {
		m, mock := mockModule(t)
		mock.ExpectExec("TRUNCATE users").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("TRUNCATE orders").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectClose()

		in := &Input{Driver: "postgres", DSN: "postgres://x", Statements: []string{"TRUNCATE users", "TRUNCATE orders"}}
		require.NoError(t, m.Exec(ctx, in, &model.HookArgs{Group: "db", Nodes: []string{"users", "orders"}}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("export in batches", func(t *testing.T) {
		m, mock := mockModule(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "crm"."accounts" ("id", "meta") VALUES ($1, $2), ($3, $4)`).
			WithArgs(int64(1), `{"k":"v"}`, int64(2), nil).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "crm"."accounts" ("id", "meta") VALUES ($1, $2)`).
			WithArgs(int64(3), nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		mock.ExpectClose()

		args := &model.HookArgs{
			Group:   "crm",
			Name:    "crm.accounts",
			Columns: []string{"id", "meta"},
			Batches: page(
				model.Record{"id": int64(1), "meta": map[string]any{"k": "v"}},
				model.Record{"id": int64(2)},
				model.Record{"id": int64(3), "meta": nil},
			),
		}
		require.NoError(t, m.Exec(ctx, &Input{Driver: "postgres", DSN: "x", BatchSize: 2}, args))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed insert rolls back", func(t *testing.T) {
		m, mock := mockModule(t)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `t` (`id`) VALUES (?)").WillReturnError(errors.New("duplicate key"))
		mock.ExpectRollback()
		mock.ExpectClose()

		args := &model.HookArgs{Name: "x", Columns: []string{"id"}, Batches: page(model.Record{"id": int64(1)})}
		err := m.Exec(ctx, &Input{Driver: "mysql", DSN: "x", Table: "t"}, args)
		assert.True(t, errors.Is(err, model.ErrQuery))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		m, _ := mockModule(t)
		err := m.Exec(ctx, &Input{Driver: "oracle"}, &model.HookArgs{})
		assert.ErrorContains(t, err, "unsupported sql driver")
	})

	t.Run("bad connect timeout", func(t *testing.T) {
		m, _ := mockModule(t)
		err := m.Exec(ctx, &Input{Driver: "sqlite", ConnectTimeout: "soon"}, &model.HookArgs{})
		assert.ErrorContains(t, err, "connect_timeout")
	})
}

func TestInsertStatement(t *testing.T) {
	cases := []struct {
		driver string
		want   string
	}{
		{"postgres", `INSERT INTO "t" ("a", "b") VALUES ($1, $2), ($3, $4)`},
		{"mysql", "INSERT INTO `t` (`a`, `b`) VALUES (?, ?), (?, ?)"},
		{"sqlite", `INSERT INTO "t" ("a", "b") VALUES (?, ?), (?, ?)`},
	}
	for _, tc := range cases {
		t.Run(tc.driver, func(t *testing.T) {
			d, err := dialectFor(tc.driver)
			require.NoError(t, err)
			assert.Equal(t, tc.want, d.insertStatement("t", []string{"a", "b"}, 2))
		})
	}
}

func TestLoadIntoSQLite(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	dsn := t.TempDir() + "/target.db"
	m := &Module{}

	before := &Input{Driver: "sqlite", DSN: dsn, Statements: []string{"CREATE TABLE users (id INTEGER, name TEXT)"}}
	require.NoError(t, m.Exec(ctx, before, &model.HookArgs{Group: "db"}))

	args := &model.HookArgs{
		Name:    "users",
		Columns: []string{"id", "name"},
		Batches: page(model.Record{"id": int64(1), "name": "ann"}, model.Record{"id": int64(2), "name": "bob"}),
	}
	require.NoError(t, m.Exec(ctx, &Input{Driver: "sqlite", DSN: dsn}, args))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	assert.Equal(t, 2, n)
}
