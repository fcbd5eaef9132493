package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	_, err = sqlDB.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`)
	require.NoError(t, err)
	return NewDB(sqlDB, zap.NewNop())
}

func count(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&n))
	return n
}

func insert(ctx context.Context, db *DB, body string) error {
	_, err := ExecutorFor(ctx, db.DB).ExecContext(ctx, `INSERT INTO notes (body) VALUES (?)`, body)
	return err
}

func TestWithTransaction_Commit(t *testing.T) {
	db := openDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		require.NotNil(t, TxFromContext(ctx))
		return insert(ctx, db, "a")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := openDB(t)
	boom := errors.New("boom")

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		require.NoError(t, insert(ctx, db, "a"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db))
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := openDB(t)

	err := db.WithTransaction(context.Background(), func(outer context.Context) error {
		require.NoError(t, insert(outer, db, "a"))
		return db.WithTransaction(outer, func(inner context.Context) error {
			assert.Same(t, TxFromContext(outer), TxFromContext(inner))
			require.NoError(t, insert(inner, db, "b"))
			return errors.New("inner failed")
		})
	})
	assert.Error(t, err)
	assert.Equal(t, 0, count(t, db))
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db := openDB(t)

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(ctx context.Context) error {
			require.NoError(t, insert(ctx, db, "a"))
			panic("write failed")
		})
	})
	assert.Equal(t, 0, count(t, db))
}

func TestExecutorFor_FallsBackToDB(t *testing.T) {
	db := openDB(t)

	assert.Nil(t, TxFromContext(context.Background()))
	assert.Equal(t, Executor(db.DB), ExecutorFor(context.Background(), db.DB))
}
