package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "data", "clinic.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_DefaultsToSQLite(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, DriverSQLite, db.Driver)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestBuildDSN(t *testing.T) {
	dsn, err := buildDSN(DriverMySQL, Config{DSN: "clinic:secret@tcp(db:3306)/clinic"})
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	_, err = buildDSN(DriverSQLite, Config{})
	assert.Error(t, err)

	_, err = buildDSN("postgres", Config{})
	assert.Error(t, err)
}

func TestMigrator_Run(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())

	require.NoError(t, m.Run())
	// second run skips applied versions
	require.NoError(t, m.Run())

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 3, applied)

	for _, table := range []string{"receipts", "receipt_items", "partial_payment", "stock_items", "payment_method", "patients", "receipt_documents"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, table)
	}

	var cash string
	require.NoError(t, db.QueryRow("SELECT description FROM payment_method WHERE code = ?", "cash").Scan(&cash))
	assert.Equal(t, "Cash", cash)
}

func TestSplitStatements(t *testing.T) {
	script := `-- header
CREATE TABLE a (
    id INTEGER
);

-- second
INSERT INTO a (id) VALUES (1);
SELECT 1`

	stmts := splitStatements(script)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE TABLE a (\n    id INTEGER\n)", stmts[0])
	assert.Equal(t, "INSERT INTO a (id) VALUES (1)", stmts[1])
	assert.Equal(t, "SELECT 1", stmts[2])
}
