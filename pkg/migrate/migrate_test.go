package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testFS() fstest.MapFS {
	fsys := fstest.MapFS{
		"migrations/001_create_sites.up.sql":   {Data: []byte(`CREATE TABLE sites (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)},
		"migrations/001_create_sites.down.sql": {Data: []byte(`DROP TABLE sites;`)},
		"migrations/002_create_codes.up.sql":   {Data: []byte(`CREATE TABLE codes (code INTEGER NOT NULL);`)},
		"migrations/002_create_codes.down.sql": {Data: []byte(`DROP TABLE codes;`)},
	}
	fsys["migrations/README.md"] = &fstest.MapFile{Data: []byte("not a migration")}
	return fsys
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestFSProviderGetMigrations(t *testing.T) {
	p := NewFSProvider(testFS(), "migrations", "")

	migrations, err := p.GetMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "create sites", migrations[0].Name)
	assert.Contains(t, migrations[0].Up, "CREATE TABLE sites")
	assert.Contains(t, migrations[0].Down, "DROP TABLE sites")
	assert.Equal(t, 2, migrations[1].Version)
}

func TestFSProviderMissingDir(t *testing.T) {
	p := NewFSProvider(testFS(), "nope", "")
	_, err := p.GetMigrations()
	assert.Error(t, err)
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testFS(), "migrations", ""), nil)

	pending, err := m.GetPendingMigrations()
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, m.MigrateUp())

	version, err := m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.True(t, tableExists(t, db, "sites"))
	assert.True(t, tableExists(t, db, "codes"))

	pending, err = m.GetPendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Running again is a no-op.
	require.NoError(t, m.MigrateUp())

	require.NoError(t, m.MigrateDown(1))
	version, err = m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.False(t, tableExists(t, db, "codes"))
	assert.True(t, tableExists(t, db, "sites"))

	require.NoError(t, m.MigrateTo(0))
	version, err = m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 0, version)
	assert.False(t, tableExists(t, db, "sites"))
}

func TestMigrateDownRejectsHigherTarget(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testFS(), "migrations", ""), nil)
	require.NoError(t, m.MigrateTo(1))

	assert.Error(t, m.MigrateDown(1))
	assert.Error(t, m.MigrateDown(2))
}

func TestMigrationWithoutDownSQL(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_only_up.up.sql": {Data: []byte(`CREATE TABLE t (x INTEGER);`)},
	}
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(fsys, "m", "versions"), nil)
	require.NoError(t, m.MigrateUp())

	err := m.MigrateDown(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no down SQL")
}
