package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRunsMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "coach.db")

	db, err := Open(path)
	require.NoError(t, err)

	var version int
	require.NoError(t, db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version))
	assert.Equal(t, schemaVersion, version)
	require.NoError(t, db.Close())

	// 重新打开不会重复执行迁移。
	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&rows))
	assert.Equal(t, schemaVersion, rows)
}

func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)

	for _, table := range []string{"sessions", "interactions"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestFormatTimeSortsLikeTime(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	later := base.Add(500 * time.Millisecond)

	a, b := FormatTime(base), FormatTime(later)
	assert.Len(t, a, len(b))
	assert.Less(t, a, b)

	parsed, err := ParseTime(b)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(later))
}
