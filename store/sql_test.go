package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := OpenSQL("sqlite", filepath.Join(t.TempDir(), "kimsabu.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	s, err := NewSQLStore(db)
	require.NoError(t, err)
	return s
}

func TestSQLStore(t *testing.T) {
	testStore(t, testSQLStore(t))
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	_, err := OpenSQL("mysql", "")
	assert.ErrorContains(t, err, "unknown sql driver")
}
