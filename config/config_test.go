package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads so the host environment does
// not leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"KIMSABU_ADDR", "KIMSABU_DEV", "KIMSABU_SITE_URL", "KIMSABU_BACKEND",
		"FIRESTORE_PROJECT", "DATABASE_URL", "KIMSABU_BLOG_ID",
		"KIMSABU_CACHE_TTL", "KIMSABU_AUTOSAVE_INTERVAL", "KIMSABU_CRAWL_INTERVAL",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET",
		"MINIO_USE_SSL", "MINIO_PUBLIC_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.False(t, cfg.Dev)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, DefaultSiteURL, cfg.SiteURL)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.AutosaveInterval)
	assert.Equal(t, "k_sabu", cfg.BlogID)
	assert.False(t, cfg.Minio.Enabled())
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("KIMSABU_ADDR", ":9090")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# local settings\n"+
			"KIMSABU_ADDR=:7070\n"+
			"KIMSABU_BACKEND=sqlite\n"+
			"DATABASE_URL=file:kimsabu.db\n"+
			"KIMSABU_CACHE_TTL=30s\n"+
			"MINIO_ENDPOINT=localhost:9000\n",
	), 0o600))

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	// The environment wins over the file.
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "file:kimsabu.db", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.Minio.Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	t.Setenv("KIMSABU_BACKEND", "mongo")
	_, err := Load()
	assert.ErrorContains(t, err, "unknown backend")

	t.Setenv("KIMSABU_BACKEND", BackendFirestore)
	_, err = Load()
	assert.ErrorContains(t, err, "FIRESTORE_PROJECT")

	t.Setenv("KIMSABU_BACKEND", BackendPostgres)
	_, err = Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("KIMSABU_BACKEND", "")
	t.Setenv("KIMSABU_CACHE_TTL", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "KIMSABU_CACHE_TTL")
}
