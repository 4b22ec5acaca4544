package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/config"
	"github.com/youyeongjin90/kimsabu/store"
)

func TestRootCommands(t *testing.T) {
	root := Root()
	for _, name := range []string{"serve", "crawl", "update-content"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	sub, _, err := root.Find([]string{"crawl"})
	require.NoError(t, err)
	assert.NotNil(t, sub.Flags().Lookup("test"))
}

func TestLoadConfig_BackendOverride(t *testing.T) {
	t.Setenv("KIMSABU_BACKEND", "")
	t.Setenv("DATABASE_URL", "")
	envFiles = nil
	t.Cleanup(func() { backend, dev = "", false })

	backend, dev = config.BackendSQLite, true
	_, err := loadConfig()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "file::memory:")
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, cfg.Backend)
	assert.True(t, cfg.Dev)
}

func TestLoadConfig_FlagOverridesInvalidEnv(t *testing.T) {
	t.Setenv("KIMSABU_BACKEND", config.BackendFirestore)
	t.Setenv("FIRESTORE_PROJECT", "")
	envFiles = nil
	t.Cleanup(func() { backend = "" })

	_, err := loadConfig()
	assert.Error(t, err)

	backend = config.BackendMemory
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.Backend)
}

func TestOpenStore(t *testing.T) {
	cfg := &config.Config{Backend: config.BackendSQLite, DatabaseURL: "file::memory:"}
	st, closeStore, err := openStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &store.SQLStore{}, st)

	st, _, err = openStore(context.Background(), &config.Config{Backend: config.BackendMemory}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, st)

	_, _, err = openStore(context.Background(), &config.Config{Backend: "redis"}, zap.NewNop())
	assert.Error(t, err)
}

func TestRevalidator(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/revalidate", r.URL.Path)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	require.NoError(t, revalidator(srv.URL)(context.Background()))
	assert.Equal(t, 1, calls)
}
