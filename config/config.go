// Package config reads settings from the environment, optionally seeded
// from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/stateful/godotenv"
)

// Storage backends.
const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
)

const DefaultSiteURL = "https://k-sabu.com"

type Config struct {
	Addr string
	Dev  bool

	// SiteURL prefixes absolute links in the sitemap.
	SiteURL string

	Backend          string
	FirestoreProject string
	DatabaseURL      string

	// CacheTTL bounds how stale the public works list may get.
	CacheTTL time.Duration
	// AutosaveInterval batches content saves from live editing. Zero
	// writes every save through.
	AutosaveInterval time.Duration

	BlogID        string
	CrawlInterval time.Duration

	Minio MinioConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Enabled reports whether image uploads go to object storage.
func (m MinioConfig) Enabled() bool { return m.Endpoint != "" }

// LoadDotEnv sets variables from the given files without overriding ones
// already set to a non-empty value. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, name := range files {
		b, err := os.ReadFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		values, _, err := godotenv.UnmarshalBytesWithComments(b)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for k, v := range values {
			if cur, set := os.LookupEnv(k); !set || cur == "" {
				os.Setenv(k, v)
			}
		}
	}
	return nil
}

// Load reads the configuration from the environment after applying the
// given .env files, and validates it.
func Load(files ...string) (*Config, error) {
	cfg, err := Read(files...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that override settings
// before calling Validate.
func Read(files ...string) (*Config, error) {
	if err := LoadDotEnv(files...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:             getEnv("KIMSABU_ADDR", ":8080"),
		Dev:              getBoolEnv("KIMSABU_DEV", false),
		SiteURL:          getEnv("KIMSABU_SITE_URL", DefaultSiteURL),
		Backend:          getEnv("KIMSABU_BACKEND", BackendMemory),
		FirestoreProject: getEnv("FIRESTORE_PROJECT", ""),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		BlogID:           getEnv("KIMSABU_BLOG_ID", "k_sabu"),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "kimsabu"),
			UseSSL:    getBoolEnv("MINIO_USE_SSL", false),
			PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
		},
	}

	var err error
	if cfg.CacheTTL, err = getDurationEnv("KIMSABU_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AutosaveInterval, err = getDurationEnv("KIMSABU_AUTOSAVE_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.CrawlInterval, err = getDurationEnv("KIMSABU_CRAWL_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the chosen backend has what it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFirestore:
		if c.FirestoreProject == "" {
			return errors.New("firestore backend requires FIRESTORE_PROJECT")
		}
	case BackendPostgres, BackendSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%s backend requires DATABASE_URL", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
