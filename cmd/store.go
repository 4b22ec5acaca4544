package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/config"
	"github.com/youyeongjin90/kimsabu/ingest"
	"github.com/youyeongjin90/kimsabu/store"
)

// openStore connects to the configured backend. The returned func
// releases the connection.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, func(), error) {
	log.Info("opening store", zap.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), func() {}, nil

	case config.BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		return store.NewFirestoreStore(client), func() { client.Close() }, nil

	case config.BackendPostgres, config.BackendSQLite:
		db, err := store.OpenSQL(cfg.Backend, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		st, err := store.NewSQLStore(db)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return st, closeDB, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// openUploader returns nil when object storage is not configured.
func openUploader(ctx context.Context, cfg *config.Config) (ingest.Uploader, error) {
	if !cfg.Minio.Enabled() {
		return nil, nil
	}
	return ingest.NewMinioUploader(ctx, ingest.MinioConfig{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
		Bucket:    cfg.Minio.Bucket,
		PublicURL: cfg.Minio.PublicURL,
	})
}
