package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/server"
	"github.com/youyeongjin90/kimsabu/store"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := cobra.Command{
		Use:   "serve",
		Short: "Serve the site API and live editing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, closeStore, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			works := store.NewCachedStore(st, cfg.CacheTTL, cfg.AutosaveInterval, logger.Named("cache"))
			// Flushes buffered content before the store closes.
			defer works.Close()

			uploader, err := openUploader(ctx, cfg)
			if err != nil {
				return err
			}

			srv := server.New(server.Options{
				Works:     works,
				Inquiries: st,
				Uploader:  uploader,
				Log:       logger,
				SiteURL:   cfg.SiteURL,
			})

			errc := make(chan error, 1)
			go func() { errc <- srv.Start(cfg.Addr) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("shutdown", zap.Error(err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address. Overrides KIMSABU_ADDR.")

	return &cmd
}
