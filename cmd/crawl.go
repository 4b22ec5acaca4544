package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/config"
	"github.com/youyeongjin90/kimsabu/ingest"
	"github.com/youyeongjin90/kimsabu/scraper"
)

type importJob func(im *scraper.Importer, ctx context.Context) (*scraper.Report, error)

func crawlCmd() *cobra.Command {
	return importCmd(
		"crawl",
		"Import post metadata and thumbnails from the blog.",
		(*scraper.Importer).Crawl,
	)
}

func updateContentCmd() *cobra.Command {
	return importCmd(
		"update-content",
		"Re-import the body of every crawled post.",
		(*scraper.Importer).UpdateContent,
	)
}

func importCmd(use, short string, job importJob) *cobra.Command {
	var (
		test          bool
		revalidateURL string
	)

	cmd := cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
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

			uploader, err := openUploader(ctx, cfg)
			if err != nil {
				return err
			}
			var images *ingest.Service
			if uploader != nil {
				images = &ingest.Service{Compressor: ingest.Thumbnail, Uploader: uploader}
			}

			im := &scraper.Importer{
				Client: scraper.NewClient(scraper.ClientConfig{
					BlogID:   cfg.BlogID,
					Interval: cfg.CrawlInterval,
					Log:      logger.Named("scraper"),
				}),
				Works:  st,
				Images: images,
				Log:    logger,
				Test:   test,
			}
			if revalidateURL != "" {
				im.Revalidate = revalidator(revalidateURL)
			}

			logger.Info("import started", zap.String("job", use), zap.String("blog", cfg.BlogID), zap.Bool("test", test))
			report, err := job(im, ctx)
			if report != nil {
				logReport(logger, use, report)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&test, "test", false, "Import only the first few posts.")
	cmd.Flags().StringVar(&revalidateURL, "revalidate-url", "", "Running server to notify when the import finishes, e.g. "+config.DefaultSiteURL+".")

	return &cmd
}

func logReport(logger *zap.Logger, job string, r *scraper.Report) {
	fields := []zap.Field{
		zap.String("job", job),
		zap.Int("found", r.Found),
		zap.Int("imported", r.Imported),
		zap.Int("skipped", r.Skipped),
	}
	for cat, n := range r.ByCategory {
		fields = append(fields, zap.Int("category_"+string(cat), n))
	}
	logger.Info("import finished", fields...)
	for _, err := range multierr.Errors(r.Err) {
		logger.Warn("import failure", zap.Error(err))
	}
}

// revalidator asks a running server to drop its cached reads.
func revalidator(baseURL string) func(context.Context) error {
	cl := retryablehttp.NewClient()
	cl.RetryMax = 3
	cl.HTTPClient.Timeout = 10 * time.Second
	cl.Logger = nil

	return func(ctx context.Context) error {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/revalidate", nil)
		if err != nil {
			return err
		}
		resp, err := cl.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("revalidate: unexpected status %s", resp.Status)
		}
		return nil
	}
}
