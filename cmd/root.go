// Package cmd wires configuration, storage and logging into the
// kimsabu command line.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/youyeongjin90/kimsabu/config"
)

var (
	dev      bool
	backend  string
	envFiles []string
)

func Root() *cobra.Command {
	cmd := cobra.Command{
		Use:           "kimsabu",
		Short:         "Serve and import the 김사부 works catalog",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pflags := cmd.PersistentFlags()

	pflags.BoolVar(&dev, "dev", false, "Use development logging.")
	pflags.StringVar(&backend, "backend", "", "Storage backend: memory, firestore, postgres or sqlite. Overrides KIMSABU_BACKEND.")
	pflags.StringSliceVar(&envFiles, "env-file", []string{".env", ".env.local"}, "Files to seed the environment from.")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(crawlCmd())
	cmd.AddCommand(updateContentCmd())

	return &cmd
}

// Execute runs the root command.
func Execute() error {
	return Root().Execute()
}

// loadConfig reads the configuration, applies command line overrides and
// validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Read(envFiles...)
	if err != nil {
		return nil, err
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if dev {
		cfg.Dev = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
