// Package cli implements mediactl, the operator command line for the media
// pipeline.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonymoraes/mediaserver/internal/app"
	"github.com/jonymoraes/mediaserver/internal/cli/output"
	"github.com/jonymoraes/mediaserver/internal/config"
	"github.com/jonymoraes/mediaserver/internal/logger"
)

const version = "1.0.0"

var (
	jsonOutput bool
	quietMode  bool
	noColor    bool
	logLevel   string

	cfg     *config.Config
	printer *output.Printer
	conn    *app.App
)

var rootCmd = &cobra.Command{
	Use:   "mediactl",
	Short: "Operate the media processing pipeline",
	Long: `mediactl manages accounts, submits media jobs and inspects their progress.

Get started:
  mediactl migrate                                       # Apply the schema
  mediactl account create --name Shop --domain shop.test # Create an account
  mediactl submit image photo.jpg --account <id> --context avatar --watch`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger.Init(logLevel)
		printer = output.New(
			output.WithJSON(jsonOutput),
			output.WithQuiet(quietMode),
			output.WithNoColor(noColor),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if conn != nil {
			conn.Close()
			conn = nil
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs mediactl until completion or an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(logger.WithLogger(ctx, logger.Default()))
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON (for scripting)")
	rootCmd.PersistentFlags().BoolVar(&quietMode, "quiet", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for diagnostics on stderr")

	rootCmd.SetVersionTemplate("mediactl version {{.Version}}\n")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mediaCmd)
	rootCmd.AddCommand(sweepCmd)
}

// connect opens the shared connections on first use.
func connect(ctx context.Context) (*app.App, error) {
	if conn != nil {
		return conn, nil
	}
	a, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	conn = a
	return conn, nil
}
