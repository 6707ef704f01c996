package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonymoraes/mediaserver/internal/store"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the embedded schema migrations to DATABASE_URL.

Examples:
  mediactl migrate            # Apply pending migrations
  mediactl migrate --status   # Print the current schema version`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !migrateStatus {
			if err := store.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
		}
		v, err := store.MigrationStatus(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		return printer.Result(map[string]int64{"version": v}, func() {
			if migrateStatus {
				printer.KeyValue("Schema version", strconv.FormatInt(v, 10))
				return
			}
			printer.Success("Schema at version %d", v)
		})
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Only print the schema version")
}
