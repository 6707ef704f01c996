package cli

import (
	"github.com/spf13/cobra"

	"github.com/jonymoraes/mediaserver/internal/sweeper"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired temporary media once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		stats, err := sweeper.New(sweeper.Dependencies{
			Repos:     a.Repos,
			Ledger:    a.Ledger,
			Storage:   a.Storage,
			Notifier:  a.Events,
			BatchSize: cfg.SweepBatchSize,
		}).Run(cmd.Context())
		if err != nil {
			return err
		}
		return printer.Result(stats, func() {
			printer.Success("Deleted %d expired media (%s)", stats.Deleted, formatSize(stats.ReclaimedBytes))
			if n := stats.StorageErrors + stats.DatabaseErrors + stats.LedgerErrors; n > 0 {
				printer.Warn("%d errors; see logs", n)
			}
		})
	},
}
