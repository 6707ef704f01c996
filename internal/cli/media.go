package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jonymoraes/mediaserver/internal/app"
	"github.com/jonymoraes/mediaserver/internal/cli/output"
	"github.com/jonymoraes/mediaserver/internal/media"
)

var mediaAccount string

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "List, confirm and delete processed media",
}

func mediaService(a *app.App) *media.Service {
	return media.NewService(a.Repos, a.Ledger, a.Storage, a.Events)
}

var mediaListCmd = &cobra.Command{
	Use:   "list <image|video>",
	Short: "List an account's media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		items, err := mediaService(a).List(cmd.Context(), mediaAccount, kind)
		if err != nil {
			return err
		}
		return printer.Result(items, func() {
			if len(items) == 0 {
				printer.Info("No %s media", kind)
				return
			}
			tbl := output.NewTable(printer.Out(), "FILENAME", "STATUS", "SIZE", "EXPIRES")
			for _, m := range items {
				expires := "-"
				if m.ExpiresAt != nil {
					expires = m.ExpiresAt.Local().Format(time.DateTime)
				}
				tbl.Append(m.Filename, output.Status(string(m.Status)), formatSize(m.Filesize), expires)
			}
			tbl.Render()
		})
	},
}

var mediaConfirmCmd = &cobra.Command{
	Use:   "confirm <image|video> <filename>",
	Short: "Keep a temporary media so it is not swept",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		m, err := mediaService(a).Confirm(cmd.Context(), mediaAccount, kind, args[1])
		if err != nil {
			return err
		}
		return printer.Result(m, func() {
			printer.Success("%s is now %s", m.Filename, output.Status(string(m.Status)))
		})
	},
}

var mediaDeleteCmd = &cobra.Command{
	Use:   "delete <image|video> <filename>",
	Short: "Delete a media and release its storage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := mediaService(a).Delete(cmd.Context(), mediaAccount, kind, args[1]); err != nil {
			return err
		}
		return printer.Result(map[string]string{"deleted": args[1]}, func() {
			printer.Success("%s deleted", args[1])
		})
	},
}

func init() {
	mediaCmd.PersistentFlags().StringVar(&mediaAccount, "account", "", "Owning account id")
	_ = mediaCmd.MarkPersistentFlagRequired("account")

	mediaCmd.AddCommand(mediaListCmd)
	mediaCmd.AddCommand(mediaConfirmCmd)
	mediaCmd.AddCommand(mediaDeleteCmd)
}
