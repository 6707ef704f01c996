package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonymoraes/mediaserver/internal/account"
	"github.com/jonymoraes/mediaserver/internal/models"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var (
	accountName   string
	accountDomain string
)

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account, its folder and first quota",
	Long: `Create an account. The API key is printed once.

Examples:
  mediactl account create --name Shop --domain https://shop.example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		created, err := account.NewService(a.Repos, a.Storage, cfg.StorageRoot).Create(cmd.Context(), account.CreateInput{
			Name:   accountName,
			Domain: accountDomain,
		})
		if err != nil {
			return err
		}
		return printer.Result(created, func() {
			printer.Success("Account %s created", created.Account.Name)
			printAccount(created.Account)
			printer.KeyValue("API key", created.APIKey)
			printer.Warn("Store the API key now; it is not shown again")
		})
	},
}

var accountShowCmd = &cobra.Command{
	Use:   "show <account-id>",
	Short: "Show an account and its current quota",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		acc, err := account.NewService(a.Repos, a.Storage, cfg.StorageRoot).Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		q, err := a.Repos.Quotas.FindCurrent(cmd.Context(), acc.ID)
		if err != nil {
			return err
		}
		return printer.Result(map[string]any{"account": acc, "quota": q}, func() {
			printer.Section("Account")
			printAccount(acc)
			printer.Section("Quota " + q.Period)
			printer.KeyValue("Transferred", formatSize(q.TransferredBytes))
			printer.KeyValue("Requests", formatCount(q.TotalRequests))
		})
	},
}

var accountUpdateCmd = &cobra.Command{
	Use:   "update <account-id>",
	Short: "Rename an account or move it to a new domain",
	Long: `Update an account. Changing the domain moves its folder.

Examples:
  mediactl account update <id> --name "Shop EU"
  mediactl account update <id> --domain https://shop.example.eu`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in account.UpdateInput
		if cmd.Flags().Changed("name") {
			in.Name = &accountName
		}
		if cmd.Flags().Changed("domain") {
			in.Domain = &accountDomain
		}
		if in.Name == nil && in.Domain == nil {
			return fmt.Errorf("nothing to update: pass --name or --domain")
		}

		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		acc, err := account.NewService(a.Repos, a.Storage, cfg.StorageRoot).Update(cmd.Context(), args[0], in)
		if err != nil {
			return err
		}
		return printer.Result(acc, func() {
			printer.Success("Account %s updated", acc.ID)
			printAccount(acc)
		})
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete <account-id>",
	Short: "Delete an account with its folder, quotas and media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		if err := account.NewService(a.Repos, a.Storage, cfg.StorageRoot).Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		return printer.Result(map[string]string{"deleted": args[0]}, func() {
			printer.Success("Account %s deleted", args[0])
		})
	},
}

func printAccount(acc *models.Account) {
	printer.KeyValue("ID", acc.ID)
	printer.KeyValue("Name", acc.Name)
	printer.KeyValue("Domain", acc.DomainValue())
	printer.KeyValue("Folder", acc.Folder)
	printer.KeyValue("Status", string(acc.Status))
	printer.KeyValue("Used", formatSize(acc.UsedBytes))
}

func init() {
	accountCreateCmd.Flags().StringVar(&accountName, "name", "", "Account name")
	accountCreateCmd.Flags().StringVar(&accountDomain, "domain", "", "Account domain; the folder is derived from it")
	_ = accountCreateCmd.MarkFlagRequired("name")
	_ = accountCreateCmd.MarkFlagRequired("domain")

	accountUpdateCmd.Flags().StringVar(&accountName, "name", "", "New account name")
	accountUpdateCmd.Flags().StringVar(&accountDomain, "domain", "", "New domain; the folder moves with it")

	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountShowCmd)
	accountCmd.AddCommand(accountUpdateCmd)
	accountCmd.AddCommand(accountDeleteCmd)
}
