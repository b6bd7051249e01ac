package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"xhsmonitor/pkg/account"
	"xhsmonitor/pkg/config"
	"xhsmonitor/pkg/ui"
)

var (
	addLogin   string
	addContact string
	addNotes   string
)

// accountsCmd represents the accounts command
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage monitored accounts",
	Long: `Manage the accounts used for monitoring runs.

Account secrets are encrypted with the vault and are never shown
again after being added. Listing shows health and usage counters so
you can spot accounts that need attention.`,
}

// accountsAddCmd represents the accounts add command
var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an account to the rotation pool",
	Example: `  xhsmonitor accounts add --login 13800138000
  xhsmonitor accounts add --login user@example.com --contact 13800138000 --notes "backup account"`,
	Args: cobra.NoArgs,
	RunE: runAccountsAdd,
}

// accountsListCmd represents the accounts list command
var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts with health and usage counters",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

// accountsRemoveCmd represents the accounts remove command
var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <account-id>",
	Short: "Remove an account and its saved session state",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsRemove,
}

// accountsSetStatusCmd represents the accounts set-status command
var accountsSetStatusCmd = &cobra.Command{
	Use:   "set-status <account-id> <status>",
	Short: "Manually override an account's status",
	Long: `Manually override an account's status.

Valid statuses: unknown, active, suspicious, limited, banned.
Setting an account back to active also clears its failure streak.`,
	Args: cobra.ExactArgs(2),
	RunE: runAccountsSetStatus,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
	accountsCmd.AddCommand(accountsSetStatusCmd)

	accountsAddCmd.Flags().StringVar(&addLogin, "login", "", "login identifier (phone number or email)")
	accountsAddCmd.Flags().StringVar(&addContact, "contact", "", "contact identifier for verification prompts")
	accountsAddCmd.Flags().StringVar(&addNotes, "notes", "", "free-form operator notes")
	accountsAddCmd.MarkFlagRequired("login")
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	registry, cleanup, err := openRegistry()
	if err != nil {
		return err
	}
	defer cleanup()

	secret, err := promptSecret("Account secret: ")
	if err != nil {
		return err
	}

	record, err := registry.Add(addLogin, secret, addContact, addNotes)
	if err != nil {
		ui.PrintError("Failed to add account", err.Error())
		return err
	}

	ui.PrintSuccess("Account added")
	ui.PrintInfo("ID", record.ID)
	ui.PrintInfo("Login", record.LoginIdentifier)
	return nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	registry, cleanup, err := openRegistryWith(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	records := registry.List()
	if len(records) == 0 {
		ui.PrintInfo("Accounts", "none")
		return nil
	}

	cooldown := time.Duration(cfg.Accounts.CooldownHours * float64(time.Hour))
	now := time.Now()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLOGIN\tSTATUS\tUSES\tFAILURES\tCOOLDOWN\tLAST USED")
	for _, r := range records {
		r = r.Sanitize()

		cooldownLeft := "-"
		if d := r.RemainingCooldown(now, cooldown); d > 0 {
			cooldownLeft = d.Round(time.Minute).String()
		}
		lastUsed := "never"
		if r.LastUsedAt != nil {
			lastUsed = r.LastUsedAt.Format("2006-01-02 15:04")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			shortID(r.ID), r.LoginIdentifier, r.Status,
			r.TotalUses, r.ConsecutiveFailures, cooldownLeft, lastUsed)
	}
	w.Flush()

	stats := registry.Stats(cooldown)
	fmt.Println()
	ui.PrintInfo("Total", fmt.Sprintf("%d", stats.Total))
	ui.PrintInfo("Eligible", fmt.Sprintf("%d", stats.Eligible))
	ui.PrintInfo("In cooldown", fmt.Sprintf("%d", stats.InCooldown))
	return nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	registry, cleanup, err := openRegistry()
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveAccountID(registry, args[0])
	if err != nil {
		return err
	}

	if err := registry.Remove(id); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		return err
	}
	ui.PrintSuccess("Account removed")
	return nil
}

func runAccountsSetStatus(cmd *cobra.Command, args []string) error {
	status := account.Status(args[1])
	if !account.ValidStatus(status) {
		return fmt.Errorf("unknown status %q (valid: unknown, active, suspicious, limited, banned)", args[1])
	}

	registry, cleanup, err := openRegistry()
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := resolveAccountID(registry, args[0])
	if err != nil {
		return err
	}

	if err := registry.SetStatus(id, status); err != nil {
		ui.PrintError("Failed to update status", err.Error())
		return err
	}
	ui.PrintInfo("Status", string(status))
	return nil
}

// openRegistry loads the config, unlocks the vault and opens the store
func openRegistry() (*account.Registry, func(), error) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return nil, nil, err
	}
	return openRegistryWith(cfg)
}

func openRegistryWith(cfg *config.Config) (*account.Registry, func(), error) {
	v, err := unlockVault(cfg)
	if err != nil {
		ui.PrintError("Vault unlock failed", err.Error())
		return nil, nil, err
	}

	registry, err := account.NewRegistry(cfg.Accounts.StoreFile, cfg.Accounts.SessionDir, v)
	if err != nil {
		v.Lock()
		ui.PrintError("Failed to open account store", err.Error())
		return nil, nil, err
	}
	return registry, func() { v.Lock() }, nil
}

// resolveAccountID accepts a full id or an unambiguous prefix
func resolveAccountID(registry *account.Registry, arg string) (string, error) {
	if _, err := registry.Get(arg); err == nil {
		return arg, nil
	}

	var match string
	for _, r := range registry.List() {
		if len(arg) >= 4 && len(arg) <= len(r.ID) && r.ID[:len(arg)] == arg {
			if match != "" {
				return "", fmt.Errorf("account id prefix %q is ambiguous", arg)
			}
			match = r.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no account matches %q", arg)
	}
	return match, nil
}

// shortID truncates a UUID for table display
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
