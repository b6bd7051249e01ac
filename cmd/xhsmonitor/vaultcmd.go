package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"xhsmonitor/pkg/config"
	"xhsmonitor/pkg/ui"
	"xhsmonitor/pkg/vault"
)

var vaultUseKeyring bool

// vaultCmd represents the vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the credential vault",
	Long: `Manage the vault protecting stored account secrets.

Secrets are encrypted with a key derived from your master secret.
The master secret itself is never written to disk; optionally it can
be cached in the system keychain so runs do not prompt for it.

Losing the master secret makes all stored secrets unrecoverable.`,
}

// vaultInitCmd represents the vault init command
var vaultInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the vault with a new master secret",
	Long: `Initialize the vault with a new master secret.

Re-initializing an existing vault generates a fresh salt and makes
every previously stored account secret permanently undecryptable.
You will be asked to confirm before that happens.`,
	Args: cobra.NoArgs,
	RunE: runVaultInit,
}

// vaultStatusCmd represents the vault status command
var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the vault is initialized",
	Args:  cobra.NoArgs,
	RunE:  runVaultStatus,
}

func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultInitCmd)
	vaultCmd.AddCommand(vaultStatusCmd)

	vaultInitCmd.Flags().BoolVar(&vaultUseKeyring, "keyring", false, "cache the master secret in the system keychain")
}

func runVaultInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	v, err := vault.New(cfg.Accounts.SaltFile)
	if err != nil {
		return err
	}

	if v.Initialized() {
		ui.PrintWarning("Vault is already initialized")
		ui.PrintWarning("Re-initializing makes ALL stored account secrets unrecoverable")
		if !confirm("Type 'destroy' to continue: ", "destroy") {
			ui.PrintInfo("Vault", "unchanged")
			return nil
		}
	}

	secret, err := promptSecret("Master secret: ")
	if err != nil {
		return err
	}
	again, err := promptSecret("Confirm master secret: ")
	if err != nil {
		return err
	}
	if secret != again {
		return fmt.Errorf("master secrets do not match")
	}

	if err := v.Initialize(secret); err != nil {
		return err
	}
	ui.PrintSuccess("Vault initialized")

	if vaultUseKeyring {
		kr, err := vault.NewKeyring()
		if err != nil {
			ui.PrintWarning("System keychain unavailable", err.Error())
			return nil
		}
		if err := kr.StoreMasterSecret(secret); err != nil {
			ui.PrintWarning("Failed to cache master secret", err.Error())
			return nil
		}
		ui.PrintInfo("Master secret", "cached in system keychain")
	}
	return nil
}

func runVaultStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	v, err := vault.New(cfg.Accounts.SaltFile)
	if err != nil {
		return err
	}

	if v.Initialized() {
		ui.PrintInfo("Vault", "initialized")
	} else {
		ui.PrintInfo("Vault", "not initialized")
	}
	return nil
}

// unlockVault opens and unlocks the vault, trying the system keychain
// before prompting
func unlockVault(cfg *config.Config) (*vault.Vault, error) {
	v, err := vault.New(cfg.Accounts.SaltFile)
	if err != nil {
		return nil, err
	}
	if !v.Initialized() {
		return nil, fmt.Errorf("vault is not initialized, run 'xhsmonitor vault init' first")
	}

	if kr, err := vault.NewKeyring(); err == nil {
		if secret, err := kr.LoadMasterSecret(); err == nil && secret != "" {
			if err := v.Unlock(secret); err == nil {
				return v, nil
			}
			ui.PrintWarning("Cached master secret no longer valid")
		}
	}

	secret, err := promptSecret("Master secret: ")
	if err != nil {
		return nil, err
	}
	if err := v.Unlock(secret); err != nil {
		return nil, err
	}
	return v, nil
}

// promptSecret reads a secret without echoing it
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret must not be empty")
	}
	return secret, nil
}

// confirm reads a line and compares it to the expected token
func confirm(prompt, expected string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == expected
}
