package main

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/soliddata/solidquery/internal/auth"
	"github.com/soliddata/solidquery/internal/keychain"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the SolidData management key",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a management key in the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var key string
		if err := survey.AskOne(&survey.Password{
			Message: "SolidData management key",
			Help:    "Found under Settings → API Keys in the SolidData console",
		}, &key, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
		key = strings.TrimSpace(key)

		// Verify the key actually works before persisting it.
		spinner, _ := pterm.DefaultSpinner.Start("Verifying key…")
		_, err := auth.NewClient(cfg.Auth.Endpoint, key).Exchange(cmd.Context())
		if err != nil {
			spinner.Fail("Key rejected")
			return err
		}
		spinner.Success("Key verified")

		km, err := keychain.NewManager()
		if err != nil {
			return err
		}
		if err := km.SaveManagementKey(key); err != nil {
			return err
		}
		pterm.Println("✅ Management key " + auth.Mask(key) + " saved to the OS keyring.")
		return nil
	},
}

var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange the management key for a bearer token and print it masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		token, err := auth.NewClient(cfg.Auth.Endpoint, cfg.Auth.ManagementKey).Exchange(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(auth.Mask(token))
		pterm.Println(pterm.Gray("Tokens are short-lived; a fresh one is minted for every run."))
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the management key from the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		km, err := keychain.NewManager()
		if err != nil {
			return err
		}
		if err := km.ClearManagementKey(); err != nil {
			return err
		}
		pterm.Println("✅ Management key removed from the OS keyring.")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd, authTokenCmd, authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}
