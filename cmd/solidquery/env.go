package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/soliddata/solidquery/internal/auth"
	"github.com/soliddata/solidquery/internal/config"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Report the effective configuration and flag missing variables",
	Long: `env prints every environment variable solidquery understands along with
its effective value, after defaults, the config file, and the environment
have been layered. Secret values are masked.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		data := pterm.TableData{{"VARIABLE", "REQUIRED", "VALUE", "DESCRIPTION"}}
		for _, v := range config.Manifest() {
			required := ""
			if v.Required {
				required = "yes"
			}

			value := v.Get(cfg)
			switch {
			case value == "":
				value = "(unset)"
			case v.Secret:
				value = auth.Mask(value)
			}

			data = append(data, []string{v.Key, required, value, v.Description})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}

		if missing := config.Missing(cfg); len(missing) > 0 {
			for _, v := range missing {
				pterm.Println("❌ " + v.Key + " is required but unset")
			}
		} else {
			pterm.Println("✅ All required variables are set.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}
