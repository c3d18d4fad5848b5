package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List the configured semantic layers",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if len(cfg.Semantic.Layers) == 0 {
			if id := cfg.EffectiveLayer(); id != "" {
				pterm.Println("Default layer: " + id)
				return nil
			}
			pterm.Println("No semantic layers configured. Set SEMANTIC_LAYER_ID or add a layers block to the config file.")
			return nil
		}

		data := pterm.TableData{{"ID", "NAME", "DESCRIPTION", ""}}
		for _, l := range cfg.Semantic.Layers {
			marker := ""
			if l.ID == cfg.Semantic.DefaultLayer {
				marker = "(default)"
			}
			data = append(data, []string{l.ID, l.Name, l.Description, marker})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(layersCmd)
}
