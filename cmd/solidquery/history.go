package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/soliddata/solidquery/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the local history database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.History.Disabled || cfg.History.Path == "" {
			pterm.Println("History is disabled.")
			return nil
		}

		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			pterm.Println("No runs recorded yet.")
			return nil
		}

		data := pterm.TableData{{"WHEN", "STATUS", "LAYER", "ROWS", "QUESTION"}}
		for _, r := range runs {
			rows := "-"
			if r.Executed {
				rows = strconv.Itoa(r.RowCount)
				if r.Truncated {
					rows += "+"
				}
			}
			data = append(data, []string{
				r.CreatedAt.Local().Format("2006-01-02 15:04"),
				r.Status,
				r.SemanticLayerID,
				rows,
				truncateString(r.Question, 60),
			})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
		pterm.Println(pterm.Gray(fmt.Sprintf("%d run(s) from %s", len(runs), cfg.History.Path)))
		return nil
	},
}

func truncateString(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
