package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/soliddata/solidquery/internal/app"
	"github.com/soliddata/solidquery/internal/config"
	"github.com/soliddata/solidquery/internal/semantic"
)

// maxPreviewRows caps how many result rows are rendered in the terminal.
// The full row set still reaches the reporter agent.
const maxPreviewRows = 20

// timeRounding trims nanosecond noise from durations shown to the user.
const timeRounding = 10 * time.Millisecond

var (
	layerFlag string
	noExec    bool
	jsonOut   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Translate a question to SQL and report on the answer",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&layerFlag, "layer", "", "semantic layer id or name (fuzzy-matched) to ask against")
	rootCmd.PersistentFlags().BoolVar(&noExec, "no-exec", false, "skip warehouse execution; report on the generated SQL only")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit the run result as JSON instead of formatted output")
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && !jsonOut {
		if err := survey.AskOne(&survey.Input{
			Message: "Enter your data question",
			Help:    "A natural-language question, e.g. \"How many orders shipped last month?\"",
		}, &question); err != nil {
			return err
		}
		question = strings.TrimSpace(question)
	}
	if question == "" {
		pterm.Println("No question provided.")
		return nil
	}

	if missing := config.Missing(cfg); len(missing) > 0 {
		keys := make([]string, len(missing))
		for i, v := range missing {
			keys[i] = v.Key
		}
		return fmt.Errorf("missing required configuration: %s (run `solidquery env` for details)", strings.Join(keys, ", "))
	}

	if noExec {
		cfg.Warehouse.Mode = config.WarehouseModeNone
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	application, err := app.New(cfg, provider)
	if err != nil {
		return err
	}
	defer application.Close()

	var spinner *pterm.SpinnerPrinter
	if !jsonOut {
		pterm.DefaultHeader.WithFullWidth(false).Println("SolidQuery")
		spinner, _ = pterm.DefaultSpinner.Start("Asking the analyst crew…")
	}

	report, err := application.Ask(ctx, question, layerFlag)
	if err != nil {
		if spinner != nil {
			spinner.Fail("Run failed")
		}
		var nf *semantic.NotFoundError
		if errors.As(err, &nf) && len(nf.Suggestions) > 0 {
			pterm.Println("⚠️  Did you mean: " + strings.Join(nf.Suggestions, ", ") + "?")
		}
		return err
	}
	if spinner != nil {
		spinner.Success(fmt.Sprintf("Done in %s", report.Timings.Total.Round(timeRounding)))
	}

	if jsonOut {
		return printJSONReport(report)
	}
	printReport(report)
	return nil
}

// printReport renders a completed run: the generated SQL, a capped preview of
// the warehouse rows, and the reporter agent's write-up.
func printReport(r *app.RunReport) {
	if r.Translation != nil {
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("SQL")).
			Println(strings.TrimSpace(r.Translation.SQL))
		if r.Translation.Explanation != "" {
			pterm.Println(pterm.Gray(r.Translation.Explanation))
		}
	}

	if r.Executed && r.Result != nil {
		printResultTable(r)
	} else if r.Translation != nil {
		pterm.Println("⚠️  SQL was not executed (no warehouse configured or --no-exec).")
	}

	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("REPORT")).
		Println(strings.TrimSpace(r.Report))
}

func printResultTable(r *app.RunReport) {
	res := r.Result

	data := pterm.TableData{res.Columns}
	shown := res.RowCount
	if shown > maxPreviewRows {
		shown = maxPreviewRows
	}
	for _, row := range res.Rows[:shown] {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cellString(v)
		}
		data = append(data, cells)
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Println("⚠️  could not render result table: " + err.Error())
	}

	if res.RowCount > shown {
		pterm.Println(pterm.Gray(fmt.Sprintf("… %d more rows not shown", res.RowCount-shown)))
	}
	if res.Truncated {
		pterm.Println("⚠️  Result truncated by the row cap; refine the question for complete data.")
	}
}

func cellString(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}

// jsonReport is the machine-readable shape emitted by --json.
type jsonReport struct {
	RunID       string   `json:"run_id"`
	Question    string   `json:"question"`
	Layer       string   `json:"semantic_layer_id"`
	SQL         string   `json:"sql,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Executed    bool     `json:"executed"`
	Columns     []string `json:"columns,omitempty"`
	Rows        [][]any  `json:"rows,omitempty"`
	RowCount    int      `json:"row_count"`
	Truncated   bool     `json:"truncated"`
	Report      string   `json:"report"`
	DurationMs  int64    `json:"duration_ms"`
}

func printJSONReport(r *app.RunReport) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(buildJSONReport(r))
}

func buildJSONReport(r *app.RunReport) jsonReport {
	out := jsonReport{
		RunID:      r.RunID,
		Question:   r.Question,
		Layer:      r.Layer.ID,
		Executed:   r.Executed,
		Report:     r.Report,
		DurationMs: r.Timings.Total.Milliseconds(),
	}
	if r.Translation != nil {
		out.SQL = r.Translation.SQL
		out.Explanation = r.Translation.Explanation
	}
	if r.Result != nil {
		out.Columns = r.Result.Columns
		out.Rows = r.Result.Rows
		out.RowCount = r.Result.RowCount
		out.Truncated = r.Result.Truncated
	}
	return out
}
