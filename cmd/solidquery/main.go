// Command solidquery is a text-to-SQL CLI for the SolidData platform: it
// exchanges a management key for a bearer token, asks the SolidData MCP
// text2sql tool to translate a natural-language question, optionally runs
// the SQL against a warehouse, and prints an agent-written report.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/soliddata/solidquery/internal/config"
	"github.com/soliddata/solidquery/internal/keychain"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string

	// cfg is populated by the root command's PersistentPreRunE and shared by
	// all subcommands.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "solidquery [question...]",
	Short: "Ask questions against your SolidData semantic layers",
	Long: `solidquery translates natural-language questions into SQL through the
SolidData MCP text2sql tool, optionally executes the SQL against your
warehouse, and prints a report written by an LLM analyst crew.

Run without arguments for an interactive prompt, or pass the question
directly:

  solidquery "How many orders shipped last month?"`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		slog.SetDefault(newLogger(cfg.LogLevel))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// A bare `solidquery <question>` behaves like `solidquery ask`.
		return runAsk(cmd.Context(), args)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")
}

// loadConfig builds the effective config and resolves the management key from
// the OS keyring when neither the environment nor the file provides one.
func loadConfig() (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if c.Auth.ManagementKey == "" {
		if km, kerr := keychain.NewManager(); kerr == nil {
			if key, lerr := km.LoadManagementKey(); lerr == nil {
				c.Auth.ManagementKey = key
			}
		}
	}

	if !c.History.Disabled && c.History.Path == "" {
		c.History.Path = defaultHistoryPath()
	}

	return c, nil
}

// defaultHistoryPath places the history database under the user config
// directory. Returns "" when no such directory exists; history is then
// silently disabled.
func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir + string(os.PathSeparator) + "solidquery" + string(os.PathSeparator) + "history.db"
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
