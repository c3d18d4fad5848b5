package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/soliddata/solidquery/internal/bridge"
	"github.com/soliddata/solidquery/internal/observe"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the REST bridge server in front of the SolidData MCP server",
	Long: `bridge starts an HTTP server exposing POST /api/mcp/text2sql, which
forwards translation requests to the SolidData MCP server using the
caller's bearer token. Prometheus metrics are served on /metrics and
health probes on /healthz and /readyz.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceVersion: version,
		})
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()

		srv, err := bridge.New(cfg)
		if err != nil {
			return err
		}

		slog.Info("bridge starting", "listen_addr", cfg.Bridge.ListenAddr)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}
