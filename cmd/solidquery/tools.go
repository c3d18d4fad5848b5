package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/soliddata/solidquery/internal/auth"
	"github.com/soliddata/solidquery/internal/mcp"
	"github.com/soliddata/solidquery/internal/mcp/mcpclient"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools advertised by the SolidData MCP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		token, err := auth.NewClient(cfg.Auth.Endpoint, cfg.Auth.ManagementKey).Exchange(ctx)
		if err != nil {
			return err
		}

		conn, err := mcpclient.Connect(ctx, mcp.ServerConfig{
			Name:        "soliddata",
			Transport:   cfg.MCP.Transport,
			Command:     cfg.MCP.Command,
			URL:         cfg.MCP.ServerURL,
			BearerToken: token,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		tools, err := conn.Tools(ctx)
		if err != nil {
			return err
		}
		if len(tools) == 0 {
			pterm.Println("No tools advertised.")
			return nil
		}

		data := pterm.TableData{{"NAME", "DESCRIPTION"}}
		for _, t := range tools {
			data = append(data, []string{t.Name, t.Description})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
