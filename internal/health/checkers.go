package health

import (
	"context"
	"fmt"

	"github.com/soliddata/solidquery/internal/mcp"
)

// MCPChecker returns a [Checker] that reports ready when the MCP connection
// responds to a tool listing. The name appears as the key in the readiness
// response, e.g. "text2sql" or "warehouse".
func MCPChecker(name string, conn mcp.Conn) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			if conn == nil {
				return fmt.Errorf("health: no %s connection", name)
			}
			if _, err := conn.Tools(ctx); err != nil {
				return fmt.Errorf("health: %s tool listing failed: %w", name, err)
			}
			return nil
		},
	}
}
