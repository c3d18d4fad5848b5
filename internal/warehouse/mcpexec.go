package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soliddata/solidquery/internal/config"
	"github.com/soliddata/solidquery/internal/mcp"
)

// DefaultSQLTool is the SQL execution tool name commonly exposed by
// warehouse-hosted MCP servers.
const DefaultSQLTool = "sql_exec_tool"

// MCPEndpoint builds the warehouse MCP server URL from its coordinates.
func MCPEndpoint(cfg config.WarehouseMCPConfig) string {
	return fmt.Sprintf("%s/api/v2/databases/%s/schemas/%s/mcp-servers/%s",
		strings.TrimRight(cfg.URL, "/"), cfg.Database, cfg.Schema, cfg.Server)
}

// mcpExecutor runs SQL through a tool on a warehouse-hosted MCP server.
type mcpExecutor struct {
	conn    mcp.Conn
	tool    string
	maxRows int
}

var _ Executor = (*mcpExecutor)(nil)

// NewMCP creates an Executor that calls the named SQL tool over conn. The
// executor takes ownership of conn and closes it on Close.
func NewMCP(conn mcp.Conn, tool string, maxRows int) Executor {
	if tool == "" {
		tool = DefaultSQLTool
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &mcpExecutor{conn: conn, tool: tool, maxRows: maxRows}
}

// Execute implements Executor. The tool's payload is decoded as a JSON array
// of column-keyed row objects; the row cap is applied to the decoded rows.
func (e *mcpExecutor) Execute(ctx context.Context, query string) (*Result, error) {
	if query == "" {
		return nil, errors.New("warehouse: empty query")
	}

	start := time.Now()
	res, err := e.conn.Call(ctx, e.tool, map[string]any{"query": query})
	if err != nil {
		return nil, fmt.Errorf("warehouse: call %s: %w", e.tool, err)
	}
	if res.IsError {
		return nil, fmt.Errorf("warehouse: %s returned an error: %s", e.tool, res.Content)
	}

	result, err := parseRowsPayload(res.Content, e.maxRows)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Close implements Executor.
func (e *mcpExecutor) Close() error {
	return e.conn.Close()
}

// parseRowsPayload decodes a JSON array of row objects into a Result,
// applying the row cap. Column order follows the first row's keys sorted for
// stability, since JSON objects carry no order.
func parseRowsPayload(payload string, maxRows int) (*Result, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return &Result{}, nil
	}

	// Tools wrap errors in {"error": ...} rather than raising; surface that
	// as a Go error so the caller's fallback path engages.
	var errObj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &errObj); err == nil && errObj.Error != "" {
		return nil, fmt.Errorf("warehouse: tool error: %s", errObj.Error)
	}

	var rawRows []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &rawRows); err != nil {
		return nil, fmt.Errorf("warehouse: decode rows payload: %w", err)
	}

	result := &Result{}
	if len(rawRows) == 0 {
		return result, nil
	}

	result.Columns = sortedKeys(rawRows[0])
	for _, raw := range rawRows {
		if len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}
		row := make([]any, len(result.Columns))
		for i, col := range result.Columns {
			row[i] = raw[col]
		}
		result.Rows = append(result.Rows, row)
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
