package text2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soliddata/solidquery/internal/mcp"
)

// ToolName is the tool identifier the SolidData MCP server advertises.
const ToolName = "text2sql"

// defaultCallTimeout bounds one tool invocation.
const defaultCallTimeout = 30 * time.Second

// mcpTranslator calls the text2sql tool over an established MCP session.
type mcpTranslator struct {
	conn    mcp.Conn
	timeout time.Duration
}

var _ Translator = (*mcpTranslator)(nil)

// MCPOption is a functional option for the MCP translator.
type MCPOption func(*mcpTranslator)

// WithCallTimeout overrides the default 30s per-call timeout.
func WithCallTimeout(d time.Duration) MCPOption {
	return func(t *mcpTranslator) {
		t.timeout = d
	}
}

// NewMCPTranslator creates a Translator over an existing MCP connection.
// The connection's lifecycle remains the caller's responsibility.
func NewMCPTranslator(conn mcp.Conn, opts ...MCPOption) Translator {
	t := &mcpTranslator{conn: conn, timeout: defaultCallTimeout}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Translate implements Translator.
func (t *mcpTranslator) Translate(ctx context.Context, req Request) (*Translation, error) {
	if req.Question == "" {
		return nil, errors.New("text2sql: question must not be empty")
	}
	if req.SemanticLayerID == "" {
		return nil, errors.New("text2sql: semantic layer id must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.conn.Call(ctx, ToolName, map[string]any{
		"question":          req.Question,
		"semantic_layer_id": req.SemanticLayerID,
	})
	if err != nil {
		return nil, fmt.Errorf("text2sql: call %s: %w", ToolName, err)
	}
	if result.IsError {
		return nil, fmt.Errorf("text2sql: tool returned an error: %s", result.Content)
	}

	slog.Debug("text2sql tool call completed",
		"duration_ms", result.DurationMs,
		"payload_bytes", len(result.Content))

	tr := Parse(result.Content)
	if tr.SQL == "" {
		return nil, fmt.Errorf("text2sql: tool returned no SQL (payload: %.200s)", result.Content)
	}
	return tr, nil
}
