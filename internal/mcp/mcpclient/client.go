// Package mcpclient implements [mcp.Conn] over the official MCP Go SDK.
//
// It connects to a single MCP server via streamable-HTTP (with optional
// Bearer authentication, the SolidData production setup) or stdio for
// locally spawned servers.
//
// Typical usage:
//
//	conn, err := mcpclient.Connect(ctx, mcp.ServerConfig{
//	    Name:        "soliddata",
//	    Transport:   mcp.TransportStreamableHTTP,
//	    URL:         "https://mcp.production.soliddata.io/mcp",
//	    BearerToken: token,
//	})
//	defer conn.Close()
//
//	result, err := conn.Call(ctx, "text2sql", map[string]any{
//	    "question":          "total revenue by month",
//	    "semantic_layer_id": layerID,
//	})
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/soliddata/solidquery/internal/mcp"
)

// Identification sent during the MCP handshake.
const (
	clientName    = "solidquery"
	clientVersion = "1.0.0"
)

// Client is a live connection to a single MCP server.
//
// The zero value is NOT usable; create instances with [Connect].
type Client struct {
	name    string
	session *mcpsdk.ClientSession
}

// Compile-time check: Client must implement mcp.Conn.
var _ mcp.Conn = (*Client)(nil)

// Connect establishes a session with the server described by cfg.
//
// For [mcp.TransportStreamableHTTP] the configured bearer token is attached
// to every request. An authentication rejection is wrapped with a remediation
// hint, since it usually means the token was minted against a different
// environment than the MCP server.
//
// For [mcp.TransportStdio]: cfg.Command is split on spaces into executable +
// args; cfg.Env is passed as additional environment variables.
func Connect(ctx context.Context, cfg mcp.ServerConfig) (*Client, error) {
	transport, err := buildTransport(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: clientName, Version: clientVersion},
		nil,
	)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		if IsUnauthorized(err) {
			return nil, fmt.Errorf("mcp client: server %q rejected the bearer token; the auth endpoint and the MCP server must belong to the same environment: %w", cfg.Name, err)
		}
		return nil, fmt.Errorf("mcp client: connect to server %q: %w", cfg.Name, err)
	}

	return &Client{name: cfg.Name, session: session}, nil
}

// buildTransport maps a ServerConfig onto an SDK transport.
func buildTransport(ctx context.Context, cfg mcp.ServerConfig) (mcpsdk.Transport, error) {
	transport := cfg.Transport
	if transport == "" {
		transport = mcp.TransportStreamableHTTP
	}

	switch transport {
	case mcp.TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return nil, fmt.Errorf("mcp client: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &mcpsdk.CommandTransport{Command: cmd}, nil

	case mcp.TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("mcp client: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		return &mcpsdk.StreamableClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: newHTTPClient(cfg.BearerToken),
		}, nil

	default:
		return nil, fmt.Errorf("mcp client: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}
}

// newHTTPClient returns an http.Client that attaches token as an
// Authorization: Bearer header on every request, or nil when no token is
// configured so the SDK falls back to its default client.
func newHTTPClient(token string) *http.Client {
	if token == "" {
		return nil
	}
	return &http.Client{
		Transport: &bearerTransport{token: token, base: http.DefaultTransport},
	}
}

// bearerTransport injects a static bearer token into outgoing requests.
type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}

// Tools lists the tools advertised by the server.
func (c *Client) Tools(ctx context.Context) ([]mcp.ToolInfo, error) {
	var tools []mcp.ToolInfo
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("mcp client: list tools on server %q: %w", c.name, err)
		}
		tools = append(tools, mcp.ToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
		})
	}
	return tools, nil
}

// Call invokes the named tool and returns its textual output.
//
// All text content blocks of the response are concatenated in order; servers
// are free to split large payloads across blocks and taking only the first
// one silently drops the rest.
func (c *Client) Call(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error) {
	start := time.Now()

	result, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp client: call to tool %q on server %q failed: %w", name, c.name, err)
	}

	var sb strings.Builder
	for _, content := range result.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}

	return &mcp.ToolResult{
		Content:    sb.String(),
		IsError:    result.IsError,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close terminates the session.
func (c *Client) Close() error {
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("mcp client: close server %q: %w", c.name, err)
	}
	return nil
}

// IsUnauthorized reports whether err looks like an HTTP authentication
// rejection from the server.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized")
}

// splitCommand splits a command string into executable and arguments.
// e.g. "/bin/foo --bar baz" → ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// schemaToMap converts any schema value to a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
