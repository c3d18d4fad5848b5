// Package mcp defines the client-side interface for a Model Context Protocol
// (MCP) server connection.
//
// A [Conn] represents one live session against one server: the SolidData MCP
// endpoint that hosts the text2sql tool, or a warehouse-hosted MCP server
// used for SQL execution. Connections are established per run with a freshly
// exchanged bearer token and closed when the run ends.
//
// The concrete implementation lives in the mcpclient subpackage; mock
// provides a scripted test double.
package mcp

import "context"

// Conn is a live client session against a single MCP server.
//
// Implementations must be safe for concurrent use.
type Conn interface {
	// Tools lists the tools advertised by the server.
	Tools(ctx context.Context) ([]ToolInfo, error)

	// Call invokes the named tool. args may be nil for parameter-less tools.
	//
	// A non-nil *ToolResult is returned on success even when
	// [ToolResult.IsError] is true (application-level error). A Go error is
	// returned only on transport or protocol failure.
	Call(ctx context.Context, name string, args map[string]any) (*ToolResult, error)

	// Close terminates the session. After Close returns the Conn must not be
	// used again.
	Close() error
}
