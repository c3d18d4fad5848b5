package mcp

// Transport selects the connection mechanism for an MCP server.
type Transport string

const (
	// TransportStdio spawns a subprocess and communicates over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// ServerConfig describes how to connect to a single MCP server.
type ServerConfig struct {
	// Name is the human-readable identifier for this server.
	// Used in log messages and errors.
	Name string

	// Transport specifies the connection mechanism. Empty means streamable-http.
	Transport Transport

	// Command is the executable path (and optional arguments) used when
	// Transport is "stdio".
	// Example: "/usr/local/bin/solid-mcp --config /etc/solid.json"
	// Ignored for streamable-http transport.
	Command string

	// URL is the endpoint address used when Transport is "streamable-http".
	// Example: "https://mcp.production.soliddata.io/mcp"
	// Ignored for stdio transport.
	URL string

	// BearerToken, when non-empty, is sent as an Authorization: Bearer header
	// on every request of a streamable-http connection. Ignored for stdio
	// transport (use Env for credential injection instead).
	BearerToken string

	// Env holds additional environment variables injected into the server
	// process when Transport is "stdio". May be nil.
	Env map[string]string
}

// ToolInfo describes a single tool advertised by an MCP server.
type ToolInfo struct {
	// Name is the tool's unique identifier on its server.
	Name string

	// Description is the server-provided human-readable summary.
	Description string

	// InputSchema is the tool's JSON-schema parameter description.
	InputSchema map[string]any
}

// ToolResult holds the outcome of a single tool execution.
type ToolResult struct {
	// Content is the tool's textual output, typically a JSON string or
	// human-readable text ready for insertion into an LLM context window.
	// When the server returned multiple text blocks they are concatenated
	// in order; relying on only the first block loses payload.
	Content string

	// IsError indicates that the tool returned an application-level error
	// (as opposed to a transport or protocol failure returned via the Go error
	// return value). When IsError is true, Content contains the error message.
	IsError bool

	// DurationMs is the wall-clock time in milliseconds from when the request
	// was dispatched until the full response was received.
	DurationMs int64
}
