// Package config provides the configuration schema, loader, and LLM provider
// registry for the solidquery CLI.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, and environment variables (a .env file is honoured). Environment
// always wins, matching the env-first deployment style of the SolidData
// backend this client talks to.
package config

import (
	"strings"

	"github.com/soliddata/solidquery/internal/mcp"
)

// LogLevel controls log verbosity for the CLI and the bridge server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// WarehouseMode selects how (and whether) generated SQL is executed.
type WarehouseMode string

const (
	// WarehouseModeNone skips execution; the reporter explains the SQL instead.
	WarehouseModeNone WarehouseMode = "none"

	// WarehouseModeAuto picks connector when the connector credentials are
	// complete, otherwise mcp when the warehouse MCP block is complete,
	// otherwise none. This is the default.
	WarehouseModeAuto WarehouseMode = "auto"

	// WarehouseModeConnector executes through the native database driver.
	WarehouseModeConnector WarehouseMode = "connector"

	// WarehouseModeMCP executes through a second MCP server hosted next to
	// the warehouse.
	WarehouseModeMCP WarehouseMode = "mcp"
)

// IsValid reports whether m is a recognised warehouse mode.
// The empty string is valid and treated as auto.
func (m WarehouseMode) IsValid() bool {
	switch m {
	case "", WarehouseModeNone, WarehouseModeAuto, WarehouseModeConnector, WarehouseModeMCP:
		return true
	}
	return false
}

// WarehouseDriver selects the native connector implementation.
type WarehouseDriver string

const (
	WarehouseDriverSnowflake WarehouseDriver = "snowflake"
	WarehouseDriverPostgres  WarehouseDriver = "postgres"
)

// IsValid reports whether d is a recognised driver. Empty means snowflake.
func (d WarehouseDriver) IsValid() bool {
	switch d {
	case "", WarehouseDriverSnowflake, WarehouseDriverPostgres:
		return true
	}
	return false
}

// Config is the root configuration structure for solidquery.
// It is typically produced by [Load], which layers defaults, an optional
// YAML file, and environment variables.
type Config struct {
	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`

	Auth      AuthConfig      `yaml:"auth"`
	MCP       MCPConfig       `yaml:"mcp"`
	Text2SQL  Text2SQLConfig  `yaml:"text2sql"`
	Semantic  SemanticConfig  `yaml:"semantic"`
	LLM       LLMConfig       `yaml:"llm"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	History   HistoryConfig   `yaml:"history"`
	Bridge    BridgeConfig    `yaml:"bridge"`
}

// AuthConfig holds the credentials for the management-key exchange.
type AuthConfig struct {
	// ManagementKey is the static SolidData management key. It is exchanged
	// for a short-lived bearer token at the start of every run and is never
	// sent anywhere else. Resolved from SOLIDDATA_MANAGEMENT_KEY, the OS
	// keyring, or this file, in that order.
	ManagementKey string `yaml:"management_key"`

	// Endpoint is the token exchange URL.
	Endpoint string `yaml:"endpoint"`
}

// MCPConfig describes the SolidData MCP server that hosts the text2sql tool.
type MCPConfig struct {
	// ServerURL is the MCP endpoint used with the streamable-http transport.
	ServerURL string `yaml:"server_url"`

	// Transport specifies the connection mechanism.
	Transport mcp.Transport `yaml:"transport"`

	// Command is the executable (with optional arguments) launched when
	// Transport is "stdio". Ignored for streamable-http transport.
	Command string `yaml:"command"`
}

// Text2SQLConfig tunes how questions reach the text2sql tool.
type Text2SQLConfig struct {
	// RESTURL, when set, routes translation through the REST bridge endpoint
	// instead of a direct MCP tool call.
	RESTURL string `yaml:"rest_url"`
}

// SemanticConfig names the semantic layers questions can be asked against.
type SemanticConfig struct {
	// DefaultLayer is the semantic layer id used when no --layer is given.
	DefaultLayer string `yaml:"default_layer"`

	// Layers optionally describes known layers so they can be selected by
	// (fuzzy) name instead of id.
	Layers []LayerConfig `yaml:"layers"`
}

// LayerConfig describes one selectable semantic layer.
type LayerConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ProviderEntry is the common configuration block shared by all LLM provider
// slots. The Provider field is used to look up the constructor in the
// [Registry].
type ProviderEntry struct {
	// Provider selects the registered implementation (e.g., "gemini", "openai").
	Provider string `yaml:"provider"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// LLMConfig selects the model that powers the crew agents.
type LLMConfig struct {
	ProviderEntry `yaml:",inline"`

	// Fallbacks lists providers tried in order when the primary fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// WarehouseConfig controls the optional SQL execution step.
type WarehouseConfig struct {
	// Mode selects execution behaviour. See [WarehouseMode].
	Mode WarehouseMode `yaml:"mode"`

	// Driver selects the native connector used in connector mode.
	Driver WarehouseDriver `yaml:"driver"`

	// MaxRows caps how many result rows are fetched. Rows beyond the cap are
	// discarded and the result is marked truncated.
	MaxRows int `yaml:"max_rows"`

	Snowflake SnowflakeConfig    `yaml:"snowflake"`
	Postgres  PostgresConfig     `yaml:"postgres"`
	MCP       WarehouseMCPConfig `yaml:"mcp"`
}

// SnowflakeConfig holds the connector credentials. All fields except Role are
// required for the connector to be considered configured.
type SnowflakeConfig struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	Role      string `yaml:"role"`
}

// Missing returns the names of required connector fields that are empty.
// Role is optional and never reported.
func (s SnowflakeConfig) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"account", s.Account},
		{"user", s.User},
		{"password", s.Password},
		{"database", s.Database},
		{"schema", s.Schema},
		{"warehouse", s.Warehouse},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Complete reports whether every required connector field is set.
func (s SnowflakeConfig) Complete() bool {
	return len(s.Missing()) == 0
}

// PostgresConfig holds the DSN for a Postgres demo warehouse.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// WarehouseMCPConfig describes the warehouse-side MCP server used in mcp mode.
// The endpoint is {url}/api/v2/databases/{database}/schemas/{schema}/mcp-servers/{server}.
type WarehouseMCPConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
	Server   string `yaml:"server"`
	Token    string `yaml:"token"`

	// Tool is the name of the SQL execution tool exposed by the server.
	Tool string `yaml:"tool"`
}

// Complete reports whether the MCP executor block is fully configured.
// Tool has a default and is not required.
func (w WarehouseMCPConfig) Complete() bool {
	return w.URL != "" && w.Database != "" && w.Schema != "" && w.Server != "" && w.Token != ""
}

// Resolve maps the configured mode to a concrete one. Auto (and the empty
// string) resolve based on which credential blocks are complete; explicit
// modes pass through unchanged.
func (w WarehouseConfig) Resolve() WarehouseMode {
	switch w.Mode {
	case WarehouseModeNone, WarehouseModeConnector, WarehouseModeMCP:
		return w.Mode
	}
	if w.ConnectorComplete() {
		return WarehouseModeConnector
	}
	if w.MCP.Complete() {
		return WarehouseModeMCP
	}
	return WarehouseModeNone
}

// ConnectorComplete reports whether the active driver has everything it needs.
func (w WarehouseConfig) ConnectorComplete() bool {
	if w.Driver == WarehouseDriverPostgres {
		return w.Postgres.DSN != ""
	}
	return w.Snowflake.Complete()
}

// HistoryConfig controls the local run history store.
type HistoryConfig struct {
	// Path is the SQLite file location. Empty means a file under the user
	// config directory.
	Path string `yaml:"path"`

	// Disabled turns history recording off entirely.
	Disabled bool `yaml:"disabled"`
}

// BridgeConfig holds settings for the REST bridge server.
type BridgeConfig struct {
	// ListenAddr is the TCP address the bridge listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`
}

// looksPlaceholder reports whether v still carries a template value copied
// from an example .env, such as "your_management_key_here".
func looksPlaceholder(v string) bool {
	return strings.Contains(v, "your_management_key") || strings.Contains(v, "here")
}
