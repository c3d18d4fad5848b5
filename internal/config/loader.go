package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/soliddata/solidquery/internal/mcp"
	"gopkg.in/yaml.v3"
)

// Built-in defaults matching the production SolidData deployment.
const (
	DefaultAuthEndpoint = "https://backend.production.soliddata.io/api/v1/auth/exchange_user_access_key"
	DefaultMCPServerURL = "https://mcp.production.soliddata.io/mcp"
	DefaultLLMProvider  = "gemini"
	DefaultLLMModel     = "gemini-2.0-flash"
	DefaultMaxRows      = 1000
	DefaultBridgeAddr   = ":8080"

	// DefaultWarehouseTool is the SQL execution tool name exposed by
	// warehouse-hosted MCP servers.
	DefaultWarehouseTool = "sql_exec_tool"
)

// ValidLLMProviders lists known LLM provider names.
// Used by [Validate] to warn about unrecognised provider names.
var ValidLLMProviders = []string{
	"gemini", "openai", "openai-native", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Default returns a Config populated with built-in defaults and nothing else.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Auth: AuthConfig{
			Endpoint: DefaultAuthEndpoint,
		},
		MCP: MCPConfig{
			ServerURL: DefaultMCPServerURL,
			Transport: mcp.TransportStreamableHTTP,
		},
		LLM: LLMConfig{
			ProviderEntry: ProviderEntry{
				Provider: DefaultLLMProvider,
				Model:    DefaultLLMModel,
			},
		},
		Warehouse: WarehouseConfig{
			Mode:    WarehouseModeAuto,
			Driver:  WarehouseDriverSnowflake,
			MaxRows: DefaultMaxRows,
			MCP:     WarehouseMCPConfig{Tool: DefaultWarehouseTool},
		},
		Bridge: BridgeConfig{
			ListenAddr: DefaultBridgeAddr,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty and no file exists at the default
// location), then environment variables. A .env file in the working
// directory is loaded into the environment first, without overriding
// variables that are already set.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decodeYAML(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of the defaults and
// validates the result. The environment is not consulted. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// applyEnv overlays environment variables onto cfg. Set-but-empty variables
// are treated as unset, mirroring how the backend's own tooling reads them.
func applyEnv(cfg *Config) {
	setIfEnv(&cfg.Auth.ManagementKey, EnvManagementKey)
	setIfEnv(&cfg.Auth.Endpoint, EnvAuthEndpoint)
	setIfEnv(&cfg.MCP.ServerURL, EnvMCPServerURL)
	setIfEnv(&cfg.Text2SQL.RESTURL, EnvText2SQLURL)
	setIfEnv(&cfg.Semantic.DefaultLayer, EnvSemanticLayerID)

	if v := os.Getenv(EnvModel); v != "" {
		provider, model := SplitModel(v)
		if provider != "" {
			cfg.LLM.Provider = provider
		}
		cfg.LLM.Model = model
	}
	setIfEnv(&cfg.LLM.Provider, EnvLLMProvider)
	setIfEnv(&cfg.LLM.APIKey, EnvLLMAPIKey)
	if cfg.LLM.APIKey == "" {
		setIfEnv(&cfg.LLM.APIKey, EnvGeminiAPIKey)
	}

	setIfEnv(&cfg.Warehouse.Snowflake.Account, EnvSnowflakeAccount)
	setIfEnv(&cfg.Warehouse.Snowflake.User, EnvSnowflakeUser)
	setIfEnv(&cfg.Warehouse.Snowflake.Password, EnvSnowflakePassword)
	setIfEnv(&cfg.Warehouse.Snowflake.Database, EnvSnowflakeDatabase)
	setIfEnv(&cfg.Warehouse.Snowflake.Schema, EnvSnowflakeSchema)
	setIfEnv(&cfg.Warehouse.Snowflake.Warehouse, EnvSnowflakeWarehouse)
	setIfEnv(&cfg.Warehouse.Snowflake.Role, EnvSnowflakeRole)
	setIfEnv(&cfg.Warehouse.Postgres.DSN, EnvWarehouseDSN)

	setIfEnv(&cfg.Warehouse.MCP.URL, EnvSnowflakeMCPURL)
	setIfEnv(&cfg.Warehouse.MCP.Database, EnvSnowflakeMCPDatabase)
	setIfEnv(&cfg.Warehouse.MCP.Schema, EnvSnowflakeMCPSchema)
	setIfEnv(&cfg.Warehouse.MCP.Server, EnvSnowflakeMCPServer)
	setIfEnv(&cfg.Warehouse.MCP.Token, EnvSnowflakeMCPToken)
	setIfEnv(&cfg.Warehouse.MCP.Tool, EnvSnowflakeMCPTool)

	if v := os.Getenv(EnvMaxRows); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Warehouse.MaxRows = n
		} else {
			slog.Warn("ignoring non-numeric "+EnvMaxRows, "value", v)
		}
	}

	setIfEnv(&cfg.History.Path, EnvHistoryPath)

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = LogLevel(strings.ToLower(v))
	}
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// SplitModel splits a combined "provider/model" reference. When v carries no
// recognised provider prefix the whole string is returned as the model.
func SplitModel(v string) (provider, model string) {
	before, after, found := strings.Cut(v, "/")
	if found && slices.Contains(ValidLLMProviders, before) {
		return before, after
	}
	return "", v
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Missing required values are not validation failures; see [Missing].
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if k := cfg.Auth.ManagementKey; k != "" && looksPlaceholder(k) {
		errs = append(errs, fmt.Errorf("auth.management_key looks like a placeholder; set %s to your actual key", EnvManagementKey))
	}
	if cfg.Auth.Endpoint == "" {
		errs = append(errs, errors.New("auth.endpoint must not be empty"))
	}

	if cfg.MCP.Transport != "" && !cfg.MCP.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("mcp.transport %q is invalid; valid values: stdio, streamable-http", cfg.MCP.Transport))
	}
	if cfg.MCP.Transport == mcp.TransportStdio && cfg.MCP.Command == "" {
		errs = append(errs, errors.New("mcp.command is required when transport is stdio"))
	}
	if cfg.MCP.Transport != mcp.TransportStdio && cfg.MCP.ServerURL == "" {
		errs = append(errs, errors.New("mcp.server_url must not be empty"))
	}

	layerIDs := make(map[string]int, len(cfg.Semantic.Layers))
	for i, layer := range cfg.Semantic.Layers {
		prefix := fmt.Sprintf("semantic.layers[%d]", i)
		if layer.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
			continue
		}
		if prev, ok := layerIDs[layer.ID]; ok {
			errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of semantic.layers[%d]", prefix, layer.ID, prev))
		}
		layerIDs[layer.ID] = i
	}

	validateProviderName(cfg.LLM.Provider)
	for _, fb := range cfg.LLM.Fallbacks {
		validateProviderName(fb.Provider)
	}

	if !cfg.Warehouse.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("warehouse.mode %q is invalid; valid values: none, auto, connector, mcp", cfg.Warehouse.Mode))
	}
	if !cfg.Warehouse.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("warehouse.driver %q is invalid; valid values: snowflake, postgres", cfg.Warehouse.Driver))
	}
	if cfg.Warehouse.MaxRows <= 0 {
		errs = append(errs, fmt.Errorf("warehouse.max_rows %d must be positive", cfg.Warehouse.MaxRows))
	}
	if cfg.Warehouse.Mode == WarehouseModeConnector && !cfg.Warehouse.ConnectorComplete() {
		if cfg.Warehouse.Driver == WarehouseDriverPostgres {
			errs = append(errs, errors.New("warehouse.mode is connector but warehouse.postgres.dsn is not set"))
		} else {
			errs = append(errs, fmt.Errorf("warehouse.mode is connector but snowflake credentials are incomplete; missing: %s",
				strings.Join(cfg.Warehouse.Snowflake.Missing(), ", ")))
		}
	}
	if cfg.Warehouse.Mode == WarehouseModeMCP && !cfg.Warehouse.MCP.Complete() {
		errs = append(errs, errors.New("warehouse.mode is mcp but warehouse.mcp is incomplete; url, database, schema, server, and token are required"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidLLMProviders].
func validateProviderName(name string) {
	if name == "" || slices.Contains(ValidLLMProviders, name) {
		return
	}
	slog.Warn("unknown LLM provider name — may be a typo or third-party provider",
		"name", name,
		"known", ValidLLMProviders,
	)
}
