package config

import "strconv"

// Environment variable names recognised by [Load]. The names are shared with
// the SolidData backend tooling and must not be renamed.
const (
	EnvManagementKey   = "SOLIDDATA_MANAGEMENT_KEY"
	EnvAuthEndpoint    = "AUTH_ENDPOINT"
	EnvMCPServerURL    = "MCP_SERVER_URL"
	EnvText2SQLURL     = "TEXT2SQL_URL"
	EnvSemanticLayerID = "SEMANTIC_LAYER_ID"
	EnvModel           = "MODEL"
	EnvLLMProvider     = "LLM_PROVIDER"
	EnvLLMAPIKey       = "LLM_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvMaxRows         = "MAX_ROWS"
	EnvHistoryPath     = "HISTORY_PATH"
	EnvLogLevel        = "LOG_LEVEL"

	EnvSnowflakeAccount   = "SNOWFLAKE_ACCOUNT"
	EnvSnowflakeUser      = "SNOWFLAKE_USER"
	EnvSnowflakePassword  = "SNOWFLAKE_PASSWORD"
	EnvSnowflakeDatabase  = "SNOWFLAKE_DATABASE"
	EnvSnowflakeSchema    = "SNOWFLAKE_SCHEMA"
	EnvSnowflakeWarehouse = "SNOWFLAKE_WAREHOUSE"
	EnvSnowflakeRole      = "SNOWFLAKE_ROLE"
	EnvWarehouseDSN       = "WAREHOUSE_DSN"

	EnvSnowflakeMCPURL      = "SNOWFLAKE_MCP_URL"
	EnvSnowflakeMCPDatabase = "SNOWFLAKE_MCP_DATABASE"
	EnvSnowflakeMCPSchema   = "SNOWFLAKE_MCP_SCHEMA"
	EnvSnowflakeMCPServer   = "SNOWFLAKE_MCP_SERVER"
	EnvSnowflakeMCPToken    = "SNOWFLAKE_MCP_TOKEN"
	EnvSnowflakeMCPTool     = "SNOWFLAKE_MCP_TOOL"
)

// EnvVar describes one configuration requirement: which environment variable
// feeds it, whether a run can start without it, and how to read its effective
// value back out of a resolved [Config].
type EnvVar struct {
	Key         string
	Required    bool
	Secret      bool
	Description string

	// Get returns the effective value from cfg, defaults and file included.
	Get func(cfg *Config) string
}

// Manifest declares every environment variable the application understands.
// It drives the `solidquery env` report and the pre-flight check that runs
// before any network call.
func Manifest() []EnvVar {
	return []EnvVar{
		{
			Key:         EnvManagementKey,
			Required:    true,
			Secret:      true,
			Description: "SolidData management key, exchanged for a bearer token",
			Get:         func(c *Config) string { return c.Auth.ManagementKey },
		},
		{
			Key:         EnvSemanticLayerID,
			Required:    true,
			Description: "semantic layer the questions are asked against",
			Get:         func(c *Config) string { return c.EffectiveLayer() },
		},
		{
			Key:         EnvGeminiAPIKey,
			Required:    true,
			Secret:      true,
			Description: "API key for the configured LLM provider (LLM_API_KEY also accepted)",
			Get:         func(c *Config) string { return c.LLM.APIKey },
		},
		{
			Key:         EnvAuthEndpoint,
			Description: "token exchange endpoint",
			Get:         func(c *Config) string { return c.Auth.Endpoint },
		},
		{
			Key:         EnvMCPServerURL,
			Description: "SolidData MCP server endpoint",
			Get:         func(c *Config) string { return c.MCP.ServerURL },
		},
		{
			Key:         EnvModel,
			Description: "LLM in provider/model form (e.g. gemini/gemini-2.0-flash)",
			Get:         func(c *Config) string { return c.LLM.Provider + "/" + c.LLM.Model },
		},
		{
			Key:         EnvText2SQLURL,
			Description: "REST bridge URL; translation bypasses MCP when set",
			Get:         func(c *Config) string { return c.Text2SQL.RESTURL },
		},
		{
			Key:         EnvMaxRows,
			Description: "row cap applied to warehouse results",
			Get:         func(c *Config) string { return itoa(c.Warehouse.MaxRows) },
		},
		{
			Key:         EnvSnowflakeAccount,
			Description: "warehouse account; execution is skipped unless the full credential set is present",
			Get:         func(c *Config) string { return c.Warehouse.Snowflake.Account },
		},
		{
			Key:         EnvSnowflakeUser,
			Description: "warehouse user",
			Get:         func(c *Config) string { return c.Warehouse.Snowflake.User },
		},
		{
			Key:         EnvSnowflakePassword,
			Secret:      true,
			Description: "warehouse password",
			Get:         func(c *Config) string { return c.Warehouse.Snowflake.Password },
		},
		{
			Key:         EnvSnowflakeDatabase,
			Description: "warehouse database",
			Get:         func(c *Config) string { return c.Warehouse.Snowflake.Database },
		},
		{
			Key:         EnvSnowflakeSchema,
			Description: "warehouse schema",
			Get:         func(c *Config) string { return c.Warehouse.Snowflake.Schema },
		},
		{
			Key:         EnvSnowflakeWarehouse,
			Description: "warehouse compute warehouse",
			Get:         func(c *Config) string { return c.Warehouse.Snowflake.Warehouse },
		},
		{
			Key:         EnvSnowflakeRole,
			Description: "warehouse role (optional)",
			Get:         func(c *Config) string { return c.Warehouse.Snowflake.Role },
		},
		{
			Key:         EnvWarehouseDSN,
			Secret:      true,
			Description: "Postgres DSN for the postgres warehouse driver",
			Get:         func(c *Config) string { return c.Warehouse.Postgres.DSN },
		},
		{
			Key:         EnvSnowflakeMCPURL,
			Description: "base URL of the warehouse-hosted MCP server",
			Get:         func(c *Config) string { return c.Warehouse.MCP.URL },
		},
		{
			Key:         EnvSnowflakeMCPDatabase,
			Description: "database segment of the warehouse MCP endpoint",
			Get:         func(c *Config) string { return c.Warehouse.MCP.Database },
		},
		{
			Key:         EnvSnowflakeMCPSchema,
			Description: "schema segment of the warehouse MCP endpoint",
			Get:         func(c *Config) string { return c.Warehouse.MCP.Schema },
		},
		{
			Key:         EnvSnowflakeMCPServer,
			Description: "name of the warehouse MCP server object",
			Get:         func(c *Config) string { return c.Warehouse.MCP.Server },
		},
		{
			Key:         EnvSnowflakeMCPToken,
			Secret:      true,
			Description: "bearer token for the warehouse MCP server",
			Get:         func(c *Config) string { return c.Warehouse.MCP.Token },
		},
		{
			Key:         EnvSnowflakeMCPTool,
			Description: "SQL execution tool name on the warehouse MCP server",
			Get:         func(c *Config) string { return c.Warehouse.MCP.Tool },
		},
		{
			Key:         EnvHistoryPath,
			Description: "SQLite file for the local run history",
			Get:         func(c *Config) string { return c.History.Path },
		},
		{
			Key:         EnvLogLevel,
			Description: "log verbosity: debug, info, warn, error",
			Get:         func(c *Config) string { return string(c.LogLevel) },
		},
	}
}

// Missing returns the required manifest entries that have no effective value
// in cfg. An empty result means a question run may proceed.
func Missing(cfg *Config) []EnvVar {
	var missing []EnvVar
	for _, v := range Manifest() {
		if v.Required && v.Get(cfg) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// EffectiveLayer returns the semantic layer id a run would use: the
// configured default, or the only configured layer when exactly one exists.
func (c *Config) EffectiveLayer() string {
	if c.Semantic.DefaultLayer != "" {
		return c.Semantic.DefaultLayer
	}
	if len(c.Semantic.Layers) == 1 {
		return c.Semantic.Layers[0].ID
	}
	return ""
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
