package crew

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/soliddata/solidquery/internal/text2sql"
	"github.com/soliddata/solidquery/internal/warehouse"
	"github.com/soliddata/solidquery/pkg/provider/llm"
)

// Tool is a capability an [Agent] can offer to its model. Implementations
// decide how strictly to treat failures: tools whose errors should reach the
// model as data (so the pipeline keeps going) return an error payload string
// and a nil error.
type Tool interface {
	// Definition describes the tool for the model's tool-calling interface.
	Definition() llm.ToolDefinition

	// Call executes the tool with the model-supplied JSON arguments.
	Call(ctx context.Context, argsJSON string) (string, error)
}

// text2sqlTool exposes a Translator as the text2sql tool.
type text2sqlTool struct {
	translator text2sql.Translator
	layerID    string
}

var _ Tool = (*text2sqlTool)(nil)

// NewText2SQLTool wraps a Translator as an agent tool. The semantic layer id
// is fixed at construction; the model only supplies the question.
func NewText2SQLTool(tr text2sql.Translator, semanticLayerID string) Tool {
	return &text2sqlTool{translator: tr, layerID: semanticLayerID}
}

func (t *text2sqlTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "text2sql",
		Description: "Generate a SQL query from a natural-language question using the SolidData semantic layer. Provide the question in the 'question' argument. Returns the SQL and an explanation.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The natural-language question to translate into SQL.",
				},
			},
			"required": []string{"question"},
		},
	}
}

func (t *text2sqlTool) Call(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("crew: text2sql arguments: %w", err)
	}

	tr, err := t.translator.Translate(ctx, text2sql.Request{
		Question:        args.Question,
		SemanticLayerID: t.layerID,
	})
	if err != nil {
		return "", fmt.Errorf("crew: text2sql: %w", err)
	}

	out, err := json.Marshal(map[string]string{
		"sql":         tr.SQL,
		"explanation": tr.Explanation,
	})
	if err != nil {
		return "", fmt.Errorf("crew: encode text2sql result: %w", err)
	}
	return string(out), nil
}

// executeSQLTool exposes a warehouse Executor as the SQL execution tool.
// Execution failures are returned to the model as an error JSON payload, not
// as a Go error, so the crew keeps running and the reporter can fall back to
// explaining the SQL.
type executeSQLTool struct {
	executor warehouse.Executor
}

var _ Tool = (*executeSQLTool)(nil)

// NewExecuteSQLTool wraps a warehouse Executor as an agent tool.
func NewExecuteSQLTool(ex warehouse.Executor) Tool {
	return &executeSQLTool{executor: ex}
}

func (t *executeSQLTool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "execute_sql",
		Description: "Execute a SQL query in the data warehouse and return the results. Provide the exact SQL string in the 'query' argument. Returns rows as JSON or an error message.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The SQL query to execute (e.g. SELECT ...).",
				},
			},
			"required": []string{"query"},
		},
	}
}

func (t *executeSQLTool) Call(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return warehouse.ErrorJSON(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if args.Query == "" {
		return warehouse.ErrorJSON(fmt.Errorf("empty query")), nil
	}

	result, err := t.executor.Execute(ctx, args.Query)
	if err != nil {
		return warehouse.ErrorJSON(err), nil
	}
	out, err := result.JSON()
	if err != nil {
		return warehouse.ErrorJSON(err), nil
	}
	return out, nil
}
