package crew

import (
	"errors"
	"fmt"

	"github.com/soliddata/solidquery/internal/text2sql"
	"github.com/soliddata/solidquery/internal/warehouse"
	"github.com/soliddata/solidquery/pkg/provider/llm"
)

// Shared completion limits. The generous output budget avoids truncated or
// empty responses when warehouse results are passed through verbatim.
const (
	defaultMaxTokens    = 8192
	analystTemperature  = 0.3
	executorTemperature = 0.1
	reporterTemperature = 0.3
)

// BuildParams holds everything needed to assemble a crew for one question.
type BuildParams struct {
	// Question is the user's natural-language question.
	Question string

	// SemanticLayerID selects the semantic layer.
	SemanticLayerID string

	// Provider is the LLM backend shared by all agents.
	Provider llm.Provider

	// Translator converts the question into SQL.
	Translator text2sql.Translator

	// Executor, when non-nil, enables the SQL execution step. Nil builds the
	// two-agent crew (analyst → reporter).
	Executor warehouse.Executor

	// Recorder receives per-task telemetry. May be nil.
	Recorder Recorder
}

// Build assembles the sequential crew for one question. The pipeline is
// [analyst → reporter], or [analyst → executor → reporter] when a warehouse
// executor is present — nothing besides executor presence changes the shape.
func Build(p BuildParams) (*Crew, error) {
	if p.Question == "" {
		return nil, errors.New("crew: question must not be empty")
	}
	if p.SemanticLayerID == "" {
		return nil, errors.New("crew: semantic layer id must not be empty")
	}
	if p.Provider == nil {
		return nil, errors.New("crew: LLM provider must not be nil")
	}
	if p.Translator == nil {
		return nil, errors.New("crew: translator must not be nil")
	}

	analyst := &Agent{
		Name: "sql_analyst",
		Role: "SQL Data Analyst",
		Goal: "Convert the user's natural-language question into an accurate SQL query " +
			"using the text2sql tool provided by SolidData.",
		Backstory: "You are a senior data analyst who turns business questions into " +
			"precise SQL queries. You always use the text2sql tool — never guess " +
			"the schema or make up table names.",
		Provider:    p.Provider,
		Temperature: analystTemperature,
		MaxTokens:   defaultMaxTokens,
		Tools:       []Tool{NewText2SQLTool(p.Translator, p.SemanticLayerID)},
	}

	reporter := &Agent{
		Name: "reporter",
		Role: "Report Writer",
		Goal: "Produce a clear, stakeholder-friendly summary. When query results are available, " +
			"analyze those results; otherwise explain what the SQL does.",
		Backstory: "You are an expert at explaining data and queries in plain language. " +
			"When you receive actual query results from the warehouse, you summarize the data, " +
			"highlight key numbers or trends, and write a concise report. When you only " +
			"receive a SQL query, you explain what the query does in business terms.",
		Provider:    p.Provider,
		Temperature: reporterTemperature,
		MaxTokens:   defaultMaxTokens,
	}

	generateSQL := &Task{
		Name: "generate_sql",
		Description: fmt.Sprintf(
			"Use the text2sql tool to generate a sql query using the following user question as input."+
				" The question is: \n\n%q\n\n"+
				"The semantic layer id: %s\n\n"+
				"Return the SQL query and a one-sentence explanation of what it does.",
			p.Question, p.SemanticLayerID),
		ExpectedOutput: "The SQL query and a brief explanation of what it retrieves.",
		Agent:          analyst,
	}

	if p.Executor == nil {
		report := &Task{
			Name:           "explain_and_report",
			Description:    reportDescription,
			ExpectedOutput: reportExpectedOutput,
			Agent:          reporter,
			Context:        []*Task{generateSQL},
		}
		return &Crew{Tasks: []*Task{generateSQL, report}, Recorder: p.Recorder}, nil
	}

	executor := &Agent{
		Name: "sql_executor",
		Role: "SQL Executor",
		Goal: "Execute the SQL from the previous step in the warehouse and return the raw tool output in full.",
		Backstory: "You run SQL in the warehouse via the execute_sql tool. You receive the exact SQL " +
			"from the SQL Analyst. You call the tool with the single argument 'query' set to the exact SQL string. " +
			"You must return the complete tool response (JSON rows or error) in your final answer — never summarize, " +
			"truncate, or return an empty response.",
		Provider:    p.Provider,
		Temperature: executorTemperature,
		MaxTokens:   defaultMaxTokens,
		Tools:       []Tool{NewExecuteSQLTool(p.Executor)},
	}

	executeSQL := &Task{
		Name: "execute_sql",
		Description: "Using the SQL query from the previous task output:\n" +
			"1. Extract the exact SQL statement (only the SQL, no markdown or explanation).\n" +
			"2. Call the execute_sql tool with argument \"query\" set to the exact SQL string.\n" +
			"3. In your final answer, return the complete tool output (full JSON or error). " +
			"Your response must not be empty — include the entire tool result.",
		ExpectedOutput: "The complete raw result from execute_sql (full JSON array of rows or error object). " +
			"Never an empty or truncated response.",
		Agent:   executor,
		Context: []*Task{generateSQL},
	}

	report := &Task{
		Name:           "explain_and_report",
		Description:    reportDescription,
		ExpectedOutput: reportExpectedOutput,
		Agent:          reporter,
		Context:        []*Task{generateSQL, executeSQL},
	}

	return &Crew{Tasks: []*Task{generateSQL, executeSQL, report}, Recorder: p.Recorder}, nil
}

const reportDescription = "Using the context from the previous step(s):\n" +
	"1. If you have actual query results from the warehouse: summarize the data, " +
	"highlight key numbers or findings, and write a short report (2-4 sentences) " +
	"suitable for a business stakeholder.\n" +
	"2. If you only have a SQL query and explanation: explain in plain language " +
	"what the query does (tables, filters, purpose) and write a short stakeholder report."

const reportExpectedOutput = "A concise stakeholder report. When results were provided, base it on the data; " +
	"otherwise explain what the SQL retrieves."
