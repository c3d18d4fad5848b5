// Package warehouse executes generated SQL against the customer's data
// warehouse and renders results for an LLM context window.
//
// Execution is optional: when no warehouse credentials are configured the
// pipeline skips this step entirely. Three executors are provided: a native
// Snowflake connector, a Postgres driver for local demo warehouses, and an
// MCP-hosted SQL tool for deployments where the warehouse exposes its own
// MCP server.
//
// Every executor enforces the same row cap: at most MaxRows rows are
// fetched, and Result.Truncated is set when at least one more row was
// available. The cap keeps large results from blowing out the reporter's
// context window.
package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultMaxRows caps result size when no explicit limit is configured.
const DefaultMaxRows = 1000

// Result holds the outcome of one SQL execution.
type Result struct {
	// Columns are the result column names in select order.
	Columns []string

	// Rows holds the fetched values, one slice per row, aligned with Columns.
	Rows [][]any

	// RowCount is len(Rows).
	RowCount int

	// Truncated indicates the query produced more rows than the cap.
	Truncated bool

	// Duration is the wall-clock execution time.
	Duration time.Duration
}

// Executor runs one SQL statement.
type Executor interface {
	// Execute runs sql and returns the capped result set. Implementations
	// return an error for connection and query failures; an empty result set
	// is not an error.
	Execute(ctx context.Context, sql string) (*Result, error)

	// Close releases any held connections.
	Close() error
}

// JSON renders the result as an indented JSON array of column-keyed objects.
// When the result was truncated a marker line is appended telling the model
// to refine the query instead of expecting more data.
func (r *Result) JSON() (string, error) {
	objs := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		obj := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				obj[col] = row[i]
			}
		}
		objs = append(objs, obj)
	}

	b, err := json.MarshalIndent(objs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("warehouse: encode result: %w", err)
	}

	out := string(b)
	if r.Truncated {
		out += fmt.Sprintf("\n\n[Result truncated at %d rows. Refine the query (e.g. add LIMIT or filters) for full data.]", r.RowCount)
	}
	return out, nil
}

// ErrorJSON renders an execution error as the JSON object fed back to the
// crew in place of rows. Errors never abort the pipeline; the reporter
// explains the SQL instead.
func ErrorJSON(err error) string {
	b, _ := json.MarshalIndent(map[string]any{"error": err.Error()}, "", "  ")
	return string(b)
}

// normalize converts driver-specific scan values into JSON-friendly ones.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return v
	}
}
