package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sf "github.com/snowflakedb/gosnowflake"

	"github.com/soliddata/solidquery/internal/config"
)

// snowflakeExecutor executes SQL through the native Snowflake driver with
// username/password authentication.
type snowflakeExecutor struct {
	db      *sql.DB
	maxRows int
}

var _ Executor = (*snowflakeExecutor)(nil)

// NewSnowflake creates an Executor over the Snowflake Go driver. The
// connection is established lazily on first Execute.
func NewSnowflake(cfg config.SnowflakeConfig, maxRows int) (Executor, error) {
	if missing := cfg.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("warehouse: snowflake config incomplete, missing: %v", missing)
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	sfCfg := sf.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
		Role:      cfg.Role,
	}
	dsn, err := sf.DSN(&sfCfg)
	if err != nil {
		return nil, fmt.Errorf("warehouse: build snowflake dsn: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("warehouse: open snowflake: %w", err)
	}
	return &snowflakeExecutor{db: db, maxRows: maxRows}, nil
}

// Execute implements Executor.
func (e *snowflakeExecutor) Execute(ctx context.Context, query string) (*Result, error) {
	return executeSQL(ctx, e.db, query, e.maxRows)
}

// Close implements Executor.
func (e *snowflakeExecutor) Close() error {
	return e.db.Close()
}

// executeSQL runs query over any database/sql handle, applying the row cap.
// It reads at most maxRows rows and probes for one more to decide Truncated.
func executeSQL(ctx context.Context, db *sql.DB, query string, maxRows int) (*Result, error) {
	if query == "" {
		return nil, errors.New("warehouse: empty query")
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("warehouse: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("warehouse: read columns: %w", err)
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		if len(result.Rows) == maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("warehouse: scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse: iterate rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	result.Duration = time.Since(start)
	return result, nil
}
