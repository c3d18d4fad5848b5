package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soliddata/solidquery/internal/config"
)

// postgresExecutor executes SQL against a Postgres database. Intended for
// local demo warehouses where a full Snowflake account is overkill.
type postgresExecutor struct {
	pool    *pgxpool.Pool
	maxRows int
}

var _ Executor = (*postgresExecutor)(nil)

// NewPostgres creates an Executor over a pgx connection pool.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, maxRows int) (Executor, error) {
	if cfg.DSN == "" {
		return nil, errors.New("warehouse: postgres dsn not configured")
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("warehouse: open postgres pool: %w", err)
	}
	return &postgresExecutor{pool: pool, maxRows: maxRows}, nil
}

// Execute implements Executor.
func (e *postgresExecutor) Execute(ctx context.Context, query string) (*Result, error) {
	if query == "" {
		return nil, errors.New("warehouse: empty query")
	}

	start := time.Now()
	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("warehouse: query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		if len(result.Rows) == e.maxRows {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("warehouse: read row: %w", err)
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

// Close implements Executor.
func (e *postgresExecutor) Close() error {
	e.pool.Close()
	return nil
}
