// Package mock provides a scripted test double for the warehouse.Executor
// interface.
package mock

import (
	"context"
	"sync"

	"github.com/soliddata/solidquery/internal/warehouse"
)

// ExecuteCall records one Execute invocation.
type ExecuteCall struct {
	// SQL is the statement passed to Execute.
	SQL string
}

// Executor is a configurable test double for warehouse.Executor.
type Executor struct {
	mu sync.Mutex

	// ExecuteResult is returned by Execute when ExecuteErr is nil.
	ExecuteResult *warehouse.Result

	// ExecuteErr, if non-nil, is returned by Execute.
	ExecuteErr error

	// CloseErr is returned by Close.
	CloseErr error

	// ExecuteCalls records every Execute invocation in order.
	ExecuteCalls []ExecuteCall

	// CloseCount is the number of times Close was called.
	CloseCount int
}

var _ warehouse.Executor = (*Executor)(nil)

// Execute records the call and returns the scripted result.
func (e *Executor) Execute(ctx context.Context, sql string) (*warehouse.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ExecuteCalls = append(e.ExecuteCalls, ExecuteCall{SQL: sql})
	if e.ExecuteErr != nil {
		return nil, e.ExecuteErr
	}
	if e.ExecuteResult == nil {
		return &warehouse.Result{}, nil
	}
	return e.ExecuteResult, nil
}

// Close records the call and returns CloseErr.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCount++
	return e.CloseErr
}
