// Package mock provides an in-memory test double for the [mcp.Conn] interface.
//
// [Conn] records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. It is safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	conn := &mock.Conn{}
//	conn.CallResults = map[string]*mcp.ToolResult{
//	    "text2sql": {Content: `{"sql":"SELECT 1","explanation":"trivial"}`},
//	}
//
//	// inject conn into the system under test …
//
//	if got := conn.CallCount("Call"); got != 1 {
//	    t.Errorf("expected 1 tool call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/soliddata/solidquery/internal/mcp"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Conn is a configurable test double for [mcp.Conn].
// All exported *Err fields default to nil (success); all exported *Result
// fields default to nil / zero values.
type Conn struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// ──── Tools ────────────────────────────────────────────────────────────

	// ToolsResult is returned by [Conn.Tools].
	// When nil, Tools returns an empty non-nil slice.
	ToolsResult []mcp.ToolInfo

	// ToolsErr is returned by [Conn.Tools] when non-nil.
	ToolsErr error

	// ──── Call ─────────────────────────────────────────────────────────────

	// CallResults maps tool names to scripted results, letting one mock
	// answer several tools deterministically. Consulted before CallResult.
	CallResults map[string]*mcp.ToolResult

	// CallResult is returned by [Conn.Call] for tools without an entry in
	// CallResults. When nil (and CallErr is nil), a zero-value *ToolResult
	// is returned.
	CallResult *mcp.ToolResult

	// CallErr is returned by [Conn.Call] when non-nil.
	CallErr error

	// ──── Close ────────────────────────────────────────────────────────────

	// CloseErr is returned by [Conn.Close] when non-nil.
	CloseErr error
}

// Calls returns a copy of all recorded method invocations.
func (c *Conn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (c *Conn) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

// ToolCalls returns the recorded (name, args) pairs passed to [Conn.Call].
func (c *Conn) ToolCalls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Call
	for _, call := range c.calls {
		if call.Method == "Call" {
			out = append(out, call)
		}
	}
	return out
}

// Reset clears all recorded calls without altering response configuration.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// Tools implements [mcp.Conn].
func (c *Conn) Tools(_ context.Context) ([]mcp.ToolInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Method: "Tools", Args: nil})
	if c.ToolsErr != nil {
		return nil, c.ToolsErr
	}
	if c.ToolsResult == nil {
		return []mcp.ToolInfo{}, nil
	}
	out := make([]mcp.ToolInfo, len(c.ToolsResult))
	copy(out, c.ToolsResult)
	return out, nil
}

// Call implements [mcp.Conn].
func (c *Conn) Call(_ context.Context, name string, args map[string]any) (*mcp.ToolResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Method: "Call", Args: []any{name, args}})
	if c.CallErr != nil {
		return nil, c.CallErr
	}
	if r, ok := c.CallResults[name]; ok {
		cp := *r
		return &cp, nil
	}
	if c.CallResult == nil {
		return &mcp.ToolResult{}, nil
	}
	// Return a copy so the caller cannot mutate the configured result.
	cp := *c.CallResult
	return &cp, nil
}

// Close implements [mcp.Conn].
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Method: "Close", Args: nil})
	return c.CloseErr
}

// Ensure Conn satisfies the interface at compile time.
var _ mcp.Conn = (*Conn)(nil)
