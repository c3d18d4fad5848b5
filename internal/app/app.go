// Package app wires all solidquery subsystems into one runnable pipeline.
//
// The App struct owns the full run lifecycle: New resolves configuration and
// constructs subsystems, Ask executes one question end to end (token
// exchange, MCP session, crew run, history write), and Close tears down
// owned resources.
//
// For testing, inject mock implementations via functional options
// (WithTranslator, WithExecutor, etc.). When an option is not provided, New
// and Ask create real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soliddata/solidquery/internal/auth"
	"github.com/soliddata/solidquery/internal/config"
	"github.com/soliddata/solidquery/internal/crew"
	"github.com/soliddata/solidquery/internal/history"
	"github.com/soliddata/solidquery/internal/mcp"
	"github.com/soliddata/solidquery/internal/mcp/mcpclient"
	"github.com/soliddata/solidquery/internal/observe"
	"github.com/soliddata/solidquery/internal/semantic"
	"github.com/soliddata/solidquery/internal/text2sql"
	"github.com/soliddata/solidquery/internal/warehouse"
	"github.com/soliddata/solidquery/pkg/provider/llm"
)

// tokenSource exchanges the management key for a bearer token.
// *auth.Client is the production implementation.
type tokenSource interface {
	Exchange(ctx context.Context) (string, error)
}

// dialFunc establishes an MCP session. mcpclient.Connect is the production
// implementation.
type dialFunc func(ctx context.Context, cfg mcp.ServerConfig) (mcp.Conn, error)

// RunTimings breaks down where a run spent its time.
type RunTimings struct {
	Auth  time.Duration
	Crew  time.Duration
	Total time.Duration
}

// RunReport is the outcome of one [App.Ask] call.
type RunReport struct {
	// RunID uniquely identifies this run. It matches the history record.
	RunID string

	// Question is the natural-language question that was asked.
	Question string

	// Layer is the resolved semantic layer the question ran against.
	Layer semantic.Layer

	// Translation holds the generated SQL and its explanation. Nil when the
	// crew never reached the translation tool.
	Translation *text2sql.Translation

	// Executed reports whether the SQL ran against a warehouse.
	Executed bool

	// Result holds the warehouse rows when Executed is true.
	Result *warehouse.Result

	// Report is the final stakeholder report written by the reporter agent.
	Report string

	// Timings breaks down the run duration.
	Timings RunTimings
}

// App orchestrates the question pipeline: auth, translation, optional
// execution, and reporting.
type App struct {
	cfg      *config.Config
	provider llm.Provider
	layers   *semantic.Registry
	metrics  *observe.Metrics

	tokens     tokenSource
	dial       dialFunc
	translator text2sql.Translator
	executor   warehouse.Executor
	store      history.Store

	// closers are called in reverse order during Close.
	closers []func() error

	closeOnce sync.Once
	closeErr  error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithTokenSource injects a token exchanger instead of building an auth
// client from config.
func WithTokenSource(ts tokenSource) Option {
	return func(a *App) { a.tokens = ts }
}

// WithDialer injects the MCP session factory.
func WithDialer(d dialFunc) Option {
	return func(a *App) { a.dial = d }
}

// WithTranslator injects a translator instead of dialling the SolidData MCP
// server per run.
func WithTranslator(t text2sql.Translator) Option {
	return func(a *App) { a.translator = t }
}

// WithExecutor injects a warehouse executor instead of building one from the
// resolved warehouse mode.
func WithExecutor(e warehouse.Executor) Option {
	return func(a *App) { a.executor = e }
}

// WithHistory injects a history store instead of opening the SQLite file
// from config.
func WithHistory(s history.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects a metrics instance instead of using the process-wide
// default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App from the validated config and LLM provider. Use Option
// functions to inject test doubles for any subsystem.
func New(cfg *config.Config, provider llm.Provider, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	if provider == nil {
		return nil, fmt.Errorf("app: nil LLM provider")
	}

	a := &App{
		cfg:      cfg,
		provider: provider,
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.tokens == nil {
		a.tokens = auth.NewClient(cfg.Auth.Endpoint, cfg.Auth.ManagementKey)
	}
	if a.dial == nil {
		a.dial = func(ctx context.Context, sc mcp.ServerConfig) (mcp.Conn, error) {
			return mcpclient.Connect(ctx, sc)
		}
	}

	layers := make([]semantic.Layer, 0, len(cfg.Semantic.Layers))
	for _, l := range cfg.Semantic.Layers {
		layers = append(layers, semantic.Layer{ID: l.ID, Name: l.Name, Description: l.Description})
	}
	a.layers = semantic.NewRegistry(layers)

	if a.store == nil && !cfg.History.Disabled && cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			// History is best-effort; a broken file must not block runs.
			slog.Warn("history store unavailable", "path", cfg.History.Path, "err", err)
		} else {
			a.store = store
			a.closers = append(a.closers, store.Close)
		}
	}

	return a, nil
}

// Token performs the management-key exchange and returns the bearer token.
func (a *App) Token(ctx context.Context) (string, error) {
	return a.tokens.Exchange(ctx)
}

// ListTools connects to the SolidData MCP server and lists its tools. The
// session is closed before returning.
func (a *App) ListTools(ctx context.Context) ([]mcp.ToolInfo, error) {
	token, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := a.dialSolidData(ctx, token)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.Tools(ctx)
}

// Layers returns the configured semantic layers.
func (a *App) Layers() []semantic.Layer {
	return a.layers.Layers()
}

// Ask runs one question end to end and returns the run report.
//
// The management-key exchange happens strictly before any MCP connection is
// opened: an invalid or rejected key aborts the run without a single MCP
// dial. The layer reference is resolved against the configured layers (exact
// id, exact name, then fuzzy name) before anything goes over the wire.
func (a *App) Ask(ctx context.Context, question, layerRef string) (*RunReport, error) {
	started := time.Now()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("app: question must not be empty")
	}
	if layerRef == "" {
		layerRef = a.cfg.Semantic.DefaultLayer
	}
	layer, err := a.layers.Resolve(layerRef)
	if err != nil {
		return nil, err
	}

	report := &RunReport{
		RunID:    uuid.NewString(),
		Question: question,
		Layer:    layer,
	}

	// Auth precedes every network hop to the MCP servers.
	authStart := time.Now()
	token, err := a.Token(ctx)
	report.Timings.Auth = time.Since(authStart)
	a.metrics.AuthDuration.Record(ctx, report.Timings.Auth.Seconds())
	if err != nil {
		a.finishRun(ctx, report, err, started)
		return nil, err
	}

	translator, cleanupTr, err := a.buildTranslator(ctx, token)
	if err != nil {
		a.finishRun(ctx, report, err, started)
		return nil, err
	}
	defer cleanupTr()

	executor, cleanupEx, err := a.buildExecutor(ctx)
	if err != nil {
		a.finishRun(ctx, report, err, started)
		return nil, err
	}
	defer cleanupEx()

	// Capture wrappers surface the intermediate artifacts that the agent
	// tools would otherwise consume silently.
	capTr := &capturingTranslator{inner: translator}
	var capEx *capturingExecutor
	var crewExecutor warehouse.Executor
	if executor != nil {
		capEx = &capturingExecutor{inner: executor}
		crewExecutor = capEx
	}

	c, err := crew.Build(crew.BuildParams{
		Question:        question,
		SemanticLayerID: layer.ID,
		Provider:        a.provider,
		Translator:      capTr,
		Executor:        crewExecutor,
		Recorder:        a.metrics,
	})
	if err != nil {
		a.finishRun(ctx, report, err, started)
		return nil, err
	}

	crewStart := time.Now()
	out, err := c.Run(ctx)
	report.Timings.Crew = time.Since(crewStart)

	report.Translation = capTr.last()
	if capEx != nil {
		if res := capEx.last(); res != nil {
			report.Executed = true
			report.Result = res
			a.metrics.ResultRows.Record(ctx, int64(res.RowCount))
		}
	}
	report.Report = out

	a.finishRun(ctx, report, err, started)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// finishRun records metrics and the history entry for a completed run.
func (a *App) finishRun(ctx context.Context, report *RunReport, runErr error, started time.Time) {
	report.Timings.Total = time.Since(started)

	status := "ok"
	if runErr != nil {
		status = "error"
	}
	a.metrics.RecordRun(ctx, status)

	if a.store == nil {
		return
	}

	run := &history.Run{
		ID:              report.RunID,
		Question:        report.Question,
		SemanticLayerID: report.Layer.ID,
		Executed:        report.Executed,
		Status:          status,
	}
	if report.Translation != nil {
		run.SQL = report.Translation.SQL
		run.Explanation = report.Translation.Explanation
	}
	if report.Result != nil {
		run.RowCount = report.Result.RowCount
		run.Truncated = report.Result.Truncated
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	if err := a.store.Record(ctx, run); err != nil {
		slog.Warn("failed to record run history", "run_id", report.RunID, "err", err)
	}
}

// dialSolidData opens a session against the SolidData MCP server using the
// freshly exchanged bearer token.
func (a *App) dialSolidData(ctx context.Context, token string) (mcp.Conn, error) {
	return a.dial(ctx, mcp.ServerConfig{
		Name:        "soliddata",
		Transport:   a.cfg.MCP.Transport,
		Command:     a.cfg.MCP.Command,
		URL:         a.cfg.MCP.ServerURL,
		BearerToken: token,
	})
}

// buildTranslator returns the translator for this run plus a cleanup func.
// An injected translator is reused across runs and never cleaned up here.
func (a *App) buildTranslator(ctx context.Context, token string) (text2sql.Translator, func(), error) {
	if a.translator != nil {
		return a.translator, func() {}, nil
	}

	if url := a.cfg.Text2SQL.RESTURL; url != "" {
		return text2sql.NewRESTTranslator(url, token), func() {}, nil
	}

	conn, err := a.dialSolidData(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := conn.Close(); err != nil {
			slog.Warn("failed to close MCP session", "err", err)
		}
	}
	return text2sql.NewMCPTranslator(conn), cleanup, nil
}

// buildExecutor returns the warehouse executor for the resolved mode, or nil
// when execution is disabled. An injected executor is reused across runs.
func (a *App) buildExecutor(ctx context.Context) (warehouse.Executor, func(), error) {
	if a.executor != nil {
		return a.executor, func() {}, nil
	}

	noop := func() {}
	wh := a.cfg.Warehouse
	maxRows := wh.MaxRows
	if maxRows <= 0 {
		maxRows = warehouse.DefaultMaxRows
	}

	switch wh.Resolve() {
	case config.WarehouseModeNone:
		return nil, noop, nil

	case config.WarehouseModeConnector:
		var (
			ex  warehouse.Executor
			err error
		)
		if wh.Driver == config.WarehouseDriverPostgres {
			ex, err = warehouse.NewPostgres(ctx, wh.Postgres, maxRows)
		} else {
			ex, err = warehouse.NewSnowflake(wh.Snowflake, maxRows)
		}
		if err != nil {
			return nil, nil, err
		}
		return ex, closerFunc(ex), nil

	case config.WarehouseModeMCP:
		conn, err := a.dial(ctx, mcp.ServerConfig{
			Name:        "warehouse",
			Transport:   mcp.TransportStreamableHTTP,
			URL:         warehouse.MCPEndpoint(wh.MCP),
			BearerToken: wh.MCP.Token,
		})
		if err != nil {
			return nil, nil, err
		}
		tool := wh.MCP.Tool
		if tool == "" {
			tool = warehouse.DefaultSQLTool
		}
		ex := warehouse.NewMCP(conn, tool, maxRows)
		return ex, closerFunc(ex), nil
	}

	return nil, nil, fmt.Errorf("app: unknown warehouse mode %q", wh.Mode)
}

// History returns the run history store, or nil when history is disabled.
func (a *App) History() history.Store {
	return a.store
}

// Close releases all resources owned by the App, in reverse-init order.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil && a.closeErr == nil {
				a.closeErr = err
			}
		}
	})
	return a.closeErr
}

// closerFunc adapts an executor's Close into a cleanup func that logs
// failures instead of propagating them.
func closerFunc(ex warehouse.Executor) func() {
	return func() {
		if err := ex.Close(); err != nil {
			slog.Warn("failed to close warehouse executor", "err", err)
		}
	}
}

// capturingTranslator records the most recent successful translation so the
// run report can surface it.
type capturingTranslator struct {
	inner text2sql.Translator

	mu sync.Mutex
	tr *text2sql.Translation
}

var _ text2sql.Translator = (*capturingTranslator)(nil)

func (c *capturingTranslator) Translate(ctx context.Context, req text2sql.Request) (*text2sql.Translation, error) {
	tr, err := c.inner.Translate(ctx, req)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.tr = tr
	c.mu.Unlock()
	return tr, nil
}

func (c *capturingTranslator) last() *text2sql.Translation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr
}

// capturingExecutor records the most recent successful execution result.
type capturingExecutor struct {
	inner warehouse.Executor

	mu  sync.Mutex
	res *warehouse.Result
}

var _ warehouse.Executor = (*capturingExecutor)(nil)

func (c *capturingExecutor) Execute(ctx context.Context, query string) (*warehouse.Result, error) {
	res, err := c.inner.Execute(ctx, query)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.res = res
	c.mu.Unlock()
	return res, nil
}

func (c *capturingExecutor) Close() error {
	return c.inner.Close()
}

func (c *capturingExecutor) last() *warehouse.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res
}
