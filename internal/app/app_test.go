package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/soliddata/solidquery/internal/config"
	"github.com/soliddata/solidquery/internal/history"
	"github.com/soliddata/solidquery/internal/mcp"
	mcpmock "github.com/soliddata/solidquery/internal/mcp/mock"
	"github.com/soliddata/solidquery/internal/observe"
	"github.com/soliddata/solidquery/internal/semantic"
	"github.com/soliddata/solidquery/internal/text2sql"
	"github.com/soliddata/solidquery/internal/warehouse"
	whmock "github.com/soliddata/solidquery/internal/warehouse/mock"
	"github.com/soliddata/solidquery/pkg/provider/llm"
	llmmock "github.com/soliddata/solidquery/pkg/provider/llm/mock"
)

// fakeTokens is a scripted token source.
type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) Exchange(_ context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

// fakeTranslator returns a fixed translation.
type fakeTranslator struct {
	translation *text2sql.Translation
	err         error
	calls       int
}

func (f *fakeTranslator) Translate(_ context.Context, _ text2sql.Request) (*text2sql.Translation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.translation, nil
}

// fakeHistory records runs in memory.
type fakeHistory struct {
	runs      []history.Run
	recordErr error
	closed    bool
}

func (f *fakeHistory) Record(_ context.Context, run *history.Run) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, n int) ([]history.Run, error) {
	if n > len(f.runs) {
		n = len(f.runs)
	}
	out := make([]history.Run, n)
	copy(out, f.runs[len(f.runs)-n:])
	return out, nil
}

func (f *fakeHistory) Close() error {
	f.closed = true
	return nil
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testConfig() *config.Config {
	return &config.Config{
		Semantic: config.SemanticConfig{
			DefaultLayer: "sales",
			Layers: []config.LayerConfig{
				{ID: "sales", Name: "Sales Analytics"},
				{ID: "finance", Name: "Finance"},
			},
		},
		Warehouse: config.WarehouseConfig{Mode: config.WarehouseModeNone},
		History:   config.HistoryConfig{Disabled: true},
	}
}

// toolCallResponse builds a completion response that invokes one tool.
func toolCallResponse(id, name, args string) *llm.CompletionResponse {
	return &llm.CompletionResponse{
		ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: args}},
	}
}

func contentResponse(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{Content: text}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil, &llmmock.Provider{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_NilProvider(t *testing.T) {
	if _, err := New(testConfig(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestAsk_TranslateOnly(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			toolCallResponse("1", "text2sql", `{"question":"How many orders shipped?"}`),
			contentResponse("Generated SQL that counts shipped orders."),
			contentResponse("Report: 42 orders shipped."),
		},
	}
	translator := &fakeTranslator{
		translation: &text2sql.Translation{
			SQL:         "SELECT COUNT(*) FROM orders WHERE status = 'shipped'",
			Explanation: "Counts shipped orders.",
		},
	}
	store := &fakeHistory{}

	a, err := New(testConfig(), provider,
		WithTokenSource(&fakeTokens{token: "tok-1234"}),
		WithTranslator(translator),
		WithHistory(store),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	report, err := a.Ask(context.Background(), "How many orders shipped?", "sales")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if report.RunID == "" {
		t.Error("RunID not assigned")
	}
	if report.Layer.ID != "sales" {
		t.Errorf("layer = %q, want %q", report.Layer.ID, "sales")
	}
	if report.Translation == nil || report.Translation.SQL == "" {
		t.Fatal("translation not captured")
	}
	if report.Executed {
		t.Error("Executed = true, want false without a warehouse")
	}
	if report.Report != "Report: 42 orders shipped." {
		t.Errorf("report = %q", report.Report)
	}
	if translator.calls != 1 {
		t.Errorf("translator calls = %d, want 1", translator.calls)
	}

	if len(store.runs) != 1 {
		t.Fatalf("history runs = %d, want 1", len(store.runs))
	}
	run := store.runs[0]
	if run.Status != "ok" {
		t.Errorf("history status = %q, want ok", run.Status)
	}
	if run.SQL != report.Translation.SQL {
		t.Errorf("history SQL = %q", run.SQL)
	}
	if run.Executed {
		t.Error("history Executed = true, want false")
	}
}

func TestAsk_WithExecutor(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			toolCallResponse("1", "text2sql", `{"question":"Top regions by revenue"}`),
			contentResponse("SQL generated."),
			toolCallResponse("2", "execute_sql", `{"query":"SELECT region, SUM(revenue) FROM sales GROUP BY region"}`),
			contentResponse("Executed: two rows returned."),
			contentResponse("Report: EMEA leads revenue."),
		},
	}
	translator := &fakeTranslator{
		translation: &text2sql.Translation{
			SQL:         "SELECT region, SUM(revenue) FROM sales GROUP BY region",
			Explanation: "Revenue per region.",
		},
	}
	executor := &whmock.Executor{
		ExecuteResult: &warehouse.Result{
			Columns:  []string{"region", "revenue"},
			Rows:     [][]any{{"EMEA", 10}, {"APAC", 7}},
			RowCount: 2,
		},
	}
	store := &fakeHistory{}

	a, err := New(testConfig(), provider,
		WithTokenSource(&fakeTokens{token: "tok-1234"}),
		WithTranslator(translator),
		WithExecutor(executor),
		WithHistory(store),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	report, err := a.Ask(context.Background(), "Top regions by revenue", "sales")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if !report.Executed {
		t.Fatal("Executed = false, want true")
	}
	if report.Result == nil || report.Result.RowCount != 2 {
		t.Fatalf("result = %+v, want 2 rows", report.Result)
	}
	if len(executor.ExecuteCalls) != 1 {
		t.Errorf("executor calls = %d, want 1", len(executor.ExecuteCalls))
	}

	if len(store.runs) != 1 {
		t.Fatalf("history runs = %d, want 1", len(store.runs))
	}
	if store.runs[0].RowCount != 2 {
		t.Errorf("history row count = %d, want 2", store.runs[0].RowCount)
	}
	if !store.runs[0].Executed {
		t.Error("history Executed = false, want true")
	}
}

func TestAsk_AuthFailureBeforeAnyDial(t *testing.T) {
	dials := 0
	a, err := New(testConfig(), &llmmock.Provider{},
		WithTokenSource(&fakeTokens{err: errors.New("invalid management key")}),
		WithDialer(func(_ context.Context, _ mcp.ServerConfig) (mcp.Conn, error) {
			dials++
			return &mcpmock.Conn{}, nil
		}),
		WithHistory(&fakeHistory{}),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	_, err = a.Ask(context.Background(), "any question", "sales")
	if err == nil {
		t.Fatal("expected error")
	}
	if dials != 0 {
		t.Errorf("MCP dials = %d, want 0 after auth failure", dials)
	}
}

func TestAsk_AuthFailureRecordedInHistory(t *testing.T) {
	store := &fakeHistory{}
	a, err := New(testConfig(), &llmmock.Provider{},
		WithTokenSource(&fakeTokens{err: errors.New("invalid management key")}),
		WithHistory(store),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	_, _ = a.Ask(context.Background(), "any question", "sales")

	if len(store.runs) != 1 {
		t.Fatalf("history runs = %d, want 1", len(store.runs))
	}
	if store.runs[0].Status != "error" {
		t.Errorf("status = %q, want error", store.runs[0].Status)
	}
	if !strings.Contains(store.runs[0].Error, "invalid management key") {
		t.Errorf("error = %q", store.runs[0].Error)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1234"}
	a, err := New(testConfig(), &llmmock.Provider{},
		WithTokenSource(tokens),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, err := a.Ask(context.Background(), "   ", "sales"); err == nil {
		t.Fatal("expected error")
	}
	if tokens.calls != 0 {
		t.Errorf("token exchanges = %d, want 0", tokens.calls)
	}
}

func TestAsk_UnknownLayer(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1234"}
	a, err := New(testConfig(), &llmmock.Provider{},
		WithTokenSource(tokens),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	_, err = a.Ask(context.Background(), "question", "marketing")
	var nf *semantic.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if tokens.calls != 0 {
		t.Errorf("token exchanges = %d, want 0 for unresolved layer", tokens.calls)
	}
}

func TestAsk_DefaultLayer(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			contentResponse("SQL explained."),
			contentResponse("Report."),
		},
	}
	a, err := New(testConfig(), provider,
		WithTokenSource(&fakeTokens{token: "tok-1234"}),
		WithTranslator(&fakeTranslator{translation: &text2sql.Translation{SQL: "SELECT 1"}}),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	report, err := a.Ask(context.Background(), "question", "")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if report.Layer.ID != "sales" {
		t.Errorf("layer = %q, want default %q", report.Layer.ID, "sales")
	}
}

func TestAsk_HistoryFailureDoesNotFailRun(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			contentResponse("SQL explained."),
			contentResponse("Report."),
		},
	}
	a, err := New(testConfig(), provider,
		WithTokenSource(&fakeTokens{token: "tok-1234"}),
		WithTranslator(&fakeTranslator{translation: &text2sql.Translation{SQL: "SELECT 1"}}),
		WithHistory(&fakeHistory{recordErr: errors.New("disk full")}),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, err := a.Ask(context.Background(), "question", "sales"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
}

func TestListTools(t *testing.T) {
	conn := &mcpmock.Conn{
		ToolsResult: []mcp.ToolInfo{{Name: "text2sql", Description: "translate"}},
	}
	var dialed mcp.ServerConfig
	cfg := testConfig()
	cfg.MCP.ServerURL = "https://mcp.soliddata.example/mcp"

	a, err := New(cfg, &llmmock.Provider{},
		WithTokenSource(&fakeTokens{token: "tok-1234"}),
		WithDialer(func(_ context.Context, sc mcp.ServerConfig) (mcp.Conn, error) {
			dialed = sc
			return conn, nil
		}),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	tools, err := a.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "text2sql" {
		t.Errorf("tools = %+v", tools)
	}
	if dialed.BearerToken != "tok-1234" {
		t.Errorf("bearer token = %q, want exchanged token", dialed.BearerToken)
	}
	if dialed.URL != cfg.MCP.ServerURL {
		t.Errorf("url = %q, want %q", dialed.URL, cfg.MCP.ServerURL)
	}
	if conn.CallCount("Close") != 1 {
		t.Errorf("Close calls = %d, want 1", conn.CallCount("Close"))
	}
}

func TestLayers(t *testing.T) {
	a, err := New(testConfig(), &llmmock.Provider{},
		WithTokenSource(&fakeTokens{token: "tok-1234"}),
		WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	layers := a.Layers()
	if len(layers) != 2 {
		t.Fatalf("layers = %d, want 2", len(layers))
	}
}
