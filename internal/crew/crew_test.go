package crew

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soliddata/solidquery/internal/mcp"
	mcpmock "github.com/soliddata/solidquery/internal/mcp/mock"
	"github.com/soliddata/solidquery/internal/text2sql"
	whmock "github.com/soliddata/solidquery/internal/warehouse/mock"
	"github.com/soliddata/solidquery/pkg/provider/llm"
	llmmock "github.com/soliddata/solidquery/pkg/provider/llm/mock"
)

func testTranslator() text2sql.Translator {
	conn := &mcpmock.Conn{
		CallResults: map[string]*mcp.ToolResult{
			"text2sql": {Content: `{"sql": "SELECT 1", "explanation": "trivial"}`},
		},
	}
	return text2sql.NewMCPTranslator(conn)
}

func TestBuild_NoWarehouseTwoTasks(t *testing.T) {
	c, err := Build(BuildParams{
		Question:        "how many customers?",
		SemanticLayerID: "layer-1",
		Provider:        &llmmock.Provider{},
		Translator:      testTranslator(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(c.Tasks))
	}
	if c.Tasks[0].Name != "generate_sql" || c.Tasks[1].Name != "explain_and_report" {
		t.Errorf("task order = %s, %s", c.Tasks[0].Name, c.Tasks[1].Name)
	}
}

func TestBuild_WarehouseThreeTasks(t *testing.T) {
	c, err := Build(BuildParams{
		Question:        "how many customers?",
		SemanticLayerID: "layer-1",
		Provider:        &llmmock.Provider{},
		Translator:      testTranslator(),
		Executor:        &whmock.Executor{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(c.Tasks))
	}
	if c.Tasks[1].Name != "execute_sql" {
		t.Errorf("middle task = %s, want execute_sql", c.Tasks[1].Name)
	}
	// The reporter's context must include both earlier tasks.
	if got := len(c.Tasks[2].Context); got != 2 {
		t.Errorf("reporter context tasks = %d, want 2", got)
	}
}

func TestBuild_Temperatures(t *testing.T) {
	c, err := Build(BuildParams{
		Question:        "q",
		SemanticLayerID: "l",
		Provider:        &llmmock.Provider{},
		Translator:      testTranslator(),
		Executor:        &whmock.Executor{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Tasks[0].Agent.Temperature; got != 0.3 {
		t.Errorf("analyst temperature = %v, want 0.3", got)
	}
	if got := c.Tasks[1].Agent.Temperature; got != 0.1 {
		t.Errorf("executor temperature = %v, want 0.1", got)
	}
	if got := c.Tasks[2].Agent.Temperature; got != 0.3 {
		t.Errorf("reporter temperature = %v, want 0.3", got)
	}
	for i, task := range c.Tasks {
		if task.Agent.MaxTokens != 8192 {
			t.Errorf("task %d max tokens = %d, want 8192", i, task.Agent.MaxTokens)
		}
	}
}

func TestBuild_Validation(t *testing.T) {
	base := BuildParams{
		Question:        "q",
		SemanticLayerID: "l",
		Provider:        &llmmock.Provider{},
		Translator:      testTranslator(),
	}

	tests := []struct {
		name   string
		mutate func(*BuildParams)
	}{
		{"empty question", func(p *BuildParams) { p.Question = "" }},
		{"empty layer", func(p *BuildParams) { p.SemanticLayerID = "" }},
		{"nil provider", func(p *BuildParams) { p.Provider = nil }},
		{"nil translator", func(p *BuildParams) { p.Translator = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			if _, err := Build(p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCrewRun_Sequential(t *testing.T) {
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			// Analyst: call text2sql, then answer.
			{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "text2sql", Arguments: `{"question":"how many customers?"}`}}},
			{Content: "SELECT 1 -- counts customers"},
			// Reporter answers directly.
			{Content: "The query counts all customers."},
		},
	}

	c, err := Build(BuildParams{
		Question:        "how many customers?",
		SemanticLayerID: "layer-1",
		Provider:        provider,
		Translator:      testTranslator(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "The query counts all customers." {
		t.Errorf("output = %q", out)
	}
	if got := c.Tasks[0].Output(); got != "SELECT 1 -- counts customers" {
		t.Errorf("analyst output = %q", got)
	}
}

func TestCrewRun_Deterministic(t *testing.T) {
	// With fixed mock responses, two runs must produce byte-identical reports.
	run := func() string {
		provider := &llmmock.Provider{
			CompleteResponses: []*llm.CompletionResponse{
				{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "text2sql", Arguments: `{"question":"q"}`}}},
				{Content: "SELECT region, SUM(amount) FROM sales GROUP BY region"},
				{ToolCalls: []llm.ToolCall{{ID: "c2", Name: "execute_sql", Arguments: `{"query":"SELECT region, SUM(amount) FROM sales GROUP BY region"}`}}},
				{Content: `[{"region": "EMEA", "sum": 12}]`},
				{Content: "EMEA leads with a total of 12."},
			},
		}
		ex := &whmock.Executor{}
		c, err := Build(BuildParams{
			Question:        "q",
			SemanticLayerID: "l",
			Provider:        provider,
			Translator:      testTranslator(),
			Executor:        ex,
		})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		out, err := c.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return out
	}

	first := run()
	second := run()
	if first != second {
		t.Errorf("runs differ:\n%q\n%q", first, second)
	}
}

func TestCrewRun_RetriesOnceThenFails(t *testing.T) {
	provider := &llmmock.Provider{CompleteErr: errors.New("model overloaded")}
	c, err := Build(BuildParams{
		Question:        "q",
		SemanticLayerID: "l",
		Provider:        provider,
		Translator:      testTranslator(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	// First task: initial attempt + one retry.
	if got := len(provider.CompleteCalls); got != 2 {
		t.Errorf("complete calls = %d, want 2", got)
	}
}

type recordingRecorder struct {
	tasks []string
	errs  []error
}

func (r *recordingRecorder) TaskCompleted(name string, d time.Duration, err error) {
	r.tasks = append(r.tasks, name)
	r.errs = append(r.errs, err)
}

func TestCrewRun_RecorderInvoked(t *testing.T) {
	rec := &recordingRecorder{}
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "answer"},
	}
	c, err := Build(BuildParams{
		Question:        "q",
		SemanticLayerID: "l",
		Provider:        provider,
		Translator:      testTranslator(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Recorder = rec

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.tasks) != 2 {
		t.Fatalf("recorded tasks = %v", rec.tasks)
	}
	if rec.tasks[0] != "generate_sql" || rec.tasks[1] != "explain_and_report" {
		t.Errorf("recorded order = %v", rec.tasks)
	}
}
