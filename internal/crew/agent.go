// Package crew runs the sequential agent pipeline that answers a question:
// a SQL analyst generates the query through the text2sql tool, an optional
// executor runs it in the warehouse, and a report writer summarizes the
// outcome for a stakeholder.
package crew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soliddata/solidquery/pkg/provider/llm"
)

// maxToolIterations bounds the tool-call loop within a single task. A task
// that keeps requesting tools beyond this is treated as failed rather than
// allowed to spin.
const maxToolIterations = 4

// Agent executes tasks with one LLM backend and a fixed tool set.
type Agent struct {
	// Name identifies the agent in logs and metrics.
	Name string

	// Role, Goal, and Backstory form the agent's system prompt.
	Role      string
	Goal      string
	Backstory string

	// Provider is the LLM backend. Must not be nil.
	Provider llm.Provider

	// Temperature and MaxTokens are passed through on every completion.
	Temperature float64
	MaxTokens   int

	// Tools are the capabilities offered to the model. May be empty.
	Tools []Tool
}

// systemPrompt renders the agent's persona.
func (a *Agent) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", a.Role)
	fmt.Fprintf(&b, "Your goal: %s\n", a.Goal)
	fmt.Fprintf(&b, "Background: %s", a.Backstory)
	return b.String()
}

// Execute runs one task description against the agent's model, dispatching
// tool calls until the model produces a final text answer.
func (a *Agent) Execute(ctx context.Context, description string) (string, error) {
	if a.Provider == nil {
		return "", fmt.Errorf("crew: agent %s has no LLM provider", a.Name)
	}

	toolDefs := make([]llm.ToolDefinition, 0, len(a.Tools))
	toolsByName := make(map[string]Tool, len(a.Tools))
	for _, t := range a.Tools {
		def := t.Definition()
		toolDefs = append(toolDefs, def)
		toolsByName[def.Name] = t
	}

	messages := []llm.Message{{Role: "user", Content: description}}

	for iteration := 0; iteration <= maxToolIterations; iteration++ {
		resp, err := a.Provider.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: a.systemPrompt(),
			Messages:     messages,
			Tools:        toolDefs,
			Temperature:  a.Temperature,
			MaxTokens:    a.MaxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("crew: agent %s completion: %w", a.Name, err)
		}
		if resp == nil {
			return "", fmt.Errorf("crew: agent %s: empty completion response", a.Name)
		}

		if len(resp.ToolCalls) == 0 {
			answer := strings.TrimSpace(resp.Content)
			if answer == "" {
				return "", fmt.Errorf("crew: agent %s returned an empty answer", a.Name)
			}
			return answer, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			tool, ok := toolsByName[tc.Name]
			if !ok {
				messages = append(messages, llm.Message{
					Role:       "tool",
					ToolCallID: tc.ID,
					Content:    fmt.Sprintf(`{"error": "unknown tool %s"}`, tc.Name),
				})
				continue
			}

			slog.Debug("dispatching tool call",
				"agent", a.Name,
				"tool", tc.Name,
				"iteration", iteration)

			output, err := tool.Call(ctx, tc.Arguments)
			if err != nil {
				return "", fmt.Errorf("crew: agent %s tool %s: %w", a.Name, tc.Name, err)
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    output,
			})
		}
	}

	return "", errors.New("crew: agent " + a.Name + " exceeded the tool-call iteration limit")
}
