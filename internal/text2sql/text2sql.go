// Package text2sql turns natural-language questions into SQL by calling the
// SolidData text2sql tool.
//
// Two transports are provided: a direct MCP tool call ([NewMCPTranslator])
// and a REST endpoint ([NewRESTTranslator]). Both return the same
// [Translation] shape and both parse the service payload liberally, because
// the tool has been observed to answer with a structured JSON object, a
// fenced SQL block with prose, or plain SQL text depending on deployment.
package text2sql

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// Request is one translation request.
type Request struct {
	// Question is the natural-language question.
	Question string

	// SemanticLayerID selects the semantic layer the question is asked against.
	SemanticLayerID string
}

// Translation is the parsed outcome of a text2sql call.
type Translation struct {
	// SQL is the generated statement. Never empty on success.
	SQL string

	// Explanation describes how the SQL answers the question. May be empty.
	Explanation string

	// Raw is the unparsed service payload, retained for debugging and for
	// feeding downstream agents verbatim.
	Raw string
}

// Translator converts questions to SQL.
type Translator interface {
	Translate(ctx context.Context, req Request) (*Translation, error)
}

var fencedSQL = regexp.MustCompile("(?s)```sql\\s*(.*?)```")

// Parse extracts SQL and explanation from a text2sql payload. It accepts a
// JSON object with sql/explanation keys (snake or camel case), a fenced
// ```sql block followed by prose, or raw text. Parse never fails: when no
// structure is recognised the whole payload becomes the SQL.
func Parse(payload string) *Translation {
	t := &Translation{Raw: payload}
	trimmed := strings.TrimSpace(payload)

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		for _, key := range []string{"sql", "SQL", "query"} {
			if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
				t.SQL = strings.TrimSpace(s)
				break
			}
		}
		for _, key := range []string{"explanation", "Explanation", "message", "description"} {
			if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
				t.Explanation = strings.TrimSpace(s)
				break
			}
		}
		if t.SQL != "" {
			return t
		}
		// An object without a sql field: fall through and treat message-ish
		// content as prose around a possible fenced block.
		if t.Explanation != "" {
			trimmed = t.Explanation
		}
	}

	if m := fencedSQL.FindStringSubmatch(trimmed); m != nil {
		t.SQL = strings.TrimSpace(m[1])
		prose := strings.TrimSpace(fencedSQL.ReplaceAllString(trimmed, ""))
		if prose != "" {
			t.Explanation = prose
		}
		return t
	}

	t.SQL = trimmed
	return t
}
