package text2sql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/soliddata/solidquery/internal/resilience"
)

// errServiceUnavailable marks a 503 so the retry policy can recognise it.
var errServiceUnavailable = errors.New("text2sql: service unavailable")

// restTranslator POSTs questions to a REST text2sql endpoint. Semantic layers
// sometimes return 503 while their model finishes loading, so requests are
// retried on that status with an escalating backoff.
type restTranslator struct {
	http    *resty.Client
	url     string
	token   string
	backoff []time.Duration
}

var _ Translator = (*restTranslator)(nil)

// RESTOption is a functional option for the REST translator.
type RESTOption func(*restTranslator)

// WithBackoff overrides the default 5s/15s/30s retry schedule.
func WithBackoff(backoff []time.Duration) RESTOption {
	return func(t *restTranslator) {
		t.backoff = backoff
	}
}

// WithRESTClient replaces the underlying resty client. Intended for tests.
func WithRESTClient(rc *resty.Client) RESTOption {
	return func(t *restTranslator) {
		t.http = rc
	}
}

// NewRESTTranslator creates a Translator for a REST text2sql endpoint,
// authenticated with the given bearer token.
func NewRESTTranslator(url, bearerToken string, opts ...RESTOption) Translator {
	t := &restTranslator{
		http:    resty.New().SetTimeout(60 * time.Second),
		url:     url,
		token:   bearerToken,
		backoff: resilience.DefaultBackoff,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Translate implements Translator.
func (t *restTranslator) Translate(ctx context.Context, req Request) (*Translation, error) {
	if req.Question == "" {
		return nil, errors.New("text2sql: question must not be empty")
	}
	if req.SemanticLayerID == "" {
		return nil, errors.New("text2sql: semantic layer id must not be empty")
	}

	cfg := resilience.RetryConfig{
		Name:      "text2sql-rest",
		Backoff:   t.backoff,
		Retryable: func(err error) bool { return errors.Is(err, errServiceUnavailable) },
	}

	return resilience.Retry(ctx, cfg, func(ctx context.Context) (*Translation, error) {
		resp, err := t.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetAuthToken(t.token).
			SetBody(map[string]any{
				"question":           req.Question,
				"semantic_layer_ids": []string{req.SemanticLayerID},
			}).
			Post(t.url)
		if err != nil {
			return nil, fmt.Errorf("text2sql: rest request: %w", err)
		}

		switch {
		case resp.StatusCode() == http.StatusServiceUnavailable:
			return nil, fmt.Errorf("%w: status 503: %s", errServiceUnavailable, strings.TrimSpace(resp.String()))
		case resp.StatusCode() == http.StatusUnauthorized:
			return nil, errors.New("text2sql: rest endpoint returned 401 Unauthorized; the bearer token may have expired, or TEXT2SQL_URL points at a different environment than the auth endpoint")
		case resp.IsError():
			return nil, fmt.Errorf("text2sql: rest endpoint returned status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
		}

		tr := Parse(resp.String())
		if tr.SQL == "" {
			return nil, fmt.Errorf("text2sql: rest endpoint returned no SQL (payload: %.200s)", resp.String())
		}
		return tr, nil
	})
}
