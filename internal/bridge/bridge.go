// Package bridge exposes the text2sql MCP tool over a plain REST endpoint.
//
// The bridge lets HTTP clients that cannot speak MCP ask questions with a
// single POST: the caller's bearer token is forwarded to the upstream
// SolidData MCP server, a per-request session is opened, the text2sql tool is
// invoked, and the SQL plus explanation come back as JSON. The upstream is
// guarded by a circuit breaker so a dead MCP server fails fast instead of
// tying up request handlers.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/soliddata/solidquery/internal/config"
	"github.com/soliddata/solidquery/internal/health"
	"github.com/soliddata/solidquery/internal/mcp"
	"github.com/soliddata/solidquery/internal/mcp/mcpclient"
	"github.com/soliddata/solidquery/internal/observe"
	"github.com/soliddata/solidquery/internal/resilience"
	"github.com/soliddata/solidquery/internal/text2sql"
)

const (
	// defaultListenAddr is used when the config does not set one.
	defaultListenAddr = ":8080"

	// shutdownTimeout bounds graceful shutdown after the context is cancelled.
	shutdownTimeout = 10 * time.Second
)

// dialFunc establishes an upstream MCP session.
type dialFunc func(ctx context.Context, cfg mcp.ServerConfig) (mcp.Conn, error)

// translateRequest is the JSON body of POST /api/mcp/text2sql.
type translateRequest struct {
	Question         string   `json:"question"`
	SemanticLayerIDs []string `json:"semantic_layer_ids"`
}

// translateResponse is the success body.
type translateResponse struct {
	Message     string `json:"message"`
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// errorResponse is the body of every non-200 reply.
type errorResponse struct {
	Error string `json:"error"`
}

// Server is the REST-to-MCP bridge.
type Server struct {
	cfg     *config.Config
	metrics *observe.Metrics
	dial    dialFunc
	breaker *resilience.CircuitBreaker
}

// Option is a functional option for New.
type Option func(*Server)

// WithDialer injects the upstream MCP session factory.
func WithDialer(d dialFunc) Option {
	return func(s *Server) { s.dial = d }
}

// WithMetrics injects a metrics instance instead of the process-wide default.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a bridge server from the config.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bridge: nil config")
	}
	if cfg.MCP.ServerURL == "" && cfg.MCP.Command == "" {
		return nil, fmt.Errorf("bridge: no upstream MCP server configured")
	}

	s := &Server{
		cfg: cfg,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "soliddata-mcp",
		}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.dial == nil {
		s.dial = func(ctx context.Context, sc mcp.ServerConfig) (mcp.Conn, error) {
			return mcpclient.Connect(ctx, sc)
		}
	}
	return s, nil
}

// Handler returns the bridge's HTTP handler with health, metrics, and
// observability middleware wired in.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/mcp/text2sql", s.handleText2SQL)
	mux.Handle("GET /metrics", promhttp.Handler())

	h := health.New(health.Checker{
		Name: "config",
		Check: func(_ context.Context) error {
			if s.cfg.MCP.ServerURL == "" && s.cfg.MCP.Command == "" {
				return fmt.Errorf("no upstream MCP server configured")
			}
			return nil
		},
	})
	h.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// Run serves the bridge until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Bridge.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("bridge listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// handleText2SQL serves POST /api/mcp/text2sql.
func (s *Server) handleText2SQL(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error: "missing or malformed Authorization header; expected 'Bearer <token>'",
		})
		return
	}

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question must not be empty"})
		return
	}
	if len(req.SemanticLayerIDs) == 0 || req.SemanticLayerIDs[0] == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "semantic_layer_ids must contain at least one id"})
		return
	}
	layerID := req.SemanticLayerIDs[0]

	start := time.Now()
	var tr *text2sql.Translation
	err := s.breaker.Execute(func() error {
		var terr error
		tr, terr = s.translate(r.Context(), token, req.Question, layerID)
		return terr
	})
	s.metrics.TranslateDuration.Record(r.Context(), time.Since(start).Seconds())

	if err != nil {
		s.metrics.RecordToolCall(r.Context(), text2sql.ToolName, "error")
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream MCP server unavailable"})
		case mcpclient.IsUnauthorized(err):
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "upstream rejected the bearer token"})
		default:
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		}
		return
	}
	s.metrics.RecordToolCall(r.Context(), text2sql.ToolName, "ok")

	writeJSON(w, http.StatusOK, translateResponse{
		Message:     fmt.Sprintf("SQL generated for semantic layer %q.", layerID),
		SQL:         tr.SQL,
		Explanation: tr.Explanation,
	})
}

// translate opens a per-request upstream session with the caller's token and
// invokes the text2sql tool.
func (s *Server) translate(ctx context.Context, token, question, layerID string) (*text2sql.Translation, error) {
	conn, err := s.dial(ctx, mcp.ServerConfig{
		Name:        "soliddata",
		Transport:   s.cfg.MCP.Transport,
		Command:     s.cfg.MCP.Command,
		URL:         s.cfg.MCP.ServerURL,
		BearerToken: token,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			slog.Warn("failed to close upstream MCP session", "err", cerr)
		}
	}()

	return text2sql.NewMCPTranslator(conn).Translate(ctx, text2sql.Request{
		Question:        question,
		SemanticLayerID: layerID,
	})
}

// bearerToken extracts the token from the Authorization header. The scheme
// comparison is case-insensitive; an empty token is rejected.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}
