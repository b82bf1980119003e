// Package http implements the gateway's HTTP transport: the JSON-RPC
// request endpoint, session lifecycle over the Mcp-Session-Id header, and
// the operational endpoints (/healthz, /stats). Push transports (SSE,
// duplex websocket) are mounted as handlers so they share the listener.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/component"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/dispatch"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/gateway"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/health"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/session"
)

// ServerConfig holds all configuration needed to construct a Server
type ServerConfig struct {
	Port           int
	BasePath       string // JSON-RPC endpoint path (default /mcp)
	MaxRequestSize int64  // Request body limit in bytes (default 1MB)
	EnableCORS     bool
	CORSOrigins    []string

	Sessions *session.Manager
	Methods  *dispatch.Registry

	// Push serves GET on BasePath (the SSE stream). Optional.
	Push http.Handler
	// Duplex serves the websocket upgrade on DuplexPath. Optional.
	Duplex     http.Handler
	DuplexPath string

	// Health backs /healthz. Optional.
	Health *health.Monitor
	// StatsProviders back /stats. Optional.
	StatsProviders []component.Discoverable

	Logger *slog.Logger
}

// Server is the HTTP gateway component. It terminates the request side of
// the protocol: envelope parsing, session resolution, method dispatch and
// error mapping. One Server owns the listener for all transports.
type Server struct {
	config ServerConfig
	logger *slog.Logger

	server *http.Server

	// Lifecycle management
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex

	// Activity tracking for DataFlow
	requestsTotal   atomic.Int64
	requestsSuccess atomic.Int64
	requestsFailed  atomic.Int64
	bytesReceived   atomic.Int64
	bytesSent       atomic.Int64
	lastActivity    atomic.Value // stores time.Time
}

var _ component.Discoverable = (*Server)(nil)
var _ component.LifecycleComponent = (*Server)(nil)

// NewServer creates the HTTP gateway from config, applying defaults for
// zero values.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "/mcp"
	}
	if cfg.MaxRequestSize == 0 {
		cfg.MaxRequestSize = 1024 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		config:    cfg,
		logger:    cfg.Logger.With("component", "http-gateway"),
		startTime: time.Now(),
	}
	s.lastActivity.Store(time.Now())
	return s
}

// Initialize validates the server configuration
func (s *Server) Initialize() error {
	if s.config.Sessions == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Server", "Initialize",
			"session manager is required")
	}
	if s.config.Methods == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Server", "Initialize",
			"method registry is required")
	}
	if s.config.Port < 1 || s.config.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Server", "Initialize",
			fmt.Sprintf("invalid port %d", s.config.Port))
	}
	if s.config.EnableCORS && len(s.config.CORSOrigins) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Server", "Initialize",
			"enable_cors requires explicit cors_origins configuration")
	}
	return nil
}

// Handler returns the full route table. Exposed for tests and for embedding
// behind an external listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.BasePath, s.handleProtocol)
	if s.config.Duplex != nil {
		path := s.config.DuplexPath
		if path == "" {
			path = "/stream"
		}
		mux.Handle(path, s.config.Duplex)
	}
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Start begins serving on the configured port
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.startTime = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", "error", err)
		}
	}()

	s.logger.Info("http gateway started",
		"port", s.config.Port, "base_path", s.config.BasePath, "methods", s.config.Methods.Methods())
	return nil
}

// Stop gracefully shuts down the listener, draining in-flight requests
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	server := s.server
	s.server = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "http shutdown")
	}
	return nil
}

// handleProtocol routes the protocol endpoint by HTTP method: POST carries
// JSON-RPC, GET opens the push stream, DELETE terminates the session.
func (s *Server) handleProtocol(w http.ResponseWriter, r *http.Request) {
	requestID := getOrGenerateRequestID(r)
	w.Header().Set("X-Request-ID", requestID)

	if s.config.EnableCORS {
		s.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	switch r.Method {
	case http.MethodPost:
		s.handleRPC(w, r, requestID)
	case http.MethodGet:
		if s.config.Push == nil {
			s.writeError(w, http.StatusMethodNotAllowed, "no push transport configured")
			return
		}
		s.config.Push.ServeHTTP(w, r)
	case http.MethodDelete:
		s.handleTerminate(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRPC processes one JSON-RPC request.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request, requestID string) {
	s.requestsTotal.Add(1)
	s.lastActivity.Store(time.Now())

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxRequestSize+1))
	if err != nil {
		s.requestsFailed.Add(1)
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxRequestSize {
		s.requestsFailed.Add(1)
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", s.config.MaxRequestSize))
		return
	}
	s.bytesReceived.Add(int64(len(body)))

	var req gateway.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.requestsFailed.Add(1)
		s.writeResponse(w, http.StatusBadRequest,
			gateway.NewErrorResponse(nil, errors.WrapInvalid(errors.ErrParse, "Server", "handleRPC", "malformed JSON")))
		return
	}
	if err := req.Validate(); err != nil {
		s.requestsFailed.Add(1)
		s.writeResponse(w, http.StatusBadRequest, gateway.NewErrorResponse(req.ID, err))
		return
	}

	sess, err := s.resolveSession(r, req.Method)
	if err != nil {
		s.requestsFailed.Add(1)
		s.logger.Debug("session rejected",
			"request_id", requestID, "method", req.Method, "error", err)
		s.writeResponse(w, gateway.HTTPStatus(err), gateway.NewErrorResponse(req.ID, err))
		return
	}
	if sess != nil {
		w.Header().Set(gateway.HeaderSessionID, sess.ID())
	}

	result, err := s.config.Methods.Dispatch(r.Context(), req.Method, sess, req.Params)

	if req.IsNotification() {
		// Notifications get no response body regardless of outcome
		if err != nil {
			s.requestsFailed.Add(1)
			s.logger.Warn("notification handler failed",
				"request_id", requestID, "method", req.Method, "error", err)
		} else {
			s.requestsSuccess.Add(1)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if err != nil {
		s.requestsFailed.Add(1)
		s.logger.Debug("method failed",
			"request_id", requestID, "method", req.Method, "error", err)
		// Method-level failures still answer 200 with a JSON-RPC error object
		s.writeResponse(w, http.StatusOK, gateway.NewErrorResponse(req.ID, err))
		return
	}

	s.requestsSuccess.Add(1)
	s.writeResponse(w, http.StatusOK, gateway.NewResponse(req.ID, result))
}

// resolveSession maps the Mcp-Session-Id header to a live session. The
// initialize method mints a session when no token is presented and resumes a
// valid one; a stale token is rejected so the client learns its session is
// gone and retries initialize without the header. Every other method runs
// with the validated session, or with none when no token is presented.
func (s *Server) resolveSession(r *http.Request, method string) (*session.Session, error) {
	token := r.Header.Get(gateway.HeaderSessionID)

	if method == "initialize" {
		if token != "" {
			return s.config.Sessions.Validate(token)
		}
		sess, _, err := s.config.Sessions.CreateOrResume("")
		return sess, err
	}

	if token == "" {
		return nil, nil
	}
	return s.config.Sessions.Validate(token)
}

// handleTerminate ends the presented session. Idempotent: an unknown token
// still answers 204 since the end state is identical.
func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(gateway.HeaderSessionID)
	if token == "" {
		s.writeError(w, http.StatusBadRequest, "Mcp-Session-Id header required")
		return
	}

	s.config.Sessions.Terminate(token)
	s.lastActivity.Store(time.Now())
	w.WriteHeader(http.StatusNoContent)
}

// handleHealthz reports aggregate component health.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.config.Health == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status := s.config.Health.AggregateHealth("gateway")
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, status)
}

// handleStats reports per-component metadata, health and flow metrics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type componentStats struct {
		Meta   component.Metadata     `json:"meta"`
		Health component.HealthStatus `json:"health"`
		Flow   component.FlowMetrics  `json:"flow"`
	}

	stats := make(map[string]componentStats, len(s.config.StatsProviders)+1)
	for _, p := range append(s.config.StatsProviders, s) {
		meta := p.Meta()
		stats[meta.Name] = componentStats{Meta: meta, Health: p.Health(), Flow: p.DataFlow()}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessions":   s.config.Sessions.Count(),
		"components": stats,
	})
}

// applyCORS sets CORS headers when the request origin is allowed.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	for _, allowed := range s.config.CORSOrigins {
		if allowed == "*" || allowed == origin {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				"Content-Type, Mcp-Session-Id, Last-Event-ID, X-Request-ID")
			w.Header().Set("Access-Control-Expose-Headers", "Mcp-Session-Id, X-Request-ID")
			return
		}
	}
}

// writeResponse serializes a JSON-RPC response envelope.
func (s *Server) writeResponse(w http.ResponseWriter, status int, resp gateway.Response) {
	s.writeJSON(w, status, resp)
}

// writeError answers a transport-level failure outside the JSON-RPC
// envelope. Messages are static; internal detail never reaches the wire.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message, "status": status})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("failed to write response", "error", err)
		return
	}
	s.bytesSent.Add(int64(len(data)))
}

// getOrGenerateRequestID returns the client's X-Request-ID or mints one.
func getOrGenerateRequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// Meta returns the component metadata
func (s *Server) Meta() component.Metadata {
	return component.Metadata{
		Name:        "http-gateway",
		Type:        "gateway",
		Description: fmt.Sprintf("HTTP JSON-RPC gateway on port %d", s.config.Port),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (s *Server) Health() component.HealthStatus {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(s.requestsFailed.Load()),
		Uptime:     time.Since(s.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (s *Server) DataFlow() component.FlowMetrics {
	total := s.requestsTotal.Load()

	var perSecond, bytesPerSecond float64
	if uptime := time.Since(s.startTime).Seconds(); uptime > 0 {
		perSecond = float64(total) / uptime
		bytesPerSecond = float64(s.bytesReceived.Load()+s.bytesSent.Load()) / uptime
	}

	var errorRate float64
	if total > 0 {
		errorRate = float64(s.requestsFailed.Load()) / float64(total)
	}

	lastActivity, _ := s.lastActivity.Load().(time.Time)

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}
