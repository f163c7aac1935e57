package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"infraops/pkg/dispatch"
	"infraops/pkg/logx"
	"infraops/pkg/mcp"
	"infraops/pkg/persistence"
	"infraops/pkg/tools"
	"infraops/pkg/version"
)

// EngineLister exposes the engine subprocess's own tool inventory, served
// alongside the registry descriptors on /tools.
type EngineLister interface {
	ListTools(ctx context.Context) ([]mcp.ToolInfo, error)
}

// Server is the HTTP surface: the WebSocket chat endpoint, the stateless NLP
// endpoints, direct resource endpoints that bypass the router, and the
// operational endpoints (health, metrics, logs, audit).
type Server struct {
	chat       *Service
	registry   *tools.Registry
	dispatcher *dispatch.Dispatcher
	engine     EngineLister
	audit      *persistence.Store
	metrics    http.Handler
	logger     *logx.Logger
}

// NewServer wires the surface together. engine, audit, and metrics may be
// nil; the corresponding endpoints degrade gracefully.
func NewServer(chat *Service, registry *tools.Registry, dispatcher *dispatch.Dispatcher) *Server {
	return &Server{
		chat:       chat,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logx.NewLogger("http"),
	}
}

// SetEngineLister installs the engine tool inventory source.
func (s *Server) SetEngineLister(engine EngineLister) { s.engine = engine }

// SetAuditStore installs the audit log read endpoint's backing store.
func (s *Server) SetAuditStore(store *persistence.Store) { s.audit = store }

// SetMetricsHandler installs the /metrics handler.
func (s *Server) SetMetricsHandler(h http.Handler) { s.metrics = h }

// RegisterRoutes sets up HTTP routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.chat.HandleWS)
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/tools", s.handleTools)
	mux.HandleFunc("/nlp", s.handleNLP)
	mux.HandleFunc("/nlp/execute", s.handleNLPExecute)
	mux.HandleFunc("/terraform/s3", s.resourceHandler(tools.ToolCreateS3Bucket, tools.ToolDestroyS3Bucket))
	mux.HandleFunc("/terraform/ec2", s.resourceHandler(tools.ToolCreateEC2Instance, tools.ToolDestroyEC2Instance))
	mux.HandleFunc("/terraform/lambda", s.resourceHandler(tools.ToolCreateLambdaFunction, tools.ToolDestroyLambdaFunction))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/audit", s.handleAudit)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
}

// StartServer runs the HTTP server until ctx is cancelled.
func (s *Server) StartServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("listening on %s", server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// dispatchToJSON runs an intent and maps the error taxonomy onto HTTP status
// codes.
func (s *Server) dispatchToJSON(w http.ResponseWriter, r *http.Request, intent tools.Intent) {
	result, err := s.dispatcher.Dispatch(r.Context(), intent)
	if err != nil {
		var unknown *dispatch.UnknownToolError
		var invalid *tools.ValidationError
		switch {
		case errors.As(err, &unknown):
			s.writeError(w, http.StatusNotFound, unknown.Error())
		case errors.As(err, &invalid):
			s.writeError(w, http.StatusBadRequest, invalid.Error())
		default:
			s.writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

// handlePing implements GET /ping: a health probe through to the engine
// subprocess.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.dispatchToJSON(w, r, tools.Intent{Tool: tools.ToolPing, Args: map[string]any{}})
}

// handleTools implements GET /tools: registry descriptors, plus the engine's
// own inventory when a lister is wired.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{"tools": s.registry.List()}
	if s.engine != nil {
		engineTools, err := s.engine.ListTools(r.Context())
		if err != nil {
			s.logger.Warn("engine tool listing failed: %v", err)
		} else {
			response["engine"] = engineTools
		}
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleNLP implements POST /nlp: classify only, never execute.
func (s *Server) handleNLP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	intent, _ := s.chat.router.Route(r.Context(), req.Message)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tool":                 intent.Tool,
		"args":                 intent.Args,
		"description":          dispatch.ConfirmationPrompt(intent),
		"requiresConfirmation": dispatch.RequiresConfirmation(intent),
	})
}

// handleNLPExecute implements POST /nlp/execute: the synchronous phase-2
// channel. Rejects unless userConfirmed is exactly true.
func (s *Server) handleNLPExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Tool          string         `json:"tool"`
		Args          map[string]any `json:"args"`
		UserConfirmed bool           `json:"userConfirmed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tool == "" {
		s.writeError(w, http.StatusBadRequest, "tool is required")
		return
	}
	if !req.UserConfirmed {
		s.writeError(w, http.StatusBadRequest, "userConfirmed must be true")
		return
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}
	s.dispatchToJSON(w, r, tools.Intent{Tool: req.Tool, Args: req.Args})
}

// resourceHandler builds the direct create/destroy endpoint for one resource
// kind. These bypass the router and the confirmation gateway; the HTTP verb
// is the confirmation.
func (s *Server) resourceHandler(createTool, destroyTool string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var toolName string
		switch r.Method {
		case http.MethodPost:
			toolName = createTool
		case http.MethodDelete:
			toolName = destroyTool
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		args := map[string]any{}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
				s.writeError(w, http.StatusBadRequest, "malformed request body")
				return
			}
		}
		s.dispatchToJSON(w, r, tools.Intent{Tool: toolName, Args: args})
	}
}

// handleHealthz implements GET /healthz: process liveness only, no engine
// round trip.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
	})
}

// handleLogs implements GET /api/logs?component=X&since=RFC3339.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}
	s.writeJSON(w, http.StatusOK, logx.Recent(r.URL.Query().Get("component"), since))
}

// handleAudit implements GET /api/audit?limit=N.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.audit == nil {
		s.writeError(w, http.StatusNotFound, "audit log not enabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []persistence.AuditEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}
