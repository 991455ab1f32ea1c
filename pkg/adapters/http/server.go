package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/internal/presentation/graph"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/registry"
	"github.com/aretw0/stepwise/pkg/runner"
	"github.com/aretw0/stepwise/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed openapi.yaml
var rawSpec []byte

// Server implements ServerInterface over a session service.
type Server struct {
	Service *session.Service
	Streams *StreamManager
	Metrics *Metrics
	Logger  *slog.Logger
}

// Ensure Server implements ServerInterface
var _ ServerInterface = (*Server)(nil)

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithMetrics exposes the given collectors on /metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.Metrics = m
	}
}

// NewHandler creates the HTTP handler for a service. Requests under the
// documented paths are validated against openapi.yaml before they reach the
// server.
func NewHandler(svc *session.Service, opts ...Option) (http.Handler, error) {
	server := &Server{
		Service: svc,
		Streams: NewStreamManager(),
		Logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Metrics == nil {
		server.Metrics = NewMetrics()
	}

	validate, err := RequestValidator(rawSpec)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(server.Metrics.Middleware)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Handle("/metrics", server.Metrics.Handler())

	r.Group(func(api chi.Router) {
		api.Use(validate)
		HandlerFromMux(server, api)
	})
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type startRequest struct {
	RunID string      `json:"run_id,omitempty"`
	Data  domain.Data `json:"data,omitempty"`
}

type updateRequest struct {
	Data domain.StepData `json:"data"`
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "stepwise-http",
		"version":     strings.TrimSpace(stepwise.Version),
		"api_version": APIVersion(),
	})
}

// ListFlows handles GET /flows.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.Service.Flows(r.Context())
	if err != nil {
		s.fail(w, "ListFlows", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"flows": nonNil(flows)})
}

// GetFlowGraph handles GET /flows/{flow}/graph.
func (s *Server) GetFlowGraph(w http.ResponseWriter, r *http.Request, flow string) {
	cfg, err := s.Service.Flow(r.Context(), flow)
	if err != nil {
		s.fail(w, "GetFlowGraph", err)
		return
	}
	writeText(w, graph.GenerateMermaid(cfg, nil))
}

// StartRun handles POST /flows/{flow}/runs.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request, flow string) {
	var body startRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := sanitizeData(body.Data); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, created, err := s.Service.Start(r.Context(), flow, body.RunID, body.Data)
	if err != nil {
		s.fail(w, "StartRun", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.Metrics.runsStarted.WithLabelValues(view.Flow).Inc()
	}
	writeJSON(w, status, view)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Service.Runs(r.Context())
	if err != nil {
		s.fail(w, "ListRuns", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"runs": nonNil(runs)})
}

// GetRun handles GET /runs/{runId}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request, runID string) {
	view, err := s.Service.Get(r.Context(), runID)
	if err != nil {
		s.fail(w, "GetRun", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteRun handles DELETE /runs/{runId}.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request, runID string) {
	if err := s.Service.Delete(r.Context(), runID); err != nil {
		s.fail(w, "DeleteRun", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateRunData handles PATCH /runs/{runId}/data.
func (s *Server) UpdateRunData(w http.ResponseWriter, r *http.Request, runID string) {
	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := sanitizeStep(body.Data); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.do(w, r, runID, session.Operation{Kind: session.OpUpdate, Data: body.Data})
}

// RunAction handles POST /runs/{runId}/actions/{action}.
func (s *Server) RunAction(w http.ResponseWriter, r *http.Request, runID string, action RunAction, params RunActionParams) {
	op := session.Operation{Kind: session.OpKind(action)}
	if action == RunActionGoto {
		if params.Step == nil || *params.Step == "" {
			writeError(w, http.StatusBadRequest, errors.New("goto requires the step query parameter"))
			return
		}
		op.Step = *params.Step
	}
	s.do(w, r, runID, op)
}

// GetRunGraph handles GET /runs/{runId}/graph.
func (s *Server) GetRunGraph(w http.ResponseWriter, r *http.Request, runID string) {
	state, err := s.Service.State(r.Context(), runID)
	if err != nil {
		s.fail(w, "GetRunGraph", err)
		return
	}
	cfg, err := s.Service.Flow(r.Context(), state.Flow)
	if err != nil {
		s.fail(w, "GetRunGraph", err)
		return
	}
	writeText(w, graph.GenerateMermaid(cfg, graph.NewOverlay(cfg, state)))
}

func (s *Server) do(w http.ResponseWriter, r *http.Request, runID string, op session.Operation) {
	res, err := s.Service.Do(r.Context(), runID, op)
	if err != nil {
		s.fail(w, string(op.Kind), err)
		return
	}
	s.Metrics.operations.WithLabelValues(string(op.Kind), fmt.Sprint(res.OK)).Inc()
	if op.Kind == session.OpNext || op.Kind == session.OpComplete {
		if res.OK && res.Status == domain.StatusCompleted {
			s.Metrics.runsCompleted.WithLabelValues(res.Flow).Inc()
		}
	}

	if res.Diff != nil {
		if payload, err := json.Marshal(res.Diff); err == nil {
			s.Streams.Broadcast(runID, string(payload))
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// fail maps service errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "op", op, "err", err)
	} else {
		s.Logger.Debug("request rejected", "op", op, "status", status, "err", err)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, registry.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRunClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCancelNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrUnknownStep), errors.Is(err, session.ErrUnknownOperation):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusInternalServerError
}

func sanitizeData(data domain.Data) error {
	for _, step := range data {
		if err := sanitizeStep(step); err != nil {
			return err
		}
	}
	return nil
}

// sanitizeStep applies the terminal input policy to string values.
func sanitizeStep(step domain.StepData) error {
	for key, value := range step {
		text, ok := value.(string)
		if !ok {
			continue
		}
		clean, err := runner.SanitizeInput(text)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		step[key] = clean
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // RunID -> Set of Channels
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

func (sm *StreamManager) Subscribe(runID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[runID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		}
	}
}

// Subscribers reports how many streams follow runID.
func (sm *StreamManager) Subscribers(runID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[runID])
}

func (sm *StreamManager) Broadcast(runID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[runID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			slog.Warn("SSE: Client buffer full, dropping message", "run_id", runID)
		}
	}
}

// SubscribeEvents handles GET /runs/{runId}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request, runID string, params SubscribeEventsParams) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}
	if _, err := s.Service.State(r.Context(), runID); err != nil {
		s.fail(w, "SubscribeEvents", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(runID)
	defer cancel()
	s.Logger.Info("SSE: subscribed", "run_id", runID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	var watchList []string
	if params.Watch != nil {
		watchList = strings.Split(*params.Watch, ",")
	}

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE: client disconnected", "run_id", runID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watchList) > 0 && !watched(msg, watchList) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// watched reports whether a serialized diff touches any watched section.
func watched(msg string, watchList []string) bool {
	var diff domain.StateDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watchList {
		switch strings.TrimSpace(field) {
		case "data":
			if len(diff.Data) > 0 {
				return true
			}
		case "status":
			if diff.Status != nil {
				return true
			}
		case "step":
			if diff.CurrentStepID != nil || diff.Completed != nil {
				return true
			}
		case "errors":
			if len(diff.Errors) > 0 || diff.Attempted != nil {
				return true
			}
		}
	}
	return false
}
