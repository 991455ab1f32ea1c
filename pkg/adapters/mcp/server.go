package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/internal/presentation/graph"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/runner"
	"github.com/aretw0/stepwise/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FlowsURI is the resource listing the available flows.
const FlowsURI = "stepwise://flows"

// RunResponse aligns with the OpenAPI RunResult schema so both adapters
// return the same structure.
type RunResponse struct {
	session.View
	OK   bool              `json:"ok" jsonschema_description:"Whether the requested transition happened"`
	Diff *domain.StateDiff `json:"diff,omitempty" jsonschema_description:"Changes applied to the stored run"`
}

// FlowList is the result of list_flows.
type FlowList struct {
	Flows []string `json:"flows" jsonschema_description:"Flows a run can be started from"`
}

// StartArgs are the arguments of start_run.
type StartArgs struct {
	Flow  string `json:"flow"`
	RunID string `json:"run_id,omitempty"`
	Data  string `json:"data,omitempty"`
}

// RunArgs identify a stored run.
type RunArgs struct {
	RunID string `json:"run_id"`
}

// UpdateArgs are the arguments of update_step.
type UpdateArgs struct {
	RunID string `json:"run_id"`
	Data  string `json:"data"`
}

// ActionArgs are the arguments of run_action.
type ActionArgs struct {
	RunID  string `json:"run_id"`
	Action string `json:"action"`
	Step   string `json:"step,omitempty"`
}

// Actions accepted by run_action.
var Actions = []string{"next", "back", "skip", "goto", "complete", "cancel", "reset"}

// Server exposes a session service as an MCP server.
type Server struct {
	service   *session.Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(svc *session.Service, opts ...Option) *Server {
	s := &Server{
		service:   svc,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("stepwise-mcp", strings.TrimSpace(stepwise.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the wizard flows a run can be started from."),
		mcp.WithOutputSchema[FlowList](),
	), mcp.NewStructuredToolHandler(s.handleListFlows))

	s.mcpServer.AddTool(mcp.NewTool("start_run",
		mcp.WithDescription("Start a run of a flow, or resume it when the run id already exists."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("Flow name")),
		mcp.WithString("run_id", mcp.Description("Run id to create or resume (generated when omitted)")),
		mcp.WithString("data", mcp.Description("JSON object of initial data keyed by step id")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleStartRun))

	s.mcpServer.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Show the active step of a run: fields, data, errors and available controls."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run id")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetRun))

	s.mcpServer.AddTool(mcp.NewTool("update_step",
		mcp.WithDescription("Merge values into the active step. Errors are only reported after next or complete was attempted."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run id")),
		mcp.WithString("data", mcp.Required(), mcp.Description("JSON object of field values")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpdateStep))

	s.mcpServer.AddTool(mcp.NewTool("run_action",
		mcp.WithDescription("Press a wizard control. next becomes save on the last step; goto needs a step id."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run id")),
		mcp.WithString("action", mcp.Required(), mcp.Enum(Actions...), mcp.Description("Control to press")),
		mcp.WithString("step", mcp.Description("Target step of goto")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleRunAction))

	s.mcpServer.AddTool(mcp.NewTool("delete_run",
		mcp.WithDescription("Delete a stored run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run id")),
	), s.handleDeleteRun)

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Mermaid diagram of a flow, with progress when a run id is given."),
		mcp.WithString("flow", mcp.Description("Flow name")),
		mcp.WithString("run_id", mcp.Description("Run id")),
	), s.handleGetGraph)
}

func (s *Server) handleListFlows(ctx context.Context, _ mcp.CallToolRequest, _ map[string]any) (FlowList, error) {
	flows, err := s.service.Flows(ctx)
	if err != nil {
		return FlowList{}, err
	}
	if flows == nil {
		flows = []string{}
	}
	return FlowList{Flows: flows}, nil
}

func (s *Server) handleStartRun(ctx context.Context, _ mcp.CallToolRequest, args StartArgs) (RunResponse, error) {
	var initial domain.Data
	if args.Data != "" {
		if err := json.Unmarshal([]byte(args.Data), &initial); err != nil {
			return RunResponse{}, fmt.Errorf("invalid data: %w", err)
		}
		for id, step := range initial {
			if err := sanitize(step); err != nil {
				return RunResponse{}, fmt.Errorf("step %s: %w", id, err)
			}
		}
	}
	view, _, err := s.service.Start(ctx, args.Flow, args.RunID, initial)
	if err != nil {
		return RunResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return RunResponse{View: *view, OK: true}, nil
}

func (s *Server) handleGetRun(ctx context.Context, _ mcp.CallToolRequest, args RunArgs) (RunResponse, error) {
	view, err := s.service.Get(ctx, args.RunID)
	if err != nil {
		return RunResponse{}, err
	}
	return RunResponse{View: *view, OK: true}, nil
}

func (s *Server) handleUpdateStep(ctx context.Context, _ mcp.CallToolRequest, args UpdateArgs) (RunResponse, error) {
	var data domain.StepData
	if err := json.Unmarshal([]byte(args.Data), &data); err != nil {
		return RunResponse{}, fmt.Errorf("invalid data: %w", err)
	}
	if err := sanitize(data); err != nil {
		s.logger.Warn("MCP update: input rejected", "run_id", args.RunID, "err", err)
		return RunResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	return s.do(ctx, args.RunID, session.Operation{Kind: session.OpUpdate, Data: data})
}

func (s *Server) handleRunAction(ctx context.Context, _ mcp.CallToolRequest, args ActionArgs) (RunResponse, error) {
	op := session.Operation{Kind: session.OpKind(args.Action), Step: args.Step}
	if op.Kind == session.OpGoTo && op.Step == "" {
		return RunResponse{}, errors.New("goto requires a step")
	}
	if op.Kind == session.OpUpdate {
		return RunResponse{}, errors.New("use update_step to change data")
	}
	return s.do(ctx, args.RunID, op)
}

func (s *Server) do(ctx context.Context, runID string, op session.Operation) (RunResponse, error) {
	res, err := s.service.Do(ctx, runID, op)
	if err != nil {
		return RunResponse{}, fmt.Errorf("%s failed: %w", op.Kind, err)
	}
	return RunResponse{View: res.View, OK: res.OK, Diff: res.Diff}, nil
}

func (s *Server) handleDeleteRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.service.Delete(ctx, runID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("run %s deleted", runID)), nil
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flow := request.GetString("flow", "")
	runID := request.GetString("run_id", "")

	var state *domain.State
	if runID != "" {
		var err error
		state, err = s.service.State(ctx, runID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load run: %v", err)), nil
		}
		flow = state.Flow
	}
	if flow == "" {
		return mcp.NewToolResultError("flow or run_id is required"), nil
	}

	cfg, err := s.service.Flow(ctx, flow)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load flow: %v", err)), nil
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(cfg, graph.NewOverlay(cfg, state))), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(FlowsURI, "Available Flows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := s.handleListFlows(ctx, mcp.CallToolRequest{}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list flows: %w", err)
		}
		jsonBytes, _ := json.Marshal(list)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      FlowsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func sanitize(step domain.StepData) error {
	for key, value := range step {
		text, ok := value.(string)
		if !ok {
			continue
		}
		clean, err := runner.SanitizeInput(text)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		step[key] = clean
	}
	return nil
}
