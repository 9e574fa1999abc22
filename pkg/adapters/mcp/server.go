package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
	"github.com/parleyhq/parley/pkg/approval"
	"github.com/parleyhq/parley/pkg/dialogue"
	"github.com/parleyhq/parley/pkg/domain"
	"github.com/parleyhq/parley/pkg/schema"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// Server exposes the dialogue engine and approval workflow as MCP tools.
type Server struct {
	dialogue  *dialogue.Engine
	approvals *approval.Workflow
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(d *dialogue.Engine, w *approval.Workflow) *Server {
	s := &Server{
		dialogue:  d,
		approvals: w,
		mcpServer: server.NewMCPServer("parley-mcp", Version),
	}
	s.registerDialogueTools()
	s.registerApprovalTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

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
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

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

// SessionResponse is the session snapshot returned by dialogue tools.
type SessionResponse struct {
	State      *domain.DialogueSession `json:"state" jsonschema_description:"The session snapshot"`
	IsComplete bool                    `json:"is_complete" jsonschema_description:"Whether every askable slot is filled"`
}

// InterruptionResponse carries the classification plus session state.
// Error is set when the session was unknown: the classification is still
// returned for diagnostic purposes.
type InterruptionResponse struct {
	dialogue.InterruptionResult
	Error string `json:"error,omitempty"`
}

// RequestResponse is the request snapshot returned by approval tools.
type RequestResponse struct {
	Request *domain.ApprovalRequest `json:"request"`
}

// HistoryResponse is an ordered audit event list.
type HistoryResponse struct {
	Events []domain.AuditEvent `json:"events"`
}

func (s *Server) registerDialogueTools() {
	s.mcpServer.AddTool(mcp.NewTool("dialogue_state_create",
		mcp.WithDescription("Create a dialogue session over a field schema. Returns the session id, state and slot classification."),
		mcp.WithString("entity", mcp.Required(), mcp.Description("Domain/schema name the session collects data for")),
		mcp.WithArray("schema", mcp.Description("Field array from the schema provider")),
		mcp.WithObject("initial_slots", mcp.Description("Slot values already known at creation")),
		mcp.WithObject("metadata", mcp.Description("Free-form side-channel data")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreate))

	s.mcpServer.AddTool(mcp.NewTool("dialogue_state_update",
		mcp.WithDescription("Collect, modify or clear one slot value. Returns the updated state and completion flag."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("slot_name", mcp.Required(), mcp.Description("Slot to mutate")),
		mcp.WithString("slot_value", mcp.Required(), mcp.Description("Value to record; ignored for clear")),
		mcp.WithString("action", mcp.Description("collect (default), modify or clear")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleUpdate))

	s.mcpServer.AddTool(mcp.NewTool("dialogue_state_get",
		mcp.WithDescription("Read-only session snapshot."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleGet))

	s.mcpServer.AddTool(mcp.NewTool("handle_interruption",
		mcp.WithDescription("Classify a user utterance as an interruption and optionally recover, pause or abort the session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("user_message", mcp.Required(), mcp.Description("The utterance to classify")),
		mcp.WithString("action", mcp.Description("analyze (default), recover, abort or pause")),
		mcp.WithOutputSchema[InterruptionResponse](),
	), mcp.NewStructuredToolHandler(s.handleInterruption))

	s.mcpServer.AddTool(mcp.NewTool("dialogue_state_validate",
		mcp.WithDescription("Validate collected slots against the session schema. Reports hard errors, soft warnings and a ready_for_write verdict."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithOutputSchema[schema.Report](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("dialogue_history_get",
		mcp.WithDescription("Ordered audit events of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithNumber("limit", mcp.Description("Maximum events to return (default 50)")),
		mcp.WithOutputSchema[HistoryResponse](),
	), mcp.NewStructuredToolHandler(s.handleDialogueHistory))
}

func (s *Server) registerApprovalTools() {
	s.mcpServer.AddTool(mcp.NewTool("create_approval_request",
		mcp.WithDescription("Create a priority-tiered human approval request with automatic timeout expiry."),
		mcp.WithString("type", mcp.Required(), mcp.Description("confirmation, approval, selection, data_review, intervention or escalation")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short summary")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What the reviewer is deciding")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Payload under review")),
		mcp.WithArray("options", mcp.Description("Choices for selection-type requests")),
		mcp.WithString("priority", mcp.Description("low, normal (default), high or critical")),
		mcp.WithNumber("timeout_seconds", mcp.Description("Explicit timeout overriding the priority default")),
		mcp.WithString("assignee", mcp.Description("Reviewer the request is routed to")),
		mcp.WithString("session_id", mcp.Description("Originating dialogue session")),
		mcp.WithObject("metadata", mcp.Description("Free-form side-channel data")),
		mcp.WithOutputSchema[RequestResponse](),
	), mcp.NewStructuredToolHandler(s.handleCreateRequest))

	s.mcpServer.AddTool(mcp.NewTool("respond_to_approval",
		mcp.WithDescription("Record the reviewer's decision on a pending request."),
		mcp.WithString("request_id", mcp.Required(), mcp.Description("Request id")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("approved, rejected, modified or escalated")),
		mcp.WithString("feedback", mcp.Description("Reviewer feedback")),
		mcp.WithObject("modified_data", mcp.Description("Replacement payload for modified decisions")),
		mcp.WithOutputSchema[RequestResponse](),
	), mcp.NewStructuredToolHandler(s.handleRespond))

	s.mcpServer.AddTool(mcp.NewTool("cancel_approval_request",
		mcp.WithDescription("Withdraw a pending request."),
		mcp.WithString("request_id", mcp.Required(), mcp.Description("Request id")),
		mcp.WithString("reason", mcp.Description("Why the request is withdrawn")),
		mcp.WithOutputSchema[RequestResponse](),
	), mcp.NewStructuredToolHandler(s.handleCancel))

	s.mcpServer.AddTool(mcp.NewTool("batch_approve",
		mcp.WithDescription("Apply one approved/rejected decision to many requests. Per-id failures do not abort the batch."),
		mcp.WithArray("request_ids", mcp.Required(), mcp.Description("Request ids to decide")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("approved or rejected")),
		mcp.WithString("feedback", mcp.Description("Shared reviewer feedback")),
		mcp.WithOutputSchema[approval.BatchResult](),
	), mcp.NewStructuredToolHandler(s.handleBatch))

	s.mcpServer.AddTool(mcp.NewTool("escalate_request",
		mcp.WithDescription("Raise a pending request's priority and/or reassign it. The deadline is not extended."),
		mcp.WithString("request_id", mcp.Required(), mcp.Description("Request id")),
		mcp.WithString("new_priority", mcp.Description("New priority tier")),
		mcp.WithString("new_assignee", mcp.Description("New reviewer")),
		mcp.WithString("reason", mcp.Description("Why the request escalates")),
		mcp.WithOutputSchema[RequestResponse](),
	), mcp.NewStructuredToolHandler(s.handleEscalate))

	s.mcpServer.AddTool(mcp.NewTool("list_approval_requests",
		mcp.WithDescription("List requests sorted by priority then recency, with optional filters."),
		mcp.WithString("status", mcp.Description("Filter by status")),
		mcp.WithString("type", mcp.Description("Filter by request type")),
		mcp.WithString("assignee", mcp.Description("Filter by assignee")),
		mcp.WithNumber("limit", mcp.Description("Maximum results")),
		mcp.WithOutputSchema[ListResponse](),
	), mcp.NewStructuredToolHandler(s.handleList))

	s.mcpServer.AddTool(mcp.NewTool("get_approval_history",
		mcp.WithDescription("Ordered audit events of a request."),
		mcp.WithString("request_id", mcp.Required(), mcp.Description("Request id")),
		mcp.WithNumber("limit", mcp.Description("Maximum events to return (default 100)")),
		mcp.WithOutputSchema[HistoryResponse](),
	), mcp.NewStructuredToolHandler(s.handleApprovalHistory))

	s.mcpServer.AddTool(mcp.NewTool("get_approval_stats",
		mcp.WithDescription("Aggregate approval counters over a trailing time window."),
		mcp.WithNumber("time_range_hours", mcp.Description("Window size in hours (default 24)")),
		mcp.WithOutputSchema[approval.Stats](),
	), mcp.NewStructuredToolHandler(s.handleStats))
}

// ListResponse wraps list results for the output schema.
type ListResponse struct {
	Requests []*domain.ApprovalRequest `json:"requests"`
	Total    int                       `json:"total"`
}

// Handler methods for structured tools

type createArgs struct {
	Entity       string         `mapstructure:"entity"`
	Schema       []domain.Field `mapstructure:"schema"`
	InitialSlots map[string]any `mapstructure:"initial_slots"`
	Metadata     map[string]any `mapstructure:"metadata"`
}

func (s *Server) handleCreate(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (SessionResponse, error) {
	var args createArgs
	if err := mapstructure.Decode(raw, &args); err != nil {
		return SessionResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Entity == "" {
		return SessionResponse{}, fmt.Errorf("entity is required")
	}

	sess, err := s.dialogue.Create(ctx, dialogue.CreateParams{
		Entity:       args.Entity,
		Schema:       args.Schema,
		InitialSlots: args.InitialSlots,
		Metadata:     args.Metadata,
	})
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{State: sess, IsComplete: sess.IsComplete()}, nil
}

type updateArgs struct {
	SessionID string `mapstructure:"session_id"`
	SlotName  string `mapstructure:"slot_name"`
	SlotValue any    `mapstructure:"slot_value"`
	Action    string `mapstructure:"action"`
}

func (s *Server) handleUpdate(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (SessionResponse, error) {
	var args updateArgs
	if err := mapstructure.Decode(raw, &args); err != nil {
		return SessionResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}

	sess, complete, err := s.dialogue.Update(ctx, args.SessionID, args.SlotName, args.SlotValue, domain.SlotAction(args.Action))
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{State: sess, IsComplete: complete}, nil
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (SessionResponse, error) {
	id, _ := raw["session_id"].(string)
	sess, err := s.dialogue.Get(ctx, id)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{State: sess, IsComplete: sess.IsComplete()}, nil
}

type interruptionArgs struct {
	SessionID   string `mapstructure:"session_id"`
	UserMessage string `mapstructure:"user_message"`
	Action      string `mapstructure:"action"`
}

func (s *Server) handleInterruption(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (InterruptionResponse, error) {
	var args interruptionArgs
	if err := mapstructure.Decode(raw, &args); err != nil {
		return InterruptionResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}

	result, err := s.dialogue.HandleInterruption(ctx, args.SessionID, args.UserMessage, dialogue.InterruptAction(args.Action))
	resp := InterruptionResponse{InterruptionResult: result}
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			// Classification survives an unknown session for diagnostics.
			resp.Error = err.Error()
			return resp, nil
		}
		return resp, err
	}
	return resp, nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (schema.Report, error) {
	id, _ := raw["session_id"].(string)
	return s.dialogue.Validate(ctx, id)
}

func (s *Server) handleDialogueHistory(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (HistoryResponse, error) {
	id, _ := raw["session_id"].(string)
	limit := intArg(raw, "limit", 50)

	events, err := s.dialogue.History(ctx, id, limit)
	if err != nil {
		return HistoryResponse{}, err
	}
	return HistoryResponse{Events: events}, nil
}

type createRequestArgs struct {
	Type           string                   `mapstructure:"type"`
	Title          string                   `mapstructure:"title"`
	Description    string                   `mapstructure:"description"`
	Data           map[string]any           `mapstructure:"data"`
	Options        []domain.SelectionOption `mapstructure:"options"`
	Priority       string                   `mapstructure:"priority"`
	TimeoutSeconds float64                  `mapstructure:"timeout_seconds"`
	Assignee       string                   `mapstructure:"assignee"`
	SessionID      string                   `mapstructure:"session_id"`
	Metadata       map[string]any           `mapstructure:"metadata"`
}

func (s *Server) handleCreateRequest(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (RequestResponse, error) {
	var args createRequestArgs
	if err := mapstructure.Decode(raw, &args); err != nil {
		return RequestResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}

	req, err := s.approvals.Create(ctx, approval.CreateParams{
		Type:        domain.RequestType(args.Type),
		Title:       args.Title,
		Description: args.Description,
		Data:        args.Data,
		Options:     args.Options,
		Priority:    domain.Priority(args.Priority),
		Timeout:     time.Duration(args.TimeoutSeconds) * time.Second,
		Assignee:    args.Assignee,
		SessionID:   args.SessionID,
		Metadata:    args.Metadata,
	})
	if err != nil {
		return RequestResponse{}, err
	}
	return RequestResponse{Request: req}, nil
}

type respondArgs struct {
	RequestID    string         `mapstructure:"request_id"`
	Decision     string         `mapstructure:"decision"`
	Feedback     string         `mapstructure:"feedback"`
	ModifiedData map[string]any `mapstructure:"modified_data"`
}

func (s *Server) handleRespond(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (RequestResponse, error) {
	var args respondArgs
	if err := mapstructure.Decode(raw, &args); err != nil {
		return RequestResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}

	req, err := s.approvals.Respond(ctx, args.RequestID, domain.Decision(args.Decision), args.Feedback, args.ModifiedData)
	if err != nil {
		return RequestResponse{}, err
	}
	return RequestResponse{Request: req}, nil
}

func (s *Server) handleCancel(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (RequestResponse, error) {
	id, _ := raw["request_id"].(string)
	reason, _ := raw["reason"].(string)

	req, err := s.approvals.Cancel(ctx, id, reason)
	if err != nil {
		return RequestResponse{}, err
	}
	return RequestResponse{Request: req}, nil
}

type batchArgs struct {
	RequestIDs []string `mapstructure:"request_ids"`
	Decision   string   `mapstructure:"decision"`
	Feedback   string   `mapstructure:"feedback"`
}

func (s *Server) handleBatch(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (approval.BatchResult, error) {
	var args batchArgs
	if err := mapstructure.Decode(raw, &args); err != nil {
		return approval.BatchResult{}, fmt.Errorf("invalid arguments: %w", err)
	}
	return s.approvals.BatchDecide(ctx, args.RequestIDs, domain.Decision(args.Decision), args.Feedback)
}

type escalateArgs struct {
	RequestID   string `mapstructure:"request_id"`
	NewPriority string `mapstructure:"new_priority"`
	NewAssignee string `mapstructure:"new_assignee"`
	Reason      string `mapstructure:"reason"`
}

func (s *Server) handleEscalate(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (RequestResponse, error) {
	var args escalateArgs
	if err := mapstructure.Decode(raw, &args); err != nil {
		return RequestResponse{}, fmt.Errorf("invalid arguments: %w", err)
	}

	req, err := s.approvals.Escalate(ctx, args.RequestID, domain.Priority(args.NewPriority), args.NewAssignee, args.Reason)
	if err != nil {
		return RequestResponse{}, err
	}
	return RequestResponse{Request: req}, nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (ListResponse, error) {
	status, _ := raw["status"].(string)
	typ, _ := raw["type"].(string)
	assignee, _ := raw["assignee"].(string)

	requests, err := s.approvals.List(ctx, approval.Filter{
		Status:   domain.RequestStatus(status),
		Type:     domain.RequestType(typ),
		Assignee: assignee,
		Limit:    intArg(raw, "limit", 0),
	})
	if err != nil {
		return ListResponse{}, err
	}
	return ListResponse{Requests: requests, Total: len(requests)}, nil
}

func (s *Server) handleApprovalHistory(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (HistoryResponse, error) {
	id, _ := raw["request_id"].(string)
	limit := intArg(raw, "limit", 100)

	events, err := s.approvals.History(ctx, id, limit)
	if err != nil {
		return HistoryResponse{}, err
	}
	return HistoryResponse{Events: events}, nil
}

func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest, raw map[string]any) (approval.Stats, error) {
	hours := floatArg(raw, "time_range_hours", 24)
	return s.approvals.GetStats(ctx, time.Duration(hours*float64(time.Hour)))
}

func intArg(raw map[string]any, key string, fallback int) int {
	switch v := raw[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

func floatArg(raw map[string]any, key string, fallback float64) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}
