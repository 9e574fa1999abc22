package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/pkg/approval"
	"github.com/parleyhq/parley/pkg/dialogue"
	"github.com/parleyhq/parley/pkg/domain"
)

// Server exposes the dialogue engine and approval workflow as a JSON API.
type Server struct {
	dialogue  *dialogue.Engine
	approvals *approval.Workflow
}

// NewHandler creates the HTTP handler for both surfaces plus health and
// metrics endpoints.
func NewHandler(d *dialogue.Engine, w *approval.Workflow) http.Handler {
	s := &Server{dialogue: d, approvals: w}
	r := chi.NewRouter()

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)
		r.Get("/{sessionID}", s.getSession)
		r.Post("/{sessionID}/slots", s.updateSlot)
		r.Post("/{sessionID}/interruption", s.interruption)
		r.Get("/{sessionID}/validate", s.validateSession)
		r.Get("/{sessionID}/history", s.sessionHistory)
	})

	r.Route("/approvals", func(r chi.Router) {
		r.Post("/", s.createRequest)
		r.Get("/", s.listRequests)
		r.Post("/batch", s.batchDecide)
		r.Get("/stats", s.stats)
		r.Get("/{requestID}", s.getRequest)
		r.Post("/{requestID}/respond", s.respond)
		r.Post("/{requestID}/cancel", s.cancel)
		r.Post("/{requestID}/escalate", s.escalate)
		r.Get("/{requestID}/history", s.requestHistory)
	})

	return r
}

type createSessionBody struct {
	Entity       string         `json:"entity"`
	Schema       []domain.Field `json:"schema,omitempty"`
	InitialSlots map[string]any `json:"initial_slots,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Entity == "" {
		writeError(w, http.StatusBadRequest, "entity is required")
		return
	}

	sess, err := s.dialogue.Create(r.Context(), dialogue.CreateParams{
		Entity:       body.Entity,
		Schema:       body.Schema,
		InitialSlots: body.InitialSlots,
		Metadata:     body.Metadata,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.dialogue.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.dialogue.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type updateSlotBody struct {
	SlotName  string `json:"slot_name"`
	SlotValue any    `json:"slot_value"`
	Action    string `json:"action,omitempty"`
}

func (s *Server) updateSlot(w http.ResponseWriter, r *http.Request) {
	var body updateSlotBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, complete, err := s.dialogue.Update(r.Context(), chi.URLParam(r, "sessionID"), body.SlotName, body.SlotValue, domain.SlotAction(body.Action))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": sess, "is_complete": complete})
}

type interruptionBody struct {
	UserMessage string `json:"user_message"`
	Action      string `json:"action,omitempty"`
}

func (s *Server) interruption(w http.ResponseWriter, r *http.Request) {
	var body interruptionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.dialogue.HandleInterruption(r.Context(), chi.URLParam(r, "sessionID"), body.UserMessage, dialogue.InterruptAction(body.Action))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"classification": result.Classification, "error": err.Error()})
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) validateSession(w http.ResponseWriter, r *http.Request) {
	report, err := s.dialogue.Validate(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) sessionHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.dialogue.History(r.Context(), chi.URLParam(r, "sessionID"), queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

type createRequestBody struct {
	Type           string                   `json:"type"`
	Title          string                   `json:"title"`
	Description    string                   `json:"description"`
	Data           map[string]any           `json:"data"`
	Options        []domain.SelectionOption `json:"options,omitempty"`
	Priority       string                   `json:"priority,omitempty"`
	TimeoutSeconds int                      `json:"timeout_seconds,omitempty"`
	Assignee       string                   `json:"assignee,omitempty"`
	SessionID      string                   `json:"session_id,omitempty"`
	Metadata       map[string]any           `json:"metadata,omitempty"`
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := s.approvals.Create(r.Context(), approval.CreateParams{
		Type:        domain.RequestType(body.Type),
		Title:       body.Title,
		Description: body.Description,
		Data:        body.Data,
		Options:     body.Options,
		Priority:    domain.Priority(body.Priority),
		Timeout:     time.Duration(body.TimeoutSeconds) * time.Second,
		Assignee:    body.Assignee,
		SessionID:   body.SessionID,
		Metadata:    body.Metadata,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.approvals.List(r.Context(), approval.Filter{
		Status:   domain.RequestStatus(r.URL.Query().Get("status")),
		Type:     domain.RequestType(r.URL.Query().Get("type")),
		Assignee: r.URL.Query().Get("assignee"),
		Limit:    queryInt(r, "limit", 0),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests, "total": len(requests)})
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.approvals.Get(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type respondBody struct {
	Decision     string         `json:"decision"`
	Feedback     string         `json:"feedback,omitempty"`
	ModifiedData map[string]any `json:"modified_data,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) {
	var body respondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := s.approvals.Respond(r.Context(), chi.URLParam(r, "requestID"), domain.Decision(body.Decision), body.Feedback, body.ModifiedData)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason,omitempty"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	req, err := s.approvals.Cancel(r.Context(), chi.URLParam(r, "requestID"), body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type batchBody struct {
	RequestIDs []string `json:"request_ids"`
	Decision   string   `json:"decision"`
	Feedback   string   `json:"feedback,omitempty"`
}

func (s *Server) batchDecide(w http.ResponseWriter, r *http.Request) {
	var body batchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.approvals.BatchDecide(r.Context(), body.RequestIDs, domain.Decision(body.Decision), body.Feedback)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type escalateBody struct {
	NewPriority string `json:"new_priority,omitempty"`
	NewAssignee string `json:"new_assignee,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (s *Server) escalate(w http.ResponseWriter, r *http.Request) {
	var body escalateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := s.approvals.Escalate(r.Context(), chi.URLParam(r, "requestID"), domain.Priority(body.NewPriority), body.NewAssignee, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) requestHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.approvals.History(r.Context(), chi.URLParam(r, "requestID"), queryInt(r, "limit", 100))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "time_range_hours", 24)
	stats, err := s.approvals.GetStats(r.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRequestExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
