package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	adapter "github.com/parleyhq/parley/pkg/adapters/http"
	"github.com/parleyhq/parley/pkg/adapters/memory"
	"github.com/parleyhq/parley/pkg/approval"
	"github.com/parleyhq/parley/pkg/dialogue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	audit := memory.NewAuditLog()
	engine := dialogue.NewEngine(memory.NewStore(), audit)
	workflow := approval.NewWorkflow(memory.NewApprovalStore(), audit)
	srv := httptest.NewServer(adapter.NewHandler(engine, workflow))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSessions_CreateUpdateGet(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/sessions", map[string]any{
		"entity": "ticket",
		"schema": []map[string]any{
			{"name": "serial", "required": true, "priority": 1},
			{"name": "note", "required": false, "priority": 2},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode(t, resp)
	sessionID, _ := created["session_id"].(string)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, "serial", created["current_slot"])

	resp = postJSON(t, srv.URL+"/sessions/"+sessionID+"/slots", map[string]any{
		"slot_name":  "serial",
		"slot_value": "ab-123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode(t, resp)
	assert.Equal(t, false, updated["is_complete"])

	resp = postJSON(t, srv.URL+"/sessions/"+sessionID+"/slots", map[string]any{
		"slot_name":  "note",
		"slot_value": "fragile",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated = decode(t, resp)
	assert.Equal(t, true, updated["is_complete"])

	resp, err := http.Get(srv.URL + "/sessions/" + sessionID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode(t, resp)
	assert.Equal(t, "pending_approval", got["status"])
}

func TestSessions_GetUnknownReturns404(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/sessions/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessions_InterruptionClassifiesUnknownSession(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/sessions/ghost/interruption", map[string]any{
		"user_message": "wait, actually the serial is wrong",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode(t, resp)

	// Classification is returned even when the session does not exist.
	class, ok := body["classification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, class["is_interruption"])
}

func TestSessions_HistoryRecordsLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/sessions", map[string]any{
		"entity": "ticket",
		"schema": []map[string]any{{"name": "serial", "required": true}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionID, _ := decode(t, resp)["session_id"].(string)

	resp = postJSON(t, srv.URL+"/sessions/"+sessionID+"/slots", map[string]any{
		"slot_name":  "serial",
		"slot_value": "ab-123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/sessions/" + sessionID + "/history")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events, ok := decode(t, resp)["events"].([]any)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(events), 2, "created + slot update at minimum")
}

func TestApprovals_CreateRespondGet(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/approvals", map[string]any{
		"type":        "approval",
		"title":       "deploy",
		"description": "roll out v2",
		"priority":    "high",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	requestID, _ := decode(t, resp)["request_id"].(string)
	require.NotEmpty(t, requestID)

	resp = postJSON(t, srv.URL+"/approvals/"+requestID+"/respond", map[string]any{
		"decision": "approved",
		"feedback": "ship it",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decided := decode(t, resp)
	assert.Equal(t, "approved", decided["status"])

	// A second decision conflicts.
	resp = postJSON(t, srv.URL+"/approvals/"+requestID+"/respond", map[string]any{
		"decision": "rejected",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestApprovals_BatchDecide(t *testing.T) {
	srv := newTestServer(t)

	var ids []string
	for range 2 {
		resp := postJSON(t, srv.URL+"/approvals", map[string]any{
			"type": "approval", "title": "deploy", "description": "batch",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		id, _ := decode(t, resp)["request_id"].(string)
		ids = append(ids, id)
	}

	resp := postJSON(t, srv.URL+"/approvals/batch", map[string]any{
		"request_ids": append(ids, "ghost"),
		"decision":    "approved",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode(t, resp)
	assert.Equal(t, float64(2), result["processed"])
	assert.Equal(t, float64(1), result["failed"])
}

func TestApprovals_ListAndStats(t *testing.T) {
	srv := newTestServer(t)

	for _, priority := range []string{"low", "critical"} {
		resp := postJSON(t, srv.URL+"/approvals", map[string]any{
			"type": "approval", "title": "t", "description": "d", "priority": priority,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/approvals?status=pending")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := decode(t, resp)
	assert.Equal(t, float64(2), listed["total"])

	requests, ok := listed["requests"].([]any)
	require.True(t, ok)
	first, _ := requests[0].(map[string]any)
	assert.Equal(t, "critical", first["priority"], "critical sorts first")

	resp, err = http.Get(srv.URL + "/approvals/stats?time_range_hours=1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode(t, resp)
	assert.Equal(t, float64(2), stats["total"])
	byStatus, ok := stats["by_status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), byStatus["pending"])
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
