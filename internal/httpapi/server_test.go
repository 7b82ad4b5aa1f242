package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"caseflow/internal/engine"
	"caseflow/internal/httpapi"
	"caseflow/internal/logging"
	"caseflow/internal/testsupport"
)

type client struct {
	t       *testing.T
	handler http.Handler
	token   string
	actor   string
}

func newClient(t *testing.T, opts ...testsupport.ConfigOption) *client {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	e, err := engine.New(cfg, st, logging.NewNop(), engine.WithRetryBackoff(0))
	require.NoError(t, err)
	srv, err := httpapi.New(e, logging.NewNop())
	require.NoError(t, err)
	return &client{t: t, handler: srv.Handler(), token: cfg.Server.APIToken, actor: "tester"}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, httpapi.BasePath+path, reader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set("X-Actor", c.actor)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) httpapi.ErrorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decodeBody[httpapi.ErrorResponse](t, rec)
	require.Equal(t, kind, body.Kind)
	return body
}

func (c *client) seed(id, owner, caseID string) {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/tasks", map[string]any{
		"id": id, "title": "Task " + id, "priority": "high", "ownerId": owner, "caseId": caseID, "stageId": "review",
	})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	c := newClient(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerTokenRequired(t *testing.T) {
	c := newClient(t, testsupport.WithAPIToken("s3cret"))

	c.token = ""
	rec := c.do(http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	c.token = "wrong"
	rec = c.do(http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	c.token = "s3cret"
	rec = c.do(http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestDependencyFlow(t *testing.T) {
	c := newClient(t)
	c.seed("A", "alice", "c1")
	c.seed("B", "alice", "c1")

	rec := c.do(http.MethodPost, "/dependencies/set", map[string]any{"taskId": "B", "dependsOn": []string{"A"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/dependencies/B/can-start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	check := decodeBody[map[string]any](t, rec)
	require.Equal(t, false, check["canStart"])

	rec = c.do(http.MethodPost, "/tasks/B/status", map[string]any{"status": "in-progress"})
	requireError(t, rec, http.StatusBadRequest, "validation")

	rec = c.do(http.MethodPost, "/dependencies/set", map[string]any{"taskId": "A", "dependsOn": []string{"B"}})
	requireError(t, rec, http.StatusConflict, "cycle_detected")

	rec = c.do(http.MethodPost, "/tasks/A/status", map[string]any{"status": "done"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = c.do(http.MethodPost, "/tasks/B/status", map[string]any{"status": "in-progress"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/dependencies/missing", nil)
	requireError(t, rec, http.StatusNotFound, "not_found")
}

func TestStaleVersionIsRetryableConflict(t *testing.T) {
	c := newClient(t)
	c.seed("A", "alice", "c1")

	rec := c.do(http.MethodPost, "/tasks/A/status", map[string]any{"status": "review", "expectedVersion": 99})
	body := requireError(t, rec, http.StatusConflict, "conflict_retry")
	require.True(t, body.Retryable)
}

func TestSLAEndpoints(t *testing.T) {
	c := newClient(t)
	c.seed("A", "alice", "c1")

	rec := c.do(http.MethodGet, "/sla/status/A", nil)
	requireError(t, rec, http.StatusUnprocessableEntity, "no_rule_configured")

	rec = c.do(http.MethodGet, "/sla/status/A?useDefault=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/sla/rules", map[string]any{"priority": "high", "warningThresholdHours": 24, "breachThresholdHours": 48})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/sla/status/A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[map[string]any](t, rec)
	require.Equal(t, "on_track", status["status"])

	rec = c.do(http.MethodPost, "/sla/rules/import", "rules:\n  - priority: low\n    warning_hours: 100\n    breach_hours: 200\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/sla/check-breaches", map[string]any{"scope": "c1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/sla/rules", map[string]any{"priority": "high", "warningThresholdHours": 48, "breachThresholdHours": 24})
	requireError(t, rec, http.StatusBadRequest, "validation")
}

func TestApprovalEndpoints(t *testing.T) {
	c := newClient(t)
	c.seed("A", "alice", "c1")

	rec := c.do(http.MethodPost, "/approvals", map[string]any{"taskId": "A", "approverIds": []string{"m1", "m2"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/approvals/process", map[string]any{"taskId": "A", "approverId": "m2", "action": "approve"})
	requireError(t, rec, http.StatusConflict, "not_current_approver")

	rec = c.do(http.MethodPost, "/approvals/process", map[string]any{"taskId": "A", "approverId": "m1", "action": "reject", "comments": "incomplete"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/approvals/process", map[string]any{"taskId": "A", "approverId": "m2", "action": "approve"})
	requireError(t, rec, http.StatusConflict, "chain_not_pending")

	c.actor = "alice"
	rec = c.do(http.MethodGet, "/notifications?unreadOnly=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notes := decodeBody[map[string][]map[string]any](t, rec)
	require.Len(t, notes["notifications"], 1)
	require.Equal(t, "approval_rejected", notes["notifications"][0]["type"])
}

func TestParallelAndReassign(t *testing.T) {
	c := newClient(t)
	c.seed("A", "alice", "c1")
	c.seed("B", "alice", "c1")

	rec := c.do(http.MethodPost, "/parallel", map[string]any{"stageId": "review", "taskIds": []string{"A"}, "completionRule": "all"})
	requireError(t, rec, http.StatusBadRequest, "validation")

	rec = c.do(http.MethodPost, "/parallel", map[string]any{"stageId": "review", "taskIds": []string{"A", "B"}, "completionRule": "any"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	group := decodeBody[map[string]any](t, rec)

	rec = c.do(http.MethodGet, "/parallel/"+group["id"].(string)+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[map[string]any](t, rec)
	require.Equal(t, false, status["isComplete"])
	require.EqualValues(t, 2, status["totalCount"])

	rec = c.do(http.MethodPost, "/reassign/bulk", map[string]any{"taskIds": []string{"A", "nope"}, "newAssignee": "bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[map[string]any](t, rec)
	require.EqualValues(t, 1, report["reassigned"])
	require.EqualValues(t, 1, report["failed"])

	rec = c.do(http.MethodPost, "/reassign/user", map[string]any{"fromUser": "alice", "toUser": "bob"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = c.do(http.MethodGet, "/audit/case/c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[map[string][]map[string]any](t, rec)
	require.Equal(t, "reassigned", entries["entries"][0]["action"])

	rec = c.do(http.MethodGet, "/analytics/metrics?scope=c1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = c.do(http.MethodGet, "/analytics/velocity?windowDays=abc", nil)
	requireError(t, rec, http.StatusBadRequest, "validation")
	rec = c.do(http.MethodGet, "/analytics/bottlenecks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownFieldsRejected(t *testing.T) {
	c := newClient(t)
	rec := c.do(http.MethodPost, "/reassign/task", `{"taskId":"A","owner":"bob"}`)
	body := requireError(t, rec, http.StatusBadRequest, "validation")
	require.True(t, strings.Contains(body.Error, "invalid JSON"))
}
