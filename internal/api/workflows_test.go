package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/backend/internal/logging"
	"inkwell/backend/internal/repository"
	"inkwell/backend/internal/services"
	"inkwell/backend/pkg/models"
)

type fakeGenerator struct{}

func (fakeGenerator) Complete(_ context.Context, _ string, _ []string, _ string) (string, error) {
	return "generated text", nil
}

type fakeHumanizer struct{}

func (fakeHumanizer) Transform(_ context.Context, text string, _ map[string]any) (string, error) {
	return "humanized " + text, nil
}

type fakeDetector struct{}

func (fakeDetector) Score(_ context.Context, _ string) (*services.DetectionResult, error) {
	return &services.DetectionResult{AIProbability: 0.5, OverallClass: "mixed"}, nil
}

func newTestServer() (*echo.Echo, *Server) {
	logger := logging.NewLogger()
	store := repository.NewMemoryWorkflowStore()
	workflowService := services.NewWorkflowService(store, logger)
	executor := services.NewStepExecutor(fakeGenerator{}, fakeHumanizer{}, fakeDetector{}, &services.TokenCounter{})
	orchestrator := services.NewOrchestrator(store, executor, logger)

	e := echo.New()
	server := NewServer(workflowService, orchestrator, logger)
	server.Register(e.Group("/api/v1"))
	e.GET("/health", server.HandleHealth)
	return e, server
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createWorkflowWithStep(t *testing.T, e *echo.Echo, requiresApproval bool) string {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/api/v1/workflows",
		`{"name": "Essay Writer", "goal": "Write an essay"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &workflow))

	rec = doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+workflow.ID+"/steps",
		fmt.Sprintf(`{"step_index": 0, "step_type": "draft", "name": "Draft", "requires_approval": %v}`, requiresApproval))
	require.Equal(t, http.StatusCreated, rec.Code)

	return workflow.ID
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer()
	rec := doJSON(t, e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestCreateWorkflow_Validation(t *testing.T) {
	e, _ := newTestServer()

	rec := doJSON(t, e, http.MethodPost, "/api/v1/workflows", `{"name": "", "goal": "g"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/problem+json")

	rec = doJSON(t, e, http.MethodPost, "/api/v1/workflows", `{"name": "n", "goal": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddStep_Validation(t *testing.T) {
	e, _ := newTestServer()
	id := createWorkflowWithStep(t, e, false)

	// Duplicate index.
	rec := doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+id+"/steps",
		`{"step_index": 0, "step_type": "verify", "name": "Verify"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown step type.
	rec = doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+id+"/steps",
		`{"step_index": 1, "step_type": "teleport", "name": "Odd"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Steps are immutable once execution starts.
	rec = doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+id+"/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+id+"/steps",
		`{"step_index": 1, "step_type": "verify", "name": "Late"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteAndApproveFlow(t *testing.T) {
	e, _ := newTestServer()
	id := createWorkflowWithStep(t, e, true)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+id+"/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.ExecuteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, services.StatusPausedForApproval, result.Status)
	assert.Equal(t, "generated text", result.Output)

	rec = doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+id+"/steps/0/approve",
		`{"approved": true, "feedback": "ship it"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, services.StatusCompleted, result.Status)

	// Double approval conflicts.
	rec = doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+id+"/steps/0/approve",
		`{"approved": true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApprove_RejectionWithoutFeedback(t *testing.T) {
	e, _ := newTestServer()
	id := createWorkflowWithStep(t, e, true)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+id+"/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+id+"/steps/0/approve",
		`{"approved": false}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/api/v1/workflows/"+id+"/steps/0/approve",
		`{"approved": false, "feedback": "rework the intro"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.ExecuteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, services.StatusRejected, result.Status)
}

func TestGetListAndDelete(t *testing.T) {
	e, _ := newTestServer()
	id := createWorkflowWithStep(t, e, false)

	rec := doJSON(t, e, http.MethodGet, "/api/v1/workflows/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &workflow))
	require.Len(t, workflow.Steps, 1)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/workflows?status=pending&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list listWorkflowsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	rec = doJSON(t, e, http.MethodDelete, "/api/v1/workflows/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/api/v1/workflows/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatusOverride(t *testing.T) {
	e, _ := newTestServer()
	id := createWorkflowWithStep(t, e, false)

	rec := doJSON(t, e, http.MethodPatch, "/api/v1/workflows/"+id+"/status",
		`{"status": "cancelled", "error_message": "abandoned by operator"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &workflow))
	assert.Equal(t, models.WorkflowStatusCancelled, workflow.Status)
	require.NotNil(t, workflow.ErrorMessage)

	rec = doJSON(t, e, http.MethodPatch, "/api/v1/workflows/"+id+"/status",
		`{"status": "warp"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEssayTemplateEndpoint(t *testing.T) {
	e, _ := newTestServer()

	rec := doJSON(t, e, http.MethodPost, "/api/v1/workflows/templates/essay-writer",
		`{"goal": "Write about tides", "requirements": {"word_count": 500}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &workflow))
	assert.Len(t, workflow.Steps, 6)

	rec = doJSON(t, e, http.MethodPost, "/api/v1/workflows/templates/essay-writer", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
