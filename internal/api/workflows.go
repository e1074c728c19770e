package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"inkwell/backend/internal/logging"
	"inkwell/backend/internal/services"
	"inkwell/backend/internal/workflows"
	"inkwell/backend/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Workflows    *services.WorkflowService
	Orchestrator *services.Orchestrator
	Logger       *logging.Logger
}

// NewServer creates a new Server.
func NewServer(workflowService *services.WorkflowService, orchestrator *services.Orchestrator, logger *logging.Logger) *Server {
	return &Server{Workflows: workflowService, Orchestrator: orchestrator, Logger: logger}
}

// Register mounts all workflow routes on the given group.
func (s *Server) Register(g *echo.Group) {
	g.POST("/workflows", s.CreateWorkflow)
	g.GET("/workflows", s.ListWorkflows)
	g.GET("/workflows/:id", s.GetWorkflow)
	g.POST("/workflows/:id/steps", s.AddStep)
	g.POST("/workflows/:id/execute", s.ExecuteWorkflow)
	g.POST("/workflows/:id/steps/:index/approve", s.ApproveStep)
	g.PATCH("/workflows/:id/status", s.UpdateStatus)
	g.DELETE("/workflows/:id", s.DeleteWorkflow)
	g.POST("/workflows/templates/essay-writer", s.CreateEssayWorkflow)
}

type createWorkflowRequest struct {
	Name        string         `json:"name"`
	Goal        string         `json:"goal"`
	Description *string        `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// CreateWorkflow creates a new workflow with no steps
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req createWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return s.problem(c, services.NewValidationError("invalid request body: %v", err))
	}

	workflow, err := s.Workflows.CreateWorkflow(ctx, req.Name, req.Goal, req.Description, req.Config)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusCreated, workflow)
}

type addStepRequest struct {
	StepIndex        int             `json:"step_index"`
	StepType         models.StepType `json:"step_type"`
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	Model            *string         `json:"model,omitempty"`
	Techniques       []string        `json:"techniques,omitempty"`
	Parameters       map[string]any  `json:"parameters,omitempty"`
	RequiresApproval bool            `json:"requires_approval"`
	ApprovalPrompt   *string         `json:"approval_prompt,omitempty"`
}

// AddStep appends a step to a pending workflow
// (POST /api/v1/workflows/:id/steps)
func (s *Server) AddStep(c echo.Context) error {
	ctx := c.Request().Context()

	var req addStepRequest
	if err := c.Bind(&req); err != nil {
		return s.problem(c, services.NewValidationError("invalid request body: %v", err))
	}

	workflow, err := s.Workflows.AddStep(ctx, c.Param("id"), services.AddStepInput{
		StepIndex:        req.StepIndex,
		StepType:         req.StepType,
		Name:             req.Name,
		Description:      req.Description,
		Model:            req.Model,
		Techniques:       req.Techniques,
		Parameters:       req.Parameters,
		RequiresApproval: req.RequiresApproval,
		ApprovalPrompt:   req.ApprovalPrompt,
	})
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusCreated, workflow)
}

// GetWorkflow returns a workflow with all steps, for polling
// (GET /api/v1/workflows/:id)
func (s *Server) GetWorkflow(c echo.Context) error {
	workflow, err := s.Workflows.GetWorkflow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, workflow)
}

type listWorkflowsResponse struct {
	Workflows []*models.Workflow `json:"workflows"`
	Total     int                `json:"total"`
}

// ListWorkflows returns workflows with optional status filtering
// (GET /api/v1/workflows?status=&limit=&offset=)
func (s *Server) ListWorkflows(c echo.Context) error {
	var status *models.WorkflowStatus
	if raw := c.QueryParam("status"); raw != "" {
		st := models.WorkflowStatus(raw)
		status = &st
	}

	var limit, offset int
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).Int("offset", &offset).BindError(); err != nil {
		return s.problem(c, services.NewValidationError("invalid pagination parameters: %v", err))
	}

	list, total, err := s.Workflows.ListWorkflows(c.Request().Context(), status, limit, offset)
	if err != nil {
		return s.problem(c, err)
	}
	if list == nil {
		list = []*models.Workflow{}
	}
	return c.JSON(http.StatusOK, listWorkflowsResponse{Workflows: list, Total: total})
}

// ExecuteWorkflow advances a workflow until the next pause, failure, or completion
// (POST /api/v1/workflows/:id/execute)
func (s *Server) ExecuteWorkflow(c echo.Context) error {
	result, err := s.Orchestrator.Execute(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type approveStepRequest struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// ApproveStep resolves an approval gate on the current step
// (POST /api/v1/workflows/:id/steps/:index/approve)
func (s *Server) ApproveStep(c echo.Context) error {
	var index int
	if err := echo.PathParamsBinder(c).Int("index", &index).BindError(); err != nil {
		return s.problem(c, services.NewValidationError("invalid step index: %v", err))
	}

	var req approveStepRequest
	if err := c.Bind(&req); err != nil {
		return s.problem(c, services.NewValidationError("invalid request body: %v", err))
	}

	result, err := s.Orchestrator.ApproveStep(c.Request().Context(), c.Param("id"), index, req.Approved, req.Feedback)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type updateStatusRequest struct {
	Status       models.WorkflowStatus `json:"status"`
	ErrorMessage *string               `json:"error_message,omitempty"`
}

// UpdateStatus is an administrative status override, bypassing the engine
// (PATCH /api/v1/workflows/:id/status)
func (s *Server) UpdateStatus(c echo.Context) error {
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return s.problem(c, services.NewValidationError("invalid request body: %v", err))
	}

	workflow, err := s.Workflows.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status, req.ErrorMessage)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, workflow)
}

// DeleteWorkflow removes a workflow and all of its steps
// (DELETE /api/v1/workflows/:id)
func (s *Server) DeleteWorkflow(c echo.Context) error {
	if err := s.Workflows.DeleteWorkflow(c.Request().Context(), c.Param("id")); err != nil {
		return s.problem(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type essayTemplateRequest struct {
	Goal         string         `json:"goal"`
	Requirements map[string]any `json:"requirements,omitempty"`
}

// CreateEssayWorkflow instantiates the Essay Writer template
// (POST /api/v1/workflows/templates/essay-writer)
func (s *Server) CreateEssayWorkflow(c echo.Context) error {
	var req essayTemplateRequest
	if err := c.Bind(&req); err != nil {
		return s.problem(c, services.NewValidationError("invalid request body: %v", err))
	}
	if req.Goal == "" {
		return s.problem(c, services.NewValidationError("goal is required"))
	}

	workflow, err := workflows.CreateEssayWorkflow(c.Request().Context(), s.Workflows, req.Goal, req.Requirements)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusCreated, workflow)
}
