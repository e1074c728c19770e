package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"inkwell/backend/internal/logging"
	"inkwell/backend/internal/repository"
	"inkwell/backend/pkg/models"
)

// WorkflowService manages workflow and step definitions around the engine:
// creation, step appending, listing, administrative status overrides, deletion.
type WorkflowService struct {
	store  repository.WorkflowStore
	logger *logging.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(store repository.WorkflowStore, logger *logging.Logger) *WorkflowService {
	return &WorkflowService{store: store, logger: logger}
}

// AddStepInput describes a step to append to a pending workflow.
type AddStepInput struct {
	StepIndex        int
	StepType         models.StepType
	Name             string
	Description      *string
	Model            *string
	Techniques       []string
	Parameters       map[string]any
	RequiresApproval bool
	ApprovalPrompt   *string
}

// CreateWorkflow creates a new workflow in pending state with no steps.
func (s *WorkflowService) CreateWorkflow(ctx context.Context, name, goal string, description *string, config map[string]any) (*models.Workflow, error) {
	if name == "" {
		return nil, NewValidationError("workflow name is required")
	}
	if goal == "" {
		return nil, NewValidationError("workflow goal is required")
	}
	if config == nil {
		config = map[string]any{}
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        name,
		Goal:        goal,
		Description: description,
		Status:      models.WorkflowStatusPending,
		Config:      config,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		Steps:       []*models.WorkflowStep{},
	}
	if err := s.store.CreateWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	s.logger.Info("workflow created", "workflow_id", workflow.ID, "name", name)
	return workflow, nil
}

// AddStep appends a step to a workflow. Steps are append-only while the
// workflow is pending; once execution starts the step list is immutable.
func (s *WorkflowService) AddStep(ctx context.Context, workflowID string, input AddStepInput) (*models.Workflow, error) {
	if input.Name == "" {
		return nil, NewValidationError("step name is required")
	}
	if !input.StepType.Valid() {
		return nil, NewValidationError("unknown step type %q", input.StepType)
	}
	if input.StepIndex < 0 {
		return nil, NewValidationError("step index must not be negative")
	}

	workflow, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if workflow.Status != models.WorkflowStatusPending {
		return nil, NewValidationError("workflow %s is %s; steps can only be added while pending",
			workflowID, workflow.Status)
	}

	if input.Techniques == nil {
		input.Techniques = []string{}
	}
	if input.Parameters == nil {
		input.Parameters = map[string]any{}
	}

	step := &models.WorkflowStep{
		ID:               uuid.New().String(),
		WorkflowID:       workflowID,
		StepIndex:        input.StepIndex,
		StepType:         input.StepType,
		Name:             input.Name,
		Description:      input.Description,
		Model:            input.Model,
		Techniques:       input.Techniques,
		Parameters:       input.Parameters,
		RequiresApproval: input.RequiresApproval,
		ApprovalPrompt:   input.ApprovalPrompt,
		Status:           models.StepStatusPending,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.store.AddStep(ctx, step); err != nil {
		if errors.Is(err, repository.ErrDuplicateStepIndex) {
			return nil, NewValidationError("step index %d already exists in workflow %s", input.StepIndex, workflowID)
		}
		return nil, err
	}

	return s.store.GetWorkflow(ctx, workflowID)
}

// GetWorkflow retrieves a workflow with all steps.
func (s *WorkflowService) GetWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error) {
	return s.store.GetWorkflow(ctx, workflowID)
}

// ListWorkflows returns workflows with an optional status filter.
func (s *WorkflowService) ListWorkflows(ctx context.Context, status *models.WorkflowStatus, limit, offset int) ([]*models.Workflow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if status != nil && !status.Valid() {
		return nil, 0, NewValidationError("unknown workflow status %q", *status)
	}
	return s.store.ListWorkflows(ctx, status, limit, offset)
}

// UpdateStatus is an administrative override used for manual recovery. It
// bypasses the engine entirely.
func (s *WorkflowService) UpdateStatus(ctx context.Context, workflowID string, status models.WorkflowStatus, errorMessage *string) (*models.Workflow, error) {
	if !status.Valid() {
		return nil, NewValidationError("unknown workflow status %q", status)
	}

	workflow, err := s.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.Status = status
	workflow.UpdatedAt = now
	if status == models.WorkflowStatusRunning && workflow.StartedAt == nil {
		workflow.StartedAt = &now
	}
	if status.Terminal() && workflow.CompletedAt == nil {
		workflow.CompletedAt = &now
	}
	if errorMessage != nil {
		workflow.ErrorMessage = errorMessage
	}

	if err := s.store.UpdateWorkflow(ctx, workflow); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, &ConcurrencyError{WorkflowID: workflowID}
		}
		return nil, err
	}

	s.logger.Warn("workflow status overridden", "workflow_id", workflowID, "status", status)
	return workflow, nil
}

// DeleteWorkflow removes a workflow and all of its steps.
func (s *WorkflowService) DeleteWorkflow(ctx context.Context, workflowID string) error {
	if err := s.store.DeleteWorkflow(ctx, workflowID); err != nil {
		return err
	}
	s.logger.Info("workflow deleted", "workflow_id", workflowID)
	return nil
}
