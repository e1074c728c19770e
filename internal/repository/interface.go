package repository

import (
	"context"
	"errors"

	"inkwell/backend/pkg/models"
)

// ErrNotFound is returned when a workflow does not exist.
var ErrNotFound = errors.New("workflow not found")

// ErrVersionConflict is returned when an optimistic update loses the race:
// the row's version column no longer matches the version that was read.
var ErrVersionConflict = errors.New("workflow version conflict")

// ErrDuplicateStepIndex is returned when a step index collides with an
// existing step of the same workflow.
var ErrDuplicateStepIndex = errors.New("duplicate step index")

// WorkflowStore is the durable record of workflows and their ordered steps.
// It is the only place execution progress survives a process restart.
type WorkflowStore interface {
	// CreateWorkflow persists a new workflow with no steps.
	CreateWorkflow(ctx context.Context, workflow *models.Workflow) error
	// GetWorkflow retrieves a workflow with all steps loaded in index order.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	// ListWorkflows returns workflows ordered by creation time descending,
	// optionally filtered by status, plus the total matching count.
	ListWorkflows(ctx context.Context, status *models.WorkflowStatus, limit, offset int) ([]*models.Workflow, int, error)
	// UpdateWorkflow persists workflow-level fields. The update only applies
	// if the stored version matches workflow.Version; on success the version
	// is bumped in place.
	UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error
	// AddStep appends a step to a workflow.
	AddStep(ctx context.Context, step *models.WorkflowStep) error
	// UpdateStep persists step-level execution state.
	UpdateStep(ctx context.Context, step *models.WorkflowStep) error
	// DeleteWorkflow removes a workflow and all of its steps.
	DeleteWorkflow(ctx context.Context, id string) error
}
