package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"inkwell/backend/internal/logging"
	"inkwell/backend/internal/repository"
	"inkwell/backend/pkg/models"
)

// Execution result statuses reported to callers.
const (
	StatusPausedForApproval = "paused_for_approval"
	StatusCompleted         = "completed"
	StatusFailed            = "failed"
	StatusRejected          = "rejected"
)

// ExecuteResult is the caller-visible outcome of an execute or approval call.
type ExecuteResult struct {
	Status           string `json:"status"`
	WorkflowID       string `json:"workflow_id"`
	CurrentStepIndex int    `json:"current_step_index"`
	StepName         string `json:"step_name,omitempty"`
	Output           string `json:"output,omitempty"`
	Result           string `json:"result,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Orchestrator owns the workflow control loop: it advances steps in index
// order, applies approval gates, and persists state after every step.
// Execution is single-flight per workflow; a second caller attempting to
// advance the same workflow receives a ConcurrencyError instead of blocking.
type Orchestrator struct {
	store    repository.WorkflowStore
	executor *StepExecutor
	logger   *logging.Logger

	// Per-workflow mutexes; cross-process writers are additionally fenced by
	// the store's optimistic version column.
	locks sync.Map
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(store repository.WorkflowStore, executor *StepExecutor, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		executor: executor,
		logger:   logger,
	}
}

// Execute advances a workflow from its current step until the next approval
// gate, a failure, or completion. The call blocks for the duration of every
// collaborator call it makes; callers poll GetWorkflow for status in between.
func (o *Orchestrator) Execute(ctx context.Context, workflowID string) (*ExecuteResult, error) {
	unlock, err := o.tryLock(workflowID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	workflow, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status.Terminal() {
		return nil, NewInvalidStateError("workflow %s is %s and cannot be executed", workflowID, workflow.Status)
	}
	if len(workflow.Steps) == 0 {
		return nil, NewValidationError("workflow %s has no steps", workflowID)
	}

	if workflow.Status == models.WorkflowStatusPending {
		now := time.Now().UTC()
		workflow.Status = models.WorkflowStatusRunning
		workflow.StartedAt = &now
		workflow.CurrentStepIndex = 0
		workflow.UpdatedAt = now
		if err := o.persistWorkflow(ctx, workflow); err != nil {
			return nil, err
		}
	}

	return o.run(ctx, workflow)
}

// ApproveStep resolves an approval gate on the workflow's current step. On
// approval the engine loop resumes synchronously and continues through any
// subsequent non-approval steps. On rejection the workflow fails and no
// further steps run; rejection requires non-empty feedback.
func (o *Orchestrator) ApproveStep(ctx context.Context, workflowID string, stepIndex int, approved bool, feedback string) (*ExecuteResult, error) {
	if !approved && strings.TrimSpace(feedback) == "" {
		return nil, NewValidationError("rejecting a step requires feedback")
	}

	unlock, err := o.tryLock(workflowID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	workflow, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusPaused {
		return nil, NewInvalidStateError("workflow %s is not paused for approval", workflowID)
	}
	if stepIndex != workflow.CurrentStepIndex {
		return nil, NewInvalidStateError("step %d is not the current approval target (current step is %d)",
			stepIndex, workflow.CurrentStepIndex)
	}
	step := workflow.StepAt(stepIndex)
	if step == nil {
		return nil, NewInvalidStateError("workflow %s has no step at index %d", workflowID, stepIndex)
	}
	if step.Status != models.StepStatusWaitingApproval {
		return nil, NewInvalidStateError("step %d is not waiting for approval", stepIndex)
	}

	now := time.Now().UTC()
	if feedback != "" {
		step.UserFeedback = &feedback
	}

	if !approved {
		step.Status = models.StepStatusRejected
		if err := o.store.UpdateStep(ctx, step); err != nil {
			return nil, err
		}

		msg := "step rejected: " + feedback
		workflow.Status = models.WorkflowStatusFailed
		workflow.ErrorMessage = &msg
		workflow.CompletedAt = &now
		workflow.UpdatedAt = now
		if err := o.persistWorkflow(ctx, workflow); err != nil {
			return nil, err
		}

		o.logger.Info("workflow step rejected", "workflow_id", workflowID, "step_index", stepIndex)
		return &ExecuteResult{
			Status:           StatusRejected,
			WorkflowID:       workflowID,
			CurrentStepIndex: stepIndex,
			StepName:         step.Name,
			Error:            msg,
		}, nil
	}

	step.Status = models.StepStatusApproved
	if err := o.store.UpdateStep(ctx, step); err != nil {
		return nil, err
	}
	o.logger.Info("workflow step approved", "workflow_id", workflowID, "step_index", stepIndex)

	workflow.CurrentStepIndex++
	workflow.UpdatedAt = now

	if workflow.CurrentStepIndex >= len(workflow.Steps) {
		workflow.Result = step.Output
		workflow.Status = models.WorkflowStatusCompleted
		workflow.CompletedAt = &now
		if err := o.persistWorkflow(ctx, workflow); err != nil {
			return nil, err
		}
		return o.completedResult(workflow), nil
	}

	workflow.Status = models.WorkflowStatusRunning
	if err := o.persistWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	return o.run(ctx, workflow)
}

// run drives the control loop from the workflow's current step. The caller
// must hold the workflow's lock. After every step the persisted state fully
// reflects the attempt; there is no partially-applied step.
func (o *Orchestrator) run(ctx context.Context, workflow *models.Workflow) (*ExecuteResult, error) {
	for workflow.CurrentStepIndex < len(workflow.Steps) {
		step := workflow.StepAt(workflow.CurrentStepIndex)
		if step == nil {
			return nil, NewInvalidStateError("workflow %s has no step at index %d",
				workflow.ID, workflow.CurrentStepIndex)
		}

		// Nothing to do until a decision arrives. Re-polling is idempotent.
		if step.Status == models.StepStatusWaitingApproval {
			if workflow.Status != models.WorkflowStatusPaused {
				workflow.Status = models.WorkflowStatusPaused
				workflow.UpdatedAt = time.Now().UTC()
				if err := o.persistWorkflow(ctx, workflow); err != nil {
					return nil, err
				}
			}
			return o.pausedResult(workflow, step), nil
		}

		// A step can be left completed with a stale cursor if the process
		// died between the step update and the cursor update. Just advance.
		if step.Status == models.StepStatusCompleted || step.Status == models.StepStatusApproved {
			workflow.CurrentStepIndex++
			workflow.UpdatedAt = time.Now().UTC()
			if err := o.persistWorkflow(ctx, workflow); err != nil {
				return nil, err
			}
			continue
		}

		started := time.Now().UTC()
		step.Status = models.StepStatusRunning
		step.StartedAt = &started
		if err := o.store.UpdateStep(ctx, step); err != nil {
			return nil, err
		}

		o.logger.Info("executing workflow step",
			"workflow_id", workflow.ID, "step_index", step.StepIndex, "step_type", step.StepType)

		result, execErr := o.executor.RunStep(ctx, workflow, step)
		step.InputPrompt = &result.InputPrompt
		step.ExecutionTimeMs = &result.ExecutionTimeMs

		now := time.Now().UTC()
		if execErr != nil {
			msg := execErr.Error()
			step.Status = models.StepStatusFailed
			step.ErrorMessage = &msg
			step.CompletedAt = &now
			if err := o.store.UpdateStep(ctx, step); err != nil {
				return nil, err
			}

			workflow.Status = models.WorkflowStatusFailed
			workflow.ErrorMessage = &msg
			workflow.CompletedAt = &now
			workflow.UpdatedAt = now
			if err := o.persistWorkflow(ctx, workflow); err != nil {
				return nil, err
			}

			o.logger.Error("workflow step failed",
				"workflow_id", workflow.ID, "step_index", step.StepIndex, "error", msg)
			return &ExecuteResult{
				Status:           StatusFailed,
				WorkflowID:       workflow.ID,
				CurrentStepIndex: step.StepIndex,
				StepName:         step.Name,
				Error:            msg,
			}, nil
		}

		step.Output = &result.Output
		step.TokenCount = &result.TokenCount
		step.CompletedAt = &now

		if step.RequiresApproval {
			step.Status = models.StepStatusWaitingApproval
			if err := o.store.UpdateStep(ctx, step); err != nil {
				return nil, err
			}

			workflow.Status = models.WorkflowStatusPaused
			workflow.UpdatedAt = now
			if err := o.persistWorkflow(ctx, workflow); err != nil {
				return nil, err
			}
			return o.pausedResult(workflow, step), nil
		}

		step.Status = models.StepStatusCompleted
		if err := o.store.UpdateStep(ctx, step); err != nil {
			return nil, err
		}

		workflow.CurrentStepIndex++
		workflow.UpdatedAt = now
		if err := o.persistWorkflow(ctx, workflow); err != nil {
			return nil, err
		}
	}

	last := workflow.Steps[len(workflow.Steps)-1]
	now := time.Now().UTC()
	workflow.Result = last.Output
	workflow.Status = models.WorkflowStatusCompleted
	workflow.CompletedAt = &now
	workflow.UpdatedAt = now
	if err := o.persistWorkflow(ctx, workflow); err != nil {
		return nil, err
	}

	o.logger.Info("workflow completed", "workflow_id", workflow.ID)
	return o.completedResult(workflow), nil
}

func (o *Orchestrator) pausedResult(workflow *models.Workflow, step *models.WorkflowStep) *ExecuteResult {
	out := ""
	if step.Output != nil {
		out = *step.Output
	}
	return &ExecuteResult{
		Status:           StatusPausedForApproval,
		WorkflowID:       workflow.ID,
		CurrentStepIndex: step.StepIndex,
		StepName:         step.Name,
		Output:           out,
	}
}

func (o *Orchestrator) completedResult(workflow *models.Workflow) *ExecuteResult {
	result := ""
	if workflow.Result != nil {
		result = *workflow.Result
	}
	return &ExecuteResult{
		Status:           StatusCompleted,
		WorkflowID:       workflow.ID,
		CurrentStepIndex: workflow.CurrentStepIndex,
		Result:           result,
	}
}

func (o *Orchestrator) persistWorkflow(ctx context.Context, workflow *models.Workflow) error {
	err := o.store.UpdateWorkflow(ctx, workflow)
	if errors.Is(err, repository.ErrVersionConflict) {
		return &ConcurrencyError{WorkflowID: workflow.ID}
	}
	return err
}

func (o *Orchestrator) tryLock(workflowID string) (func(), error) {
	v, _ := o.locks.LoadOrStore(workflowID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, &ConcurrencyError{WorkflowID: workflowID}
	}
	return mu.Unlock, nil
}
