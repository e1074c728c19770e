// Package models defines the domain models for the workflow service
package models

import (
	"time"
)

// WorkflowStatus represents the execution status of a workflow
type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusPaused    WorkflowStatus = "paused"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// Terminal reports whether no further execution is possible from this status.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed || s == WorkflowStatusCancelled
}

// Valid reports whether s is a known workflow status.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusPending, WorkflowStatusRunning, WorkflowStatusPaused,
		WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled:
		return true
	}
	return false
}

// StepStatus represents the execution status of an individual step
type StepStatus string

const (
	StepStatusPending         StepStatus = "pending"
	StepStatusRunning         StepStatus = "running"
	StepStatusWaitingApproval StepStatus = "waiting_approval"
	StepStatusApproved        StepStatus = "approved"
	StepStatusRejected        StepStatus = "rejected"
	StepStatusCompleted       StepStatus = "completed"
	StepStatusFailed          StepStatus = "failed"
)

// stepTransitions encodes the monotonic step lifecycle:
// pending -> running -> {completed | waiting_approval -> {approved | rejected} | failed}
var stepTransitions = map[StepStatus][]StepStatus{
	StepStatusPending:         {StepStatusRunning},
	StepStatusRunning:         {StepStatusCompleted, StepStatusWaitingApproval, StepStatusFailed},
	StepStatusWaitingApproval: {StepStatusApproved, StepStatusRejected},
}

// CanTransition reports whether moving from s to next is a legal step
// lifecycle transition. Steps never regress to an earlier status.
func (s StepStatus) CanTransition(next StepStatus) bool {
	for _, allowed := range stepTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// StepType selects which collaborator family a step dispatches to
type StepType string

const (
	StepTypePlan           StepType = "plan"
	StepTypeDraft          StepType = "draft"
	StepTypeVerify         StepType = "verify"
	StepTypeHumanize       StepType = "humanize"
	StepTypeIntegrityCheck StepType = "integrity_check"
	StepTypeAIDetection    StepType = "ai_detection"
	StepTypeCustom         StepType = "custom"
)

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	switch t {
	case StepTypePlan, StepTypeDraft, StepTypeVerify, StepTypeHumanize,
		StepTypeIntegrityCheck, StepTypeAIDetection, StepTypeCustom:
		return true
	}
	return false
}

// Workflow represents a user-defined, ordered sequence of steps pursuing one goal.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	Goal        string         `json:"goal"`
	Status      WorkflowStatus `json:"status"`

	// Cursor into the ordered step list; the step being worked on or paused on.
	CurrentStepIndex int `json:"current_step_index"`

	// Opaque configuration passed through to steps, not interpreted by the engine.
	Config map[string]any `json:"config"`

	// Final output, set only on completion.
	Result *string `json:"result,omitempty"`

	// Set only on failure.
	ErrorMessage *string `json:"error_message,omitempty"`

	// Optimistic concurrency column; bumped on every persisted update.
	Version int `json:"-"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Owned steps ordered by StepIndex. A step cannot outlive its workflow.
	Steps []*WorkflowStep `json:"steps"`
}

// StepAt returns the step with the given index, or nil if out of range.
func (w *Workflow) StepAt(index int) *WorkflowStep {
	for _, s := range w.Steps {
		if s.StepIndex == index {
			return s
		}
	}
	return nil
}

// WorkflowStep represents a single unit of work within a workflow.
type WorkflowStep struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`

	// Position in execution order; 0-based, contiguous, immutable once running.
	StepIndex   int      `json:"step_index"`
	StepType    StepType `json:"step_type"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`

	// Collaborator model identifier; empty for steps that call a fixed external service.
	Model      *string        `json:"model,omitempty"`
	Techniques []string       `json:"techniques"`
	Parameters map[string]any `json:"parameters"`

	RequiresApproval bool    `json:"requires_approval"`
	ApprovalPrompt   *string `json:"approval_prompt,omitempty"`

	Status StepStatus `json:"status"`

	// The fully-resolved prompt actually sent to the collaborator.
	InputPrompt  *string `json:"input_prompt,omitempty"`
	Output       *string `json:"output,omitempty"`
	UserFeedback *string `json:"user_feedback,omitempty"`

	ExecutionTimeMs *int64  `json:"execution_time_ms,omitempty"`
	TokenCount      *int    `json:"token_count,omitempty"`
	ErrorMessage    *string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
