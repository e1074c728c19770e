package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepStatusTransitions(t *testing.T) {
	cases := []struct {
		from    StepStatus
		to      StepStatus
		allowed bool
	}{
		{StepStatusPending, StepStatusRunning, true},
		{StepStatusRunning, StepStatusCompleted, true},
		{StepStatusRunning, StepStatusWaitingApproval, true},
		{StepStatusRunning, StepStatusFailed, true},
		{StepStatusWaitingApproval, StepStatusApproved, true},
		{StepStatusWaitingApproval, StepStatusRejected, true},

		// No regressions and no skipped states.
		{StepStatusPending, StepStatusCompleted, false},
		{StepStatusPending, StepStatusWaitingApproval, false},
		{StepStatusRunning, StepStatusPending, false},
		{StepStatusCompleted, StepStatusRunning, false},
		{StepStatusApproved, StepStatusWaitingApproval, false},
		{StepStatusRejected, StepStatusRunning, false},
		{StepStatusFailed, StepStatusRunning, false},
		{StepStatusWaitingApproval, StepStatusCompleted, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestWorkflowStatusTerminal(t *testing.T) {
	assert.True(t, WorkflowStatusCompleted.Terminal())
	assert.True(t, WorkflowStatusFailed.Terminal())
	assert.True(t, WorkflowStatusCancelled.Terminal())
	assert.False(t, WorkflowStatusPending.Terminal())
	assert.False(t, WorkflowStatusRunning.Terminal())
	assert.False(t, WorkflowStatusPaused.Terminal())
}

func TestWorkflowStepAt(t *testing.T) {
	w := &Workflow{
		Steps: []*WorkflowStep{
			{StepIndex: 0, Name: "plan"},
			{StepIndex: 1, Name: "draft"},
		},
	}

	assert.Equal(t, "draft", w.StepAt(1).Name)
	assert.Nil(t, w.StepAt(2))
}
