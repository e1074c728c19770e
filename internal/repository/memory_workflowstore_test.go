package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/backend/pkg/models"
)

func newTestWorkflow() *models.Workflow {
	now := time.Now().UTC()
	return &models.Workflow{
		ID:        uuid.New().String(),
		Name:      "Essay Writer",
		Goal:      "Write a 500-word essay on the American Revolution",
		Status:    models.WorkflowStatusPending,
		Config:    map[string]any{"style": "academic"},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTestStep(workflowID string, index int) *models.WorkflowStep {
	return &models.WorkflowStep{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		StepIndex:  index,
		StepType:   models.StepTypeDraft,
		Name:       "Draft Writing",
		Techniques: []string{"cot_reflection"},
		Parameters: map[string]any{"word_count": 500},
		Status:     models.StepStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestMemoryWorkflowStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	w := newTestWorkflow()
	require.NoError(t, store.CreateWorkflow(ctx, w))

	got, err := store.GetWorkflow(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Name, got.Name)
	assert.Equal(t, w.Goal, got.Goal)
	assert.Equal(t, models.WorkflowStatusPending, got.Status)
	assert.Empty(t, got.Steps)

	_, err = store.GetWorkflow(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryWorkflowStore_Steps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	w := newTestWorkflow()
	require.NoError(t, store.CreateWorkflow(ctx, w))

	// Insert out of order; reads must come back ordered by index.
	require.NoError(t, store.AddStep(ctx, newTestStep(w.ID, 1)))
	require.NoError(t, store.AddStep(ctx, newTestStep(w.ID, 0)))

	assert.ErrorIs(t, store.AddStep(ctx, newTestStep(w.ID, 1)), ErrDuplicateStepIndex)

	got, err := store.GetWorkflow(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, 0, got.Steps[0].StepIndex)
	assert.Equal(t, 1, got.Steps[1].StepIndex)

	step := got.Steps[0]
	step.Status = models.StepStatusRunning
	require.NoError(t, store.UpdateStep(ctx, step))

	got, err = store.GetWorkflow(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusRunning, got.Steps[0].Status)
}

func TestMemoryWorkflowStore_VersionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	w := newTestWorkflow()
	require.NoError(t, store.CreateWorkflow(ctx, w))

	first, err := store.GetWorkflow(ctx, w.ID)
	require.NoError(t, err)
	second, err := store.GetWorkflow(ctx, w.ID)
	require.NoError(t, err)

	first.Status = models.WorkflowStatusRunning
	require.NoError(t, store.UpdateWorkflow(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Status = models.WorkflowStatusFailed
	assert.ErrorIs(t, store.UpdateWorkflow(ctx, second), ErrVersionConflict)
}

func TestMemoryWorkflowStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	for i := 0; i < 3; i++ {
		w := newTestWorkflow()
		w.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if i == 2 {
			w.Status = models.WorkflowStatusCompleted
		}
		require.NoError(t, store.CreateWorkflow(ctx, w))
	}

	all, total, err := store.ListWorkflows(ctx, nil, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)
	// Newest first.
	assert.True(t, all[0].CreatedAt.After(all[2].CreatedAt))

	completed := models.WorkflowStatusCompleted
	filtered, total, err := store.ListWorkflows(ctx, &completed, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, filtered, 1)

	paged, total, err := store.ListWorkflows(ctx, nil, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, paged, 1)
}

func TestMemoryWorkflowStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWorkflowStore()

	w := newTestWorkflow()
	require.NoError(t, store.CreateWorkflow(ctx, w))
	require.NoError(t, store.AddStep(ctx, newTestStep(w.ID, 0)))

	require.NoError(t, store.DeleteWorkflow(ctx, w.ID))
	_, err := store.GetWorkflow(ctx, w.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.DeleteWorkflow(ctx, w.ID), ErrNotFound)
}
