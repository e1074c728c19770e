package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"inkwell/backend/pkg/models"
)

func TestPostgresWorkflowStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgresWorkflowStore(pool)
	require.NoError(t, store.Migrate(ctx))

	t.Run("Create and Get", func(t *testing.T) {
		w := newTestWorkflow()
		require.NoError(t, store.CreateWorkflow(ctx, w))

		got, err := store.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, w.Name, got.Name)
		assert.Equal(t, w.Goal, got.Goal)
		assert.Equal(t, models.WorkflowStatusPending, got.Status)
		assert.Equal(t, "academic", got.Config["style"])
		assert.Empty(t, got.Steps)
	})

	t.Run("Steps round trip", func(t *testing.T) {
		w := newTestWorkflow()
		require.NoError(t, store.CreateWorkflow(ctx, w))

		require.NoError(t, store.AddStep(ctx, newTestStep(w.ID, 1)))
		require.NoError(t, store.AddStep(ctx, newTestStep(w.ID, 0)))
		assert.ErrorIs(t, store.AddStep(ctx, newTestStep(w.ID, 0)), ErrDuplicateStepIndex)

		got, err := store.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)
		require.Len(t, got.Steps, 2)
		assert.Equal(t, 0, got.Steps[0].StepIndex)
		assert.Equal(t, []string{"cot_reflection"}, got.Steps[0].Techniques)

		step := got.Steps[0]
		step.Status = models.StepStatusRunning
		now := time.Now().UTC()
		step.StartedAt = &now
		require.NoError(t, store.UpdateStep(ctx, step))

		got, err = store.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StepStatusRunning, got.Steps[0].Status)
		require.NotNil(t, got.Steps[0].StartedAt)
	})

	t.Run("Optimistic version conflict", func(t *testing.T) {
		w := newTestWorkflow()
		require.NoError(t, store.CreateWorkflow(ctx, w))

		first, err := store.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)
		second, err := store.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)

		first.Status = models.WorkflowStatusRunning
		first.UpdatedAt = time.Now().UTC()
		require.NoError(t, store.UpdateWorkflow(ctx, first))

		second.Status = models.WorkflowStatusFailed
		second.UpdatedAt = time.Now().UTC()
		assert.ErrorIs(t, store.UpdateWorkflow(ctx, second), ErrVersionConflict)
	})

	t.Run("Cascade delete", func(t *testing.T) {
		w := newTestWorkflow()
		require.NoError(t, store.CreateWorkflow(ctx, w))
		require.NoError(t, store.AddStep(ctx, newTestStep(w.ID, 0)))

		require.NoError(t, store.DeleteWorkflow(ctx, w.ID))

		_, err := store.GetWorkflow(ctx, w.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		var orphans int
		require.NoError(t, pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM workflow_steps WHERE workflow_id = $1", w.ID).Scan(&orphans))
		assert.Zero(t, orphans)
	})

	t.Run("List with filter", func(t *testing.T) {
		completed := models.WorkflowStatusCompleted
		w := newTestWorkflow()
		w.Status = completed
		require.NoError(t, store.CreateWorkflow(ctx, w))

		workflows, total, err := store.ListWorkflows(ctx, &completed, 10, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, 1)
		for _, got := range workflows {
			assert.Equal(t, completed, got.Status)
		}

		_, total, err = store.ListWorkflows(ctx, nil, 10, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, 2)

		id := uuid.New().String()
		assert.ErrorIs(t, store.DeleteWorkflow(ctx, id), ErrNotFound)
	})
}
