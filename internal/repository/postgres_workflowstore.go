package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"inkwell/backend/pkg/models"
)

// PostgresWorkflowStore is a PostgreSQL implementation of the WorkflowStore interface.
type PostgresWorkflowStore struct {
	db *pgxpool.Pool
}

// NewPostgresWorkflowStore creates a new PostgresWorkflowStore.
func NewPostgresWorkflowStore(db *pgxpool.Pool) *PostgresWorkflowStore {
	return &PostgresWorkflowStore{db: db}
}

// Migrate creates the workflow tables if they do not exist.
func (s *PostgresWorkflowStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflows (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			goal TEXT NOT NULL,
			status TEXT NOT NULL,
			current_step_index INT NOT NULL DEFAULT 0,
			config JSONB NOT NULL DEFAULT '{}',
			result TEXT,
			error_message TEXT,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS workflow_steps (
			id UUID PRIMARY KEY,
			workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
			step_index INT NOT NULL,
			step_type TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			model TEXT,
			techniques JSONB NOT NULL DEFAULT '[]',
			parameters JSONB NOT NULL DEFAULT '{}',
			requires_approval BOOLEAN NOT NULL DEFAULT FALSE,
			approval_prompt TEXT,
			status TEXT NOT NULL,
			input_prompt TEXT,
			output TEXT,
			user_feedback TEXT,
			execution_time_ms BIGINT,
			token_count INT,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			UNIQUE (workflow_id, step_index)
		);
	`)
	return err
}

// CreateWorkflow persists a new workflow with no steps.
func (s *PostgresWorkflowStore) CreateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	config, err := json.Marshal(workflow.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO workflows (id, name, description, goal, status, current_step_index,
			config, result, error_message, version, created_at, updated_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		workflow.ID, workflow.Name, workflow.Description, workflow.Goal, workflow.Status,
		workflow.CurrentStepIndex, config, workflow.Result, workflow.ErrorMessage,
		workflow.Version, workflow.CreatedAt, workflow.UpdatedAt, workflow.StartedAt, workflow.CompletedAt)
	return err
}

// GetWorkflow retrieves a workflow with all steps loaded in index order.
func (s *PostgresWorkflowStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var w models.Workflow
	var config []byte
	err := s.db.QueryRow(ctx, `
		SELECT id, name, description, goal, status, current_step_index, config,
			result, error_message, version, created_at, updated_at, started_at, completed_at
		FROM workflows WHERE id = $1`, id).Scan(
		&w.ID, &w.Name, &w.Description, &w.Goal, &w.Status, &w.CurrentStepIndex, &config,
		&w.Result, &w.ErrorMessage, &w.Version, &w.CreatedAt, &w.UpdatedAt, &w.StartedAt, &w.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(config, &w.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	steps, err := s.loadSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Steps = steps

	return &w, nil
}

func (s *PostgresWorkflowStore) loadSteps(ctx context.Context, workflowID string) ([]*models.WorkflowStep, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, workflow_id, step_index, step_type, name, description, model,
			techniques, parameters, requires_approval, approval_prompt, status,
			input_prompt, output, user_feedback, execution_time_ms, token_count,
			error_message, created_at, started_at, completed_at
		FROM workflow_steps WHERE workflow_id = $1 ORDER BY step_index`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*models.WorkflowStep
	for rows.Next() {
		var st models.WorkflowStep
		var techniques, parameters []byte
		err := rows.Scan(&st.ID, &st.WorkflowID, &st.StepIndex, &st.StepType, &st.Name,
			&st.Description, &st.Model, &techniques, &parameters, &st.RequiresApproval,
			&st.ApprovalPrompt, &st.Status, &st.InputPrompt, &st.Output, &st.UserFeedback,
			&st.ExecutionTimeMs, &st.TokenCount, &st.ErrorMessage,
			&st.CreatedAt, &st.StartedAt, &st.CompletedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(techniques, &st.Techniques); err != nil {
			return nil, fmt.Errorf("failed to unmarshal techniques: %w", err)
		}
		if err := json.Unmarshal(parameters, &st.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
		steps = append(steps, &st)
	}
	return steps, rows.Err()
}

// ListWorkflows returns workflows ordered by creation time descending.
func (s *PostgresWorkflowStore) ListWorkflows(ctx context.Context, status *models.WorkflowStatus, limit, offset int) ([]*models.Workflow, int, error) {
	// LIMIT NULL means no limit; non-positive limits return everything.
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	where := ""
	args := []any{limitArg, offset}
	countArgs := []any{}
	if status != nil {
		where = "WHERE status = $3"
		args = append(args, *status)
		countArgs = append(countArgs, *status)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM workflows"
	if status != nil {
		countQuery += " WHERE status = $1"
	}
	if err := s.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT id FROM workflows %s ORDER BY created_at DESC LIMIT $1 OFFSET $2`, where), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))
	for _, id := range ids {
		w, err := s.GetWorkflow(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		workflows = append(workflows, w)
	}
	return workflows, total, nil
}

// UpdateWorkflow persists workflow-level fields with optimistic locking on the
// version column. On success workflow.Version is bumped in place.
func (s *PostgresWorkflowStore) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	config, err := json.Marshal(workflow.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE workflows SET name = $1, description = $2, goal = $3, status = $4,
			current_step_index = $5, config = $6, result = $7, error_message = $8,
			version = version + 1, updated_at = $9, started_at = $10, completed_at = $11
		WHERE id = $12 AND version = $13`,
		workflow.Name, workflow.Description, workflow.Goal, workflow.Status,
		workflow.CurrentStepIndex, config, workflow.Result, workflow.ErrorMessage,
		workflow.UpdatedAt, workflow.StartedAt, workflow.CompletedAt,
		workflow.ID, workflow.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the row is gone or another writer bumped the version.
		if _, err := s.GetWorkflow(ctx, workflow.ID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	workflow.Version++
	return nil
}

// AddStep appends a step to a workflow.
func (s *PostgresWorkflowStore) AddStep(ctx context.Context, step *models.WorkflowStep) error {
	techniques, err := json.Marshal(step.Techniques)
	if err != nil {
		return fmt.Errorf("failed to marshal techniques: %w", err)
	}
	parameters, err := json.Marshal(step.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO workflow_steps (id, workflow_id, step_index, step_type, name,
			description, model, techniques, parameters, requires_approval, approval_prompt,
			status, input_prompt, output, user_feedback, execution_time_ms, token_count,
			error_message, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		step.ID, step.WorkflowID, step.StepIndex, step.StepType, step.Name,
		step.Description, step.Model, techniques, parameters, step.RequiresApproval,
		step.ApprovalPrompt, step.Status, step.InputPrompt, step.Output, step.UserFeedback,
		step.ExecutionTimeMs, step.TokenCount, step.ErrorMessage,
		step.CreatedAt, step.StartedAt, step.CompletedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateStepIndex
	}
	return err
}

// UpdateStep persists step-level execution state.
func (s *PostgresWorkflowStore) UpdateStep(ctx context.Context, step *models.WorkflowStep) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE workflow_steps SET status = $1, input_prompt = $2, output = $3,
			user_feedback = $4, execution_time_ms = $5, token_count = $6,
			error_message = $7, started_at = $8, completed_at = $9
		WHERE id = $10`,
		step.Status, step.InputPrompt, step.Output, step.UserFeedback,
		step.ExecutionTimeMs, step.TokenCount, step.ErrorMessage,
		step.StartedAt, step.CompletedAt, step.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWorkflow removes a workflow; steps cascade via the foreign key.
func (s *PostgresWorkflowStore) DeleteWorkflow(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// 23505 is the PostgreSQL unique_violation code.
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
