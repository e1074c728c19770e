package repository

import (
	"context"
	"sort"
	"sync"

	"inkwell/backend/pkg/models"
)

// MemoryWorkflowStore is an in-memory implementation of the WorkflowStore
// interface. It backs unit tests and the dev-mode server; nothing stored here
// survives a process restart.
type MemoryWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]*models.Workflow
}

// NewMemoryWorkflowStore creates a new MemoryWorkflowStore.
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{workflows: make(map[string]*models.Workflow)}
}

// CreateWorkflow persists a new workflow with no steps.
func (s *MemoryWorkflowStore) CreateWorkflow(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[workflow.ID] = cloneWorkflow(workflow)
	return nil
}

// GetWorkflow retrieves a workflow with all steps loaded in index order.
func (s *MemoryWorkflowStore) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneWorkflow(w), nil
}

// ListWorkflows returns workflows ordered by creation time descending.
func (s *MemoryWorkflowStore) ListWorkflows(_ context.Context, status *models.WorkflowStatus, limit, offset int) ([]*models.Workflow, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Workflow
	for _, w := range s.workflows {
		if status != nil && w.Status != *status {
			continue
		}
		matched = append(matched, w)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*models.Workflow, 0, len(matched))
	for _, w := range matched {
		out = append(out, cloneWorkflow(w))
	}
	return out, total, nil
}

// UpdateWorkflow persists workflow-level fields with optimistic version checking.
func (s *MemoryWorkflowStore) UpdateWorkflow(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.workflows[workflow.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != workflow.Version {
		return ErrVersionConflict
	}

	updated := cloneWorkflow(workflow)
	updated.Version++
	updated.Steps = stored.Steps
	s.workflows[workflow.ID] = updated
	workflow.Version++
	return nil
}

// AddStep appends a step to a workflow.
func (s *MemoryWorkflowStore) AddStep(_ context.Context, step *models.WorkflowStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[step.WorkflowID]
	if !ok {
		return ErrNotFound
	}
	for _, existing := range w.Steps {
		if existing.StepIndex == step.StepIndex {
			return ErrDuplicateStepIndex
		}
	}
	w.Steps = append(w.Steps, cloneStep(step))
	sort.Slice(w.Steps, func(i, j int) bool {
		return w.Steps[i].StepIndex < w.Steps[j].StepIndex
	})
	return nil
}

// UpdateStep persists step-level execution state.
func (s *MemoryWorkflowStore) UpdateStep(_ context.Context, step *models.WorkflowStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[step.WorkflowID]
	if !ok {
		return ErrNotFound
	}
	for i, existing := range w.Steps {
		if existing.ID == step.ID {
			w.Steps[i] = cloneStep(step)
			return nil
		}
	}
	return ErrNotFound
}

// DeleteWorkflow removes a workflow and all of its steps.
func (s *MemoryWorkflowStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(s.workflows, id)
	return nil
}

func cloneWorkflow(w *models.Workflow) *models.Workflow {
	out := *w
	out.Config = cloneMap(w.Config)
	out.Steps = make([]*models.WorkflowStep, 0, len(w.Steps))
	for _, st := range w.Steps {
		out.Steps = append(out.Steps, cloneStep(st))
	}
	return &out
}

func cloneStep(st *models.WorkflowStep) *models.WorkflowStep {
	out := *st
	out.Techniques = append([]string(nil), st.Techniques...)
	out.Parameters = cloneMap(st.Parameters)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
