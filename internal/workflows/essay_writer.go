// Package workflows contains canned workflow templates.
package workflows

import (
	"context"

	"inkwell/backend/internal/services"
	"inkwell/backend/pkg/models"
)

func strPtr(s string) *string { return &s }

// essayWriterSteps is the Essay Writer template: plan, draft, verify,
// humanize, integrity-check, and a final AI-detection report. Every step up
// to the integrity check pauses for explicit approval.
func essayWriterSteps(requirements map[string]any) []services.AddStepInput {
	params := func(extra map[string]any) map[string]any {
		merged := map[string]any{}
		for k, v := range requirements {
			merged[k] = v
		}
		for k, v := range extra {
			merged[k] = v
		}
		return merged
	}

	return []services.AddStepInput{
		{
			StepIndex:        0,
			StepType:         models.StepTypePlan,
			Name:             "Planning Phase",
			Description:      strPtr("Analyze requirements and create essay outline"),
			Model:            strPtr("gpt-4o"),
			Techniques:       []string{"plansearch"},
			Parameters:       params(nil),
			RequiresApproval: true,
			ApprovalPrompt:   strPtr("Review the outline before drafting begins."),
		},
		{
			StepIndex:        1,
			StepType:         models.StepTypeDraft,
			Name:             "Draft Writing",
			Description:      strPtr("Write the full essay based on approved plan"),
			Model:            strPtr("claude-3-5-sonnet-latest"),
			Techniques:       []string{"cot_reflection"},
			Parameters:       params(nil),
			RequiresApproval: true,
			ApprovalPrompt:   strPtr("Review the draft before verification."),
		},
		{
			StepIndex:        2,
			StepType:         models.StepTypeVerify,
			Name:             "Requirement Verification",
			Description:      strPtr("Check if essay meets all requirements"),
			Model:            strPtr("gpt-4o"),
			Parameters:       params(nil),
			RequiresApproval: true,
			ApprovalPrompt:   strPtr("Confirm the verification report."),
		},
		{
			StepIndex:        3,
			StepType:         models.StepTypeHumanize,
			Name:             "Humanization",
			Description:      strPtr("Rewrite essay to read naturally"),
			Parameters:       params(map[string]any{"readability": "high_school", "purpose": "essay"}),
			RequiresApproval: true,
			ApprovalPrompt:   strPtr("Review the humanized text."),
		},
		{
			StepIndex:        4,
			StepType:         models.StepTypeIntegrityCheck,
			Name:             "Final Integrity Check",
			Description:      strPtr("Ensure humanization preserved content accuracy"),
			Model:            strPtr("gpt-4o-mini"),
			Parameters:       params(nil),
			RequiresApproval: true,
			ApprovalPrompt:   strPtr("Confirm the content survived humanization intact."),
		},
		{
			StepIndex:   5,
			StepType:    models.StepTypeAIDetection,
			Name:        "AI Detection Check",
			Description: strPtr("Run AI detection on final essay"),
			Parameters:  params(nil),
			// Auto-completes; the user just sees the report.
			RequiresApproval: false,
		},
	}
}

// CreateEssayWorkflow creates an Essay Writer workflow instance with the full
// template step sequence.
func CreateEssayWorkflow(ctx context.Context, svc *services.WorkflowService, goal string, requirements map[string]any) (*models.Workflow, error) {
	if requirements == nil {
		requirements = map[string]any{}
	}

	workflow, err := svc.CreateWorkflow(ctx, "Essay Writer", goal,
		strPtr("Multi-step workflow for writing, humanizing, and checking essays"),
		map[string]any{"requirements": requirements, "template": "essay_writer"})
	if err != nil {
		return nil, err
	}

	for _, step := range essayWriterSteps(requirements) {
		if workflow, err = svc.AddStep(ctx, workflow.ID, step); err != nil {
			return nil, err
		}
	}
	return workflow, nil
}
