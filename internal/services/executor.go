package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"inkwell/backend/pkg/models"
)

// StepResult carries the output and execution metrics of a single step run.
// InputPrompt is populated even when the collaborator call fails, so the
// attempted prompt is always available for audit.
type StepResult struct {
	Output          string
	InputPrompt     string
	ExecutionTimeMs int64
	TokenCount      int
}

// StepExecutor runs one step definition against the appropriate collaborator
// family: generation for content-producing steps, verification/transformation
// for check and transform steps.
type StepExecutor struct {
	generator GenerationClient
	humanizer HumanizerClient
	detector  DetectorClient
	tokens    *TokenCounter
}

// NewStepExecutor creates a new StepExecutor.
func NewStepExecutor(generator GenerationClient, humanizer HumanizerClient, detector DetectorClient, tokens *TokenCounter) *StepExecutor {
	return &StepExecutor{
		generator: generator,
		humanizer: humanizer,
		detector:  detector,
		tokens:    tokens,
	}
}

// RunStep resolves the step's prompt from the workflow goal and prior step
// outputs, dispatches to the collaborator selected by the step type, and
// returns the output with latency and token metrics. Collaborator failures
// surface as ExecutionError; the executor never retries.
func (e *StepExecutor) RunStep(ctx context.Context, workflow *models.Workflow, step *models.WorkflowStep) (*StepResult, error) {
	result := &StepResult{InputPrompt: e.BuildPrompt(workflow, step)}
	start := time.Now()

	var output string
	var err error
	switch step.StepType {
	case models.StepTypeHumanize:
		output, err = e.humanizer.Transform(ctx, result.InputPrompt, step.Parameters)
	case models.StepTypeAIDetection:
		var detection *DetectionResult
		detection, err = e.detector.Score(ctx, result.InputPrompt)
		if err == nil {
			output = renderDetectionReport(detection)
		}
	default:
		model := ""
		if step.Model != nil {
			model = *step.Model
		}
		output, err = e.generator.Complete(ctx, model, step.Techniques, result.InputPrompt)
	}

	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		return result, NewExecutionError(err)
	}

	result.Output = output
	result.TokenCount = e.tokens.Count(output)
	return result, nil
}

// BuildPrompt resolves the fully-expanded prompt for a step. The policy is
// deterministic: the workflow goal, then every prior step's output in index
// order, then a step-type instruction, then parameters rendered with sorted keys.
func (e *StepExecutor) BuildPrompt(workflow *models.Workflow, step *models.WorkflowStep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", workflow.Goal)

	for _, prev := range workflow.Steps {
		if prev.StepIndex >= step.StepIndex {
			break
		}
		if prev.Output != nil && *prev.Output != "" {
			fmt.Fprintf(&b, "%s:\n%s\n\n", prev.Name, *prev.Output)
		}
	}

	b.WriteString(stepInstruction(step))

	if len(step.Parameters) > 0 {
		keys := make([]string, 0, len(step.Parameters))
		for k := range step.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("\n\nAdditional requirements:")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n- %s: %v", k, step.Parameters[k])
		}
	}

	return b.String()
}

func stepInstruction(step *models.WorkflowStep) string {
	switch step.StepType {
	case models.StepTypePlan:
		return "Create a detailed plan to achieve the goal. Break it down into clear steps."
	case models.StepTypeDraft:
		return "Based on the plan above, write the complete draft."
	case models.StepTypeVerify:
		return "Verify that the draft meets all requirements from the goal. Check for accuracy and completeness."
	case models.StepTypeHumanize:
		return "Rewrite the text to sound more natural and human-like while preserving all facts."
	case models.StepTypeIntegrityCheck:
		return "Compare the humanized version with the original draft. Ensure all key facts are preserved."
	case models.StepTypeAIDetection:
		return "Analyze the text for AI detection risk. Suggest improvements to sound more human."
	default:
		if step.Description != nil && *step.Description != "" {
			return *step.Description
		}
		return "Proceed with the task."
	}
}

func renderDetectionReport(r *DetectionResult) string {
	return fmt.Sprintf(`AI Detection Report:
- AI Probability: %.2f%%
- Classification: %s
- Average Generated Probability: %.2f%%
- Sentences Analyzed: %d
`, r.AIProbability*100, r.OverallClass, r.AverageGenerated*100, r.SentenceCount)
}
