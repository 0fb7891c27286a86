package template

import (
	"fmt"

	"github.com/flowforge/flowforge/workflow"
)

// NewPlanExecuteTemplate builds the plan-and-execute template: a planning
// step produces a plan, execution and review alternate until the review
// decides the plan is done.
func NewPlanExecuteTemplate() *BaseTemplate {
	params := []ParameterSpec{
		{Name: "llm_client", Type: TypeString, Description: "LLM client identifier", Default: "default"},
		{Name: "max_steps", Type: TypeInteger, Description: "plan length bound", Default: 20, Min: floatPtr(1), Max: floatPtr(200)},
		{Name: "tools", Type: TypeArray, Items: TypeString, Description: "tool names available during execution"},
	}
	return NewBaseTemplate("plan_execute", "plan then execute with review", "agent", params, buildPlanExecute)
}

func buildPlanExecute(wf *workflow.Workflow, config map[string]any) error {
	if err := addPlanExecuteCore(wf, config); err != nil {
		return err
	}
	wf.SetEntryPoint("planning")
	return nil
}

func addPlanExecuteCore(wf *workflow.Workflow, config map[string]any) error {
	if err := addStep(wf, "planning", workflow.StepAnalysis,
		workflow.WithStepDescription("derive an executable plan from the task"),
		workflow.WithStepConfig("llm_client", config["llm_client"]),
		workflow.WithStepConfig("max_steps", config["max_steps"])); err != nil {
		return err
	}

	executeOpts := []workflow.StepOption{
		workflow.WithStepDescription("execute the current plan step"),
	}
	if v, ok := config["tools"]; ok {
		executeOpts = append(executeOpts, workflow.WithStepConfig("tools", v))
	}
	if err := addStep(wf, "execute_step", workflow.StepExecution, executeOpts...); err != nil {
		return err
	}

	if err := addStep(wf, "review", workflow.StepDecision,
		workflow.WithStepDescription("judge progress and decide whether to continue")); err != nil {
		return err
	}
	if err := addStep(wf, "finalize", workflow.StepEnd,
		workflow.WithStepDescription("assemble the final result")); err != nil {
		return err
	}

	if err := addTransition(wf, "planning", "execute_step", workflow.TransitionSimple); err != nil {
		return err
	}
	if err := addTransition(wf, "execute_step", "review", workflow.TransitionSimple); err != nil {
		return err
	}
	if err := addTransition(wf, "review", "execute_step", workflow.TransitionConditional,
		workflow.WithCondition("$continue_execution"), workflow.WithPriority(10)); err != nil {
		return err
	}
	return addTransition(wf, "review", "finalize", workflow.TransitionConditional,
		workflow.WithCondition("$execution_completed"))
}

// NewCollaborativePlanExecuteTemplate extends plan-execute with a chain of
// collaborator agents between execution and review.
func NewCollaborativePlanExecuteTemplate() *BaseTemplate {
	params := []ParameterSpec{
		{Name: "llm_client", Type: TypeString, Description: "LLM client identifier", Default: "default"},
		{Name: "max_steps", Type: TypeInteger, Description: "plan length bound", Default: 20, Min: floatPtr(1), Max: floatPtr(200)},
		{Name: "tools", Type: TypeArray, Items: TypeString, Description: "tool names available during execution"},
		{Name: "collaborators", Type: TypeArray, Items: TypeString, Description: "collaborator agent names, in review order", Required: true},
	}
	return NewBaseTemplate("collaborative_plan_execute", "plan-execute with collaborator review chain", "agent", params, buildCollaborativePlanExecute)
}

func buildCollaborativePlanExecute(wf *workflow.Workflow, config map[string]any) error {
	collaborators, err := collaboratorNames(config["collaborators"])
	if err != nil {
		return err
	}

	if err := addPlanExecuteCore(wf, config); err != nil {
		return err
	}

	// Collaborator steps chain conditionally off execute_step; the last one
	// feeds review. The plain execute_step->review transition stays as a
	// lower-priority fallback.
	prev := "execute_step"
	for i, name := range collaborators {
		stepName := fmt.Sprintf("collab_%s", name)
		if err := addStep(wf, stepName, workflow.StepExecution,
			workflow.WithStepDescription(fmt.Sprintf("review by collaborator %s", name)),
			workflow.WithStepConfig("collaborator", name)); err != nil {
			return err
		}
		if err := addTransition(wf, prev, stepName, workflow.TransitionConditional,
			workflow.WithCondition(fmt.Sprintf("$needs_collaboration_%d", i)),
			workflow.WithPriority(20)); err != nil {
			return err
		}
		prev = stepName
	}
	if err := addTransition(wf, prev, "review", workflow.TransitionSimple); err != nil {
		return err
	}

	wf.SetEntryPoint("planning")
	return nil
}

func collaboratorNames(value any) ([]string, error) {
	var names []string
	switch v := value.(type) {
	case []string:
		names = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("collaborators must be strings, got %T", item)
			}
			names = append(names, s)
		}
	default:
		return nil, fmt.Errorf("collaborators must be an array, got %T", value)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("collaborators must not be empty")
	}
	return names, nil
}
