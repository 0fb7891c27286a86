package template

import (
	"github.com/flowforge/flowforge/workflow"
)

func floatPtr(f float64) *float64 { return &f }

// NewReActTemplate builds the ReAct (reason + act) loop template: an analyze
// step decides whether to call a tool; tool execution feeds back into
// analysis until no further tool call is needed.
func NewReActTemplate() *BaseTemplate {
	params := []ParameterSpec{
		{Name: "llm_client", Type: TypeString, Description: "LLM client identifier", Required: true},
		{Name: "max_iterations", Type: TypeInteger, Description: "reasoning loop bound", Default: 10, Min: floatPtr(1), Max: floatPtr(100)},
		{Name: "tools", Type: TypeArray, Items: TypeString, Description: "tool names available to the agent"},
	}
	return NewBaseTemplate("react", "ReAct reasoning loop", "agent", params, buildReAct)
}

func buildReAct(wf *workflow.Workflow, config map[string]any) error {
	if err := addReActCore(wf, config); err != nil {
		return err
	}
	wf.SetEntryPoint("analyze")
	return nil
}

// addReActCore adds the three-step loop shared by ReAct and its enhanced
// variant.
func addReActCore(wf *workflow.Workflow, config map[string]any) error {
	analyzeOpts := []workflow.StepOption{
		workflow.WithStepDescription("reason about the task and decide the next action"),
		workflow.WithStepConfig("llm_client", config["llm_client"]),
	}
	if v, ok := config["max_iterations"]; ok {
		analyzeOpts = append(analyzeOpts, workflow.WithStepConfig("max_iterations", v))
	}
	if err := addStep(wf, "analyze", workflow.StepAnalysis, analyzeOpts...); err != nil {
		return err
	}

	executeOpts := []workflow.StepOption{
		workflow.WithStepDescription("run the selected tool"),
	}
	if v, ok := config["tools"]; ok {
		executeOpts = append(executeOpts, workflow.WithStepConfig("tools", v))
	}
	if err := addStep(wf, "execute_tool", workflow.StepExecution, executeOpts...); err != nil {
		return err
	}

	if err := addStep(wf, "finalize", workflow.StepEnd,
		workflow.WithStepDescription("produce the final answer")); err != nil {
		return err
	}

	if err := addTransition(wf, "analyze", "execute_tool", workflow.TransitionConditional,
		workflow.WithCondition("$has_tool_call"), workflow.WithPriority(10)); err != nil {
		return err
	}
	if err := addTransition(wf, "analyze", "finalize", workflow.TransitionConditional,
		workflow.WithCondition("!$has_tool_call")); err != nil {
		return err
	}
	return addTransition(wf, "execute_tool", "analyze", workflow.TransitionSimple)
}

// NewEnhancedReActTemplate extends ReAct with error recovery, optional
// conversation memory, and bounded parallel tool execution.
func NewEnhancedReActTemplate() *BaseTemplate {
	params := []ParameterSpec{
		{Name: "llm_client", Type: TypeString, Description: "LLM client identifier", Required: true},
		{Name: "max_iterations", Type: TypeInteger, Description: "reasoning loop bound", Default: 10, Min: floatPtr(1), Max: floatPtr(100)},
		{Name: "tools", Type: TypeArray, Items: TypeString, Description: "tool names available to the agent"},
		{Name: "enable_memory", Type: TypeBoolean, Description: "carry conversation memory across iterations", Default: false},
		{Name: "max_parallel_tools", Type: TypeInteger, Description: "parallel tool call bound", Default: 1, Min: floatPtr(1), Max: floatPtr(16)},
	}
	return NewBaseTemplate("enhanced_react", "ReAct loop with error recovery and memory", "agent", params, buildEnhancedReAct)
}

func buildEnhancedReAct(wf *workflow.Workflow, config map[string]any) error {
	if err := addReActCore(wf, config); err != nil {
		return err
	}

	if enabled, _ := config["enable_memory"].(bool); enabled {
		analyze, _ := wf.Step("analyze")
		analyze.Config["enable_memory"] = true
	}
	if v, ok := config["max_parallel_tools"]; ok {
		execute, _ := wf.Step("execute_tool")
		execute.Config["max_parallel_tools"] = v
	}

	if err := addStep(wf, "error_recovery", workflow.StepControl,
		workflow.WithStepDescription("recover from a failed analysis step")); err != nil {
		return err
	}
	if err := addTransition(wf, "analyze", "error_recovery", workflow.TransitionError); err != nil {
		return err
	}
	if err := addTransition(wf, "error_recovery", "analyze", workflow.TransitionSimple); err != nil {
		return err
	}

	wf.SetEntryPoint("analyze")
	return nil
}
