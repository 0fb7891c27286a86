package workflow

import "context"

// PromptService enriches the execution context before a run starts, e.g. by
// injecting rendered prompt text for the steps. Implementations live outside
// this package; the orchestrator treats the service as advisory and proceeds
// with the original context when preparation fails.
type PromptService interface {
	PrepareExecutionContext(ctx context.Context, wf *Workflow, execCtx map[string]any) (map[string]any, error)
}
