package template

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/flowforge/flowforge/workflow"
)

// Registry holds the available templates. Each caller creates its own
// registry; there is no process-wide instance.
type Registry struct {
	logger *zap.Logger

	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:    logger.With(zap.String("component", "template_registry")),
		templates: make(map[string]Template),
	}
}

// RegisterBuiltins registers the four built-in templates.
func (r *Registry) RegisterBuiltins() {
	r.Register(NewReActTemplate())
	r.Register(NewEnhancedReActTemplate())
	r.Register(NewPlanExecuteTemplate())
	r.Register(NewCollaborativePlanExecuteTemplate())
}

// Register adds a template. Registering a name again replaces the previous
// template with a warning.
func (r *Registry) Register(t Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[t.Name()]; exists {
		r.logger.Warn("overwriting registered template", zap.String("template", t.Name()))
	}
	r.templates[t.Name()] = t
}

// Get returns a template by name.
func (r *Registry) Get(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// List returns the registered template names sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Search matches the query case-insensitively against template names,
// descriptions, categories and parameter descriptions.
func (r *Registry) Search(query string) []Template {
	query = strings.ToLower(query)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Template
	for _, name := range r.sortedNames() {
		t := r.templates[name]
		if templateMatches(t, query) {
			out = append(out, t)
		}
	}
	return out
}

// CreateWorkflow builds a workflow from a registered template.
func (r *Registry) CreateWorkflow(templateName, workflowName string, config map[string]any) (*workflow.Workflow, error) {
	t, ok := r.Get(templateName)
	if !ok {
		return nil, &TemplateError{TemplateName: templateName, Message: "template not found"}
	}
	wf, err := t.CreateWorkflow(workflowName, "", config)
	if err != nil {
		return nil, err
	}
	r.logger.Info("workflow created from template",
		zap.String("template", templateName),
		zap.String("workflow_id", wf.ID),
	)
	return wf, nil
}

// sortedNames assumes the read lock is held.
func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func templateMatches(t Template, query string) bool {
	if strings.Contains(strings.ToLower(t.Name()), query) ||
		strings.Contains(strings.ToLower(t.Description()), query) ||
		strings.Contains(strings.ToLower(t.Category()), query) {
		return true
	}
	for _, p := range t.Parameters() {
		if strings.Contains(strings.ToLower(p.Description), query) {
			return true
		}
	}
	return false
}
