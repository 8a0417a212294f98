package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Workflow is a named sequence of phases.
type Workflow interface {
	Name() string
	Execute(ctx context.Context, r *Run) error
}

// WorkflowFactory creates a new instance of a workflow.
type WorkflowFactory func() Workflow

var (
	registryMu sync.RWMutex
	registry   = make(map[string]WorkflowFactory)
)

// RegisterWorkflow registers a factory for a given workflow name.
func RegisterWorkflow(name string, factory WorkflowFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("RegisterWorkflow called twice for " + name)
	}
	registry[name] = factory
}

// GetWorkflow creates a new instance of the workflow by name.
func GetWorkflow(name string) (Workflow, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("workflow '%s' not found in registry", name)
	}
	return factory(), nil
}

// WorkflowNames lists the registered workflows, sorted.
func WorkflowNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
