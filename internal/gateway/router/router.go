package router

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mrmushfiq/llm-task-router/internal/gateway/registry"
	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

// ErrUnknownTaskType is returned for an unrecognized task type when the
// default-chain policy is disabled.
var ErrUnknownTaskType = fmt.Errorf("unknown task type")

// The closed set of task types. Adding a task type means declaring it here
// and giving it a route in Routes.
const (
	TaskSummarize models.TaskType = "summarize"
	TaskClassify  models.TaskType = "classify"
	TaskExtract   models.TaskType = "extract"
	TaskAnalyze   models.TaskType = "analyze"
	TaskGenerate  models.TaskType = "generate"
)

// FallbackChain is an ordered list of model IDs to attempt in sequence.
// The primary model is always the first element.
type FallbackChain []string

// Primary returns the first model in the chain.
func (c FallbackChain) Primary() string { return c[0] }

// Routes is the static task-type routing table.
func Routes() map[models.TaskType]FallbackChain {
	return map[models.TaskType]FallbackChain{
		TaskSummarize: {"gemini-2.5-flash", "gpt-4o-mini", "claude-haiku-4-5"},
		TaskClassify:  {"gpt-4o-mini", "gemini-2.5-flash"},
		TaskExtract:   {"claude-haiku-4-5", "gpt-4o-mini", "gemini-2.5-flash"},
		TaskAnalyze:   {"claude-sonnet-4-5", "gpt-4o", "gemini-2.5-pro"},
		TaskGenerate:  {"gpt-4o", "claude-sonnet-4-5", "gemini-2.5-pro"},
	}
}

// DefaultChain is the documented fallback route for unrecognized task
// types: a mid-tier model with cheap alternates.
func DefaultChain() FallbackChain {
	return FallbackChain{"gemini-2.5-flash", "gpt-4o-mini"}
}

// Router resolves a task type to its fallback chain. Chains are static,
// pre-declared ordered lists and are never mutated at runtime.
type Router struct {
	routes       map[models.TaskType]FallbackChain
	defaultChain FallbackChain
	allowUnknown bool
	logger       *zap.Logger
}

// New validates every declared route against the registry and builds the
// router. A route referencing an unregistered model is fatal here rather
// than a silent runtime failure. When allowUnknown is set, unrecognized
// task types resolve to the default chain instead of failing; each such
// resolution is logged at warn level.
func New(reg *registry.Registry, routes map[models.TaskType]FallbackChain, defaultChain FallbackChain, allowUnknown bool, logger *zap.Logger) (*Router, error) {
	if len(defaultChain) == 0 {
		return nil, fmt.Errorf("default chain must not be empty")
	}
	validate := func(task models.TaskType, chain FallbackChain) error {
		if len(chain) == 0 {
			return fmt.Errorf("task %q: empty fallback chain", task)
		}
		for _, modelID := range chain {
			if _, err := reg.Get(modelID); err != nil {
				return fmt.Errorf("task %q: %w", task, err)
			}
		}
		return nil
	}
	for task, chain := range routes {
		if err := validate(task, chain); err != nil {
			return nil, err
		}
	}
	if err := validate("(default)", defaultChain); err != nil {
		return nil, err
	}

	return &Router{
		routes:       routes,
		defaultChain: defaultChain,
		allowUnknown: allowUnknown,
		logger:       logger,
	}, nil
}

// ResolveChain returns the fallback chain for a task type. Unrecognized
// task types either resolve to the default chain (logged) or fail,
// depending on the allowUnknown policy.
func (r *Router) ResolveChain(taskType models.TaskType) (FallbackChain, error) {
	if chain, ok := r.routes[taskType]; ok {
		return chain, nil
	}
	if !r.allowUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	r.logger.Warn("unrecognized task type, using default chain",
		zap.String("task_type", string(taskType)),
		zap.Strings("chain", r.defaultChain),
	)
	return r.defaultChain, nil
}

// Primary returns the primary model ID for a task type.
func (r *Router) Primary(taskType models.TaskType) (string, error) {
	chain, err := r.ResolveChain(taskType)
	if err != nil {
		return "", err
	}
	return chain.Primary(), nil
}
