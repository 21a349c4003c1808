package router

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mrmushfiq/llm-task-router/internal/gateway/registry"
	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

func newRouter(t *testing.T, allowUnknown bool) (*Router, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	rt, err := New(registry.Default(), Routes(), DefaultChain(), allowUnknown, zap.New(core))
	require.NoError(t, err)
	return rt, logs
}

func TestResolveChainKnownTask(t *testing.T) {
	rt, logs := newRouter(t, true)

	chain, err := rt.ResolveChain(TaskAnalyze)
	require.NoError(t, err)
	assert.Equal(t, FallbackChain{"claude-sonnet-4-5", "gpt-4o", "gemini-2.5-pro"}, chain)
	assert.Equal(t, "claude-sonnet-4-5", chain.Primary())
	assert.Zero(t, logs.Len(), "known task types must not log")
}

func TestResolveChainUnknownTaskDefaults(t *testing.T) {
	rt, logs := newRouter(t, true)

	chain, err := rt.ResolveChain("brand-new-task")
	require.NoError(t, err)
	assert.Equal(t, DefaultChain(), chain)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	assert.Equal(t, "brand-new-task", entry.ContextMap()["task_type"])
}

func TestResolveChainUnknownTaskStrict(t *testing.T) {
	rt, _ := newRouter(t, false)

	_, err := rt.ResolveChain("brand-new-task")
	assert.True(t, errors.Is(err, ErrUnknownTaskType))
}

func TestNewValidatesChainModels(t *testing.T) {
	routes := map[models.TaskType]FallbackChain{
		"bad": {"no-such-model"},
	}
	_, err := New(registry.Default(), routes, DefaultChain(), true, zap.NewNop())
	assert.True(t, errors.Is(err, registry.ErrUnknownModel))
}

func TestNewValidatesDefaultChain(t *testing.T) {
	_, err := New(registry.Default(), Routes(), FallbackChain{"no-such-model"}, true, zap.NewNop())
	assert.True(t, errors.Is(err, registry.ErrUnknownModel))

	_, err = New(registry.Default(), Routes(), nil, true, zap.NewNop())
	assert.Error(t, err)
}

func TestRoutesAlwaysStartWithPrimary(t *testing.T) {
	for task, chain := range Routes() {
		assert.NotEmpty(t, chain, "task %s", task)
	}
}
