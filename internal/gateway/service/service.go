package service

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mrmushfiq/llm-task-router/internal/gateway/budget"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/executor"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/invoker"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/ledger"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/registry"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/router"
	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

// ErrBudgetDenied is returned by ExecuteWithFallback when the budget gate
// refuses admission; the accompanying Info carries the reason and the
// remaining budget.
var ErrBudgetDenied = errors.New("budget check denied")

// charsPerToken is the rough input-size heuristic used when the caller
// supplies messages rather than a token count.
const charsPerToken = 4

// Service is the task routing core: admission, chain resolution, fallback
// execution, and usage reporting. Constructed once at process start and
// passed by reference; there is no package-level instance.
type Service struct {
	registry   *registry.Registry
	router     *router.Router
	gate       *budget.Gate
	executor   *executor.Executor
	aggregator *ledger.Aggregator
	logger     *zap.Logger
}

func New(
	reg *registry.Registry,
	rt *router.Router,
	gate *budget.Gate,
	exec *executor.Executor,
	agg *ledger.Aggregator,
	logger *zap.Logger,
) *Service {
	return &Service{
		registry:   reg,
		router:     rt,
		gate:       gate,
		executor:   exec,
		aggregator: agg,
		logger:     logger,
	}
}

// estimateInputTokens approximates the token volume of a message payload.
func estimateInputTokens(messages []openai.ChatCompletionMessage) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return chars / charsPerToken
}

// ExecuteWithFallback runs the full admission, execute, record path.
// Admission and the reservation of the estimated cost are a single step
// under the gate's reservation lock, so concurrent requests from one
// subscriber cannot collectively pass against a stale spend snapshot.
// The reservation is released after the ledger write lands (or on
// failure).
func (s *Service) ExecuteWithFallback(
	ctx context.Context,
	subscriberID string,
	taskType models.TaskType,
	messages []openai.ChatCompletionMessage,
	effort invoker.ReasoningEffort,
	maxRetries int,
) (executor.Result, budget.Info, error) {
	inputSize := estimateInputTokens(messages)

	info, reservation, err := s.gate.CheckAndReserve(ctx, subscriberID, taskType, inputSize)
	if err != nil {
		return executor.Result{}, budget.Info{}, err
	}
	if !info.Allowed {
		return executor.Result{}, info, ErrBudgetDenied
	}
	defer reservation.Release()

	result, err := s.executor.Execute(ctx, executor.Task{
		SubscriberID:       subscriberID,
		TaskType:           taskType,
		Messages:           messages,
		ReasoningEffort:    effort,
		MaxRetriesPerModel: maxRetries,
	})
	if err != nil {
		return executor.Result{}, info, err
	}
	return result, info, nil
}

// CheckBudgetBeforeTask is the advisory pre-flight check. It reserves
// nothing; inputSize is the caller's estimated input token volume.
func (s *Service) CheckBudgetBeforeTask(ctx context.Context, subscriberID string, taskType models.TaskType, inputSize int) (budget.Info, error) {
	return s.gate.Check(ctx, subscriberID, taskType, inputSize)
}

// EstimateTaskCost previews the cost of a task without an admission
// decision. Pure: no side effects beyond the unknown-task-type warning.
func (s *Service) EstimateTaskCost(taskType models.TaskType, inputSize int) (float64, error) {
	primary, err := s.router.Primary(taskType)
	if err != nil {
		return 0, err
	}
	return s.registry.EstimateCost(primary, inputSize)
}

// InvalidateSubscription drops a subscriber's cached plan after a tier
// change.
func (s *Service) InvalidateSubscription(ctx context.Context, subscriberID string) {
	s.gate.Invalidate(ctx, subscriberID)
}

// DailyCost reports a subscriber's spend for the UTC day containing date.
func (s *Service) DailyCost(ctx context.Context, subscriberID string, date time.Time) (float64, error) {
	return s.aggregator.DailyCost(ctx, subscriberID, date)
}

// MonthlyCost reports a subscriber's spend for the given UTC month.
func (s *Service) MonthlyCost(ctx context.Context, subscriberID string, year int, month time.Month) (float64, error) {
	return s.aggregator.MonthlyCost(ctx, subscriberID, year, month)
}

// UsageStatistics summarizes a subscriber's current usage.
func (s *Service) UsageStatistics(ctx context.Context, subscriberID string) (ledger.Statistics, error) {
	return s.aggregator.Statistics(ctx, subscriberID)
}

// CostByTask breaks recorded spend down by task type.
func (s *Service) CostByTask(ctx context.Context) (map[models.TaskType]float64, error) {
	return s.aggregator.CostByTask(ctx)
}

// CostByModel breaks recorded spend down by model.
func (s *Service) CostByModel(ctx context.Context) (map[string]float64, error) {
	return s.aggregator.CostByModel(ctx)
}
