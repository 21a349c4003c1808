package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mrmushfiq/llm-task-router/internal/gateway/invoker"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/ledger"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/registry"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/router"
	"github.com/mrmushfiq/llm-task-router/internal/metrics"
	"github.com/mrmushfiq/llm-task-router/internal/shared/clock"
	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

// Task is one unit of LLM work to run against a fallback chain.
type Task struct {
	SubscriberID       string
	TaskType           models.TaskType
	Messages           []openai.ChatCompletionMessage
	ReasoningEffort    invoker.ReasoningEffort
	MaxRetriesPerModel int // <= 0 uses the executor default
}

// Result reports the attempt that succeeded.
type Result struct {
	Response  string             `json:"response"`
	ModelUsed string             `json:"model_used"`
	CostUSD   float64            `json:"cost_usd"`
	Tokens    models.TokenCounts `json:"tokens"`
	LatencyMs int                `json:"latency_ms"`
	Attempts  int                `json:"attempts"`
}

// AllFallbacksExhaustedError is the terminal failure after every model in
// the chain has been tried.
type AllFallbacksExhaustedError struct {
	TaskType models.TaskType
	LastErr  error
}

func (e *AllFallbacksExhaustedError) Error() string {
	return fmt.Sprintf("all fallbacks exhausted for task %q: %v", e.TaskType, e.LastErr)
}

func (e *AllFallbacksExhaustedError) Unwrap() error { return e.LastErr }

// Executor runs tasks against their fallback chain: strictly sequential
// attempts, bounded retries per model with capped exponential backoff, and
// exactly one usage record per successful call. Failed attempts are never
// billed.
type Executor struct {
	registry    *registry.Registry
	router      *router.Router
	store       ledger.Store
	invoker     invoker.Invoker
	clock       clock.Clock
	logger      *zap.Logger
	maxRetries  int
	backoffBase time.Duration
	backoffCap  time.Duration
}

func New(
	reg *registry.Registry,
	rt *router.Router,
	store ledger.Store,
	inv invoker.Invoker,
	clk clock.Clock,
	logger *zap.Logger,
	maxRetries int,
	backoffBase, backoffCap time.Duration,
) *Executor {
	return &Executor{
		registry:    reg,
		router:      rt,
		store:       store,
		invoker:     inv,
		clock:       clk,
		logger:      logger,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
	}
}

// Execute walks the task's fallback chain in order. Each model gets up to
// maxRetriesPerModel attempts with exponential backoff between retries;
// non-retryable failures skip straight to the next model. Once the
// context's deadline elapses no new attempts are started.
func (e *Executor) Execute(ctx context.Context, task Task) (Result, error) {
	chain, err := e.router.ResolveChain(task.TaskType)
	if err != nil {
		return Result{}, err
	}

	maxRetries := task.MaxRetriesPerModel
	if maxRetries <= 0 {
		maxRetries = e.maxRetries
	}

	attempts := 0
	var lastErr error

	for _, modelID := range chain {
		cfg, err := e.registry.Get(modelID)
		if err != nil {
			return Result{}, err
		}

		for attempt := 0; attempt < maxRetries; attempt++ {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("task %q abandoned after %d attempts: %w", task.TaskType, attempts, err)
			}

			start := time.Now()
			resp, err := e.invoker.Invoke(ctx, invoker.Request{
				Model:           modelID,
				Messages:        task.Messages,
				MaxTokens:       cfg.MaxOutputTokens,
				ReasoningEffort: task.ReasoningEffort,
			})
			latency := time.Since(start)
			attempts++

			if err == nil {
				metrics.ModelAttempts.WithLabelValues(modelID, "success").Inc()
				return e.record(ctx, task, modelID, resp, latency, attempts)
			}

			lastErr = err
			retryable := invoker.IsRetryable(err)
			outcome := "transient_error"
			if !retryable {
				outcome = "non_retryable_error"
			}
			metrics.ModelAttempts.WithLabelValues(modelID, outcome).Inc()

			// A failed attempt that still reports token usage means the
			// provider may have billed us for work we are not recording.
			if resp.Tokens.Total() > 0 {
				e.logger.Warn("failed attempt reported token usage, possible partial billing",
					zap.String("model", modelID),
					zap.Int("tokens", resp.Tokens.Total()),
					zap.Error(err),
				)
			}

			e.logger.Warn("model attempt failed",
				zap.String("task_type", string(task.TaskType)),
				zap.String("model", modelID),
				zap.Int("attempt", attempt+1),
				zap.Bool("retryable", retryable),
				zap.Error(err),
			)

			if !retryable {
				break // next model in the chain
			}
			if attempt < maxRetries-1 {
				if err := e.backoff(ctx, attempt); err != nil {
					return Result{}, fmt.Errorf("task %q abandoned after %d attempts: %w", task.TaskType, attempts, err)
				}
			}
		}
	}

	return Result{}, &AllFallbacksExhaustedError{TaskType: task.TaskType, LastErr: lastErr}
}

// record computes actual cost from provider-reported counts, appends the
// usage record, and builds the result.
func (e *Executor) record(ctx context.Context, task Task, modelID string, resp invoker.Response, latency time.Duration, attempts int) (Result, error) {
	cost, err := e.registry.ActualCost(modelID, resp.Tokens)
	if err != nil {
		return Result{}, err
	}

	rec := models.UsageRecord{
		ID:              uuid.New(),
		SubscriberID:    task.SubscriberID,
		Model:           modelID,
		TaskType:        task.TaskType,
		InputTokens:     resp.Tokens.Input,
		OutputTokens:    resp.Tokens.Output,
		ReasoningTokens: resp.Tokens.Reasoning,
		CostUSD:         cost,
		LatencyMs:       int(latency.Milliseconds()),
		CreatedAt:       e.clock.Now().UTC(),
	}
	if err := e.store.Append(ctx, rec); err != nil {
		// The provider call succeeded but the spend is unaccounted; this
		// must surface rather than let the gate admit against missing
		// records.
		return Result{}, fmt.Errorf("append usage record for task %q: %w", task.TaskType, err)
	}

	metrics.RecordedSpend.WithLabelValues(modelID).Add(cost)

	return Result{
		Response:  resp.Text,
		ModelUsed: modelID,
		CostUSD:   cost,
		Tokens:    resp.Tokens,
		LatencyMs: rec.LatencyMs,
		Attempts:  attempts,
	}, nil
}

// backoff waits base * 2^attempt, capped, or returns early if the context
// is done. The wait never stalls other in-flight work.
func (e *Executor) backoff(ctx context.Context, attempt int) error {
	wait := e.backoffBase << uint(attempt)
	if wait > e.backoffCap {
		wait = e.backoffCap
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
