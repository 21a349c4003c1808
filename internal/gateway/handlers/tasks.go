package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mrmushfiq/llm-task-router/internal/gateway/executor"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/invoker"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/service"
	"github.com/mrmushfiq/llm-task-router/internal/shared/clock"
	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

type TaskHandler struct {
	svc    *service.Service
	clock  clock.Clock
	logger *zap.Logger
}

func NewTaskHandler(svc *service.Service, clk clock.Clock, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, clock: clk, logger: logger}
}

type executeRequest struct {
	TaskType        string                         `json:"task_type"`
	Messages        []openai.ChatCompletionMessage `json:"messages"`
	ReasoningEffort string                         `json:"reasoning_effort,omitempty"`
	MaxRetries      int                            `json:"max_retries,omitempty"`
}

// HandleExecute handles POST /v1/tasks/execute
func (h *TaskHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := SubscriberID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.TaskType == "" || len(req.Messages) == 0 {
		http.Error(w, "task_type and messages are required", http.StatusBadRequest)
		return
	}

	result, info, err := h.svc.ExecuteWithFallback(
		r.Context(),
		subscriberID,
		models.TaskType(req.TaskType),
		req.Messages,
		invoker.ReasoningEffort(req.ReasoningEffort),
		req.MaxRetries,
	)
	if err != nil {
		h.writeExecuteError(w, info, err)
		return
	}

	w.Header().Set("X-Model-Used", result.ModelUsed)
	w.Header().Set("X-Cost-USD", fmt.Sprintf("%.6f", result.CostUSD))
	if info.Warning != "" {
		w.Header().Set("X-Budget-Warning", info.Warning)
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TaskHandler) writeExecuteError(w http.ResponseWriter, info interface{}, err error) {
	switch {
	case errors.Is(err, service.ErrBudgetDenied):
		writeJSON(w, http.StatusPaymentRequired, info)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		var exhausted *executor.AllFallbacksExhaustedError
		if errors.As(err, &exhausted) {
			http.Error(w, exhausted.Error(), http.StatusBadGateway)
			return
		}
		h.logger.Error("execute failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

type budgetCheckRequest struct {
	TaskType  string `json:"task_type"`
	InputSize int    `json:"input_size"`
}

// HandleBudgetCheck handles POST /v1/budget/check
func (h *TaskHandler) HandleBudgetCheck(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := SubscriberID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req budgetCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	info, err := h.svc.CheckBudgetBeforeTask(r.Context(), subscriberID, models.TaskType(req.TaskType), req.InputSize)
	if err != nil {
		h.logger.Error("budget check failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleEstimate handles GET /v1/costs/estimate
func (h *TaskHandler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	taskType := r.URL.Query().Get("task_type")
	inputSize, err := strconv.Atoi(r.URL.Query().Get("input_size"))
	if taskType == "" || err != nil || inputSize < 0 {
		http.Error(w, "task_type and input_size are required", http.StatusBadRequest)
		return
	}

	amount, err := h.svc.EstimateTaskCost(models.TaskType(taskType), inputSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_type":          taskType,
		"input_size":         inputSize,
		"estimated_cost_usd": amount,
	})
}

// HandleDailyCost handles GET /v1/costs/daily
func (h *TaskHandler) HandleDailyCost(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := SubscriberID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	date := h.clock.Now().UTC()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	amount, err := h.svc.DailyCost(r.Context(), subscriberID, date)
	if err != nil {
		h.logger.Error("daily cost query failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"cost_usd": amount,
	})
}

// HandleMonthlyCost handles GET /v1/costs/monthly
func (h *TaskHandler) HandleMonthlyCost(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := SubscriberID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	now := h.clock.Now().UTC()
	year, month := now.Year(), now.Month()
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := time.Parse("2006-01", m)
		if err != nil {
			http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
			return
		}
		year, month = parsed.Year(), parsed.Month()
	}

	amount, err := h.svc.MonthlyCost(r.Context(), subscriberID, year, month)
	if err != nil {
		h.logger.Error("monthly cost query failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"month":    fmt.Sprintf("%04d-%02d", year, int(month)),
		"cost_usd": amount,
	})
}

// HandleUsageStats handles GET /v1/usage/stats
func (h *TaskHandler) HandleUsageStats(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := SubscriberID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	stats, err := h.svc.UsageStatistics(r.Context(), subscriberID)
	if err != nil {
		h.logger.Error("usage stats query failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleInvalidateSubscription handles POST /v1/subscription/invalidate.
// Called after a tier change so the next check sees the new plan instead
// of waiting out the cache TTL.
func (h *TaskHandler) HandleInvalidateSubscription(w http.ResponseWriter, r *http.Request) {
	subscriberID, ok := SubscriberID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.svc.InvalidateSubscription(r.Context(), subscriberID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleCostByTask handles GET /v1/costs/by-task
func (h *TaskHandler) HandleCostByTask(w http.ResponseWriter, r *http.Request) {
	byTask, err := h.svc.CostByTask(r.Context())
	if err != nil {
		h.logger.Error("cost by task query failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, byTask)
}

// HandleCostByModel handles GET /v1/costs/by-model
func (h *TaskHandler) HandleCostByModel(w http.ResponseWriter, r *http.Request) {
	byModel, err := h.svc.CostByModel(r.Context())
	if err != nil {
		h.logger.Error("cost by model query failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, byModel)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
