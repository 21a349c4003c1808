package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrmushfiq/llm-task-router/internal/gateway/budget"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/executor"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/ledger"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/registry"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/router"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/service"
	"github.com/mrmushfiq/llm-task-router/internal/shared/clock"
	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

type fakeSubs struct {
	tier models.BudgetTier
}

func (f *fakeSubs) Lookup(_ context.Context, _ string) (models.BudgetTier, error) {
	return f.tier, nil
}

// newCostHandler wires a TaskHandler over an in-memory ledger with the
// clock pinned, for exercising the reporting endpoints.
func newCostHandler(t *testing.T, now time.Time, store *ledger.MemoryStore) *TaskHandler {
	t.Helper()
	clk := clock.Func(func() time.Time { return now })

	reg := registry.Default()
	rt, err := router.New(reg, router.Routes(), router.DefaultChain(), true, zap.NewNop())
	require.NoError(t, err)

	agg := ledger.NewAggregator(store, clk)
	subs := &fakeSubs{tier: models.BudgetTier{
		Name:              "scale",
		DailyLimitUSD:     100,
		MonthlyLimitUSD:   1000,
		AllowedModelTiers: []models.ModelTier{models.TierNano, models.TierMini, models.TierFlash, models.TierPro},
	}}
	gate := budget.NewGate(subs, budget.NewMemoryCache(time.Minute, clk), rt, reg, agg, budget.NewReservations(), clk, zap.NewNop())
	exec := executor.New(reg, rt, store, nil, clk, zap.NewNop(), 2, time.Millisecond, 4*time.Millisecond)
	svc := service.New(reg, rt, gate, exec, agg, zap.NewNop())

	return NewTaskHandler(svc, clk, zap.NewNop())
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(req.Context(), subscriberKey, "sub-1")
	return req.WithContext(ctx)
}

func TestHandleDailyCostDefaultsToHandlerClock(t *testing.T) {
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	store := ledger.NewMemoryStore()
	require.NoError(t, store.Append(context.Background(), models.UsageRecord{
		ID: uuid.New(), SubscriberID: "sub-1", Model: "gpt-4o-mini",
		TaskType: "summarize", CostUSD: 2.5, CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, store.Append(context.Background(), models.UsageRecord{
		ID: uuid.New(), SubscriberID: "sub-1", Model: "gpt-4o-mini",
		TaskType: "summarize", CostUSD: 1.0, CreatedAt: now.AddDate(0, 0, -21),
	}))
	h := newCostHandler(t, now, store)

	// No date parameter: the handler's clock picks the day, not the
	// process wall clock.
	rec := httptest.NewRecorder()
	h.HandleDailyCost(rec, authedRequest(http.MethodGet, "/v1/costs/daily"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "2026-09-10", body["date"])
	assert.InDelta(t, 2.5, body["cost_usd"].(float64), 1e-9)
}

func TestHandleMonthlyCostDefaultsToHandlerClock(t *testing.T) {
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	store := ledger.NewMemoryStore()
	require.NoError(t, store.Append(context.Background(), models.UsageRecord{
		ID: uuid.New(), SubscriberID: "sub-1", Model: "gpt-4o-mini",
		TaskType: "summarize", CostUSD: 2.5, CreatedAt: now.AddDate(0, 0, -5),
	}))
	require.NoError(t, store.Append(context.Background(), models.UsageRecord{
		ID: uuid.New(), SubscriberID: "sub-1", Model: "gpt-4o-mini",
		TaskType: "summarize", CostUSD: 1.0, CreatedAt: now.AddDate(0, -1, 0),
	}))
	h := newCostHandler(t, now, store)

	rec := httptest.NewRecorder()
	h.HandleMonthlyCost(rec, authedRequest(http.MethodGet, "/v1/costs/monthly"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "2026-09", body["month"])
	assert.InDelta(t, 2.5, body["cost_usd"].(float64), 1e-9)
}
