package budget

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrmushfiq/llm-task-router/internal/gateway/ledger"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/registry"
	"github.com/mrmushfiq/llm-task-router/internal/gateway/router"
	"github.com/mrmushfiq/llm-task-router/internal/metrics"
	"github.com/mrmushfiq/llm-task-router/internal/shared/clock"
	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

// Reason explains a denied admission.
type Reason string

const (
	ReasonModelTierRestricted   Reason = "model_tier_restricted"
	ReasonDailyBudgetExceeded   Reason = "daily_budget_exceeded"
	ReasonMonthlyBudgetExceeded Reason = "monthly_budget_exceeded"
)

// Warning severities attached to allowed decisions near the limit.
const (
	WarningNearLimit = "warning"  // >= 75% of daily limit
	WarningCritical  = "critical" // >= 90% of daily limit
)

// Info is the structured admission decision. Denials carry enough for the
// caller to surface an actionable message (remaining budget, required
// tier) rather than a bare failure.
type Info struct {
	Allowed       bool             `json:"allowed"`
	Reason        Reason           `json:"reason,omitempty"`
	Tier          string           `json:"tier"`
	RequiredTier  models.ModelTier `json:"required_tier,omitempty"`
	DailyLimit    float64          `json:"daily_limit_usd"`
	SpentToday    float64          `json:"spent_today_usd"`
	EstimatedCost float64          `json:"estimated_cost_usd"`
	Remaining     float64          `json:"remaining_usd"`
	UsagePercent  float64          `json:"usage_percent"`
	Warning       string           `json:"warning,omitempty"`
}

// Gate is the pre-flight admission check. It never reaches a provider:
// tier and budget denials are resolved here, before the executor is
// involved. Spent-so-far is today's ledger total plus in-flight
// reservations, so concurrent checks see each other's admitted work.
type Gate struct {
	subs         SubscriptionStore
	cache        SubscriptionCache
	router       *router.Router
	registry     *registry.Registry
	aggregator   *ledger.Aggregator
	reservations *Reservations
	clock        clock.Clock
	logger       *zap.Logger
}

func NewGate(
	subs SubscriptionStore,
	cache SubscriptionCache,
	rt *router.Router,
	reg *registry.Registry,
	agg *ledger.Aggregator,
	res *Reservations,
	clk clock.Clock,
	logger *zap.Logger,
) *Gate {
	return &Gate{
		subs:         subs,
		cache:        cache,
		router:       rt,
		registry:     reg,
		aggregator:   agg,
		reservations: res,
		clock:        clk,
		logger:       logger,
	}
}

// subscription returns the subscriber's plan, refreshing the cache on a
// miss or stale entry.
func (g *Gate) subscription(ctx context.Context, subscriberID string) (models.BudgetTier, error) {
	if sub, ok := g.cache.Get(ctx, subscriberID); ok {
		return sub.Tier, nil
	}
	tier, err := g.subs.Lookup(ctx, subscriberID)
	if err != nil {
		return models.BudgetTier{}, fmt.Errorf("subscription lookup for %s: %w", subscriberID, err)
	}
	g.cache.Put(ctx, models.Subscription{
		SubscriberID: subscriberID,
		Tier:         tier,
		RefreshedAt:  g.clock.Now(),
	})
	return tier, nil
}

// Invalidate drops a subscriber's cached plan. Called on tier change.
func (g *Gate) Invalidate(ctx context.Context, subscriberID string) {
	g.cache.Invalidate(ctx, subscriberID)
}

// Check decides whether a task may proceed. inputSize is the estimated
// input token volume. The returned error covers infrastructure failures
// only; a denial is Allowed=false with a Reason. Check is advisory and
// reserves nothing; the execute path uses CheckAndReserve.
func (g *Gate) Check(ctx context.Context, subscriberID string, taskType models.TaskType, inputSize int) (Info, error) {
	info, _, err := g.admit(ctx, subscriberID, taskType, inputSize, false)
	return info, err
}

// CheckAndReserve is Check plus a hold on the estimated cost, decided in
// one step under the reservations lock so two callers cannot both pass
// against the same ledger snapshot. On admission the returned reservation
// is non-nil and must be released after the ledger write lands (or on any
// failure path).
func (g *Gate) CheckAndReserve(ctx context.Context, subscriberID string, taskType models.TaskType, inputSize int) (Info, *Reservation, error) {
	return g.admit(ctx, subscriberID, taskType, inputSize, true)
}

func (g *Gate) admit(ctx context.Context, subscriberID string, taskType models.TaskType, inputSize int, reserve bool) (Info, *Reservation, error) {
	tier, err := g.subscription(ctx, subscriberID)
	if err != nil {
		return Info{}, nil, err
	}

	primary, err := g.router.Primary(taskType)
	if err != nil {
		return Info{}, nil, err
	}
	cfg, err := g.registry.Get(primary)
	if err != nil {
		return Info{}, nil, err
	}

	// Tier eligibility comes first: no cost is estimated or charged for a
	// model the plan cannot use.
	if !tier.Allows(cfg.Tier) {
		metrics.AdmissionDecisions.WithLabelValues(string(ReasonModelTierRestricted)).Inc()
		return Info{
			Allowed:      false,
			Reason:       ReasonModelTierRestricted,
			Tier:         tier.Name,
			RequiredTier: cfg.Tier,
			DailyLimit:   tier.DailyLimitUSD,
		}, nil, nil
	}

	estimated, err := g.registry.EstimateCost(primary, inputSize)
	if err != nil {
		return Info{}, nil, err
	}

	now := g.clock.Now().UTC()
	spentToday, err := g.aggregator.DailyCost(ctx, subscriberID, now)
	if err != nil {
		return Info{}, nil, err
	}
	spentMonth, err := g.aggregator.MonthlyCost(ctx, subscriberID, now.Year(), now.Month())
	if err != nil {
		return Info{}, nil, err
	}

	var (
		reservation *Reservation
		inflight    float64
		reason      Reason
	)
	if reserve {
		reservation, inflight, reason = g.reservations.TryReserve(
			subscriberID, estimated,
			spentToday, tier.DailyLimitUSD,
			spentMonth, tier.MonthlyLimitUSD,
		)
	} else {
		inflight = g.reservations.InFlight(subscriberID)
		switch {
		case spentToday+inflight+estimated > tier.DailyLimitUSD:
			reason = ReasonDailyBudgetExceeded
		case spentMonth+inflight+estimated > tier.MonthlyLimitUSD:
			reason = ReasonMonthlyBudgetExceeded
		}
	}

	info := Info{
		Tier:          tier.Name,
		DailyLimit:    tier.DailyLimitUSD,
		SpentToday:    spentToday + inflight,
		EstimatedCost: estimated,
		Remaining:     tier.DailyLimitUSD - spentToday - inflight,
	}

	if reason != "" {
		info.Reason = reason
		metrics.AdmissionDecisions.WithLabelValues(string(reason)).Inc()
		return info, nil, nil
	}

	info.Allowed = true
	info.Remaining -= estimated
	if tier.DailyLimitUSD > 0 {
		info.UsagePercent = (info.SpentToday + estimated) / tier.DailyLimitUSD * 100
	}
	switch {
	case info.UsagePercent >= 90:
		info.Warning = WarningCritical
	case info.UsagePercent >= 75:
		info.Warning = WarningNearLimit
	}
	if info.Warning != "" {
		g.logger.Warn("subscriber approaching daily budget",
			zap.String("subscriber_id", subscriberID),
			zap.Float64("usage_percent", info.UsagePercent),
			zap.String("severity", info.Warning),
		)
	}

	metrics.AdmissionDecisions.WithLabelValues("allowed").Inc()
	return info, reservation, nil
}
