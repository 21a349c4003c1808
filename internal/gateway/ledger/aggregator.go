package ledger

import (
	"context"
	"time"

	"github.com/mrmushfiq/llm-task-router/internal/shared/clock"
	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

// Statistics summarizes a subscriber's usage.
type Statistics struct {
	SpentToday         float64 `json:"spent_today_usd"`
	SpentThisMonth     float64 `json:"spent_this_month_usd"`
	ProjectedThisMonth float64 `json:"projected_this_month_usd"`
	Requests           int     `json:"requests"`
	TotalTokens        int     `json:"total_tokens"`
}

// Aggregator derives spend figures from the ledger. All computations are
// pure reads; day and month windows are UTC, the same windows the budget
// gate admits against.
type Aggregator struct {
	store Store
	clock clock.Clock
}

func NewAggregator(store Store, clk clock.Clock) *Aggregator {
	return &Aggregator{store: store, clock: clk}
}

// dayWindow returns [00:00 UTC, next 00:00 UTC) for the given date.
func dayWindow(date time.Time) (time.Time, time.Time) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

// monthWindow returns [1st 00:00 UTC, next month's 1st 00:00 UTC).
func monthWindow(year int, month time.Month) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

func (a *Aggregator) sum(ctx context.Context, subscriberID string, from, to time.Time) (float64, error) {
	recs, err := a.store.Between(ctx, subscriberID, from, to)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, rec := range recs {
		total += rec.CostUSD
	}
	return total, nil
}

// DailyCost returns a subscriber's total spend for the UTC day containing
// date.
func (a *Aggregator) DailyCost(ctx context.Context, subscriberID string, date time.Time) (float64, error) {
	from, to := dayWindow(date.UTC())
	return a.sum(ctx, subscriberID, from, to)
}

// MonthlyCost returns a subscriber's total spend for the given UTC month.
func (a *Aggregator) MonthlyCost(ctx context.Context, subscriberID string, year int, month time.Month) (float64, error) {
	from, to := monthWindow(year, month)
	return a.sum(ctx, subscriberID, from, to)
}

// ProjectedMonthlyCost extrapolates the current month's spend linearly:
// spentSoFar / dayOfMonth * 30.
func (a *Aggregator) ProjectedMonthlyCost(ctx context.Context, subscriberID string) (float64, error) {
	now := a.clock.Now().UTC()
	spent, err := a.MonthlyCost(ctx, subscriberID, now.Year(), now.Month())
	if err != nil {
		return 0, err
	}
	return spent / float64(now.Day()) * 30, nil
}

// CostByTask breaks total recorded spend down by task type.
func (a *Aggregator) CostByTask(ctx context.Context) (map[models.TaskType]float64, error) {
	recs, err := a.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[models.TaskType]float64)
	for _, rec := range recs {
		out[rec.TaskType] += rec.CostUSD
	}
	return out, nil
}

// CostByModel breaks total recorded spend down by model.
func (a *Aggregator) CostByModel(ctx context.Context) (map[string]float64, error) {
	recs, err := a.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, rec := range recs {
		out[rec.Model] += rec.CostUSD
	}
	return out, nil
}

// Statistics returns the usage summary for one subscriber.
func (a *Aggregator) Statistics(ctx context.Context, subscriberID string) (Statistics, error) {
	now := a.clock.Now().UTC()

	spentToday, err := a.DailyCost(ctx, subscriberID, now)
	if err != nil {
		return Statistics{}, err
	}

	from, to := monthWindow(now.Year(), now.Month())
	recs, err := a.store.Between(ctx, subscriberID, from, to)
	if err != nil {
		return Statistics{}, err
	}
	var spentMonth float64
	var tokens int
	for _, rec := range recs {
		spentMonth += rec.CostUSD
		tokens += rec.InputTokens + rec.OutputTokens + rec.ReasoningTokens
	}

	return Statistics{
		SpentToday:         spentToday,
		SpentThisMonth:     spentMonth,
		ProjectedThisMonth: spentMonth / float64(now.Day()) * 30,
		Requests:           len(recs),
		TotalTokens:        tokens,
	}, nil
}
