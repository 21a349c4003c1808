package models

import (
	"time"

	"github.com/google/uuid"
)

// ModelTier is a coarse cost/capability bucket a subscription plan may or
// may not be allowed to use.
type ModelTier string

const (
	TierNano  ModelTier = "nano"
	TierMini  ModelTier = "mini"
	TierFlash ModelTier = "flash"
	TierPro   ModelTier = "pro"
)

// TaskType is a logical category of LLM work used to select a model route.
type TaskType string

// ModelConfig describes one routable model. Loaded once at startup and
// never mutated.
type ModelConfig struct {
	ID                string
	Provider          string
	InputPer1KTokens  float64
	OutputPer1KTokens float64
	MaxOutputTokens   int
	SupportsReasoning bool
	Tier              ModelTier
}

// TokenCounts holds provider-reported token usage for one call.
type TokenCounts struct {
	Input     int `json:"input"`
	Output    int `json:"output"`
	Reasoning int `json:"reasoning"`
}

// Total returns the total tokens across all categories.
func (t TokenCounts) Total() int {
	return t.Input + t.Output + t.Reasoning
}

// UsageRecord is one completed, successful provider call and its actual
// cost. Records are written exactly once, after the provider reports real
// token counts, and are never updated or deleted.
type UsageRecord struct {
	ID              uuid.UUID
	SubscriberID    string
	Model           string
	TaskType        TaskType
	InputTokens     int
	OutputTokens    int
	ReasoningTokens int
	CostUSD         float64
	LatencyMs       int
	CreatedAt       time.Time // always UTC
}

// BudgetTier is a subscription plan: spend limits plus the set of model
// tiers the plan may use.
type BudgetTier struct {
	Name               string
	DailyLimitUSD      float64
	MonthlyLimitUSD    float64
	MaxConcurrentTasks int
	AllowedModelTiers  []ModelTier
}

// Allows reports whether the plan may use models of the given tier.
func (b BudgetTier) Allows(tier ModelTier) bool {
	for _, t := range b.AllowedModelTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// Subscription maps a subscriber to their budget tier. Cached with a
// bounded TTL; RefreshedAt is when the tier was last loaded from the store.
type Subscription struct {
	SubscriberID string
	Tier         BudgetTier
	RefreshedAt  time.Time
}
