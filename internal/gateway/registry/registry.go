package registry

import (
	"fmt"

	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

// ErrUnknownModel is returned when a model ID is not in the catalog.
var ErrUnknownModel = fmt.Errorf("unknown model")

// EstimatedOutputRatio is the assumed output volume as a fraction of input
// volume when estimating cost before a call. It is a deliberate
// approximation, not a guarantee.
const EstimatedOutputRatio = 0.5

// Registry is the static model catalog. Read-only after construction.
type Registry struct {
	models map[string]models.ModelConfig
}

// New builds a registry from the given model configs. Duplicate IDs are a
// configuration error.
func New(configs ...models.ModelConfig) (*Registry, error) {
	r := &Registry{models: make(map[string]models.ModelConfig, len(configs))}
	for _, cfg := range configs {
		if cfg.ID == "" {
			return nil, fmt.Errorf("model config with empty ID")
		}
		if _, ok := r.models[cfg.ID]; ok {
			return nil, fmt.Errorf("duplicate model config: %s", cfg.ID)
		}
		r.models[cfg.ID] = cfg
	}
	return r, nil
}

// Default returns the built-in catalog. Prices are USD per 1K tokens.
func Default() *Registry {
	r, err := New(
		models.ModelConfig{ID: "gpt-4o-mini", Provider: "openai", InputPer1KTokens: 0.00015, OutputPer1KTokens: 0.0006, MaxOutputTokens: 16384, Tier: models.TierNano},
		models.ModelConfig{ID: "claude-haiku-4-5", Provider: "anthropic", InputPer1KTokens: 0.001, OutputPer1KTokens: 0.005, MaxOutputTokens: 8192, Tier: models.TierMini},
		models.ModelConfig{ID: "gemini-2.5-flash", Provider: "google", InputPer1KTokens: 0.0003, OutputPer1KTokens: 0.0025, MaxOutputTokens: 8192, Tier: models.TierFlash},
		models.ModelConfig{ID: "gpt-4o", Provider: "openai", InputPer1KTokens: 0.0025, OutputPer1KTokens: 0.01, MaxOutputTokens: 16384, SupportsReasoning: true, Tier: models.TierPro},
		models.ModelConfig{ID: "claude-sonnet-4-5", Provider: "anthropic", InputPer1KTokens: 0.003, OutputPer1KTokens: 0.015, MaxOutputTokens: 64000, SupportsReasoning: true, Tier: models.TierPro},
		models.ModelConfig{ID: "gemini-2.5-pro", Provider: "google", InputPer1KTokens: 0.00125, OutputPer1KTokens: 0.01, MaxOutputTokens: 65536, SupportsReasoning: true, Tier: models.TierPro},
	)
	if err != nil {
		panic(err) // static catalog, unreachable
	}
	return r
}

// Get returns the config for a model ID.
func (r *Registry) Get(modelID string) (models.ModelConfig, error) {
	cfg, ok := r.models[modelID]
	if !ok {
		return models.ModelConfig{}, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	return cfg, nil
}

// TierOf returns the tier label for a model ID.
func (r *Registry) TierOf(modelID string) (models.ModelTier, error) {
	cfg, err := r.Get(modelID)
	if err != nil {
		return "", err
	}
	return cfg.Tier, nil
}

// EstimateCost projects the cost of a call from its input token volume,
// assuming output is EstimatedOutputRatio of input.
func (r *Registry) EstimateCost(modelID string, inputTokens int) (float64, error) {
	cfg, err := r.Get(modelID)
	if err != nil {
		return 0, err
	}
	inputCost := float64(inputTokens) / 1000.0 * cfg.InputPer1KTokens
	outputCost := float64(inputTokens) * EstimatedOutputRatio / 1000.0 * cfg.OutputPer1KTokens
	return inputCost + outputCost, nil
}

// ActualCost computes the cost of a completed call from provider-reported
// token counts. Reasoning tokens are billed at the output rate.
func (r *Registry) ActualCost(modelID string, tokens models.TokenCounts) (float64, error) {
	cfg, err := r.Get(modelID)
	if err != nil {
		return 0, err
	}
	inputCost := float64(tokens.Input) / 1000.0 * cfg.InputPer1KTokens
	outputCost := float64(tokens.Output+tokens.Reasoning) / 1000.0 * cfg.OutputPer1KTokens
	return inputCost + outputCost, nil
}
