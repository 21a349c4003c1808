package invoker

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

// ReasoningEffort controls how much extended reasoning a capable model
// should spend on a request.
type ReasoningEffort string

const (
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
)

// Request is one provider call.
type Request struct {
	Model           string
	Messages        []openai.ChatCompletionMessage
	MaxTokens       int
	ReasoningEffort ReasoningEffort
}

// Response carries the provider's text and raw token counts. Token counts
// are what the provider actually billed, never an estimate.
type Response struct {
	Text   string
	Tokens models.TokenCounts
}

// Invoker performs the actual network call to a provider. Owned outside
// the routing core; the executor only depends on this seam.
//
// Implementations that learn of token usage on a failed call should return
// those counts alongside the error so partial provider-side billing can be
// surfaced instead of silently swallowed.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}
