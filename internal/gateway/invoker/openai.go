package invoker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/mrmushfiq/llm-task-router/internal/shared/models"
)

// OpenAIInvoker calls the OpenAI chat completions API.
type OpenAIInvoker struct {
	client *openai.Client
}

// NewOpenAI creates an invoker backed by the OpenAI API.
func NewOpenAI(apiKey string) *OpenAIInvoker {
	return &OpenAIInvoker{client: openai.NewClient(apiKey)}
}

// Invoke makes a chat completion request and returns the text plus the
// provider-reported token counts.
func (p *OpenAIInvoker) Invoke(ctx context.Context, req Request) (Response, error) {
	openaiReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: req.Messages,
	}
	if req.MaxTokens > 0 {
		openaiReq.MaxTokens = req.MaxTokens
	}
	if req.ReasoningEffort != "" {
		openaiReq.ReasoningEffort = string(req.ReasoningEffort)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return Response{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, Transient(fmt.Errorf("OpenAI returned no choices"))
	}

	tokens := models.TokenCounts{
		Input:  resp.Usage.PromptTokens,
		Output: resp.Usage.CompletionTokens,
	}
	if resp.Usage.CompletionTokensDetails != nil {
		tokens.Reasoning = resp.Usage.CompletionTokensDetails.ReasoningTokens
		tokens.Output -= tokens.Reasoning
	}

	return Response{
		Text:   resp.Choices[0].Message.Content,
		Tokens: tokens,
	}, nil
}

// classify maps OpenAI API errors onto the retry taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return Transient(fmt.Errorf("OpenAI API error: %w", err))
		case apiErr.HTTPStatusCode >= 500:
			return Transient(fmt.Errorf("OpenAI API error: %w", err))
		case apiErr.HTTPStatusCode >= 400:
			return NonRetryable(fmt.Errorf("OpenAI API error: %w", err))
		}
	}
	// Network-level failures (connection reset, DNS) are worth retrying.
	return Transient(fmt.Errorf("OpenAI API error: %w", err))
}
