package ports

import "context"

// LLMClient is the outbound interface for chat-completion providers.
type LLMClient interface {
	ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error)
}
