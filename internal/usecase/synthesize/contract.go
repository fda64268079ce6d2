package synthesize

import "context"

// Completer is the LLM inference contract for report writing.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
