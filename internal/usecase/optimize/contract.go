package optimize

import "context"

// Completer is the LLM inference contract for query planning.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Visited answers whether a query was already issued during the task.
type Visited interface {
	Seen(query string) bool
}
