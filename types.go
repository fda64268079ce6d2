package deepsearch

import (
	"context"
	"time"
)

// Completer is the public inference contract: one prompt pair in, the raw
// completion out.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string
	Content string
}

// Profile describes one investigation target.
type Profile struct {
	Description  string
	Query        string
	Size         int
	Include      map[string]string
	ContextLines int
}

// Report outcomes.
const (
	OutcomeComplete           = "complete"
	OutcomePartial            = "partial"
	OutcomeNoRelevantMaterial = "no_relevant_material"
)

// Citation attributes a report claim to a stored document.
type Citation struct {
	Ref   int
	DocID string
	Title string
}

// Discard records a retrieved document left out of the report and why.
type Discard struct {
	DocID  string
	Title  string
	Reason string
}

// Report is the result of one investigation.
type Report struct {
	Intent    string
	Body      string
	Outcome   string
	Citations []Citation
	Discarded []Discard
}

// Document is a persisted retrieval artifact.
type Document struct {
	DocID     string
	Query     string
	Title     string
	Kind      string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Evaluation is one scoring record for a document.
type Evaluation struct {
	EvaluationID   string
	DocID          string
	Query          string
	RelevanceScore int
	InsightScore   int
	EvaluationText string
	CreatedAt      time.Time
}
