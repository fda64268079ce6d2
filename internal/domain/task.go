package domain

import (
	"sort"
	"strings"
)

// TargetProfile is the immutable configuration of one retrieval call.
// Size bounds the number of documents requested; Include carries optional
// source-side filters passed through verbatim. ContextLines widens text
// excerpt windows.
type TargetProfile struct {
	Description  string
	Query        string
	Size         int
	Include      map[string]string
	ContextLines int
}

// Turn is one prior message of the conversation handed to the optimizer.
type Turn struct {
	Role    string
	Content string
}

// QueryPlan is the optimizer's output: whether the intent warrants a
// structured investigation at all, and the keyword queries to run if so.
type QueryPlan struct {
	Escalate bool
	Queries  []string
}

// NormalizeQuery canonicalizes a query for visited-set comparison:
// lowercase, collapsed inner whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// SearchTask is the ephemeral orchestration state of one investigation.
// It is created on escalation, mutated across loop iterations, and discarded
// once a report is emitted or the task aborts. Not safe for concurrent use;
// the orchestrator owns it for the task's lifetime.
type SearchTask struct {
	OriginalIntent  string
	CurrentDepth    int
	MaxDepth        int
	BudgetRemaining int

	visited  map[string]struct{}
	retained []ScoredDocument
	discards []DiscardEntry
}

// NewSearchTask creates a task with depth 0 and a full budget.
func NewSearchTask(intent string, maxDepth, budget int) *SearchTask {
	return &SearchTask{
		OriginalIntent:  intent,
		MaxDepth:        maxDepth,
		BudgetRemaining: budget,
		visited:         make(map[string]struct{}),
	}
}

// Seen reports whether a query (after normalization) was already issued.
func (t *SearchTask) Seen(query string) bool {
	_, ok := t.visited[NormalizeQuery(query)]
	return ok
}

// Visit marks a query as issued.
func (t *SearchTask) Visit(query string) {
	t.visited[NormalizeQuery(query)] = struct{}{}
}

// VisitedCount returns the number of distinct queries issued so far.
func (t *SearchTask) VisitedCount() int { return len(t.visited) }

// ConsumeBudget decrements the remaining call budget, stopping at zero.
func (t *SearchTask) ConsumeBudget(n int) {
	t.BudgetRemaining -= n
	if t.BudgetRemaining < 0 {
		t.BudgetRemaining = 0
	}
}

// Retain merges scored documents into the retained set, keeping it ordered
// by composite score descending with earlier CreatedAt winning ties.
func (t *SearchTask) Retain(docs ...ScoredDocument) {
	t.retained = append(t.retained, docs...)
	sort.SliceStable(t.retained, func(i, j int) bool {
		si, sj := t.retained[i].Evaluation.CompositeScore(), t.retained[j].Evaluation.CompositeScore()
		if si != sj {
			return si > sj
		}
		return t.retained[i].Document.CreatedAt.Before(t.retained[j].Document.CreatedAt)
	})
}

// Retained returns the ranked document set.
func (t *SearchTask) Retained() []ScoredDocument { return t.retained }

// Discard records a document excluded from synthesis with a reason.
func (t *SearchTask) Discard(d DiscardEntry) {
	t.discards = append(t.discards, d)
}

// Discards returns the discard log in insertion order.
func (t *SearchTask) Discards() []DiscardEntry { return t.discards }
