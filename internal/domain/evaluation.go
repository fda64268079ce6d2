package domain

import (
	"strings"
	"time"
)

// Score bounds for relevance and insight.
const (
	MinScore = 0
	MaxScore = 10
)

const sentinelPrefix = "evaluation unavailable: "

// Evaluation is a scoring record for one (document, query) pair.
// EvaluationID is generated on write by the store; re-scoring the same pair
// always inserts a new record.
type Evaluation struct {
	EvaluationID   string
	DocID          string
	Query          string
	RelevanceScore int
	InsightScore   int
	EvaluationText string
	CreatedAt      time.Time
}

// ClampScore forces a score into [MinScore, MaxScore].
func ClampScore(n int) int {
	if n < MinScore {
		return MinScore
	}
	if n > MaxScore {
		return MaxScore
	}
	return n
}

// CompositeScore is the ranking key for synthesis: equal-weight relevance and
// insight.
func (e Evaluation) CompositeScore() float64 {
	return 0.5*float64(e.RelevanceScore) + 0.5*float64(e.InsightScore)
}

// SentinelEvaluation builds the zero-score placeholder recorded when
// automated scoring fails. The rationale keeps the failure distinguishable
// from a genuine low score.
func SentinelEvaluation(docID, query, reason string) Evaluation {
	return Evaluation{
		DocID:          docID,
		Query:          query,
		RelevanceScore: MinScore,
		InsightScore:   MinScore,
		EvaluationText: sentinelPrefix + reason,
	}
}

// IsSentinel reports whether the evaluation is a scoring-failure placeholder
// rather than a genuine zero score.
func (e Evaluation) IsSentinel() bool {
	return strings.HasPrefix(e.EvaluationText, sentinelPrefix)
}
