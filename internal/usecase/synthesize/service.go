// Package synthesize aggregates top-scored documents into a narrative report
// with per-claim source attribution.
package synthesize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/intelforge/deepsearch/internal/domain"
)

const defaultRelevanceThreshold = 5

const noMaterialBody = "No sufficiently relevant material was found for this investigation. " +
	"The retrieved documents did not clear the relevance threshold, so no findings are reported."

// Service is the report synthesizer.
type Service struct {
	llm                Completer
	relevanceThreshold int
	maxSources         int
	logger             *zap.Logger
}

// New creates a synthesizer.
func New(llm Completer, logger *zap.Logger) *Service {
	return &Service{
		llm:                llm,
		relevanceThreshold: defaultRelevanceThreshold,
		maxSources:         10,
		logger:             logger,
	}
}

// WithRelevanceThreshold sets the minimum relevance score a document needs
// to be cited.
func (s *Service) WithRelevanceThreshold(n int) *Service {
	s.relevanceThreshold = n
	return s
}

// WithMaxSources bounds how many documents reach the report prompt.
func (s *Service) WithMaxSources(n int) *Service {
	if n > 0 {
		s.maxSources = n
	}
	return s
}

// Rank orders scored documents by composite score descending; ties go to the
// earlier CreatedAt.
func Rank(docs []domain.ScoredDocument) []domain.ScoredDocument {
	out := make([]domain.ScoredDocument, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Evaluation.CompositeScore(), out[j].Evaluation.CompositeScore()
		if si != sj {
			return si > sj
		}
		return out[i].Document.CreatedAt.Before(out[j].Document.CreatedAt)
	})
	return out
}

// Synthesize ranks the retained set, selects documents above the relevance
// threshold, and writes a cited report. When nothing qualifies it states so
// instead of fabricating content. An LLM failure degrades to a
// deterministic findings list so partial results still surface.
func (s *Service) Synthesize(
	ctx context.Context, intent string,
	retained []domain.ScoredDocument, discarded []domain.DiscardEntry,
	partial bool,
) (domain.Report, error) {
	report := domain.Report{
		Intent:    intent,
		Discarded: discarded,
		Outcome:   domain.OutcomeComplete,
	}
	if partial {
		report.Outcome = domain.OutcomePartial
	}

	selected := s.selectSources(retained)
	if len(selected) == 0 {
		report.Outcome = domain.OutcomeNoRelevantMaterial
		report.Body = noMaterialBody
		return report, nil
	}

	for i, sd := range selected {
		report.Citations = append(report.Citations, domain.Citation{
			Ref:   i + 1,
			DocID: sd.Document.DocID,
			Title: sd.Document.Title,
		})
	}

	body, err := s.llm.Complete(ctx, reportSystemPrompt, buildReportUserPrompt(intent, selected))
	if err != nil {
		if ctx.Err() != nil {
			return domain.Report{}, fmt.Errorf("synthesize report: %w", ctx.Err())
		}
		s.logger.Warn("Report LLM failed, emitting deterministic findings", zap.Error(err))
		body = fallbackBody(selected)
	}

	report.Body = strings.TrimSpace(body) + "\n\n" + renderSources(report.Citations)
	return report, nil
}

// selectSources ranks and filters the retained set down to citable sources.
func (s *Service) selectSources(retained []domain.ScoredDocument) []domain.ScoredDocument {
	ranked := Rank(retained)
	out := make([]domain.ScoredDocument, 0, s.maxSources)
	for _, sd := range ranked {
		if sd.Evaluation.RelevanceScore < s.relevanceThreshold {
			continue
		}
		out = append(out, sd)
		if len(out) >= s.maxSources {
			break
		}
	}
	return out
}

// fallbackBody lists the selected findings verbatim when report generation
// is unavailable.
func fallbackBody(selected []domain.ScoredDocument) string {
	var b strings.Builder
	b.WriteString("Key findings (automated summary unavailable):\n")
	for i, sd := range selected {
		fmt.Fprintf(&b, "- %s [^%d]\n", sd.Evaluation.EvaluationText, i+1)
	}
	return b.String()
}

func renderSources(citations []domain.Citation) string {
	var b strings.Builder
	b.WriteString("Sources:\n")
	for _, c := range citations {
		fmt.Fprintf(&b, "[%d] %s — %s\n", c.Ref, c.DocID, c.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}
