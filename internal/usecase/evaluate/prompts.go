package evaluate

import (
	"fmt"
	"strings"

	"github.com/intelforge/deepsearch/internal/domain"
)

const rubricSystemPrompt = "You are a data triage analyst. You score a retrieved document against an " +
	"investigation query on two integer scales from 0 to 10. " +
	"relevance_score: how directly the document is about the query subject " +
	"(10 = the query subject is the main topic, 0 = an incidental mention in an unrelated list). " +
	"insight_score: how much non-obvious, actionable information the document adds " +
	"(10 = substantial new facts or relationships, 0 = nothing beyond the query terms themselves). " +
	"Respond with a single JSON object and nothing else."

func (s *Service) buildRubricUserPrompt(doc domain.Document, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Investigation query: %q\n\n", query)
	fmt.Fprintf(&b, "Document %s (%s), titled %q:\n---\n%s\n---\n\n",
		doc.DocID, doc.Content.Kind, doc.Title, truncateContent(doc.Content.Raw, s.contentLimit))
	b.WriteString("Respond with JSON: {\"relevance_score\": <0-10>, \"insight_score\": <0-10>, \"rationale\": <one sentence>}\n")
	return b.String()
}

// truncateContent keeps oversized payloads inside the prompt budget,
// marking the cut.
func truncateContent(raw string, limit int) string {
	if len(raw) <= limit {
		return raw
	}
	return raw[:limit] + "\n[truncated]"
}
