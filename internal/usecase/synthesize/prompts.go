package synthesize

import (
	"fmt"
	"strings"

	"github.com/intelforge/deepsearch/internal/domain"
)

// sourceContentLimit caps how much of each document's payload reaches the
// report prompt.
const sourceContentLimit = 4000

const reportSystemPrompt = `You are an intelligence analyst writing a final report.
You are given an investigation intent and a numbered list of sources.
Write a report in markdown with two sections:

## Executive Summary
A few sentences answering the intent directly.

## Key Findings
A bullet list of concrete findings. Every finding must cite its source as [n]
where n is the source number. Only state what the sources support. If the
sources conflict, say so. Never invent facts, names, dates, or numbers that
do not appear in the sources.`

func buildReportUserPrompt(intent string, selected []domain.ScoredDocument) string {
	var b strings.Builder
	b.WriteString("Investigation intent:\n")
	b.WriteString(intent)
	b.WriteString("\n\nSources:\n")
	for i, sd := range selected {
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, sd.Document.Title)
		fmt.Fprintf(&b, "Assessment: %s\n", sd.Evaluation.EvaluationText)
		b.WriteString("Content:\n")
		b.WriteString(truncateSource(sd.Document.Content.Raw))
		b.WriteString("\n")
	}
	b.WriteString("\nWrite the report.")
	return b.String()
}

func truncateSource(raw string) string {
	if len(raw) <= sourceContentLimit {
		return raw
	}
	return raw[:sourceContentLimit] + "\n[truncated]"
}
