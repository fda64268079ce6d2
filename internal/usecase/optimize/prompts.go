package optimize

import (
	"fmt"
	"strings"

	"github.com/intelforge/deepsearch/internal/domain"
)

const plannerSystemPrompt = "You are an expert planner for an intelligence assistant. " +
	"You decide whether a user's request warrants a structured document investigation, " +
	"and if so you rewrite it into precise, self-contained keyword queries for an entity-search API. " +
	"Greetings, chitchat, and questions answerable from the conversation alone do not warrant an investigation. " +
	"Always respond with a single JSON object and nothing else."

func buildPlannerUserPrompt(intent string, turns []domain.Turn) string {
	var b strings.Builder
	b.WriteString("Conversation history:\n")
	writeTurns(&b, turns)
	fmt.Fprintf(&b, "\nLatest request: %q\n\n", intent)
	b.WriteString("Instructions:\n")
	b.WriteString("1. Resolve pronouns and ambiguity using the conversation, so each query is self-contained.\n")
	b.WriteString("2. Decide whether a document investigation is warranted.\n")
	b.WriteString("3. If it is, produce one to three concise keyword queries (under 10 words each).\n")
	b.WriteString("\nRespond with JSON: {\"escalate\": <bool>, \"queries\": [<string>, ...]}\n")
	return b.String()
}

func buildFollowUpUserPrompt(intent, gap string, turns []domain.Turn) string {
	var b strings.Builder
	b.WriteString("Conversation history:\n")
	writeTurns(&b, turns)
	fmt.Fprintf(&b, "\nOriginal request: %q\n", intent)
	fmt.Fprintf(&b, "\nAn earlier round of searching was insufficient: %s\n\n", gap)
	b.WriteString("Produce one to three NEW keyword queries that attack the gap from a different angle. ")
	b.WriteString("Do not repeat earlier phrasings.\n")
	b.WriteString("\nRespond with JSON: {\"escalate\": true, \"queries\": [<string>, ...]}\n")
	return b.String()
}

func writeTurns(b *strings.Builder, turns []domain.Turn) {
	if len(turns) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for _, t := range turns {
		fmt.Fprintf(b, "%s: %s\n", t.Role, t.Content)
	}
}
