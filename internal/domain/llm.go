package domain

import "context"

// Completer is the LLM inference interface consumed by the optimizer,
// evaluator, and synthesizer. Implementations are stateless per call and
// must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ExtractJSONObject pulls the first balanced top-level JSON object out of a
// model response. Models wrap JSON in code fences or prose often enough that
// callers must never assume the raw response parses.
func ExtractJSONObject(raw string) ([]byte, bool) {
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return []byte(raw[start : i+1]), true
				}
			}
		}
	}
	return nil, false
}
