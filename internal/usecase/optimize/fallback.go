package optimize

import "strings"

// stopwords excluded from fallback keyword extraction.
var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "all": {}, "an": {}, "and": {}, "any": {}, "are": {},
	"as": {}, "at": {}, "be": {}, "been": {}, "but": {}, "by": {}, "can": {},
	"could": {}, "did": {}, "do": {}, "does": {}, "find": {}, "for": {},
	"from": {}, "get": {}, "give": {}, "had": {}, "has": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "how": {}, "i": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "its": {}, "know": {}, "like": {},
	"look": {}, "me": {}, "more": {}, "my": {}, "of": {}, "on": {}, "or": {},
	"our": {}, "out": {}, "please": {}, "search": {}, "she": {}, "show": {},
	"so": {}, "some": {}, "tell": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"up": {}, "us": {}, "want": {}, "was": {}, "we": {}, "were": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "who": {}, "why": {},
	"will": {}, "with": {}, "would": {}, "you": {}, "your": {},
}

// ExtractKeywords is the deterministic fallback used when the planner LLM is
// unavailable: lowercase tokens of the intent with stop words removed,
// order preserved, duplicates dropped.
func ExtractKeywords(intent string) string {
	fields := strings.Fields(strings.ToLower(intent))
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}
