package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// ContentKind discriminates the closed set of document payload shapes.
type ContentKind string

const (
	// ContentText is a plain-text payload matched line by line.
	ContentText ContentKind = "text"
	// ContentJSON is a structured payload matched object by object.
	ContentJSON ContentKind = "json"
)

// Content is the tagged payload variant of a document. Raw always holds the
// payload as delivered by the source; Kind decides how excerpts are isolated.
type Content struct {
	Kind ContentKind
	Raw  string
}

// TextContent wraps a plain-text payload.
func TextContent(raw string) Content {
	return Content{Kind: ContentText, Raw: raw}
}

// JSONContent wraps a structured payload.
func JSONContent(raw string) Content {
	return Content{Kind: ContentJSON, Raw: raw}
}

// Excerpts returns the fragments of the payload that mention query,
// case-insensitive. For JSON payloads the smallest enclosing objects are
// returned; for text payloads the matching lines with contextLines of
// surrounding context. A JSON payload that fails to parse degrades to
// line matching rather than being dropped.
func (c Content) Excerpts(query string, contextLines int) []string {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if c.Kind == ContentJSON {
		var data any
		if err := json.Unmarshal([]byte(c.Raw), &data); err == nil {
			return matchJSONObjects(data, strings.ToLower(query))
		}
	}
	return matchLines(c.Raw, strings.ToLower(query), contextLines)
}

// matchJSONObjects walks the decoded value and collects the innermost objects
// whose scalar values contain the query.
func matchJSONObjects(data any, queryLower string) []string {
	var out []string
	switch v := data.(type) {
	case map[string]any:
		var child []string
		for _, val := range v {
			child = append(child, matchJSONObjects(val, queryLower)...)
		}
		if len(child) > 0 {
			return child
		}
		for _, val := range v {
			if scalarContains(val, queryLower) {
				if enc, err := json.Marshal(v); err == nil {
					out = append(out, string(enc))
				}
				break
			}
		}
	case []any:
		for _, item := range v {
			out = append(out, matchJSONObjects(item, queryLower)...)
		}
	}
	return out
}

func scalarContains(v any, queryLower string) bool {
	switch s := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(s), queryLower)
	case float64, bool:
		enc, err := json.Marshal(s)
		if err != nil {
			return false
		}
		return strings.Contains(strings.ToLower(string(enc)), queryLower)
	}
	return false
}

// matchLines returns a window of contextLines around every line mentioning
// the query.
func matchLines(raw, queryLower string, contextLines int) []string {
	lines := strings.Split(raw, "\n")
	var out []string
	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), queryLower) {
			continue
		}
		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines + 1
		if end > len(lines) {
			end = len(lines)
		}
		out = append(out, strings.Join(lines[start:end], "\n"))
	}
	return out
}

// Document is a retrieved artifact. DocID is globally unique in the store;
// Query records the query that first produced the document.
type Document struct {
	DocID     string
	Query     string
	Title     string
	Content   Content
	Metadata  map[string]string
	CreatedAt time.Time
}

// ContentHashID derives a stable document identifier from the payload, used
// when the source does not supply one.
func ContentHashID(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// ScoredDocument pairs a document with its evaluation for ranking and
// synthesis.
type ScoredDocument struct {
	Document   Document
	Evaluation Evaluation
}

// DiscardEntry records why a retrieved document was left out of synthesis.
type DiscardEntry struct {
	DocID  string
	Title  string
	Reason string
}
