package domain

import (
	"strings"
	"testing"
)

func TestExcerpts_TextLineMatching(t *testing.T) {
	raw := strings.Join([]string{
		"line one",
		"line two",
		"Booth shot Lincoln here",
		"line four",
		"line five",
	}, "\n")
	c := TextContent(raw)

	got := c.Excerpts("booth", 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 excerpt, got %d: %v", len(got), got)
	}
	want := "line two\nBooth shot Lincoln here\nline four"
	if got[0] != want {
		t.Errorf("excerpt:\ngot:  %q\nwant: %q", got[0], want)
	}
}

func TestExcerpts_TextWindowClampedAtEdges(t *testing.T) {
	c := TextContent("Booth first\nmiddle\nlast Booth")

	got := c.Excerpts("booth", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 excerpts, got %d", len(got))
	}
	if got[0] != "Booth first\nmiddle\nlast Booth" {
		t.Errorf("window at start not clamped: %q", got[0])
	}
}

func TestExcerpts_JSONInnermostObject(t *testing.T) {
	raw := `{
		"people": [
			{"name": "John Wilkes Booth", "role": "assassin"},
			{"name": "Mary Surratt", "role": "conspirator"}
		],
		"place": {"city": "Washington"}
	}`
	c := JSONContent(raw)

	got := c.Excerpts("booth", 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 matching object, got %d: %v", len(got), got)
	}
	if !strings.Contains(got[0], "John Wilkes Booth") || strings.Contains(got[0], "Surratt") {
		t.Errorf("expected only the innermost matching object, got %q", got[0])
	}
}

func TestExcerpts_MalformedJSONDegradesToLines(t *testing.T) {
	c := JSONContent("{not json\nBooth was here\ntrailing")

	got := c.Excerpts("booth", 0)
	if len(got) != 1 || got[0] != "Booth was here" {
		t.Fatalf("expected line match fallback, got %v", got)
	}
}

func TestExcerpts_NoMatch(t *testing.T) {
	c := TextContent("nothing relevant at all")
	if got := c.Excerpts("booth", 2); len(got) != 0 {
		t.Fatalf("expected no excerpts, got %v", got)
	}
}

func TestExcerpts_EmptyQuery(t *testing.T) {
	c := TextContent("some content")
	if got := c.Excerpts("   ", 2); got != nil {
		t.Fatalf("expected nil for blank query, got %v", got)
	}
}

func TestContentHashID_Stable(t *testing.T) {
	a := ContentHashID("payload")
	b := ContentHashID("payload")
	if a != b {
		t.Error("hash must be deterministic")
	}
	if a == ContentHashID("other") {
		t.Error("different payloads must hash differently")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
