package improve

import (
	"testing"

	"github.com/HendryAvila/evonest/internal/state"
)

func newState(t *testing.T) *state.ProjectState {
	t.Helper()
	st := state.New(t.TempDir())
	if err := st.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	return st
}

// --- parseHead ---

func TestParseHead(t *testing.T) {
	content := `# Proposal: Adopt structured logging

**Priority**: high
**From persona**: architect

## Description

body
`
	title, priority := parseHead(content)
	if title != "Adopt structured logging" {
		t.Errorf("title = %q", title)
	}
	if priority != "high" {
		t.Errorf("priority = %q", priority)
	}
}

func TestParseHead_LocalizedHeading(t *testing.T) {
	content := "# 제안: 캐시 계층 추가\n\n**우선순위**: low  \n"
	title, priority := parseHead(content)
	if title != "캐시 계층 추가" {
		t.Errorf("title = %q", title)
	}
	if priority != "low" {
		t.Errorf("priority = %q", priority)
	}
}

func TestParseHead_Defaults(t *testing.T) {
	title, priority := parseHead("# Bare Heading\n\nno fields at all\n")
	if title != "Bare Heading" {
		t.Errorf("title = %q", title)
	}
	if priority != "medium" {
		t.Errorf("priority = %q, want medium default", priority)
	}

	// A bold field with an unknown value is skipped; the next known value wins.
	_, priority = parseHead("# T\n\n**Priority**: urgent  \n**Priority**: low  \n")
	if priority != "low" {
		t.Errorf("priority = %q", priority)
	}
}

// --- List ---

func TestList_OldestFirst(t *testing.T) {
	st := newState(t)
	if _, err := st.SaveProposal("architect", "First Idea", "# Proposal: First Idea\n\n**Priority**: low  \n"); err != nil {
		t.Fatal(err)
	}
	if _, err := st.SaveProposal("architect", "Second Idea", "# Proposal: Second Idea\n\n**Priority**: high  \n"); err != nil {
		t.Fatal(err)
	}

	props, err := List(st)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(props) != 2 {
		t.Fatalf("got %d proposals", len(props))
	}
	if props[0].Title != "First Idea" || props[0].Priority != "low" {
		t.Errorf("first = %+v", props[0])
	}
	if props[1].Title != "Second Idea" || props[1].Priority != "high" {
		t.Errorf("second = %+v", props[1])
	}
}

// --- pick ---

func TestPick(t *testing.T) {
	props := []Proposal{
		{Path: "/p/a.md", Title: "A", Priority: "medium"},
		{Path: "/p/b.md", Title: "B", Priority: "high"},
		{Path: "/p/c.md", Title: "C", Priority: "high"},
	}

	// Highest priority wins; ties go to the oldest.
	got, err := pick(props, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "B" {
		t.Errorf("picked %s, want B", got.Title)
	}

	// An explicit filename overrides priority.
	got, err = pick(props, "a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "A" {
		t.Errorf("picked %s, want A", got.Title)
	}

	if _, err := pick(props, "missing.md"); err == nil {
		t.Error("expected error for unknown filename")
	}
	if _, err := pick(nil, ""); err == nil {
		t.Error("expected error for empty proposal list")
	}
}
