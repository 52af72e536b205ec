package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/starford/othala/internal/models"
)

func TestParseWithFrontmatter(t *testing.T) {
	data := []byte(`---
title: Weekly Sync
type: meeting
tags:
  - work
  - sync
aliases: [WS, weekly]
code: PEPS
---
# Notes

Body here.
`)
	res, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fm := res.Frontmatter
	if fm.Title != "Weekly Sync" || fm.Type != "meeting" || fm.Code != "PEPS" {
		t.Errorf("frontmatter = %+v", fm)
	}
	if !reflect.DeepEqual(fm.Tags, []string{"work", "sync"}) {
		t.Errorf("tags = %v", fm.Tags)
	}
	if !reflect.DeepEqual(fm.Aliases, []string{"WS", "weekly"}) {
		t.Errorf("aliases = %v", fm.Aliases)
	}
	if !strings.HasPrefix(res.Body, "# Notes") {
		t.Errorf("body = %q", res.Body)
	}
}

func TestParseNoFrontmatter(t *testing.T) {
	data := []byte("just a plain note\n")
	res, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Body != "just a plain note\n" {
		t.Errorf("body = %q", res.Body)
	}
	if res.Frontmatter.Title != "" {
		t.Errorf("unexpected title %q", res.Frontmatter.Title)
	}
}

func TestParseUnterminatedFrontmatter(t *testing.T) {
	data := []byte("---\ntitle: broken\nno closing delimiter")
	res, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Frontmatter.Title != "" {
		t.Error("unterminated frontmatter should not be parsed")
	}
	if res.Body != string(data) {
		t.Errorf("body should be the full input, got %q", res.Body)
	}
}

func TestParseInvalidYAMLFallsBackToBody(t *testing.T) {
	data := []byte("---\ntitle: [unclosed\n---\nbody\n")
	res, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse should not fail on bad YAML: %v", err)
	}
	if res.Frontmatter.Title != "" {
		t.Error("invalid YAML should yield empty frontmatter")
	}
	if res.Body != string(data) {
		t.Errorf("body should be the full input, got %q", res.Body)
	}
}

func TestParseUnknownKeysLandInExtra(t *testing.T) {
	data := []byte("---\ntitle: T\nlibrarian: review\nsource: inbox/x.md\n---\nbody\n")
	res, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := res.Frontmatter.ExtraString("librarian"); got != "review" {
		t.Errorf("librarian = %q", got)
	}
	if got := res.Frontmatter.ExtraString("source"); got != "inbox/x.md" {
		t.Errorf("source = %q", got)
	}
	if _, known := res.Frontmatter.Extra["title"]; known {
		t.Error("known key should not appear in Extra")
	}
}

func TestNormalizeList(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, nil},
		{"list", []any{"a", " b ", ""}, []string{"a", "b"}},
		{"comma string", "a, b,,c ", []string{"a", "b", "c"}},
		{"scalar string", " solo ", []string{"solo"}},
		{"empty string", "   ", nil},
		{"number", 42, []string{"42"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeList(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("NormalizeList(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeListIdempotent(t *testing.T) {
	once := NormalizeList([]any{" a ", "b"})
	twice := NormalizeList(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("normalization not idempotent: %v vs %v", once, twice)
	}
}

func TestComposeRoundTrip(t *testing.T) {
	fm := models.Frontmatter{
		Title:   "Round Trip",
		Type:    "note",
		Tags:    []string{"a", "b"},
		Aliases: []string{"RT"},
		Code:    "PEPS",
		Extra:   map[string]any{"librarian": "review", "score": 30},
	}
	body := "# Heading\n\ncontent\n"

	out, err := Compose(fm, body)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	res, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Frontmatter.Title != fm.Title || res.Frontmatter.Code != fm.Code {
		t.Errorf("round trip frontmatter = %+v", res.Frontmatter)
	}
	if !reflect.DeepEqual(res.Frontmatter.Tags, fm.Tags) {
		t.Errorf("tags = %v", res.Frontmatter.Tags)
	}
	if got := res.Frontmatter.ExtraString("librarian"); got != "review" {
		t.Errorf("librarian = %q", got)
	}
	if res.Body != body {
		t.Errorf("body = %q, want %q", res.Body, body)
	}
}

func TestComposeEmptyFrontmatter(t *testing.T) {
	out, err := Compose(models.Frontmatter{}, "bare body\n")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if string(out) != "bare body\n" {
		t.Errorf("out = %q", out)
	}
}

func TestComposeKeyOrder(t *testing.T) {
	fm := models.Frontmatter{
		Title: "T",
		Code:  "C",
		Extra: map[string]any{"zeta": "z", "alpha": "a"},
	}
	out, err := Compose(fm, "")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	s := string(out)
	titleIdx := strings.Index(s, "title:")
	codeIdx := strings.Index(s, "code:")
	alphaIdx := strings.Index(s, "alpha:")
	zetaIdx := strings.Index(s, "zeta:")
	if !(titleIdx < codeIdx && codeIdx < alphaIdx && alphaIdx < zetaIdx) {
		t.Errorf("key order wrong:\n%s", s)
	}
}
