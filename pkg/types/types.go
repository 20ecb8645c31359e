package types

import (
	"encoding/json"
	"regexp"
	"strings"
)

// SlideNote is what a vision model reports about one slide image
type SlideNote struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Points  []string `json:"points"`
	Tags    []string `json:"tags"`
	// Fallback is set when the model response could not be parsed
	Fallback bool `json:"-"`
}

// Empty reports whether the note carries no usable text
func (n *SlideNote) Empty() bool {
	return n == nil || n.Fallback || (n.Title == "" && n.Summary == "" && len(n.Points) == 0)
}

// Markdown renders the note as speaker notes text
func (n *SlideNote) Markdown() string {
	if n.Empty() {
		return ""
	}
	var b strings.Builder
	if n.Title != "" {
		b.WriteString("**" + n.Title + "**\n\n")
	}
	if n.Summary != "" {
		b.WriteString(n.Summary + "\n\n")
	}
	for _, p := range n.Points {
		b.WriteString("- " + p + "\n")
	}
	return strings.TrimSpace(b.String())
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseSlideNote parses a model response. Responses that are not JSON yield
// a fallback note rather than an error so a deck never fails on one slide.
func ParseSlideNote(raw string) *SlideNote {
	cleaned := SanitizeModelJSON(raw)

	if !strings.HasPrefix(cleaned, "{") {
		return fallbackNote(raw)
	}

	var note SlideNote
	if err := json.Unmarshal([]byte(cleaned), &note); err != nil {
		return fallbackNote(raw)
	}
	note.Title = strings.TrimSpace(note.Title)
	note.Summary = strings.TrimSpace(note.Summary)
	return &note
}

// fallbackNote keeps a plain text answer as the summary
func fallbackNote(raw string) *SlideNote {
	text := strings.TrimSpace(raw)
	if text == "" || strings.ContainsAny(text, "{}") {
		return &SlideNote{Fallback: true}
	}
	return &SlideNote{Summary: text}
}

// SanitizeModelJSON removes code fences, comments and trailing commas and
// keeps the outermost object
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
