package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSlideNote(t *testing.T) {
	raw := "```json\n{\n  \"title\": \" Roadmap \", // heading\n  \"summary\": \"Three releases planned\",\n  \"points\": [\"Q1 beta\", \"Q2 GA\",],\n  /* model chatter */\n  \"tags\": [\"roadmap\"]\n}\n```"

	note := ParseSlideNote(raw)

	assert.False(t, note.Fallback)
	assert.Equal(t, "Roadmap", note.Title)
	assert.Equal(t, "Three releases planned", note.Summary)
	assert.Equal(t, []string{"Q1 beta", "Q2 GA"}, note.Points)
	assert.Equal(t, []string{"roadmap"}, note.Tags)
}

func TestParseSlideNotePlainText(t *testing.T) {
	note := ParseSlideNote("  A bar chart of monthly signups.  ")
	assert.False(t, note.Empty())
	assert.Equal(t, "A bar chart of monthly signups.", note.Summary)
}

func TestParseSlideNoteFallback(t *testing.T) {
	assert.True(t, ParseSlideNote(`{"title": `).Fallback)
	assert.True(t, ParseSlideNote("").Empty())
}

func TestSanitizeModelJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, SanitizeModelJSON("Sure! {\"a\":1,} hope that helps"))
	assert.Equal(t, `{"url":"http://x"}`, SanitizeModelJSON(`{"url":"http://x"}`))
}

func TestSlideNoteMarkdown(t *testing.T) {
	note := &SlideNote{Title: "Agenda", Summary: "Topics for today", Points: []string{"Intro", "Demo"}}
	assert.Equal(t, "**Agenda**\n\nTopics for today\n\n- Intro\n- Demo", note.Markdown())

	var missing *SlideNote
	assert.Equal(t, "", missing.Markdown())
	assert.Equal(t, "", (&SlideNote{Fallback: true, Summary: "x"}).Markdown())
}
