package chat

import (
	"strings"
	"testing"
	"time"
)

func TestShouldSearch(t *testing.T) {
	p := newSearchPolicy(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	cases := []struct {
		text string
		want bool
	}{
		{"What is the latest news today?", true},
		{"Summarize the plot of Hamlet", false},
		{"Explain recursion", false},
		{"BREAKING: anything", true},
		{"stock market", true},
		{"who won in 2026", true},
		{"what changed in 2025", true},
		{"is it raining", false},
		{"is it raining?", true},
	}
	for _, tc := range cases {
		if got := p.ShouldSearch(tc.text); got != tc.want {
			t.Errorf("ShouldSearch(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestShouldSearch_QuestionMarkDisabled(t *testing.T) {
	p := SearchPolicy{Keywords: recencyKeywords}
	if p.ShouldSearch("is it raining?") {
		t.Error("question mark should not trigger when disabled")
	}
	if !p.ShouldSearch("weather in Paris") {
		t.Error("keywords should still trigger")
	}
}

func TestNewSearchPolicy_AddsYearsOnce(t *testing.T) {
	p := newSearchPolicy(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	count := 0
	for _, kw := range p.Keywords {
		if kw == "2025" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 2025 once, got %d", count)
	}
	if !p.QuestionMarkTriggers {
		t.Error("default policy should trigger on question marks")
	}
}

func TestLastUserMessage(t *testing.T) {
	conv := []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAssistant, Content: "reply 2"},
	}
	m, ok := lastUserMessage(conv)
	if !ok || m.Content != "second" {
		t.Errorf("expected 'second', got %q (ok=%v)", m.Content, ok)
	}
	if _, ok := lastUserMessage(nil); ok {
		t.Error("empty conversation has no user message")
	}
}

func TestAugment(t *testing.T) {
	if got := Augment("base", nil); got != "base" {
		t.Errorf("nil results should leave the prompt unchanged, got %q", got)
	}
	if got := Augment("base", &SearchResponse{}); got != "base" {
		t.Errorf("empty results should leave the prompt unchanged, got %q", got)
	}

	got := Augment("base", &SearchResponse{Results: []SearchResult{
		{Title: "A", URL: "https://a", Content: "one"},
		{Title: "B", URL: "https://b", Content: "two"},
	}})
	if !strings.HasPrefix(got, "base\n\n") {
		t.Errorf("augmented prompt should start with the base prompt: %q", got)
	}
	want := "[1] A\nURL: https://a\nContent: one\n\n[2] B\nURL: https://b\nContent: two"
	if !strings.Contains(got, want) {
		t.Errorf("missing citation blocks in %q", got)
	}
	if !strings.Contains(got, "[number](url)") {
		t.Error("augmented prompt should explain the citation format")
	}
}
