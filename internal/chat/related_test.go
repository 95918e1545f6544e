package chat

import (
	"context"
	"net/http"
	"reflect"
	"testing"
)

func TestParseRelatedQuestions(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "What is X?\nHow does Y work?\n\nWhy Z?\nAnother?", []string{"What is X?", "How does Y work?", "Why Z?"}},
		{"numbered", "1. What is X?\n2) How does Y work?\n3. Why Z?", []string{"What is X?", "How does Y work?", "Why Z?"}},
		{"bullets", "Here are some ideas:\n- What is X?\n* Why Z?", []string{"What is X?", "Why Z?"}},
		{"none", "No questions here.", []string{}},
		{"empty", "", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseRelatedQuestions(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestStripListMarker(t *testing.T) {
	cases := map[string]string{
		"1. a?":   "a?",
		"10) b?":  "b?",
		"- c?":    "c?",
		"2024?":   "2024?",
		"plain?":  "plain?",
	}
	for in, want := range cases {
		if got := stripListMarker(in); got != want {
			t.Errorf("stripListMarker(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRelatedQuestions_UsesFallbackModel(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"What is X?\nHow does Y work?\nWhy Z?\nExtra?"}}]}`)
	o := New(NewDispatcher(WithBaseURL(ProviderOpenAI, srv.URL)), nil, Options{})

	questions := o.RelatedQuestions(context.Background(), userTurn("tell me about X"), "tell me about X", testCreds)

	want := []string{"What is X?", "How does Y work?", "Why Z?"}
	if !reflect.DeepEqual(questions, want) {
		t.Errorf("got %q, want %q", questions, want)
	}
	if got.body["model"] != FallbackModel.ID {
		t.Errorf("expected fallback model, got %v", got.body["model"])
	}
	if got.body["stream"] == true {
		t.Error("related questions should not stream")
	}
	msgs, _ := got.body["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected system, conversation and prompt messages, got %d", len(msgs))
	}
	if msgs[0].(map[string]any)["role"] != "system" {
		t.Error("first message should be the system prompt")
	}
}

func TestRelatedQuestions_FailureYieldsEmpty(t *testing.T) {
	srv, _ := captureServer(t, http.StatusInternalServerError, "boom")
	o := New(NewDispatcher(WithBaseURL(ProviderOpenAI, srv.URL)), nil, Options{})

	questions := o.RelatedQuestions(context.Background(), nil, "q", testCreds)
	if questions == nil || len(questions) != 0 {
		t.Errorf("expected an empty, non-nil slice, got %#v", questions)
	}
}

func TestRelatedQuestions_NoKey(t *testing.T) {
	o := New(NewDispatcher(), nil, Options{})
	if got := o.RelatedQuestions(context.Background(), nil, "q", Credentials{}); len(got) != 0 {
		t.Errorf("expected no questions without an OpenAI key, got %q", got)
	}
}
