package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// capture records the last request a test server received.
type capture struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func captureServer(t *testing.T, status int, respBody string) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		c.header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &c.body)
		w.WriteHeader(status)
		io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

var testConversation = []Message{
	{Role: RoleSystem, Content: "be brief"},
	{Role: RoleUser, Content: "hi"},
	{Role: RoleAssistant, Content: "hello"},
	{Role: RoleUser, Content: "how are you"},
}

var testCreds = Credentials{
	OpenAI:    "sk-openai",
	Anthropic: "sk-ant",
	Google:    "g-key",
	Groq:      "gsk",
	DeepSeek:  "sk-ds",
	XAI:       "xai-key",
}

func TestDispatch_OpenAICompatibleRequestShape(t *testing.T) {
	cases := []struct {
		provider ProviderID
		key      string
	}{
		{ProviderOpenAI, "sk-openai"},
		{ProviderGroq, "gsk"},
		{ProviderDeepSeek, "sk-ds"},
		{ProviderXAI, "xai-key"},
	}
	for _, tc := range cases {
		t.Run(string(tc.provider), func(t *testing.T) {
			srv, got := captureServer(t, http.StatusOK, openAIExample)
			d := NewDispatcher(WithBaseURL(tc.provider, srv.URL+"/v1"))
			model := ModelDescriptor{ID: "m-1", Name: "M", ProviderID: tc.provider}

			stream, err := d.Stream(context.Background(), model, testConversation, testCreds)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			text, err := stream.Decode(context.Background(), nil, nil)
			stream.Close()
			if err != nil || text != "Hello" {
				t.Fatalf("decode: text %q err %v", text, err)
			}

			if got.method != http.MethodPost || got.path != "/v1/chat/completions" {
				t.Errorf("unexpected request %s %s", got.method, got.path)
			}
			if auth := got.header.Get("Authorization"); auth != "Bearer "+tc.key {
				t.Errorf("unexpected Authorization header %q", auth)
			}
			if got.body["model"] != "m-1" || got.body["stream"] != true {
				t.Errorf("unexpected body %v", got.body)
			}
			msgs, _ := got.body["messages"].([]any)
			if len(msgs) != 4 {
				t.Fatalf("expected 4 messages including system, got %d", len(msgs))
			}
			first := msgs[0].(map[string]any)
			if first["role"] != "system" || first["content"] != "be brief" {
				t.Errorf("unexpected first message %v", first)
			}
		})
	}
}

func TestDispatch_AnthropicRequestShape(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, "")
	d := NewDispatcher(WithBaseURL(ProviderAnthropic, srv.URL))
	model := ModelDescriptor{ID: "claude-3-haiku-20240307", Name: "Haiku", ProviderID: ProviderAnthropic}

	stream, err := d.Stream(context.Background(), model, testConversation, testCreds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stream.Close()

	if got.path != "/messages" {
		t.Errorf("unexpected path %q", got.path)
	}
	if got.header.Get("x-api-key") != "sk-ant" {
		t.Errorf("missing x-api-key header")
	}
	if got.header.Get("anthropic-version") != anthropicVersion {
		t.Errorf("missing anthropic-version header")
	}
	if got.header.Get("Authorization") != "" {
		t.Error("anthropic requests must not carry a bearer token")
	}
	if got.body["system"] != "be brief" {
		t.Errorf("expected system field, got %v", got.body["system"])
	}
	if got.body["stream"] != true || got.body["max_tokens"] != float64(defaultMaxTokens) {
		t.Errorf("unexpected body %v", got.body)
	}
	msgs, _ := got.body["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 non-system messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m.(map[string]any)["role"] == "system" {
			t.Error("system role must not appear in anthropic messages")
		}
	}
}

func TestDispatch_GoogleRequestShape(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, "")
	d := NewDispatcher(WithBaseURL(ProviderGoogle, srv.URL))
	model := ModelDescriptor{ID: "gemini-1.5-flash", Name: "Flash", ProviderID: ProviderGoogle}

	stream, err := d.Stream(context.Background(), model, testConversation, testCreds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stream.Close()

	if got.path != "/models/gemini-1.5-flash:streamGenerateContent" {
		t.Errorf("unexpected path %q", got.path)
	}
	if got.query != "key=g-key" {
		t.Errorf("expected api key query parameter, got %q", got.query)
	}
	contents, _ := got.body["contents"].([]any)
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	roles := []string{}
	for _, c := range contents {
		roles = append(roles, c.(map[string]any)["role"].(string))
	}
	if strings.Join(roles, ",") != "user,model,user" {
		t.Errorf("unexpected roles %v", roles)
	}
	sys, _ := got.body["systemInstruction"].(map[string]any)
	parts, _ := sys["parts"].([]any)
	if len(parts) != 1 || parts[0].(map[string]any)["text"] != "be brief" {
		t.Errorf("unexpected systemInstruction %v", got.body["systemInstruction"])
	}
}

func TestDispatch_NonSuccessStatus(t *testing.T) {
	srv, _ := captureServer(t, http.StatusUnauthorized, `{"error":{"message":"bad key"}}`)
	d := NewDispatcher(WithBaseURL(ProviderOpenAI, srv.URL))

	_, err := d.Stream(context.Background(), FallbackModel, testConversation, testCreds)
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Status != http.StatusUnauthorized || perr.ProviderID != ProviderOpenAI {
		t.Errorf("unexpected error fields %+v", perr)
	}
	if !strings.Contains(perr.Error(), "401") {
		t.Errorf("error should mention the status: %v", perr)
	}
}

func TestDispatch_MissingCredential(t *testing.T) {
	d := NewDispatcher()
	model := ModelDescriptor{ID: "grok-beta", Name: "Grok", ProviderID: ProviderXAI}

	_, err := d.Stream(context.Background(), model, testConversation, Credentials{OpenAI: "x"})
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Status != 0 || perr.ProviderID != ProviderXAI {
		t.Errorf("unexpected error fields %+v", perr)
	}
}

func TestDispatch_UnknownProvider(t *testing.T) {
	d := NewDispatcher()
	model := ModelDescriptor{ID: "x", Name: "x", ProviderID: "mistral"}
	if _, err := d.Stream(context.Background(), model, nil, testCreds); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestComplete_ParsesEachFormat(t *testing.T) {
	cases := []struct {
		provider ProviderID
		body     string
		path     string
	}{
		{ProviderOpenAI, `{"choices":[{"message":{"role":"assistant","content":" four "}}]}`, "/chat/completions"},
		{ProviderAnthropic, `{"content":[{"type":"text","text":"four"}]}`, "/messages"},
		{ProviderGoogle, `{"candidates":[{"content":{"parts":[{"text":"four"}]}}]}`, "/models/m:generateContent"},
	}
	for _, tc := range cases {
		t.Run(string(tc.provider), func(t *testing.T) {
			srv, got := captureServer(t, http.StatusOK, tc.body)
			d := NewDispatcher(WithBaseURL(tc.provider, srv.URL))
			model := ModelDescriptor{ID: "m", Name: "m", ProviderID: tc.provider}

			text, err := d.Complete(context.Background(), model, testConversation, testCreds)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if text != "four" {
				t.Errorf("expected 'four', got %q", text)
			}
			if got.path != tc.path {
				t.Errorf("unexpected path %q", got.path)
			}
			if got.body["stream"] == true {
				t.Error("complete must not request streaming")
			}
		})
	}
}

func TestComplete_BadJSON(t *testing.T) {
	srv, _ := captureServer(t, http.StatusOK, "not json")
	d := NewDispatcher(WithBaseURL(ProviderOpenAI, srv.URL))
	if _, err := d.Complete(context.Background(), FallbackModel, nil, testCreds); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleSystem, Content: "b"},
	})
	if system != "a\n\nb" {
		t.Errorf("unexpected system %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "q" {
		t.Errorf("unexpected rest %v", rest)
	}
}
