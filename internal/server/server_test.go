package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/arin/morph/internal/chat"
	"github.com/arin/morph/internal/observability"
)

const sseHello = "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
	"data: [DONE]\n\n"

var testCreds = chat.Credentials{OpenAI: "sk-test"}

// staticModels lists a fixed set of models.
type staticModels []chat.ModelDescriptor

func (m staticModels) ListEnabledModels(chat.Credentials) []chat.ModelDescriptor { return m }

// providerStub answers streaming requests with sseHello and plain
// completions with three related questions.
func providerStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		if body["stream"] == true {
			io.WriteString(w, sseHello)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"What is X?\nHow does Y work?\nWhy Z?"}}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, providerURL string) (*httptest.Server, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	orch := chat.New(chat.NewDispatcher(chat.WithBaseURL(chat.ProviderOpenAI, providerURL)), nil, chat.Options{Metrics: metrics})
	s := New(orch, Options{
		Credentials: testCreds,
		Models:      staticModels{chat.FallbackModel},
		Metrics:     metrics,
		Logger:      zerolog.Nop(),
		Version:     "test",
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, metrics
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f serverFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return f
}

func TestWS_StreamsTurn(t *testing.T) {
	srv, _ := newTestServer(t, providerStub(t).URL)
	conn := dial(t, srv)

	err := conn.WriteJSON(map[string]any{
		"type":     "chat",
		"messages": []map[string]string{{"role": "user", "content": "Explain recursion"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []struct{ typ, text string }{
		{"update", "Hel"},
		{"update", "Hello"},
		{"complete", "Hello"},
	}
	var turnID string
	for i, w := range want {
		f := readFrame(t, conn)
		if f.Type != w.typ || f.Text != w.text {
			t.Errorf("frame %d: expected %s %q, got %s %q", i, w.typ, w.text, f.Type, f.Text)
		}
		if f.Model != chat.FallbackModel.ID {
			t.Errorf("frame %d: expected model %s, got %q", i, chat.FallbackModel.ID, f.Model)
		}
		if turnID == "" {
			turnID = f.TurnID
		} else if f.TurnID != turnID {
			t.Errorf("frame %d: turn id changed", i)
		}
	}
}

func TestWS_RelatedQuestions(t *testing.T) {
	srv, _ := newTestServer(t, providerStub(t).URL)
	conn := dial(t, srv)

	conn.WriteJSON(map[string]any{
		"type":     "chat",
		"messages": []map[string]string{{"role": "user", "content": "tell me about X"}},
		"related":  true,
	})
	for {
		f := readFrame(t, conn)
		if f.Type != "related" {
			continue
		}
		if len(f.Questions) != 3 || f.Questions[0] != "What is X?" {
			t.Errorf("unexpected questions %q", f.Questions)
		}
		return
	}
}

func TestWS_CancelStopsTurn(t *testing.T) {
	disconnected := make(chan struct{})
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
			close(disconnected)
		case <-time.After(10 * time.Second):
		}
	}))
	defer provider.Close()

	srv, _ := newTestServer(t, provider.URL)
	conn := dial(t, srv)

	conn.WriteJSON(map[string]any{
		"type":     "chat",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	if f := readFrame(t, conn); f.Type != "update" || f.Text != "first" {
		t.Fatalf("expected first update, got %+v", f)
	}
	conn.WriteJSON(map[string]string{"type": "cancel"})

	select {
	case <-disconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("provider connection was not closed after cancel")
	}

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var f serverFrame
	if err := conn.ReadJSON(&f); err == nil {
		t.Errorf("no frame expected after cancel, got %+v", f)
	}
}

func TestWS_InvalidFrames(t *testing.T) {
	srv, _ := newTestServer(t, providerStub(t).URL)
	conn := dial(t, srv)

	cases := []struct {
		frame any
		want  string
	}{
		{map[string]any{"type": "bogus"}, "unknown frame type"},
		{map[string]any{"type": "chat"}, "messages are required"},
		{map[string]any{"type": "chat", "messages": []map[string]string{{"role": "robot", "content": "x"}}}, "unknown role"},
		{map[string]any{"type": "chat", "model": "nope", "messages": []map[string]string{{"role": "user", "content": "x"}}}, "unknown or unavailable model"},
	}
	for _, tc := range cases {
		conn.WriteJSON(tc.frame)
		f := readFrame(t, conn)
		if f.Type != "error" || !strings.Contains(f.Message, tc.want) {
			t.Errorf("expected error containing %q, got %+v", tc.want, f)
		}
	}

	conn.WriteMessage(websocket.TextMessage, []byte("{"))
	if f := readFrame(t, conn); f.Type != "error" || !strings.HasPrefix(f.Message, "invalid frame") {
		t.Errorf("expected invalid frame error, got %+v", f)
	}
}

func TestModelsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, providerStub(t).URL)
	resp, err := http.Get(srv.URL + "/models")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Models          []chat.ModelDescriptor `json:"models"`
		Default         string                 `json:"default"`
		SearchAvailable bool                   `json:"searchAvailable"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Models) != 1 || body.Default != chat.FallbackModel.ID || body.SearchAvailable {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, metrics := newTestServer(t, providerStub(t).URL)
	metrics.SearchFinished("ok")

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "morph_searches_total") {
		t.Error("metrics endpoint should expose morph collectors")
	}
}

func TestSession_ClosesTurnOnDisconnect(t *testing.T) {
	disconnected := make(chan struct{})
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		close(disconnected)
	}))
	defer provider.Close()

	srv, _ := newTestServer(t, provider.URL)
	conn := dial(t, srv)
	conn.WriteJSON(map[string]any{
		"type":     "chat",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	readFrame(t, conn)
	conn.Close()

	select {
	case <-disconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("closing the websocket should cancel the provider request")
	}
}

func TestConversation(t *testing.T) {
	conv, err := conversation([]frameMessage{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}})
	if err != nil || len(conv) != 2 || conv[1].Role != chat.RoleAssistant || conv[0].ID == "" {
		t.Errorf("unexpected conversion %+v, %v", conv, err)
	}
}
