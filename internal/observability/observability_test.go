package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewLogger_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn", false)
	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", out, err)
	}
	if entry["message"] != "shown" || entry["k"] != "v" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestWithCorrelationID(t *testing.T) {
	if NewCorrelationID() == NewCorrelationID() {
		t.Error("correlation ids should be unique")
	}
	// Exercise both branches; the global logger writes to stderr.
	_ = WithCorrelationID("")
	_ = WithCorrelationID("fixed")
}

func TestMetrics_RecordsOutcomes(t *testing.T) {
	m := NewMetrics()
	m.TurnFinished("openai", "complete", 1500*time.Millisecond)
	m.TurnFinished("openai", "cancelled", time.Second)
	m.SearchFinished("ok")
	m.RelatedFinished("error")
	m.SessionOpened()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`morph_turns_total{outcome="complete",provider="openai"} 1`,
		`morph_turns_total{outcome="cancelled",provider="openai"} 1`,
		`morph_searches_total{outcome="ok"} 1`,
		`morph_related_questions_total{outcome="error"} 1`,
		`morph_active_sessions 1`,
		`morph_turn_duration_seconds_count{provider="openai"} 2`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	bad := func(context.Context) error { return errors.New("redis down") }

	rec := httptest.NewRecorder()
	HealthHandler("dev", map[string]HealthCheckFunc{"cache": ok})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	HealthHandler("dev", map[string]HealthCheckFunc{"cache": bad})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if status.Dependencies["cache"].Message != "redis down" {
		t.Errorf("unexpected status %+v", status)
	}
}
