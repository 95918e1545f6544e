// Package chat is the streaming chat orchestrator: it decides whether a turn
// needs live search, dispatches the conversation to one of the supported
// model providers, and normalizes each provider's streaming wire format into
// a single ordered stream of events.
package chat

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation. Conversations are ordered oldest
// first and are never modified by the orchestrator.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewMessage returns a message stamped with a fresh ID and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
	}
}

// ProviderID is one of the fixed provider keys.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGoogle    ProviderID = "google"
	ProviderGroq      ProviderID = "groq"
	ProviderDeepSeek  ProviderID = "deepseek"
	ProviderXAI       ProviderID = "xai"
)

// ProviderIDs lists every supported provider in display order.
var ProviderIDs = []ProviderID{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGoogle,
	ProviderGroq,
	ProviderDeepSeek,
	ProviderXAI,
}

// Valid reports whether p is one of the supported providers.
func (p ProviderID) Valid() bool {
	for _, id := range ProviderIDs {
		if id == p {
			return true
		}
	}
	return false
}

// ModelDescriptor describes a selectable model. The JSON shape matches the
// models.json catalog format.
type ModelDescriptor struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Provider     string     `json:"provider"`
	ProviderID   ProviderID `json:"providerId"`
	Enabled      bool       `json:"enabled"`
	ToolCallType string     `json:"toolCallType,omitempty"`
}

// Validate checks that the descriptor carries everything dispatch needs.
func (m ModelDescriptor) Validate() error {
	if m.ID == "" {
		return errors.New("model id is required")
	}
	if m.Name == "" {
		return errors.New("model name is required")
	}
	if !m.ProviderID.Valid() {
		return errors.New("unknown provider id " + string(m.ProviderID))
	}
	return nil
}

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchResponse is the outcome of one search call.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Query   string         `json:"query"`
	Images  []string       `json:"images"`
}

// EventKind tags an Event.
type EventKind int

const (
	EventUpdate EventKind = iota
	EventSearchResults
	EventComplete
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventUpdate:
		return "update"
	case EventSearchResults:
		return "search_results"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is one element of a run's output stream.
//
// Update and Complete carry the full accumulated text in Text, never a delta.
// SearchResults carries Search. Error carries Err.
type Event struct {
	Kind   EventKind
	Text   string
	Search *SearchResponse
	Err    error
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventError
}

// Credentials holds the API keys for every provider plus the search provider.
// It is a read-only value; copies are passed into each run.
type Credentials struct {
	OpenAI    string
	Anthropic string
	Google    string
	Groq      string
	DeepSeek  string
	XAI       string
	Tavily    string
}

// Key returns the API key configured for provider p.
func (c Credentials) Key(p ProviderID) string {
	switch p {
	case ProviderOpenAI:
		return c.OpenAI
	case ProviderAnthropic:
		return c.Anthropic
	case ProviderGoogle:
		return c.Google
	case ProviderGroq:
		return c.Groq
	case ProviderDeepSeek:
		return c.DeepSeek
	case ProviderXAI:
		return c.XAI
	}
	return ""
}

// Has reports whether a key is configured for provider p.
func (c Credentials) Has(p ProviderID) bool {
	return c.Key(p) != ""
}
