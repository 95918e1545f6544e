package chat

import (
	"fmt"
	"net/http"
)

// Generation parameters shared by every provider.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4000
)

// wireFormat is the capability set every provider family implements: how to
// address it, how to shape the request body, how to authenticate, and how to
// read its responses.
type wireFormat interface {
	// endpoint returns the request URL.
	endpoint(baseURL, model, key string, stream bool) string
	// body returns the JSON request body.
	body(model string, msgs []Message, stream bool) any
	// authorize sets authentication headers.
	authorize(h http.Header, key string)
	// recognize decodes one line of a streaming response.
	recognize(line string) (delta string, done bool, err error)
	// completion extracts the reply text from a non-streaming response.
	completion(raw []byte) (string, error)
}

// providerSpec binds a provider key to its base URL and wire format.
type providerSpec struct {
	id      ProviderID
	name    string
	baseURL string
	wire    wireFormat
}

// defaultProviders is the closed provider table.
func defaultProviders() map[ProviderID]providerSpec {
	return map[ProviderID]providerSpec{
		ProviderOpenAI: {
			id:      ProviderOpenAI,
			name:    "OpenAI",
			baseURL: "https://api.openai.com/v1",
			wire:    openAIWire{},
		},
		ProviderGroq: {
			id:      ProviderGroq,
			name:    "Groq",
			baseURL: "https://api.groq.com/openai/v1",
			wire:    openAIWire{},
		},
		ProviderDeepSeek: {
			id:      ProviderDeepSeek,
			name:    "DeepSeek",
			baseURL: "https://api.deepseek.com/v1",
			wire:    openAIWire{},
		},
		ProviderXAI: {
			id:      ProviderXAI,
			name:    "xAI",
			baseURL: "https://api.x.ai/v1",
			wire:    openAIWire{},
		},
		ProviderAnthropic: {
			id:      ProviderAnthropic,
			name:    "Anthropic",
			baseURL: "https://api.anthropic.com/v1",
			wire:    anthropicWire{},
		},
		ProviderGoogle: {
			id:      ProviderGoogle,
			name:    "Google",
			baseURL: "https://generativelanguage.googleapis.com/v1beta",
			wire:    googleWire{},
		},
	}
}

// ProviderName returns the display name for p.
func ProviderName(p ProviderID) string {
	if spec, ok := defaultProviders()[p]; ok {
		return spec.name
	}
	return string(p)
}

// ProviderError reports a failed dispatch: a missing credential, a transport
// failure, or a non-2xx response. Status is zero when no response arrived.
type ProviderError struct {
	ProviderID ProviderID
	Status     int
	Message    string
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	name := ProviderName(e.ProviderID)
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", name, e.Message)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s API error (status %d): %s", name, e.Status, e.Body)
	}
	return fmt.Sprintf("%s API error (status %d)", name, e.Status)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// splitSystem separates system messages from the rest of the conversation.
// Providers without a system role in their message array take the joined
// system text in a dedicated field.
func splitSystem(msgs []Message) (system string, rest []Message) {
	rest = make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
