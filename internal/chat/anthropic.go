package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

// anthropicWire is the Anthropic messages format. The system prompt travels
// in its own field and the messages array never contains the system role.
type anthropicWire struct{}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	Stream    bool               `json:"stream"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (anthropicWire) endpoint(baseURL, _, _ string, _ bool) string {
	return strings.TrimRight(baseURL, "/") + "/messages"
}

func (anthropicWire) body(model string, msgs []Message, stream bool) any {
	system, rest := splitSystem(msgs)
	out := make([]anthropicMessage, len(rest))
	for i, m := range rest {
		out[i] = anthropicMessage{Role: string(m.Role), Content: m.Content}
	}
	return anthropicRequest{
		Model:     model,
		Messages:  out,
		System:    system,
		Stream:    stream,
		MaxTokens: defaultMaxTokens,
	}
}

func (anthropicWire) authorize(h http.Header, key string) {
	h.Set("x-api-key", key)
	h.Set("anthropic-version", anthropicVersion)
}

func (anthropicWire) recognize(line string) (string, bool, error) {
	data, ok := sseData(line)
	if !ok {
		return "", false, nil
	}
	var ev anthropicEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return "", false, err
	}
	switch ev.Type {
	case "content_block_delta":
		return ev.Delta.Text, false, nil
	case "message_stop":
		return "", true, nil
	}
	return "", false, nil
}

func (anthropicWire) completion(raw []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 && len(resp.Content) == 0 {
		return "", errors.New("response has no content")
	}
	return b.String(), nil
}
