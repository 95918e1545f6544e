package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// openAIWire is the OpenAI chat-completions format, shared by OpenAI, Groq,
// DeepSeek and xAI.
type openAIWire struct{}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (openAIWire) endpoint(baseURL, _, _ string, _ bool) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}

func (openAIWire) body(model string, msgs []Message, stream bool) any {
	out := make([]openAIMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openAIMessage{Role: string(m.Role), Content: m.Content}
	}
	return openAIRequest{
		Model:       model,
		Messages:    out,
		Stream:      stream,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
}

func (openAIWire) authorize(h http.Header, key string) {
	h.Set("Authorization", "Bearer "+key)
}

func (openAIWire) recognize(line string) (string, bool, error) {
	data, ok := sseData(line)
	if !ok {
		return "", false, nil
	}
	if data == "[DONE]" {
		return "", true, nil
	}
	var chunk openAIChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, err
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}
	return chunk.Choices[0].Delta.Content, false, nil
}

func (openAIWire) completion(raw []byte) (string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
