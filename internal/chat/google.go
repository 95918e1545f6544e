package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// googleWire is the Gemini generateContent format. The API key is a query
// parameter, the system prompt goes in systemInstruction, and the assistant
// role is called "model" on the wire.
type googleWire struct{}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type googleRequest struct {
	Contents          []googleContent        `json:"contents"`
	SystemInstruction *googleContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  googleGenerationConfig `json:"generationConfig"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

func (r googleResponse) text() (string, bool) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", false
	}
	return r.Candidates[0].Content.Parts[0].Text, true
}

func (googleWire) endpoint(baseURL, model, key string, stream bool) string {
	method := "generateContent"
	if stream {
		method = "streamGenerateContent"
	}
	return strings.TrimRight(baseURL, "/") + "/models/" + url.PathEscape(model) + ":" + method +
		"?key=" + url.QueryEscape(key)
}

func (googleWire) body(_ string, msgs []Message, _ bool) any {
	system, rest := splitSystem(msgs)
	contents := make([]googleContent, len(rest))
	for i, m := range rest {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents[i] = googleContent{Role: role, Parts: []googlePart{{Text: m.Content}}}
	}
	req := googleRequest{
		Contents: contents,
		GenerationConfig: googleGenerationConfig{
			Temperature:     defaultTemperature,
			MaxOutputTokens: defaultMaxTokens,
		},
	}
	if system != "" {
		req.SystemInstruction = &googleContent{Parts: []googlePart{{Text: system}}}
	}
	return req
}

func (googleWire) authorize(http.Header, string) {}

// recognize treats every non-blank line as one JSON object. The array framing
// the endpoint may wrap objects in ("[", "," and "]") is trimmed off first.
func (googleWire) recognize(line string) (string, bool, error) {
	s := strings.TrimSpace(line)
	if data, ok := sseData(s); ok {
		s = data
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimPrefix(s, ",")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSuffix(s, ",")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false, nil
	}
	var chunk googleResponse
	if err := json.Unmarshal([]byte(s), &chunk); err != nil {
		return "", false, err
	}
	text, _ := chunk.text()
	return text, false, nil
}

func (googleWire) completion(raw []byte) (string, error) {
	var resp googleResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	text, ok := resp.text()
	if !ok {
		return "", errors.New("response has no candidates")
	}
	return text, nil
}
