// Package search implements the live web search used to ground answers:
// a Tavily client and an optional Redis-backed cache in front of it.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arin/morph/internal/chat"
)

const (
	// DefaultEndpoint is the Tavily search API.
	DefaultEndpoint = "https://api.tavily.com/search"

	minQueryLength = 5
	requestTimeout = 30 * time.Second
)

// Error reports a non-success response from the search API.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Tavily API error: %d", e.Status)
}

// Tavily searches the web through the Tavily API.
type Tavily struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// Option configures a Tavily client.
type Option func(*Tavily)

// WithEndpoint overrides the API URL.
func WithEndpoint(url string) Option {
	return func(t *Tavily) { t.endpoint = url }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tavily) { t.httpClient = c }
}

// NewTavily creates a client for the given API key.
func NewTavily(apiKey string, opts ...Option) *Tavily {
	t := &Tavily{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type tavilyRequest struct {
	APIKey                   string `json:"api_key"`
	Query                    string `json:"query"`
	SearchDepth              string `json:"search_depth"`
	IncludeAnswer            bool   `json:"include_answer"`
	IncludeImages            bool   `json:"include_images"`
	IncludeImageDescriptions bool   `json:"include_image_descriptions"`
	MaxResults               int    `json:"max_results"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
	Images []json.RawMessage `json:"images"`
}

// Search runs one query. Queries shorter than five characters are padded
// with spaces because the API rejects them.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int, depth chat.SearchDepth) (*chat.SearchResponse, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("tavily: API key not configured")
	}
	if depth == "" {
		depth = chat.DepthBasic
	}
	payload, err := json.Marshal(tavilyRequest{
		APIKey:                   t.apiKey,
		Query:                    padQuery(query),
		SearchDepth:              string(depth),
		IncludeImages:            true,
		IncludeImageDescriptions: true,
		MaxResults:               maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var data tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	out := &chat.SearchResponse{
		Query:   data.Query,
		Results: make([]chat.SearchResult, 0, len(data.Results)),
		Images:  make([]string, 0, len(data.Images)),
	}
	if out.Query == "" {
		out.Query = query
	}
	for _, r := range data.Results {
		out.Results = append(out.Results, chat.SearchResult{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	for _, raw := range data.Images {
		if u := imageURL(raw); u != "" {
			out.Images = append(out.Images, u)
		}
	}
	return out, nil
}

func padQuery(q string) string {
	if n := len([]rune(q)); n < minQueryLength {
		return q + strings.Repeat(" ", minQueryLength-n)
	}
	return q
}

// imageURL accepts either a bare URL string or an {"url": ...} object.
func imageURL(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.URL
	}
	return ""
}
