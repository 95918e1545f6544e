package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	completeTimeout = 60 * time.Second
	maxErrorBody    = 512
)

// Dispatcher sends conversations to providers. The provider table is fixed
// when the dispatcher is built.
type Dispatcher struct {
	httpClient *http.Client
	providers  map[ProviderID]providerSpec
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient replaces the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		d.httpClient = c
	}
}

// WithBaseURL points provider p at a different base URL, e.g. a proxy or a
// test server. Unknown providers are ignored.
func WithBaseURL(p ProviderID, baseURL string) DispatcherOption {
	return func(d *Dispatcher) {
		spec, ok := d.providers[p]
		if !ok || baseURL == "" {
			return
		}
		spec.baseURL = baseURL
		d.providers[p] = spec
	}
}

// NewDispatcher builds a dispatcher over the fixed provider table.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		// No client-level timeout: streams stay open as long as the model
		// keeps generating. Cancellation comes from the request context.
		httpClient: &http.Client{},
		providers:  defaultProviders(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stream is an open streaming response from a provider.
type Stream struct {
	Provider ProviderID
	body     io.ReadCloser
	wire     wireFormat
}

// Close tears down the underlying connection. It is safe to call more than once.
func (s *Stream) Close() error {
	return s.body.Close()
}

// Decode reads the stream to its end, calling onDelta with the accumulated
// text after every recognized chunk, and returns the final text. Malformed
// lines are passed to onDrop when it is non-nil.
func (s *Stream) Decode(ctx context.Context, onDelta func(string), onDrop func(string, error)) (string, error) {
	d := newLineDecoder(s.wire.recognize, onDelta)
	d.onDrop = onDrop
	if err := decodeStream(ctx, s.body, d); err != nil {
		return d.Text(), err
	}
	return d.Text(), nil
}

// Stream opens a streaming generation for model. The caller owns the returned
// stream and must close it.
func (d *Dispatcher) Stream(ctx context.Context, model ModelDescriptor, msgs []Message, creds Credentials) (*Stream, error) {
	spec, resp, err := d.do(ctx, model, msgs, creds, true)
	if err != nil {
		return nil, err
	}
	return &Stream{Provider: spec.id, body: resp.Body, wire: spec.wire}, nil
}

// Complete runs a non-streaming generation and returns the reply text.
func (d *Dispatcher) Complete(ctx context.Context, model ModelDescriptor, msgs []Message, creds Credentials) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()

	spec, resp, err := d.do(ctx, model, msgs, creds, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	text, err := spec.wire.completion(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s response: %w", spec.name, err)
	}
	return strings.TrimSpace(text), nil
}

func (d *Dispatcher) do(ctx context.Context, model ModelDescriptor, msgs []Message, creds Credentials, stream bool) (providerSpec, *http.Response, error) {
	spec, ok := d.providers[model.ProviderID]
	if !ok {
		return spec, nil, &ProviderError{ProviderID: model.ProviderID, Message: "unsupported provider"}
	}
	key := creds.Key(spec.id)
	if key == "" {
		return spec, nil, &ProviderError{ProviderID: spec.id, Message: "API key not configured"}
	}

	body, err := json.Marshal(spec.wire.body(model.ID, msgs, stream))
	if err != nil {
		return spec, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spec.wire.endpoint(spec.baseURL, model.ID, key, stream), bytes.NewReader(body))
	if err != nil {
		return spec, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	spec.wire.authorize(req.Header, key)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return spec, nil, ctxErr
		}
		return spec, nil, &ProviderError{ProviderID: spec.id, Message: "request failed: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return spec, nil, &ProviderError{
			ProviderID: spec.id,
			Status:     resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return spec, resp, nil
}
