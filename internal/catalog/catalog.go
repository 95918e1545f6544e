// Package catalog loads the list of selectable models and filters it by
// the credentials that are configured.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/arin/morph/internal/chat"
)

//go:embed models.json
var defaultModels []byte

// Catalog is an immutable list of model descriptors.
type Catalog struct {
	models  []chat.ModelDescriptor
	skipped []error
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultModels)
	if err != nil {
		panic("catalog: embedded models.json is invalid: " + err.Error())
	}
	return c
}

// Load reads a catalog file, or returns the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse accepts either a bare array of descriptors or an object with a
// "models" array. Invalid entries are skipped and reported by Skipped.
func Parse(data []byte) (*Catalog, error) {
	var raw []chat.ModelDescriptor
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapped struct {
			Models []chat.ModelDescriptor `json:"models"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("invalid model catalog: %w", err2)
		}
		if wrapped.Models == nil {
			return nil, fmt.Errorf("invalid model catalog: no models array")
		}
		raw = wrapped.Models
	}

	c := &Catalog{models: make([]chat.ModelDescriptor, 0, len(raw))}
	for i, m := range raw {
		if err := m.Validate(); err != nil {
			c.skipped = append(c.skipped, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		c.models = append(c.models, m)
	}
	return c, nil
}

// All returns every valid descriptor, enabled or not.
func (c *Catalog) All() []chat.ModelDescriptor {
	return append([]chat.ModelDescriptor(nil), c.models...)
}

// Skipped lists the entries dropped during parsing.
func (c *Catalog) Skipped() []error {
	return c.skipped
}

// ListEnabledModels returns the enabled models whose provider has a key.
// When none qualify it returns just the fallback model.
func (c *Catalog) ListEnabledModels(creds chat.Credentials) []chat.ModelDescriptor {
	var out []chat.ModelDescriptor
	for _, m := range c.models {
		if m.Enabled && creds.Has(m.ProviderID) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return []chat.ModelDescriptor{chat.FallbackModel}
	}
	return out
}

// ProviderState describes one provider for diagnostics.
type ProviderState struct {
	ID        chat.ProviderID
	Name      string
	HasAPIKey bool
	// Enabled is true when the provider has a key and at least one enabled
	// model in the catalog.
	Enabled bool
	Models  int
}

// ProviderStatus reports every supported provider, in display order.
func (c *Catalog) ProviderStatus(creds chat.Credentials) []ProviderState {
	out := make([]ProviderState, 0, len(chat.ProviderIDs))
	for _, p := range chat.ProviderIDs {
		st := ProviderState{ID: p, Name: chat.ProviderName(p), HasAPIKey: creds.Has(p)}
		for _, m := range c.models {
			if m.ProviderID == p && m.Enabled {
				st.Models++
			}
		}
		st.Enabled = st.HasAPIKey && st.Models > 0
		out = append(out, st)
	}
	return out
}
