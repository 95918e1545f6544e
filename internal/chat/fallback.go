package chat

import "strings"

// FallbackModel is used whenever no usable model can be determined, and for
// auxiliary calls such as related-question generation.
var FallbackModel = ModelDescriptor{
	ID:           "gpt-4o-mini",
	Name:         "GPT-4o mini",
	Provider:     "OpenAI",
	ProviderID:   ProviderOpenAI,
	Enabled:      true,
	ToolCallType: "native",
}

// DefaultModel picks the preferred model from an enabled-model list: the
// fallback model if present, then the first OpenAI model, then the first
// entry. An empty list yields FallbackModel.
func DefaultModel(models []ModelDescriptor) ModelDescriptor {
	if len(models) == 0 {
		return FallbackModel
	}
	for _, m := range models {
		if m.ID == FallbackModel.ID {
			return m
		}
	}
	for _, m := range models {
		if m.ProviderID == ProviderOpenAI {
			return m
		}
	}
	return models[0]
}

// ResolveModel finds the model named by ref in models. ref is either a bare
// model id or "provider:id". An empty or unknown ref resolves to
// DefaultModel(models); ok is false when ref was given but not found.
func ResolveModel(models []ModelDescriptor, ref string) (m ModelDescriptor, ok bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return DefaultModel(models), true
	}
	provider, id, qualified := strings.Cut(ref, ":")
	for _, m := range models {
		if qualified && string(m.ProviderID) == provider && m.ID == id {
			return m, true
		}
		if m.ID == ref {
			return m, true
		}
	}
	return DefaultModel(models), false
}
