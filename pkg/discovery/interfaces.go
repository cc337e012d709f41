package discovery

// Well-known provider types used by the typed registration shorthands.
const (
	ProviderTypeLLM       = "llm"
	ProviderTypeEmbedding = "embedding"
	ProviderTypeSTT       = "stt"
)

// Default capabilities filled in by the typed shorthands when none are given.
var defaultCapabilities = map[string][]string{
	ProviderTypeLLM:       {"text_generation", "chat"},
	ProviderTypeEmbedding: {"embedding", "semantic_similarity"},
	ProviderTypeSTT:       {"speech_to_text", "transcription"},
}

// ProviderRegistration describes an infrastructure provider such as an LLM
// or embedding backend. Higher Priority is preferred.
type ProviderRegistration struct {
	Name         string                 `json:"name" yaml:"name"`
	ProviderType string                 `json:"provider_type" yaml:"type"`
	Endpoint     string                 `json:"endpoint,omitempty" yaml:"endpoint"`
	Models       []string               `json:"models,omitempty" yaml:"models"`
	Capabilities []string               `json:"capabilities,omitempty" yaml:"capabilities"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" yaml:"metadata"`
	Priority     int                    `json:"priority" yaml:"priority"`

	// APIKey stays in process; it is never serialised.
	APIKey string `json:"-" yaml:"api_key"`
}

func (p ProviderRegistration) clone() ProviderRegistration {
	out := p
	out.Models = append([]string(nil), p.Models...)
	out.Capabilities = append([]string(nil), p.Capabilities...)
	if p.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(p.Metadata))
		for k, v := range p.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
