// Package llm defines the generation-provider boundary. The engine assembles
// prompt text and parses reply text; the actual network clients live outside
// and are handed in through the Provider interface.
package llm

import "context"

// Role of a chat message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params tunes one completion call. ResponseSchema, when set, is a
// JSON-Schema description the provider may use to constrain output.
type Params struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	ResponseSchema map[string]any
}

// Provider accepts a message list and yields the model's reply text.
// Streaming, retries, and cancellation policy are the caller's concern;
// implementations should honor ctx.
type Provider interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
}

// Config holds provider settings passed down from the server layer.
type Config struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"apiKey"`
}

// IsConfigured checks whether the config names a usable provider.
func (c Config) IsConfigured() bool {
	return c.Provider != "" && c.APIKey != ""
}
