package llm

import "context"

// Message roles in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one conversation history entry. Messages are append-only and
// never mutated after creation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator streams a reply to a conversation. Deltas are delivered to
// consume in production order, exactly once each; the sequence is finite
// and cannot be restarted. A non-nil consume error cancels generation and
// is returned unchanged.
type Generator interface {
	// Name identifies the provider in chains and logs.
	Name() string

	Generate(ctx context.Context, history []Message, systemPrompt string, consume func(delta string) error) error
}
