package llm

import (
	"context"
	"errors"
	"strings"
)

// MockGenerator streams a canned reply word by word. Used for local
// development and tests.
type MockGenerator struct {
	// Reply is streamed one word at a time. Defaults to a short greeting.
	Reply string

	// Fail makes every Generate call return an error before producing
	// any delta, for exercising fallback paths.
	Fail bool
}

// NewMockGenerator creates a mock with a default reply.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{Reply: "Hola, encantado de ayudarte."}
}

func (m *MockGenerator) Name() string { return "mock" }

func (m *MockGenerator) Generate(ctx context.Context, history []Message, systemPrompt string, consume func(string) error) error {
	if m.Fail {
		return errors.New("mock generator failure")
	}
	words := strings.Fields(m.Reply)
	for i, w := range words {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		delta := w
		if i < len(words)-1 {
			delta += " "
		}
		if err := consume(delta); err != nil {
			return err
		}
	}
	return nil
}
