package driven

import "context"

// Message is one turn of a completion conversation.
type Message struct {
	// Role is "system", "user" or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// CompletionService produces a text completion from a prompt.
// This is an optional service - when nil, answer synthesis is disabled
// and callers fall back to raw retrieval results.
type CompletionService interface {
	// Complete returns the model's answer to the conversation.
	Complete(ctx context.Context, messages []Message) (string, error)

	// ModelName returns the name of the completion model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
