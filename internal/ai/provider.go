package ai

import (
	"context"
	"errors"
	"fmt"
)

// Message is one turn of a conversation as sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider answers a conversation with plain text. The full rolling
// history is supplied on every call; providers hold no session state.
type Provider interface {
	Chat(ctx context.Context, system string, messages []Message) (string, error)
}

// StructuredProvider is an optional interface. Providers may support
// schema-constrained JSON generation.
type StructuredProvider interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema *Schema) (string, error)
}

// SpeechProvider is an optional interface. Providers may synthesize
// speech, returning a base64 payload of raw s16le PCM.
type SpeechProvider interface {
	GenerateSpeech(ctx context.Context, text string) (string, error)
}

// ErrEmptyResponse means the call succeeded but carried no usable
// payload: no text part, or no inline audio for a speech call.
var ErrEmptyResponse = errors.New("ai: empty response")

// TransportError is a failed round trip: network fault, auth, rate
// limit, or a service-side error status.
type TransportError struct {
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ai transport: status %d: %s", e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("ai transport: %v", e.Err)
	}
	return fmt.Sprintf("ai transport: %s", e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }
