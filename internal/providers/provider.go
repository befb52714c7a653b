// Package providers holds the model backend adapters and the capability
// table that decides how each backend is addressed.
package providers

import (
	"context"
)

// Roles used in normalized messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part is one piece of a normalized message. Exactly one of Text, ImageURL
// or InlineData is set.
type Part struct {
	Text       string
	ImageURL   string
	MimeType   string
	InlineData []byte
}

// IsImage reports whether the part carries image content.
func (p Part) IsImage() bool {
	return p.ImageURL != "" || len(p.InlineData) > 0
}

// Message is the provider-neutral message handed to an adapter.
type Message struct {
	Role  string
	Parts []Part
}

// Request is one streaming completion call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float32
	MaxTokens   int
}

// Stream yields text increments in generation order. Next returns io.EOF
// once the stream is exhausted.
type Stream interface {
	Next() (string, error)
	Close() error
}

// Adapter is the integration point for one hosted model backend.
type Adapter interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}
