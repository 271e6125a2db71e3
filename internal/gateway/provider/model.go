package provider

import "context"

type ImagePayload struct {
	DataURI     string
	Description string
}

type ChatPayload struct {
	System      string
	User        string
	Images      []ImagePayload
	Temperature float64
}

type ModelProvider interface {
	ID() string
	Enabled() bool
	SupportsVision() bool

	Call(ctx context.Context, payload ChatPayload) (string, error)
}
