package ai

import "context"

// Request carries a single text-completion invocation.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Generator is the opaque generative-text capability. Implementations own
// their retry policy; callers issue exactly one Complete per narrative.
type Generator interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}
