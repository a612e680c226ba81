package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnavailable is returned by clients that have no provider configured.
var ErrUnavailable = errors.New("llm: no provider configured")

// Message is a single prompt turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
	Provider   string
}

// Client generates text for a prompt. Any error means the caller should use
// its deterministic fallback.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
