package ai

import (
	"context"
	"errors"
)

// ErrInvocation covers every way an inference call can fail: transport,
// non-200 status or a function-level error.
var ErrInvocation = errors.New("inference failed")

var ErrStreamUnsupported = errors.New("provider does not support streaming")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one submission. It holds inference settings by value, so later
// settings edits never reach a request already built.
type Request struct {
	Question string
	// Messages is the conversation sent alongside the question. The function
	// backend only receives the current question.
	Messages []Message

	GuardrailID      string
	GuardrailVersion string
	Temperature      float64
	TopP             float64
	ModelID          string

	// Token is the caller's session token, forwarded as a bearer credential.
	Token string
}

// Conversation returns Messages ending with the question as a user turn.
func (r Request) Conversation() []Message {
	out := make([]Message, 0, len(r.Messages)+1)
	out = append(out, r.Messages...)
	if n := len(out); n == 0 || out[n-1].Role != "user" || out[n-1].Content != r.Question {
		out = append(out, Message{Role: "user", Content: r.Question})
	}
	return out
}

// Invoker returns the raw response text for a request.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// StreamInvoker is an optional interface. Invokers may implement streaming.
// Both channels are closed when streaming ends.
type StreamInvoker interface {
	InvokeStream(ctx context.Context, req Request) (<-chan string, <-chan error)
}
