package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIInvoker talks to any OpenAI-compatible chat completions endpoint.
type OpenAIInvoker struct {
	client *openai.Client
	Model  string
}

func NewOpenAIInvoker(apiKey, baseURL, model string) *OpenAIInvoker {
	cc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cc.BaseURL = baseURL
	}
	return &OpenAIInvoker{client: openai.NewClientWithConfig(cc), Model: model}
}

func (p *OpenAIInvoker) request(req Request, stream bool) openai.ChatCompletionRequest {
	model := strings.TrimSpace(p.Model)
	if req.ModelID != "" {
		model = req.ModelID
	}
	conv := req.Conversation()
	msgs := make([]openai.ChatCompletionMessage, 0, len(conv))
	for _, m := range conv {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		Stream:      stream,
	}
}

func (p *OpenAIInvoker) Invoke(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(req, false))
	if err != nil {
		return "", fmt.Errorf("%w: openai: %v", ErrInvocation, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai: empty response", ErrInvocation)
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIInvoker) InvokeStream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		stream, err := p.client.CreateChatCompletionStream(ctx, p.request(req, true))
		if err != nil {
			errs <- fmt.Errorf("%w: openai: %v", ErrInvocation, err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errs <- fmt.Errorf("%w: openai: %v", ErrInvocation, err)
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case chunks <- resp.Choices[0].Delta.Content:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errs
}

var (
	_ Invoker       = (*OpenAIInvoker)(nil)
	_ StreamInvoker = (*OpenAIInvoker)(nil)
)
