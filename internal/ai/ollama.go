package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type OllamaInvoker struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaInvoker(baseURL, model string) *OllamaInvoker {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaInvoker{
		BaseURL: baseURL,
		Model:   model,
		// no global timeout; ctx bounds both plain and streamed calls
		Client: &http.Client{},
	}
}

type ollamaChatReq struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type ollamaChatResp struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func (p *OllamaInvoker) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	if p.Client == nil {
		return nil, errors.New("ollama: http client is nil")
	}
	model := p.Model
	if req.ModelID != "" {
		model = req.ModelID
	}
	b, err := json.Marshal(ollamaChatReq{
		Model:    model,
		Messages: req.Conversation(),
		Stream:   stream,
		Options:  ollamaOptions{Temperature: req.Temperature, TopP: req.TopP},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/chat", p.BaseURL)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: %v", ErrInvocation, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: ollama: status %d", ErrInvocation, resp.StatusCode)
	}
	return resp, nil
}

func (p *OllamaInvoker) Invoke(ctx context.Context, req Request) (string, error) {
	resp, err := p.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: ollama: %v", ErrInvocation, err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", ErrInvocation, decoded.Error)
	}
	return decoded.Message.Content, nil
}

// InvokeStream streams assistant content chunks from newline-delimited JSON.
func (p *OllamaInvoker) InvokeStream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		resp, err := p.post(ctx, req, true)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		// long JSON lines
		sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}
			var decoded ollamaChatResp
			if err := json.Unmarshal(line, &decoded); err != nil {
				errs <- fmt.Errorf("%w: ollama: %v", ErrInvocation, err)
				return
			}
			if decoded.Error != "" {
				errs <- fmt.Errorf("%w: ollama: %s", ErrInvocation, decoded.Error)
				return
			}
			if decoded.Message.Content != "" {
				select {
				case chunks <- decoded.Message.Content:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if decoded.Done {
				return
			}
		}
		if err := sc.Err(); err != nil {
			errs <- fmt.Errorf("%w: ollama: %v", ErrInvocation, err)
		}
	}()

	return chunks, errs
}

var (
	_ Invoker       = (*OllamaInvoker)(nil)
	_ StreamInvoker = (*OllamaInvoker)(nil)
)
