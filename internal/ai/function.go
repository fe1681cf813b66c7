package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// maxEnvelopeSize bounds how much of a function response is read.
const maxEnvelopeSize = 8 << 20

// FunctionInvoker calls a managed function over HTTP. The function answers
// with an envelope {statusCode, body} whose body (an object or a JSON
// string) carries the response text at answer.content[0].text.
type FunctionInvoker struct {
	URL    string
	Client *http.Client
}

func NewFunctionInvoker(url string, client *http.Client) *FunctionInvoker {
	if client == nil {
		client = &http.Client{}
	}
	return &FunctionInvoker{URL: url, Client: client}
}

type functionContent struct {
	Text string `json:"text"`
}

type functionMessage struct {
	Role    string            `json:"role"`
	Content []functionContent `json:"content"`
}

type functionPayload struct {
	Question         string            `json:"question"`
	Messages         []functionMessage `json:"messages"`
	GuardrailID      string            `json:"guardrailId"`
	GuardrailVersion string            `json:"guardrailVersion"`
	Temperature      float64           `json:"temperature"`
	TopP             float64           `json:"topP"`
	ModelID          string            `json:"modelId"`
}

func newFunctionPayload(req Request) functionPayload {
	return functionPayload{
		Question: req.Question,
		Messages: []functionMessage{{
			Role:    "user",
			Content: []functionContent{{Text: req.Question}},
		}},
		GuardrailID:      req.GuardrailID,
		GuardrailVersion: req.GuardrailVersion,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		ModelID:          req.ModelID,
	}
}

func (f *FunctionInvoker) Invoke(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(f.URL) == "" {
		return "", errors.New("function: url is required")
	}
	b, err := json.Marshal(newFunctionPayload(req))
	if err != nil {
		return "", err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if req.Token != "" {
		hreq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	resp, err := f.Client.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvocation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeSize))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrInvocation, err)
	}
	if fe := resp.Header.Get("X-Amz-Function-Error"); fe != "" {
		return "", fmt.Errorf("%w: function error: %s", ErrInvocation, fe)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrInvocation, resp.StatusCode)
	}
	return ExtractAnswerText(raw)
}

// ExtractAnswerText reads the response text out of a function envelope.
func ExtractAnswerText(envelope []byte) (string, error) {
	if !gjson.ValidBytes(envelope) {
		return "", fmt.Errorf("%w: malformed envelope", ErrInvocation)
	}
	doc := gjson.ParseBytes(envelope)

	if fe := doc.Get("FunctionError"); fe.Exists() {
		return "", fmt.Errorf("%w: function error: %s", ErrInvocation, fe.String())
	}
	if msg := doc.Get("errorMessage"); msg.Exists() {
		return "", fmt.Errorf("%w: function error: %s", ErrInvocation, msg.String())
	}

	body := doc.Get("body")
	if sc := doc.Get("statusCode"); sc.Exists() && sc.Int() != http.StatusOK {
		return "", fmt.Errorf("%w: API error: %s", ErrInvocation, body.String())
	}
	if body.Type == gjson.String {
		if !gjson.Valid(body.Str) {
			return "", fmt.Errorf("%w: malformed body", ErrInvocation)
		}
		body = gjson.Parse(body.Str)
	}

	text := body.Get("answer.content.0.text")
	if !text.Exists() {
		return "", fmt.Errorf("%w: response has no answer text", ErrInvocation)
	}
	return text.String(), nil
}

var _ Invoker = (*FunctionInvoker)(nil)
