package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAnswerText(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"object body", `{"statusCode":200,"body":{"answer":{"content":[{"text":"hi"}]}}}`, "hi", false},
		{"string body", `{"statusCode":200,"body":"{\"answer\":{\"content\":[{\"text\":\"hi there\"}]}}"}`, "hi there", false},
		{"non-200", `{"statusCode":500,"body":"boom"}`, "", true},
		{"function error", `{"FunctionError":"Unhandled"}`, "", true},
		{"error message", `{"errorMessage":"Task timed out","errorType":"TimeoutError"}`, "", true},
		{"missing text", `{"statusCode":200,"body":{"answer":{"content":[]}}}`, "", true},
		{"not json", `<html>`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractAnswerText([]byte(tc.in))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvocation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFunctionInvoker_Payload(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		_, _ = w.Write([]byte(`{"statusCode":200,"body":{"answer":{"content":[{"text":"<answer>ok</answer>"}]}}}`))
	}))
	defer srv.Close()

	inv := NewFunctionInvoker(srv.URL, srv.Client())
	text, err := inv.Invoke(context.Background(), Request{
		Question:         "what?",
		Messages:         []Message{{Role: "user", Content: "earlier"}},
		GuardrailID:      "g1",
		GuardrailVersion: "2",
		Temperature:      0.5,
		TopP:             0.8,
		ModelID:          "anthropic.claude-v2",
		Token:            "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "<answer>ok</answer>", text)
	assert.Equal(t, "Bearer tok", auth)

	assert.Equal(t, "what?", got["question"])
	assert.Equal(t, "g1", got["guardrailId"])
	assert.Equal(t, "2", got["guardrailVersion"])
	assert.Equal(t, 0.5, got["temperature"])
	assert.Equal(t, 0.8, got["topP"])
	assert.Equal(t, "anthropic.claude-v2", got["modelId"])

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 1)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "what?", first["content"].([]any)[0].(map[string]any)["text"])
}

func TestFunctionInvoker_FailuresMapToInvocationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/header":
			w.Header().Set("X-Amz-Function-Error", "Unhandled")
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	for _, path := range []string{"/header", "/status"} {
		_, err := NewFunctionInvoker(srv.URL+path, srv.Client()).Invoke(context.Background(), Request{Question: "q"})
		assert.ErrorIs(t, err, ErrInvocation, path)
	}
}

func TestRequestConversation(t *testing.T) {
	r := Request{Question: "q2", Messages: []Message{{Role: "user", Content: "q1"}, {Role: "assistant", Content: "a1"}}}
	conv := r.Conversation()
	require.Len(t, conv, 3)
	assert.Equal(t, Message{Role: "user", Content: "q2"}, conv[2])

	r.Messages = append(r.Messages, Message{Role: "user", Content: "q2"})
	assert.Len(t, r.Conversation(), 3)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Function ", func(ctx context.Context, model string) (Invoker, error) {
		return NewFunctionInvoker("http://example.invalid", nil), nil
	})

	inv, err := reg.Get(context.Background(), "FUNCTION", "")
	require.NoError(t, err)
	assert.IsType(t, &FunctionInvoker{}, inv)

	_, err = reg.Get(context.Background(), "nope", "")
	assert.Error(t, err)
	assert.Equal(t, []string{"function"}, reg.Names())
}
