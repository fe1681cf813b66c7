package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/suPer8Hu/kb-chat/internal/ai"
	"github.com/suPer8Hu/kb-chat/internal/config"
)

// newRegistry registers every invoker the config can reach. The function
// invoker is always present since it is the default provider.
func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	fn := ai.NewFunctionInvoker(cfg.FunctionURL, &http.Client{Timeout: cfg.InvokeTimeout})
	reg.Register("function", func(_ context.Context, _ string) (ai.Invoker, error) {
		if cfg.FunctionURL == "" {
			return nil, errors.New("FUNCTION_URL is not set")
		}
		return fn, nil
	})

	reg.Register("ollama", func(_ context.Context, model string) (ai.Invoker, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaInvoker(cfg.OllamaBaseURL, m), nil
	})

	if cfg.OpenRouterAPIKey != "" {
		reg.Register("openrouter", func(_ context.Context, model string) (ai.Invoker, error) {
			m := strings.TrimSpace(model)
			if m == "" {
				m = cfg.OpenRouterModel
			}
			return ai.NewOpenRouterInvoker(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
		})
	}

	if cfg.OpenAIAPIKey != "" {
		reg.Register("openai", func(_ context.Context, model string) (ai.Invoker, error) {
			m := strings.TrimSpace(model)
			if m == "" {
				m = cfg.OpenAIModel
			}
			return ai.NewOpenAIInvoker(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, m), nil
		})
	}
	return reg
}
