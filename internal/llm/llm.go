// Package llm provides chat completion backends behind one interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/congelados/vendedor/internal/config"
)

// ErrNoBackend is returned by a Completer when no language model is configured.
var ErrNoBackend = errors.New("llm: no backend configured")

// Provider names accepted in [llm].provider.
const (
	ProviderOpenAI           = "openai"
	ProviderOpenAICompatible = "openai_compatible"
	ProviderGemini           = "gemini"
	ProviderNone             = "none"
)

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// Schema, when set, asks the backend for JSON matching it. Backends that cannot
	// enforce a schema ignore it.
	Schema any
}

// Completer sends a prompt to a language model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// New builds the backend selected by cfg. An empty API key yields the disabled backend so
// the assistant still runs on its deterministic stages.
func New(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (Completer, error) {
	if log == nil {
		log = slog.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider != ProviderNone && provider != ProviderOpenAICompatible && strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn("llm api key missing, resolver disabled", slog.String("provider", provider))
		return Disabled{}, nil
	}
	switch provider {
	case "", ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case ProviderOpenAICompatible:
		return NewHTTPClient(log, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout())
	case ProviderGemini:
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case ProviderNone:
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// Disabled always fails with ErrNoBackend.
type Disabled struct{}

func (Disabled) Complete(context.Context, Request) (string, error) { return "", ErrNoBackend }

func (Disabled) Name() string { return ProviderNone }
