package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProviderSettings agrupa credenciales y endpoints de todos los proveedores.
type ProviderSettings struct {
	OpenAIKey        string
	OpenAIBaseURL    string
	AnthropicKey     string
	AnthropicBaseURL string
	XAIKey           string
	XAIBaseURL       string
	GeminiKey        string
	GeminiBaseURL    string
	RequestTimeout   time.Duration
}

// HasCredentials indica si el proveedor tiene lo necesario para construirse.
func (s ProviderSettings) HasCredentials(provider string) bool {
	switch strings.ToLower(provider) {
	case "openai":
		return strings.TrimSpace(s.OpenAIKey) != ""
	case "anthropic":
		return strings.TrimSpace(s.AnthropicKey) != ""
	case "xai":
		return strings.TrimSpace(s.XAIKey) != ""
	case "gemini":
		return strings.TrimSpace(s.GeminiKey) != ""
	case DemoProvider:
		return true
	default:
		return false
	}
}

// Registry construye (una vez) el Rater de cada proveedor.
type Registry struct {
	settings ProviderSettings
	limiter  *RedisRateLimiter
	logger   *zap.Logger

	mu     sync.Mutex
	raters map[string]Rater
}

func NewRegistry(settings ProviderSettings, limiter *RedisRateLimiter, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		settings: settings,
		limiter:  limiter,
		logger:   logger,
		raters:   make(map[string]Rater),
	}
}

// Register fija un Rater para un proveedor, por encima de la fabrica.
func (r *Registry) Register(provider string, rater Rater) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raters[strings.ToLower(provider)] = rater
}

func (r *Registry) Rater(ctx context.Context, provider string) (Rater, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))

	r.mu.Lock()
	defer r.mu.Unlock()
	if rater, ok := r.raters[provider]; ok {
		return rater, nil
	}
	rater, err := r.build(ctx, provider)
	if err != nil {
		return nil, err
	}
	// el demo no consume cuota externa
	if provider != DemoProvider {
		rater = Limited(rater, r.limiter)
	}
	r.raters[provider] = rater
	return rater, nil
}

func (r *Registry) build(ctx context.Context, provider string) (Rater, error) {
	s := r.settings
	switch provider {
	case "openai":
		return NewOpenAIRater(OpenAIConfig{
			Provider: "openai",
			APIKey:   s.OpenAIKey,
			BaseURL:  s.OpenAIBaseURL,
			Timeout:  s.RequestTimeout,
		}, r.logger)
	case "xai":
		baseURL := s.XAIBaseURL
		if baseURL == "" {
			baseURL = defaultXAIBaseURL
		}
		return NewOpenAIRater(OpenAIConfig{
			Provider: "xai",
			APIKey:   s.XAIKey,
			BaseURL:  baseURL,
			Timeout:  s.RequestTimeout,
		}, r.logger)
	case "anthropic":
		return NewAnthropicRater(AnthropicConfig{
			APIKey:  s.AnthropicKey,
			BaseURL: s.AnthropicBaseURL,
			Timeout: s.RequestTimeout,
		}, r.logger)
	case "gemini":
		return NewGeminiRater(ctx, GeminiConfig{
			APIKey:  s.GeminiKey,
			BaseURL: s.GeminiBaseURL,
			Timeout: s.RequestTimeout,
		}, r.logger)
	case DemoProvider:
		return NewDemoRater(), nil
	default:
		return nil, fmt.Errorf("%q: %w", provider, ErrUnknownProvider)
	}
}
