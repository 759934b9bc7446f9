package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del evaluador.
type Config struct {
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com/v1"`
	XAIAPIKey        string `env:"XAI_API_KEY"`
	XAIBaseURL       string `env:"XAI_BASE_URL" envDefault:"https://api.x.ai/v1"`
	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	GeminiBaseURL    string `env:"GEMINI_BASE_URL"`

	RosterFile          string        `env:"BFI_ROSTER_FILE"`
	ResultsDir          string        `env:"BFI_RESULTS_DIR" envDefault:"results"`
	MinValidFraction    float64       `env:"BFI_MIN_VALID_FRACTION" envDefault:"0.5"`
	Trials              int           `env:"BFI_TRIALS" envDefault:"1"`
	RequestTimeout      time.Duration `env:"BFI_REQUEST_TIMEOUT" envDefault:"60s"`
	RunTimeout          time.Duration `env:"BFI_RUN_TIMEOUT" envDefault:"15m"`
	ProviderConcurrency int           `env:"BFI_PROVIDER_CONCURRENCY" envDefault:"4"`
	RetryMaxAttempts    int           `env:"BFI_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay      time.Duration `env:"BFI_RETRY_BASE_DELAY" envDefault:"1s"`
	RetryMaxDelay       time.Duration `env:"BFI_RETRY_MAX_DELAY" envDefault:"30s"`
	RefusalPatterns     []string      `env:"BFI_REFUSAL_PATTERNS" envSeparator:"|"`
	RateLimitPerMinute  int           `env:"BFI_RATE_LIMIT_PER_MINUTE" envDefault:"0"`

	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	HTTPPort  string        `env:"HTTP_PORT" envDefault:"8080"`
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDir   string `env:"LOG_DIR"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza valores que harian imposible puntuar.
func (c *Config) Validate() error {
	if c.MinValidFraction <= 0 || c.MinValidFraction > 1 {
		return fmt.Errorf("BFI_MIN_VALID_FRACTION must be in (0,1], got %v", c.MinValidFraction)
	}
	if c.Trials < 1 {
		return fmt.Errorf("BFI_TRIALS must be >= 1, got %d", c.Trials)
	}
	if c.ProviderConcurrency < 1 {
		return fmt.Errorf("BFI_PROVIDER_CONCURRENCY must be >= 1, got %d", c.ProviderConcurrency)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("BFI_RETRY_MAX_ATTEMPTS must be >= 1, got %d", c.RetryMaxAttempts)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("BFI_RATE_LIMIT_PER_MINUTE must be >= 0, got %d", c.RateLimitPerMinute)
	}
	return nil
}
