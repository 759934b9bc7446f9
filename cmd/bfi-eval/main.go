package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bigfive-llm/internal/config"
	"bigfive-llm/internal/llm"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bfi-eval",
	Short: "Administer the Big Five Inventory to LLM endpoints",
	Long: `bfi-eval asks each configured language model the 44 BFI statements,
scores the answers into five trait means and publishes a comparison report.

Configuration comes from the environment (and an optional .env file).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("warning: loading .env: %v", err)
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err = newLogger(cfg.LogLevel, cfg.LogDir, time.Now())
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.AddCommand(runCmd, itemsCmd, showCmd, serveCmd, tokenCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger arma un logger de produccion; con LOG_DIR tambien escribe a archivo.
func newLogger(level, dir string, now time.Time) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		name := fmt.Sprintf("evaluation_%s.log", now.Format("20060102_150405"))
		zcfg.OutputPaths = append(zcfg.OutputPaths, filepath.Join(dir, name))
	}
	return zcfg.Build()
}

func providerSettings(c *config.Config) llm.ProviderSettings {
	return llm.ProviderSettings{
		OpenAIKey:        c.OpenAIAPIKey,
		OpenAIBaseURL:    c.OpenAIBaseURL,
		AnthropicKey:     c.AnthropicAPIKey,
		AnthropicBaseURL: c.AnthropicBaseURL,
		XAIKey:           c.XAIAPIKey,
		XAIBaseURL:       c.XAIBaseURL,
		GeminiKey:        c.GeminiAPIKey,
		GeminiBaseURL:    c.GeminiBaseURL,
		RequestTimeout:   c.RequestTimeout,
	}
}

func retryPolicy(c *config.Config) llm.RetryPolicy {
	policy := llm.DefaultRetryPolicy()
	policy.MaxAttempts = c.RetryMaxAttempts
	policy.BaseDelay = c.RetryBaseDelay
	policy.MaxDelay = c.RetryMaxDelay
	return policy
}

// connectRedis devuelve nil si no hay REDIS_ADDR o si el ping falla.
func connectRedis(ctx context.Context, c *config.Config, logger *zap.Logger) *redis.Client {
	if c.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

func newRegistry(c *config.Config, redisClient *redis.Client, logger *zap.Logger) *llm.Registry {
	var limiter *llm.RedisRateLimiter
	if c.RateLimitPerMinute > 0 {
		limiter = llm.NewRedisRateLimiter(redisClient, time.Minute, c.RateLimitPerMinute, logger)
		if limiter == nil {
			logger.Warn("rate limit configured without redis; requests are not limited")
		}
	}
	return llm.NewRegistry(providerSettings(c), limiter, logger)
}
