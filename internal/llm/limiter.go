package llm

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bigfive-llm/internal/domain"
)

const redisRateAllowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisRateLimiter es una ventana fija por clave compartida entre procesos.
// Si Redis no responde, deja pasar (fail-open).
type RedisRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
	poll   time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

func NewRedisRateLimiter(client *redis.Client, window time.Duration, max int, logger *zap.Logger) *RedisRateLimiter {
	if client == nil {
		return nil
	}
	return newRedisRateLimiter(client, window, max, logger)
}

func newRedisRateLimiter(client redisEvaler, window time.Duration, max int, logger *zap.Logger) *RedisRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	poll := window / 20
	if poll < 50*time.Millisecond {
		poll = 50 * time.Millisecond
	}
	return &RedisRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "bfi:rl:",
		poll:   poll,
		sleep:  sleepContext,
		logger: logger,
	}
}

// Allow consume un permiso de la ventana actual.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	ms := l.window.Milliseconds()
	if ms <= 0 {
		ms = 60000
	}
	count, err := l.client.Eval(ctx, redisRateAllowScript, []string{l.prefix + normalizedKey}, ms).Int()
	if err != nil {
		l.logger.Debug("rate limiter unavailable, allowing", zap.String("key", normalizedKey), zap.Error(err))
		return true
	}
	return count <= l.max
}

// Wait bloquea hasta obtener un permiso o hasta que ctx termine.
func (l *RedisRateLimiter) Wait(ctx context.Context, key string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.Allow(ctx, key) {
			return nil
		}
		if err := l.sleep(ctx, l.poll); err != nil {
			return err
		}
	}
}

type limitedRater struct {
	next    Rater
	limiter *RedisRateLimiter
}

// Limited antepone el limitador a cada llamada, con clave = proveedor.
func Limited(next Rater, limiter *RedisRateLimiter) Rater {
	if limiter == nil {
		return next
	}
	return &limitedRater{next: next, limiter: limiter}
}

func (l *limitedRater) Rate(ctx context.Context, prompt domain.Prompt, model domain.TargetModel) (domain.RawResponse, error) {
	if err := l.limiter.Wait(ctx, model.Provider); err != nil {
		return domain.RawResponse{}, classifyTransport(model.Provider, err)
	}
	return l.next.Rate(ctx, prompt, model)
}

func (l *limitedRater) SupportsStructuredOutput() bool {
	return SupportsStructured(l.next)
}

func (l *limitedRater) CheckModel(model domain.TargetModel) error {
	return CheckModel(l.next, model)
}
