package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy define cuantas veces y con que espera se reintenta una consulta.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	RetryOn     []ErrorKind
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		RetryOn:     []ErrorKind{KindTimeout, KindRateLimited, KindProvider},
	}
}

// Retryable: solo errores de transporte clasificados; auth nunca se reintenta por defecto.
func (p RetryPolicy) Retryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	for _, k := range p.RetryOn {
		if k == kind {
			return true
		}
	}
	return false
}

// Backoff devuelve la espera previa al intento attempt+1 (attempt empieza en 1).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 1 {
		return 0
	}
	shift := attempt - 1
	if shift > 16 {
		shift = 16
	}
	d := p.BaseDelay * time.Duration(1<<shift)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

type Retrier struct {
	policy RetryPolicy
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetrier(policy RetryPolicy, logger *zap.Logger) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{policy: policy, logger: logger, sleep: sleepContext}
}

// WithSleep reemplaza la espera (tests).
func (r *Retrier) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Retrier {
	if sleep != nil {
		r.sleep = sleep
	}
	return r
}

func (r *Retrier) Policy() RetryPolicy { return r.policy }

// Do ejecuta fn hasta que tenga exito, falle con un error no reintentable o se agoten
// los intentos. Devuelve la cantidad de intentos realizados.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt - 1, fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return attempt - 1, err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if !r.policy.Retryable(lastErr) || attempt == r.policy.MaxAttempts {
			return attempt, lastErr
		}

		wait := r.policy.Backoff(attempt)
		r.logger.Warn("retrying request",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(lastErr),
		)
		if err := r.sleep(ctx, wait); err != nil {
			return attempt, fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}
	return r.policy.MaxAttempts, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
