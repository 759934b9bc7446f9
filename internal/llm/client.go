package llm

import (
	"context"
	"errors"
	"time"

	"bigfive-llm/internal/domain"
)

// Rater es la unica capacidad que expone cada proveedor: pedir el rating de un item.
// Las negativas del modelo NO son errores; vuelven como RawResponse.
type Rater interface {
	Rate(ctx context.Context, prompt domain.Prompt, model domain.TargetModel) (domain.RawResponse, error)
}

// StructuredRater lo implementan los adapters capaces de forzar el schema de rating.
type StructuredRater interface {
	Rater
	SupportsStructuredOutput() bool
}

// SupportsStructured indica si conviene pedir structured output al rater.
func SupportsStructured(r Rater) bool {
	sr, ok := r.(StructuredRater)
	return ok && sr.SupportsStructuredOutput()
}

// ModelChecker lo implementan los raters que pueden rechazar un modelo sin ir a la red.
type ModelChecker interface {
	CheckModel(model domain.TargetModel) error
}

// CheckModel valida el modelo contra el rater; los que no saben validar aceptan todo.
func CheckModel(r Rater, model domain.TargetModel) error {
	if mc, ok := r.(ModelChecker); ok {
		return mc.CheckModel(model)
	}
	return nil
}

// IsConfigError indica una configuracion de cliente invalida (proveedor o modelo
// desconocido, credenciales faltantes).
func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnknownProvider) || errors.Is(err, ErrMissingCredentials)
}

// RaterFunc adapta una funcion a Rater.
type RaterFunc func(ctx context.Context, prompt domain.Prompt, model domain.TargetModel) (domain.RawResponse, error)

func (f RaterFunc) Rate(ctx context.Context, prompt domain.Prompt, model domain.TargetModel) (domain.RawResponse, error) {
	return f(ctx, prompt, model)
}

const defaultRequestTimeout = 60 * time.Second

// withRequestTimeout acota cada llamada; respeta un deadline previo mas corto.
func withRequestTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
