package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind es la taxonomia de fallas de transporte.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindAuth        ErrorKind = "auth"
	KindRateLimited ErrorKind = "rate_limited"
	KindProvider    ErrorKind = "provider"
)

var (
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrMissingCredentials = errors.New("missing provider credentials")
)

// TransportError envuelve cualquier falla de red o del proveedor.
type TransportError struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s error (status=%d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// KindOf devuelve el tipo de falla de transporte contenido en err.
func KindOf(err error) (ErrorKind, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}

// IsKind es un atajo para comparar el tipo de falla.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindProvider
	}
}

// statusError construye un TransportError a partir de un status HTTP.
func statusError(provider string, status int, err error) *TransportError {
	return &TransportError{Kind: kindForStatus(status), Provider: provider, Status: status, Err: err}
}

// classifyTransport clasifica errores genericos (contexto, red) que no traen status.
func classifyTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TransportError{Kind: KindTimeout, Provider: provider, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: KindTimeout, Provider: provider, Err: err}
	}
	return &TransportError{Kind: KindProvider, Provider: provider, Err: err}
}
