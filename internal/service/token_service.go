package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer = "bfi-eval"
	ScopeRuns   = "runs:write"
	ScopeRead   = "reports:read"
)

// TokenService emite y valida los tokens de operador que habilitan POST /runs.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type OperatorClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// HasScope acepta scopes separados por espacios, como en OAuth.
func (c OperatorClaims) HasScope(scope string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if s == scope {
			return true
		}
	}
	return false
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: tokenIssuer,
		now:    time.Now,
	}
}

// Issue firma un token con scope runs:write para subject. ttl <= 0 usa el TTL por defecto.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, time.Time, error) {
	return s.IssueScoped(subject, ScopeRuns, ttl)
}

// IssueScoped firma un token con el scope indicado.
func (s *TokenService) IssueScoped(subject, scope string, ttl time.Duration) (string, time.Time, error) {
	if len(s.secret) == 0 || strings.TrimSpace(subject) == "" {
		return "", time.Time{}, ErrJWTInvalid
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now().UTC()
	expires := now.Add(ttl)
	claims := OperatorClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   strings.TrimSpace(subject),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (s *TokenService) Parse(tokenString string) (OperatorClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return OperatorClaims{}, ErrJWTInvalid
	}
	var claims OperatorClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return OperatorClaims{}, ErrJWTExpired
		}
		return OperatorClaims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.Scope) == "" {
		return OperatorClaims{}, ErrJWTInvalid
	}
	return claims, nil
}
