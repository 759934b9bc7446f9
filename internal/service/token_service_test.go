package service

import (
	"errors"
	"testing"
	"time"
)

func TestTokenService_IssueAndParse(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	token, expires, err := svc.Issue("ops", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected future expiry, got %v", expires)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if claims.Subject != "ops" || claims.Scope != ScopeRuns || claims.Issuer != tokenIssuer {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenService_Rejections(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	if _, _, err := svc.Issue("  ", 0); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for empty subject, got %v", err)
	}
	if _, _, err := NewTokenService("", 0).Issue("ops", 0); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid without secret, got %v", err)
	}

	other := NewTokenService("other-secret", time.Hour)
	token, _, _ := other.Issue("ops", 0)
	if _, err := svc.Parse(token); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for foreign signature, got %v", err)
	}

	if _, err := svc.Parse("not-a-jwt"); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid for garbage, got %v", err)
	}
}

func TestTokenService_Expired(t *testing.T) {
	svc := NewTokenService("secret", time.Minute)
	past := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return past }
	token, _, err := svc.Issue("ops", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.now = time.Now
	if _, err := svc.Parse(token); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestTokenService_IssueScoped(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)
	token, _, err := svc.IssueScoped("viewer", ScopeRead, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.HasScope(ScopeRuns) || !claims.HasScope(ScopeRead) {
		t.Fatalf("unexpected scopes %q", claims.Scope)
	}

	if _, err := svc.Parse(mustIssueScoped(t, svc, "")); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("tokens without scope must be rejected, got %v", err)
	}

	multi := OperatorClaims{Scope: "reports:read runs:write"}
	if !multi.HasScope(ScopeRuns) || multi.HasScope("runs") {
		t.Fatalf("HasScope must match whole scopes")
	}
}

func mustIssueScoped(t *testing.T, svc *TokenService, scope string) string {
	t.Helper()
	token, _, err := svc.IssueScoped("ops", scope, 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}
