package llm

import (
	"context"
	"errors"
	"testing"

	"bigfive-llm/internal/domain"
)

func TestRegistry_BuildsAndCaches(t *testing.T) {
	reg := NewRegistry(ProviderSettings{OpenAIKey: "k", XAIKey: "x", AnthropicKey: "a"}, nil, nil)
	ctx := context.Background()

	for _, p := range []string{"openai", "xai", "anthropic", "demo"} {
		r1, err := reg.Rater(ctx, p)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", p, err)
		}
		r2, _ := reg.Rater(ctx, p)
		if r1 != r2 {
			t.Fatalf("%s: rater must be cached", p)
		}
	}
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry(ProviderSettings{}, nil, nil)
	if _, err := reg.Rater(context.Background(), "cohere"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := reg.Rater(context.Background(), "openai"); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestRegistry_RegisterOverrides(t *testing.T) {
	reg := NewRegistry(ProviderSettings{}, nil, nil)
	mock := &MockRater{}
	reg.Register("OpenAI", mock)
	got, err := reg.Rater(context.Background(), "openai")
	if err != nil || got != Rater(mock) {
		t.Fatalf("expected registered mock, got %v %v", got, err)
	}
}

func TestProviderSettings_HasCredentials(t *testing.T) {
	s := ProviderSettings{OpenAIKey: "k"}
	if !s.HasCredentials("openai") || s.HasCredentials("anthropic") || !s.HasCredentials("demo") || s.HasCredentials("nope") {
		t.Fatalf("unexpected credential detection")
	}
}

func TestDemoRater(t *testing.T) {
	d := NewDemoRater()
	ctx := context.Background()

	resp, _ := d.Rate(ctx, domain.Prompt{ItemIndex: 3}, domain.TargetModel{Provider: "demo", Model: "echo"})
	if resp.Text != "4" {
		t.Fatalf("expected default reply 4, got %q", resp.Text)
	}

	model := domain.TargetModel{Provider: "demo", Model: "echo", Options: map[string]string{"reply": "2", "reply.12": "5"}}
	resp, _ = d.Rate(ctx, domain.Prompt{ItemIndex: 1}, model)
	if resp.Text != "2" {
		t.Fatalf("expected reply option, got %q", resp.Text)
	}
	resp, _ = d.Rate(ctx, domain.Prompt{ItemIndex: 12}, model)
	if resp.Text != "5" {
		t.Fatalf("expected per-item reply, got %q", resp.Text)
	}

	resp, _ = d.Rate(ctx, domain.Prompt{}, domain.TargetModel{Provider: "demo", Model: "refuser"})
	if resp.Text == "" || resp.Refused {
		t.Fatalf("refuser answers in plain text, got %+v", resp)
	}

	if _, err := d.Rate(ctx, domain.Prompt{}, domain.TargetModel{Provider: "demo", Model: "other"}); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestCheckModel(t *testing.T) {
	d := NewDemoRater()
	if err := CheckModel(d, domain.TargetModel{Provider: "demo", Model: "refuser"}); err != nil {
		t.Fatalf("refuser is a known demo model: %v", err)
	}
	err := CheckModel(d, domain.TargetModel{Provider: "demo", Model: "nope"})
	if !errors.Is(err, ErrUnknownProvider) || !IsConfigError(err) {
		t.Fatalf("expected config error, got %v", err)
	}

	// El limitador no oculta la validacion del rater envuelto.
	limited := Limited(d, &RedisRateLimiter{})
	if err := CheckModel(limited, domain.TargetModel{Provider: "demo", Model: "nope"}); !IsConfigError(err) {
		t.Fatalf("expected config error through limiter, got %v", err)
	}

	plain := RaterFunc(func(context.Context, domain.Prompt, domain.TargetModel) (domain.RawResponse, error) {
		return domain.RawResponse{}, nil
	})
	if err := CheckModel(plain, domain.TargetModel{Provider: "x", Model: "anything"}); err != nil {
		t.Fatalf("raters without a checker accept every model: %v", err)
	}
	if IsConfigError(&TransportError{Kind: KindAuth, Err: errors.New("401")}) {
		t.Fatalf("auth errors are not config errors")
	}
}
