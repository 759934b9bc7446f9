package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bigfive-llm/internal/domain"
	"bigfive-llm/internal/inventory"
	"bigfive-llm/internal/llm"
)

type staticRaters map[string]llm.Rater

func (s staticRaters) Rater(_ context.Context, provider string) (llm.Rater, error) {
	r, ok := s[provider]
	if !ok {
		return nil, llm.ErrUnknownProvider
	}
	return r, nil
}

func instantRetrier(attempts int) *llm.Retrier {
	policy := llm.DefaultRetryPolicy()
	policy.MaxAttempts = attempts
	return llm.NewRetrier(policy, nil).WithSleep(func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	})
}

func newTestService(raters RaterSource, items []domain.Item) *EvaluationService {
	return NewEvaluationService(raters, items, EvaluationConfig{
		Trials:              1,
		MinValidFraction:    0.5,
		RunTimeout:          10 * time.Second,
		ProviderConcurrency: 4,
	}, nil).
		WithRetrier(instantRetrier(3)).
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }, func() string { return "run-test" })
}

// verifyNoLeaks ignora el worker que go.opencensus.io arranca al importar genai.
func verifyNoLeaks(t *testing.T) {
	t.Helper()
	goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// bankWithItem12Reversed: ningun item invertido salvo el 12, que pasa a C.
func bankWithItem12Reversed() []domain.Item {
	items := inventory.BFI44()
	for i := range items {
		items[i].Reverse = false
		if items[i].Index == 12 {
			items[i].Trait = domain.TraitConscientiousness
			items[i].Reverse = true
		}
	}
	return items
}

func TestEvaluation_DemoEchoEndToEnd(t *testing.T) {
	defer verifyNoLeaks(t)

	items := bankWithItem12Reversed()
	svc := newTestService(staticRaters{"demo": llm.NewDemoRater()}, items)

	report, err := svc.Run(context.Background(), []domain.TargetModel{{Provider: "demo", Model: "echo"}})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	row := report.Results[0]
	assert.Equal(t, domain.StatusReported, row.Status)
	assert.Equal(t, 44, row.Rated)

	cCount := len(inventory.ByTrait(items)[domain.TraitConscientiousness])
	wantC := (4.0*float64(cCount-1) + 2.0) / float64(cCount)
	for _, trait := range domain.TraitOrder {
		score, ok := row.Score(trait)
		require.True(t, ok)
		require.NotNil(t, score.Mean, "trait %s", trait)
		if trait == domain.TraitConscientiousness {
			assert.InDelta(t, wantC, *score.Mean, 1e-12)
			continue
		}
		assert.Equal(t, 4.0, *score.Mean, "trait %s", trait)
	}
	assert.Equal(t, "run-test", report.ID)
}

func TestEvaluation_DemoRefuser(t *testing.T) {
	defer verifyNoLeaks(t)

	svc := newTestService(staticRaters{"demo": llm.NewDemoRater()}, inventory.BFI44())
	report, err := svc.Run(context.Background(), []domain.TargetModel{{Provider: "demo", Model: "refuser"}})
	require.NoError(t, err)

	row := report.Results[0]
	assert.Equal(t, domain.StatusFailed, row.Status)
	assert.Equal(t, domain.FailureSparse, row.FailureKind)
	assert.Equal(t, 44, row.Missing)
	assert.Equal(t, 44, row.Refusals)
	for _, s := range row.Scores {
		assert.True(t, s.Missing(), "trait %s must be missing", s.Trait)
	}
}

func TestEvaluation_RateLimitedItemIsMissing(t *testing.T) {
	defer verifyNoLeaks(t)

	const failing = 17
	var calls atomic.Int32
	rater := llm.RaterFunc(func(ctx context.Context, p domain.Prompt, m domain.TargetModel) (domain.RawResponse, error) {
		if p.ItemIndex == failing {
			calls.Add(1)
			return domain.RawResponse{}, &llm.TransportError{Kind: llm.KindRateLimited, Provider: "mock", Status: 429, Err: errors.New("slow down")}
		}
		return domain.RawResponse{Text: "3"}, nil
	})
	svc := newTestService(staticRaters{"mock": rater}, inventory.BFI44())

	result := svc.RunModel(context.Background(), domain.TargetModel{Provider: "mock", Model: "m"})
	assert.Equal(t, domain.StatusScored, result.Status)
	assert.EqualValues(t, 3, calls.Load())

	valid := 0
	for _, obs := range result.Observations {
		if obs.Valid() {
			valid++
			continue
		}
		assert.Equal(t, failing, obs.ItemIndex)
		assert.Equal(t, string(llm.KindRateLimited), obs.ErrorKind)
		assert.Equal(t, 3, obs.Attempts)
	}
	assert.Equal(t, 43, valid)
	for _, trait := range domain.TraitOrder {
		assert.False(t, result.Scores[trait].Missing())
	}
}

func TestEvaluation_AuthFailureCancelsModel(t *testing.T) {
	defer verifyNoLeaks(t)

	var calls atomic.Int32
	rater := llm.RaterFunc(func(ctx context.Context, p domain.Prompt, m domain.TargetModel) (domain.RawResponse, error) {
		calls.Add(1)
		return domain.RawResponse{}, &llm.TransportError{Kind: llm.KindAuth, Provider: "mock", Status: 401, Err: errors.New("bad key")}
	})
	svc := NewEvaluationService(staticRaters{"mock": rater}, inventory.BFI44(), EvaluationConfig{ProviderConcurrency: 1}, nil).
		WithRetrier(instantRetrier(3))

	result := svc.RunModel(context.Background(), domain.TargetModel{Provider: "mock", Model: "m"})
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, domain.FailureAuth, result.FailureKind)
	assert.Len(t, result.Observations, 44)
	assert.Less(t, int(calls.Load()), 44, "outstanding items must be cancelled")
	for _, obs := range result.Observations {
		assert.Equal(t, string(llm.KindAuth), obs.ErrorKind)
	}
}

func TestEvaluation_UnknownProviderIsReported(t *testing.T) {
	svc := newTestService(staticRaters{"demo": llm.NewDemoRater()}, inventory.BFI44())
	report, err := svc.Run(context.Background(), []domain.TargetModel{
		{Provider: "demo", Model: "echo"},
		{Provider: "cohere", Model: "command"},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	assert.Equal(t, domain.StatusReported, report.Results[0].Status)
	failed := report.Results[1]
	assert.Equal(t, "cohere:command", failed.ID)
	assert.Equal(t, domain.StatusFailed, failed.Status)
	assert.Equal(t, domain.FailureConfig, failed.FailureKind)
	assert.Equal(t, 44, failed.Missing)
}

func TestEvaluation_UnknownDemoModelFailsConfig(t *testing.T) {
	defer verifyNoLeaks(t)

	svc := newTestService(staticRaters{"demo": llm.NewDemoRater()}, inventory.BFI44())
	result := svc.RunModel(context.Background(), domain.TargetModel{Provider: "demo", Model: "nope"})
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, domain.FailureConfig, result.FailureKind)
	require.Len(t, result.Observations, 44)
	for _, obs := range result.Observations {
		assert.Equal(t, "config", obs.ErrorKind)
	}
}

func TestEvaluation_ConfigErrorFromRateCancelsModel(t *testing.T) {
	defer verifyNoLeaks(t)

	var calls atomic.Int32
	rater := llm.RaterFunc(func(ctx context.Context, p domain.Prompt, m domain.TargetModel) (domain.RawResponse, error) {
		calls.Add(1)
		return domain.RawResponse{}, llm.ErrMissingCredentials
	})
	svc := NewEvaluationService(staticRaters{"mock": rater}, inventory.BFI44(), EvaluationConfig{ProviderConcurrency: 1}, nil).
		WithRetrier(instantRetrier(3))

	result := svc.RunModel(context.Background(), domain.TargetModel{Provider: "mock", Model: "m"})
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, domain.FailureConfig, result.FailureKind)
	assert.Len(t, result.Observations, 44)
	assert.Less(t, int(calls.Load()), 44, "outstanding items must be cancelled")
	for _, obs := range result.Observations {
		assert.Equal(t, "config", obs.ErrorKind)
	}
}

func TestEvaluation_RunTimeoutWithoutObservations(t *testing.T) {
	defer verifyNoLeaks(t)

	rater := llm.RaterFunc(func(ctx context.Context, p domain.Prompt, m domain.TargetModel) (domain.RawResponse, error) {
		<-ctx.Done()
		return domain.RawResponse{}, &llm.TransportError{Kind: llm.KindTimeout, Provider: "mock", Err: ctx.Err()}
	})
	svc := NewEvaluationService(staticRaters{"mock": rater}, inventory.BFI44(), EvaluationConfig{
		RunTimeout:          50 * time.Millisecond,
		ProviderConcurrency: 8,
	}, nil).WithRetrier(instantRetrier(1))

	result := svc.RunModel(context.Background(), domain.TargetModel{Provider: "mock", Model: "slow"})
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, domain.FailureTimeout, result.FailureKind)
	require.Len(t, result.Observations, 44)
	for _, obs := range result.Observations {
		assert.Equal(t, string(llm.KindTimeout), obs.ErrorKind)
	}
}

func TestEvaluation_StructuredPromptOnlyWhenSupported(t *testing.T) {
	mock := &llm.MockRater{Response: domain.RawResponse{Text: `{"score":2}`, Structured: true}, Structured: true}
	svc := newTestService(staticRaters{"mock": mock}, inventory.BFI44()[:2])

	result := svc.RunModel(context.Background(), domain.TargetModel{Provider: "mock", Model: "m"})
	require.Len(t, result.Observations, 2)
	for _, p := range mock.Prompts() {
		assert.True(t, p.Structured())
	}

	off := false
	plain := &llm.MockRater{Response: domain.RawResponse{Text: "2"}, Structured: true}
	svc = newTestService(staticRaters{"mock": plain}, inventory.BFI44()[:2])
	svc.RunModel(context.Background(), domain.TargetModel{Provider: "mock", Model: "m", Structured: &off})
	for _, p := range plain.Prompts() {
		assert.False(t, p.Structured())
	}
}

func TestEvaluation_NoModels(t *testing.T) {
	svc := newTestService(staticRaters{}, inventory.BFI44())
	_, err := svc.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoModels)
}
