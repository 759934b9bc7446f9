package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"bigfive-llm/internal/domain"
)

func newReport(id string, at time.Time) domain.EvaluationReport {
	return domain.EvaluationReport{
		ID:      id,
		RunDate: at,
		Trials:  1,
		Models:  []domain.ModelVersion{{ID: "demo:echo", Label: "Demo, echo"}},
		Results: []domain.ModelReport{{
			ModelVersion: domain.ModelVersion{ID: "demo:echo", Label: "Demo, echo"},
			Status:       domain.StatusReported,
		}},
	}
}

func TestFileReportRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewFileReportRepository(t.TempDir())

	if _, err := repo.Latest(ctx); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound on empty dir, got %v", err)
	}

	older := newReport("aaaaaaaa-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := newReport("bbbbbbbb-2", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	for _, r := range []domain.EvaluationReport{older, newer} {
		if err := repo.Save(ctx, r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	if err := repo.Save(ctx, older); !errors.Is(err, ErrReportExists) {
		t.Fatalf("expected ErrReportExists, got %v", err)
	}

	got, err := repo.Get(ctx, "aaaaaaaa-1")
	if err != nil || got.ID != "aaaaaaaa-1" {
		t.Fatalf("unexpected get result %+v %v", got.ID, err)
	}
	if _, err := repo.Get(ctx, "nope"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}

	latest, err := repo.Latest(ctx)
	if err != nil || latest.ID != "bbbbbbbb-2" {
		t.Fatalf("expected newest report, got %s %v", latest.ID, err)
	}

	list, err := repo.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "bbbbbbbb-2" || list[0].Models[0] != "demo:echo" {
		t.Fatalf("unexpected list: %+v", list)
	}
}
