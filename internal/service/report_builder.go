package service

import (
	"sort"
	"time"

	"bigfive-llm/internal/domain"
)

// RunMeta son los metadatos de corrida; id y fecha vienen de afuera para que
// Build sea idempotente.
type RunMeta struct {
	ID               string
	RunDate          time.Time
	PromptTemplate   string
	Trials           int
	MinValidFraction float64
	Items            []domain.Item
	Models           []domain.TargetModel
}

// ReportBuilder arma el reporte comparativo. No tiene estado.
type ReportBuilder struct{}

func (ReportBuilder) Build(meta RunMeta, results []domain.ModelResult) domain.EvaluationReport {
	byID := make(map[string]domain.ModelResult, len(results))
	for _, r := range results {
		byID[r.Model.ID()] = r
	}

	models := meta.Models
	if len(models) == 0 {
		for _, r := range results {
			models = append(models, r.Model)
		}
	}

	trials := meta.Trials
	if trials < 1 {
		trials = 1
	}
	perTrait := make(map[domain.Trait]int, len(domain.TraitOrder))
	for _, it := range meta.Items {
		perTrait[it.Trait]++
	}

	report := domain.EvaluationReport{
		ID:               meta.ID,
		RunDate:          meta.RunDate.UTC(),
		PromptTemplate:   meta.PromptTemplate,
		Trials:           trials,
		MinValidFraction: meta.MinValidFraction,
		Items:            append([]domain.Item(nil), meta.Items...),
		Models:           make([]domain.ModelVersion, 0, len(models)),
		Results:          make([]domain.ModelReport, 0, len(models)),
	}

	for _, m := range models {
		version := modelVersion(m)
		report.Models = append(report.Models, version)

		res, ok := byID[m.ID()]
		if !ok {
			res = domain.ModelResult{
				Model:        m,
				Status:       domain.StatusFailed,
				FailureKind:  domain.FailureConfig,
				FailureError: "model produced no result",
			}
		}

		row := domain.ModelReport{
			ModelVersion: version,
			Status:       res.Status,
			FailureKind:  res.FailureKind,
			FailureError: res.FailureError,
			Scores:       make([]domain.TraitScore, 0, len(domain.TraitOrder)),
			Observations: sortedObservations(res.Observations),
		}
		if row.Status == domain.StatusScored {
			row.Status = domain.StatusReported
		}

		expected := 0
		for _, trait := range domain.TraitOrder {
			score, ok := res.Scores[trait]
			if !ok {
				score = domain.TraitScore{
					Model:        m.ID(),
					Trait:        trait,
					Expected:     perTrait[trait] * trials,
					MissingCount: perTrait[trait] * trials,
					Sparse:       true,
				}
			}
			expected += score.Expected
			row.Scores = append(row.Scores, score)
		}

		for _, obs := range row.Observations {
			switch {
			case obs.Valid():
				row.Rated++
			case obs.Outcome == domain.OutcomeRefusal:
				row.Refusals++
			case obs.Outcome == domain.OutcomeUnparseable:
				row.Unparseable++
			default:
				row.Errors++
			}
		}
		row.Missing = expected - row.Rated
		if row.Missing < 0 {
			row.Missing = 0
		}

		report.Results = append(report.Results, row)
	}
	return report
}

func modelVersion(m domain.TargetModel) domain.ModelVersion {
	return domain.ModelVersion{
		ID:       m.ID(),
		Provider: m.Provider,
		Model:    m.Model,
		Label:    m.DisplayName(),
		Version:  m.Version,
	}
}

func sortedObservations(in []domain.Observation) []domain.Observation {
	out := make([]domain.Observation, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ItemIndex != out[j].ItemIndex {
			return out[i].ItemIndex < out[j].ItemIndex
		}
		return out[i].Trial < out[j].Trial
	})
	return out
}
