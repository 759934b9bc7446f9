package service

import (
	"fmt"

	"bigfive-llm/internal/domain"
)

const DefaultMinValidFraction = 0.5

// SparseTraitError indica que un rasgo no junto suficientes ratings validos.
type SparseTraitError struct {
	Model       string
	Trait       domain.Trait
	Valid       int
	Expected    int
	MinFraction float64
}

func (e *SparseTraitError) Error() string {
	return fmt.Sprintf("trait %s of %s too sparse: %d/%d valid ratings (min fraction %.2f)",
		e.Trait, e.Model, e.Valid, e.Expected, e.MinFraction)
}

// Scorer agrega observaciones en un promedio por rasgo. Sin redondeo.
type Scorer struct {
	minValidFraction float64
	trials           int
}

func NewScorer(minValidFraction float64, trials int) *Scorer {
	if minValidFraction <= 0 || minValidFraction > 1 {
		minValidFraction = DefaultMinValidFraction
	}
	if trials < 1 {
		trials = 1
	}
	return &Scorer{minValidFraction: minValidFraction, trials: trials}
}

func (s *Scorer) MinValidFraction() float64 { return s.minValidFraction }

func (s *Scorer) Trials() int { return s.trials }

// Score calcula los cinco rasgos. Los rasgos dispersos quedan con Mean nil.
func (s *Scorer) Score(model string, items []domain.Item, observations []domain.Observation) map[domain.Trait]domain.TraitScore {
	out := make(map[domain.Trait]domain.TraitScore, len(domain.TraitOrder))
	for _, trait := range domain.TraitOrder {
		score, _ := s.ScoreTrait(model, trait, items, observations)
		out[trait] = score
	}
	return out
}

// ScoreTrait devuelve el TraitScore y un *SparseTraitError cuando el rasgo queda missing.
func (s *Scorer) ScoreTrait(model string, trait domain.Trait, items []domain.Item, observations []domain.Observation) (domain.TraitScore, error) {
	byIndex := make(map[int]domain.Item)
	for _, it := range items {
		if it.Trait == trait {
			byIndex[it.Index] = it
		}
	}

	score := domain.TraitScore{
		Model:    model,
		Trait:    trait,
		Expected: len(byIndex) * s.trials,
	}

	type slot struct{ item, trial int }
	seen := make(map[slot]bool, score.Expected)
	var sum float64
	for _, obs := range observations {
		if obs.Model != model {
			continue
		}
		item, ok := byIndex[obs.ItemIndex]
		if !ok {
			continue
		}
		key := slot{obs.ItemIndex, obs.Trial}
		if seen[key] {
			continue
		}
		seen[key] = true

		switch {
		case obs.Valid():
			sum += item.Keyed(*obs.Rating)
			score.ItemCount++
		case obs.Outcome == domain.OutcomeRefusal:
			score.Refusals++
		case obs.Outcome == domain.OutcomeUnparseable:
			score.Unparseable++
		default:
			score.Errors++
		}
	}
	score.MissingCount = score.Expected - score.ItemCount

	if score.ItemCount == 0 || float64(score.ItemCount) < s.minValidFraction*float64(score.Expected) {
		score.Sparse = true
		return score, &SparseTraitError{
			Model:       model,
			Trait:       trait,
			Valid:       score.ItemCount,
			Expected:    score.Expected,
			MinFraction: s.minValidFraction,
		}
	}

	mean := sum / float64(score.ItemCount)
	score.Mean = &mean
	return score, nil
}
