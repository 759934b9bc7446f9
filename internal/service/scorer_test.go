package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bigfive-llm/internal/domain"
)

func rated(model string, item, rating int) domain.Observation {
	r := rating
	return domain.Observation{Model: model, ItemIndex: item, Trial: 1, Rating: &r, Outcome: domain.OutcomeRated}
}

func outcome(model string, item int, o domain.Outcome) domain.Observation {
	return domain.Observation{Model: model, ItemIndex: item, Trial: 1, Outcome: o}
}

func traitItems(trait domain.Trait, first, n int, reverse ...int) []domain.Item {
	rev := make(map[int]bool, len(reverse))
	for _, r := range reverse {
		rev[r] = true
	}
	items := make([]domain.Item, 0, n)
	for i := 0; i < n; i++ {
		idx := first + i
		items = append(items, domain.Item{Index: idx, Trait: trait, Text: "x", Reverse: rev[idx]})
	}
	return items
}

func TestScorer_MeanOfValidRatings(t *testing.T) {
	s := NewScorer(0.5, 1)
	items := traitItems(domain.TraitExtraversion, 1, 4)
	obs := []domain.Observation{rated("m", 1, 5), rated("m", 2, 4), rated("m", 3, 3), rated("m", 4, 2)}

	score, err := s.ScoreTrait("m", domain.TraitExtraversion, items, obs)
	require.NoError(t, err)
	require.NotNil(t, score.Mean)
	assert.Equal(t, 3.5, *score.Mean)
	assert.Equal(t, 4, score.ItemCount)
	assert.Equal(t, 4, score.Expected)
	assert.Equal(t, 0, score.MissingCount)
}

func TestScorer_ReverseKeyedAppliedOnce(t *testing.T) {
	s := NewScorer(0.5, 1)
	items := traitItems(domain.TraitAgreeableness, 1, 1, 1)

	score, err := s.ScoreTrait("m", domain.TraitAgreeableness, items, []domain.Observation{rated("m", 1, 2)})
	require.NoError(t, err)
	assert.Equal(t, 4.0, *score.Mean)
}

func TestScorer_SparseTraitIsMissing(t *testing.T) {
	s := NewScorer(0.5, 1)
	items := traitItems(domain.TraitConscientiousness, 1, 9)
	obs := []domain.Observation{rated("m", 1, 5), rated("m", 2, 5)}
	for i := 3; i <= 9; i++ {
		obs = append(obs, outcome("m", i, domain.OutcomeRefusal))
	}

	score, err := s.ScoreTrait("m", domain.TraitConscientiousness, items, obs)
	var sparse *SparseTraitError
	require.True(t, errors.As(err, &sparse))
	assert.Equal(t, 2, sparse.Valid)
	assert.Equal(t, 9, sparse.Expected)
	assert.Nil(t, score.Mean, "sparse trait must never be averaged")
	assert.True(t, score.Sparse)
	assert.Equal(t, 7, score.MissingCount)
	assert.Equal(t, 7, score.Refusals)
}

func TestScorer_ZeroValidIsMissingNotZero(t *testing.T) {
	s := NewScorer(0.01, 1)
	items := traitItems(domain.TraitNeuroticism, 1, 2)
	score, err := s.ScoreTrait("m", domain.TraitNeuroticism, items, []domain.Observation{
		outcome("m", 1, domain.OutcomeUnparseable),
		outcome("m", 2, domain.OutcomeError),
	})
	require.Error(t, err)
	assert.Nil(t, score.Mean)
	assert.Equal(t, 1, score.Unparseable)
	assert.Equal(t, 1, score.Errors)
}

func TestScorer_ThresholdBoundary(t *testing.T) {
	s := NewScorer(0.5, 1)
	items := traitItems(domain.TraitOpenness, 1, 4)
	score, err := s.ScoreTrait("m", domain.TraitOpenness, items, []domain.Observation{rated("m", 1, 1), rated("m", 2, 3)})
	require.NoError(t, err, "2 of 4 meets a 0.5 threshold")
	assert.Equal(t, 2.0, *score.Mean)
}

func TestScorer_IgnoresOtherModelsAndDuplicates(t *testing.T) {
	s := NewScorer(0.5, 1)
	items := traitItems(domain.TraitOpenness, 1, 2)
	obs := []domain.Observation{
		rated("m", 1, 4),
		rated("m", 1, 1),
		rated("other", 2, 1),
		rated("m", 2, 2),
		rated("m", 99, 5),
	}
	score, err := s.ScoreTrait("m", domain.TraitOpenness, items, obs)
	require.NoError(t, err)
	assert.Equal(t, 3.0, *score.Mean)
	assert.Equal(t, 2, score.ItemCount)
}

func TestScorer_TrialsScaleExpected(t *testing.T) {
	s := NewScorer(0.5, 2)
	items := traitItems(domain.TraitOpenness, 1, 2)
	r := 5
	obs := []domain.Observation{
		rated("m", 1, 3),
		{Model: "m", ItemIndex: 1, Trial: 2, Rating: &r, Outcome: domain.OutcomeRated},
	}
	score, err := s.ScoreTrait("m", domain.TraitOpenness, items, obs)
	require.NoError(t, err)
	assert.Equal(t, 4, score.Expected)
	assert.Equal(t, 4.0, *score.Mean)
}

func TestScorer_ScoreCoversEveryTrait(t *testing.T) {
	s := NewScorer(0, 0)
	assert.Equal(t, DefaultMinValidFraction, s.MinValidFraction())
	scores := s.Score("m", traitItems(domain.TraitOpenness, 1, 1), []domain.Observation{rated("m", 1, 5)})
	require.Len(t, scores, 5)
	assert.False(t, scores[domain.TraitOpenness].Missing())
	assert.True(t, scores[domain.TraitNeuroticism].Missing())
}
