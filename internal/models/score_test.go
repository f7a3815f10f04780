package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func TestParseScoreRejectsNonFinite(t *testing.T) {
	cases := map[string]*float64{
		"nil":     nil,
		"nan":     fptr(math.NaN()),
		"pos-inf": fptr(math.Inf(1)),
		"neg-inf": fptr(math.Inf(-1)),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := ParseScore(raw)
			assert.False(t, ok)
		})
	}
}

func TestParseScoreClampsRange(t *testing.T) {
	score, ok := ParseScore(fptr(142.3))
	require.True(t, ok)
	assert.Equal(t, 100, score.Int())

	score, ok = ParseScore(fptr(-12))
	require.True(t, ok)
	assert.Equal(t, 0, score.Int())

	score, ok = ParseScore(fptr(79.6))
	require.True(t, ok)
	assert.Equal(t, 80, score.Int())
}

func TestScoreTiers(t *testing.T) {
	assert.Equal(t, TierConforme, Score(80).Tier())
	assert.Equal(t, TierPartial, Score(60).Tier())
	assert.Equal(t, TierNonConform, Score(59).Tier())
}

func TestNormalizeAxisRemapsUnknownLabels(t *testing.T) {
	assert.Equal(t, AxisWorkPreparation, NormalizeAxis(AxisWorkPreparation))
	assert.Equal(t, AxisManagementCommitment, NormalizeAxis("Axe inconnu"))
	assert.Equal(t, AxisManagementCommitment, NormalizeAxis(""))
}

func TestAggregateAxisScoresEmptyBucketsAreZero(t *testing.T) {
	scores := AggregateAxisScores(nil)
	require.Len(t, scores, 5)
	for _, axis := range scores {
		assert.Equal(t, 0, axis.Score.Int())
		assert.Equal(t, 0, axis.Count)
	}
}

func TestAggregateAxisScoresIgnoresUnanalyzedAndInvalid(t *testing.T) {
	docs := []AuditDocument{
		{Status: DocumentStatusAnalyzed, AxisLabel: AxisWorkPreparation, ConformityRaw: fptr(70)},
		{Status: DocumentStatusAnalyzed, AxisLabel: AxisWorkPreparation, ConformityRaw: fptr(90)},
		{Status: DocumentStatusAnalyzing, AxisLabel: AxisWorkPreparation, ConformityRaw: fptr(10)},
		{Status: DocumentStatusAnalyzed, AxisLabel: AxisWorkPreparation, ConformityRaw: nil},
		{Status: DocumentStatusAnalyzed, AxisLabel: AxisWorkPreparation, ConformityRaw: fptr(math.NaN())},
	}
	scores := AggregateAxisScores(docs)
	require.Len(t, scores, 5)
	for _, axis := range scores {
		if axis.Axis == AxisWorkPreparation {
			assert.Equal(t, 80, axis.Score.Int())
			assert.Equal(t, 2, axis.Count)
			assert.Equal(t, TierConforme, axis.Tier)
			continue
		}
		assert.Equal(t, 0, axis.Score.Int())
	}
}

func TestAggregateAxisScoresRemapsUnknownAxis(t *testing.T) {
	docs := []AuditDocument{
		{Status: DocumentStatusAnalyzed, AxisLabel: "mystery", ConformityRaw: fptr(50)},
	}
	scores := AggregateAxisScores(docs)
	assert.Equal(t, AxisManagementCommitment, scores[0].Axis)
	assert.Equal(t, 1, scores[0].Count)
	assert.Equal(t, 50, scores[0].Score.Int())
}
