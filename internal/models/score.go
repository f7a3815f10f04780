package models

import "math"

// The five fixed axes of the MASE referential. Every analyzed document is
// bucketed into exactly one of these.
const (
	AxisManagementCommitment = "Engagement de la direction"
	AxisSkillsQualifications = "Compétences et qualifications professionnelles"
	AxisWorkPreparation      = "Préparation et organisation du travail"
	AxisControlsImprovement  = "Contrôles et amélioration continue"
	AxisReviewImprovement    = "Bilan et amélioration continue"
)

// Axes lists the five fixed axis labels in referential order.
var Axes = []string{
	AxisManagementCommitment,
	AxisSkillsQualifications,
	AxisWorkPreparation,
	AxisControlsImprovement,
	AxisReviewImprovement,
}

// NormalizeAxis maps a stored axis label onto one of the five fixed labels.
// Unknown labels are remapped to the first axis rather than rejected; the
// authoritative rows are written by an external analyzer and must never break
// the dashboard.
func NormalizeAxis(label string) string {
	for _, axis := range Axes {
		if axis == label {
			return axis
		}
	}
	return AxisManagementCommitment
}

// Score is a conformity percentage bounded to [0,100]. It is constructed once
// at the ingestion boundary so downstream aggregation never has to guard
// against NaN or out-of-range values again.
type Score int

// ParseScore validates a raw score coming from persisted rows. The second
// return value is false when the input is absent or not a finite number, in
// which case the document is reported as unavailable instead of propagating
// garbage into averages.
func ParseScore(raw *float64) (Score, bool) {
	if raw == nil {
		return 0, false
	}
	v := *raw
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return Score(math.Round(v)), true
}

// Int returns the score as a plain int.
func (s Score) Int() int { return int(s) }

// ScoreTier buckets a score into the colour tier used by the dashboard.
type ScoreTier string

const (
	TierConforme   ScoreTier = "green"
	TierPartial    ScoreTier = "amber"
	TierNonConform ScoreTier = "red"
)

// Tier returns the colour tier for the score.
func (s Score) Tier() ScoreTier {
	switch {
	case s >= 80:
		return TierConforme
	case s >= 60:
		return TierPartial
	default:
		return TierNonConform
	}
}

// AxisScore is the derived per-axis aggregate shown on the dashboard. It is
// never persisted.
type AxisScore struct {
	Axis  string    `json:"axis"`
	Score Score     `json:"score"`
	Count int       `json:"count"`
	Tier  ScoreTier `json:"tier"`
}

// axisAccumulator collects per-axis totals before averaging.
type axisAccumulator struct {
	count      int
	totalScore int
}

// AggregateAxisScores buckets analyzed documents into the five fixed axes and
// averages their conformity scores. Axes without any analyzed document yield
// a zero score, never a division error.
func AggregateAxisScores(docs []AuditDocument) []AxisScore {
	acc := make(map[string]*axisAccumulator, len(Axes))
	for _, axis := range Axes {
		acc[axis] = &axisAccumulator{}
	}

	for _, doc := range docs {
		if doc.Status != DocumentStatusAnalyzed {
			continue
		}
		score, ok := ParseScore(doc.ConformityRaw)
		if !ok {
			continue
		}
		bucket := acc[NormalizeAxis(doc.AxisLabel)]
		bucket.count++
		bucket.totalScore += score.Int()
	}

	result := make([]AxisScore, 0, len(Axes))
	for _, axis := range Axes {
		bucket := acc[axis]
		var avg Score
		if bucket.count > 0 {
			avg, _ = ParseScore(floatPtr(float64(bucket.totalScore) / float64(bucket.count)))
		}
		result = append(result, AxisScore{
			Axis:  axis,
			Score: avg,
			Count: bucket.count,
			Tier:  avg.Tier(),
		})
	}
	return result
}

func floatPtr(v float64) *float64 { return &v }
