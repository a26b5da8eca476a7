package viz

import (
	"fmt"
	"sort"
	"strings"

	"datachat-be/pkg/search"
)

// AxisMapping names the fields driving each chart axis.
type AxisMapping struct {
	X string `json:"x,omitempty"`
	Y string `json:"y,omitempty"`
}

// Candidate is one scored chart kind.
type Candidate struct {
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Recommendation is the ranked outcome for one ResultSet.
type Recommendation struct {
	Primary      Kind         `json:"primary"`
	Confidence   float64      `json:"confidence"`
	Reasoning    string       `json:"reasoning"`
	Axes         AxisMapping  `json:"axes"`
	Alternatives []Candidate  `json:"alternatives"`
	Profile      *DataProfile `json:"profile,omitempty"`
}

// Recommender scores chart kinds against a DataProfile with a fixed
// rule set. Confidences are relative ranking signals, not calibrated
// probabilities.
type Recommender struct {
	DefaultKind      Kind
	PieMaxCategories int
	SampleSize       int
	AlternativeCount int
	IntentBonus      float64
	DefaultKindBase  float64
}

func NewRecommender(defaultKind Kind) *Recommender {
	if _, ok := kindPriority[defaultKind]; !ok {
		defaultKind = KindBar
	}
	return &Recommender{
		DefaultKind:      defaultKind,
		PieMaxCategories: 6,
		SampleSize:       50,
		AlternativeCount: 2,
		IntentBonus:      0.25,
		DefaultKindBase:  0.15,
	}
}

// Recommend profiles the result set and ranks all chart kinds.
// chartHint is the kind the intent named explicitly, or empty; it biases
// the ranking but never bypasses scoring.
func (r *Recommender) Recommend(rs *search.ResultSet, chartHint string) *Recommendation {
	profile := BuildProfile(rs, r.SampleSize)
	return r.RecommendFromProfile(profile, chartHint)
}

func (r *Recommender) RecommendFromProfile(profile *DataProfile, chartHint string) *Recommendation {
	rules := &ruleSet{PieMaxCategories: r.PieMaxCategories}
	hintKind, hintValid := ParseKind(strings.ToLower(chartHint))

	candidates := make([]Candidate, 0, len(AllKinds))
	for _, kind := range AllKinds {
		score, applied := variants[kind].score(profile, rules)

		if kind == r.DefaultKind {
			score += r.DefaultKindBase
			applied = append(applied, "configured default")
		}
		if hintValid && kind == hintKind {
			score += r.IntentBonus
			applied = append(applied, "explicitly requested")
		}

		candidates = append(candidates, Candidate{
			Kind:       kind,
			Confidence: clamp01(score),
			Reasoning:  reasoningText(kind, applied),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return kindPriority[candidates[i].Kind] < kindPriority[candidates[j].Kind]
	})

	primary := candidates[0]
	alternatives := candidates[1:]
	if len(alternatives) > r.AlternativeCount {
		alternatives = alternatives[:r.AlternativeCount]
	}

	return &Recommendation{
		Primary:      primary.Kind,
		Confidence:   primary.Confidence,
		Reasoning:    primary.Reasoning,
		Axes:         variants[primary.Kind].axes(profile),
		Alternatives: alternatives,
		Profile:      profile,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func reasoningText(kind Kind, applied []string) string {
	if len(applied) == 0 {
		return fmt.Sprintf("no rule favored %s for this data", kind)
	}
	return fmt.Sprintf("%s: %s", kind, strings.Join(applied, "; "))
}
