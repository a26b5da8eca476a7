package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"datachat-be/pkg/agent/intent"
	"datachat-be/pkg/search"
)

func TestAnalyzeClassifiesQueryShapes(t *testing.T) {
	cases := []struct {
		utterance string
		expected  QueryPattern
	}{
		{"show me sales over time by month", PatternTimeSeries},
		{"compare revenue versus cost across regions", PatternCategorical},
		{"what is the total count of orders", PatternAggregationSummary},
		{"is there a correlation between price and rating", PatternCorrelation},
		{"show the distribution of order values", PatternDistribution},
		{"find unusual spikes in traffic", PatternAnomaly},
		{"give me a breakdown of individual transactions", PatternDrillDown},
	}

	for _, tc := range cases {
		analysis := Analyze(tc.utterance, nil, nil)
		assert.Equal(t, tc.expected, analysis.Pattern, "utterance: %s", tc.utterance)
		assert.Greater(t, analysis.Confidence, 0.0)
		assert.NotEmpty(t, analysis.Reasoning)
	}
}

func TestAnalyzeDefaultsToCategoricalComparison(t *testing.T) {
	analysis := Analyze("hello there", nil, nil)

	assert.Equal(t, PatternCategorical, analysis.Pattern)
	assert.Equal(t, 0.5, analysis.Confidence)
}

func TestAnalyzeChartHintRaisesConfidence(t *testing.T) {
	utterance := "is there a correlation between price and rating"
	plain := Analyze(utterance, nil, nil)

	descriptor := &intent.Descriptor{Pattern: intent.PatternChart, ChartHint: "heatmap"}
	hinted := Analyze(utterance, descriptor, nil)

	assert.Equal(t, PatternCorrelation, plain.Pattern)
	assert.Equal(t, PatternCorrelation, hinted.Pattern)
	assert.InDelta(t, plain.Confidence+0.2, hinted.Confidence, 1e-9)
	assert.Contains(t, hinted.Reasoning, "heatmap")
}

func TestAnalyzeImprovementsReflectResultVolume(t *testing.T) {
	empty := Analyze("filter where status is active", nil, &search.ResultSet{Total: 0})
	assert.Contains(t, empty.Improvements, "Try broadening your search criteria")

	flood := Analyze("filter where status is active", nil, &search.ResultSet{Total: 5000})
	assert.Contains(t, flood.Improvements, "Add filters to narrow down the results")
}

func TestAnalyzeCapsImprovements(t *testing.T) {
	descriptor := &intent.Descriptor{Pattern: intent.PatternChart}
	analysis := Analyze("total sales over time", descriptor, &search.ResultSet{Total: 3})

	assert.LessOrEqual(t, len(analysis.Improvements), maxImprovements)
}

func TestAnalyzeRelatedPatterns(t *testing.T) {
	analysis := Analyze("sales over time by month", nil, nil)

	assert.Equal(t, []QueryPattern{PatternTrend, PatternAnomaly}, analysis.Related)
}

func TestComplexityFollowsPatternRules(t *testing.T) {
	assert.Greater(t, Complexity(PatternAnomaly), Complexity(PatternAggregationSummary))
	assert.Equal(t, 0.5, Complexity(QueryPattern("unknown")))
}
