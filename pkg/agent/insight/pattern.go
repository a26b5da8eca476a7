package insight

import (
	"fmt"
	"strings"

	"datachat-be/pkg/agent/intent"
	"datachat-be/pkg/search"
)

// QueryPattern classifies the analytical shape of a question,
// independently of the intent taxonomy the resolver uses.
type QueryPattern string

const (
	PatternTimeSeries         QueryPattern = "time_series_analysis"
	PatternCategorical        QueryPattern = "categorical_comparison"
	PatternAggregationSummary QueryPattern = "aggregation_summary"
	PatternCorrelation        QueryPattern = "correlation_analysis"
	PatternDistribution       QueryPattern = "distribution_analysis"
	PatternTrend              QueryPattern = "trend_analysis"
	PatternAnomaly            QueryPattern = "anomaly_detection"
	PatternDrillDown          QueryPattern = "drill_down"
	PatternRollUp             QueryPattern = "roll_up"
	PatternFilterRefinement   QueryPattern = "filter_refinement"
)

type patternRule struct {
	keywords   []string
	chartKinds []string
	complexity float64
	boost      float64
}

var patternRules = map[QueryPattern]patternRule{
	PatternTimeSeries: {
		keywords:   []string{"over time", "timeline", "trend", "progression", "daily", "monthly", "yearly"},
		chartKinds: []string{"line", "area"},
		complexity: 0.6,
		boost:      0.3,
	},
	PatternCategorical: {
		keywords:   []string{"compare", "versus", "vs", "between", "across", "by category"},
		chartKinds: []string{"bar", "pie"},
		complexity: 0.4,
		boost:      0.2,
	},
	PatternAggregationSummary: {
		keywords:   []string{"total", "sum", "average", "count", "max", "min", "summary"},
		chartKinds: []string{"bar", "pie"},
		complexity: 0.3,
		boost:      0.4,
	},
	PatternCorrelation: {
		keywords:   []string{"correlation", "relationship", "association", "related", "impact"},
		chartKinds: []string{"scatter", "heatmap"},
		complexity: 0.8,
		boost:      0.5,
	},
	PatternDistribution: {
		keywords:   []string{"distribution", "spread", "range", "histogram", "frequency"},
		chartKinds: []string{"histogram", "box"},
		complexity: 0.7,
		boost:      0.4,
	},
	PatternTrend: {
		keywords:   []string{"trend", "pattern", "growth", "decline", "increase", "decrease"},
		chartKinds: []string{"line", "area"},
		complexity: 0.6,
		boost:      0.3,
	},
	PatternAnomaly: {
		keywords:   []string{"anomaly", "outlier", "unusual", "abnormal", "spike", "drop"},
		chartKinds: []string{"line", "scatter"},
		complexity: 0.9,
		boost:      0.6,
	},
	PatternDrillDown: {
		keywords:   []string{"detail", "breakdown", "drill down", "specific", "individual"},
		complexity: 0.5,
		boost:      0.2,
	},
	PatternRollUp: {
		keywords:   []string{"overview", "summary", "high level", "aggregate", "total"},
		complexity: 0.3,
		boost:      0.2,
	},
	PatternFilterRefinement: {
		keywords:   []string{"filter", "where", "only", "exclude", "include", "specific"},
		complexity: 0.4,
		boost:      0.1,
	},
}

var relatedPatterns = map[QueryPattern][]QueryPattern{
	PatternTimeSeries:  {PatternTrend, PatternAnomaly},
	PatternCategorical: {PatternAggregationSummary, PatternDrillDown},
	PatternCorrelation: {PatternDistribution, PatternAnomaly},
	PatternTrend:       {PatternTimeSeries, PatternAnomaly},
	PatternDrillDown:   {PatternFilterRefinement, PatternCategorical},
	PatternRollUp:      {PatternAggregationSummary, PatternCategorical},
}

var reasoningTemplates = map[QueryPattern]string{
	PatternTimeSeries:         "Detected time-based analysis with a temporal data focus",
	PatternCategorical:        "Identified a categorical comparison for data segmentation",
	PatternAggregationSummary: "Recognized an aggregation pattern for data summarization",
	PatternCorrelation:        "Found a correlation pattern exploring relationships",
	PatternDistribution:       "Detected a distribution pattern examining data spread",
	PatternTrend:              "Identified a trend analysis pattern",
	PatternAnomaly:            "Recognized an anomaly detection pattern for outliers",
	PatternDrillDown:          "Detected a drill-down into details",
	PatternRollUp:             "Identified a roll-up toward a high-level overview",
	PatternFilterRefinement:   "Found a filter refinement narrowing the data subset",
}

// Analysis is the classified shape of one turn.
type Analysis struct {
	Pattern      QueryPattern   `json:"pattern"`
	Confidence   float64        `json:"confidence"`
	Reasoning    string         `json:"reasoning"`
	Improvements []string       `json:"improvements,omitempty"`
	Related      []QueryPattern `json:"related,omitempty"`
}

const maxImprovements = 3

// Analyze scores the utterance against the pattern rules and derives
// improvement suggestions from the pattern, the result volume, and the
// intent. Pure keyword scoring, no model call.
func Analyze(utterance string, descriptor *intent.Descriptor, result *search.ResultSet) *Analysis {
	pattern, confidence := scorePatterns(utterance, descriptor)

	a := &Analysis{
		Pattern:    pattern,
		Confidence: confidence,
		Reasoning:  reasoning(pattern, descriptor),
		Related:    relatedPatterns[pattern],
	}
	a.Improvements = improvements(pattern, descriptor, result)
	return a
}

func scorePatterns(utterance string, descriptor *intent.Descriptor) (QueryPattern, float64) {
	lower := strings.ToLower(utterance)

	best := PatternCategorical
	bestScore := 0.0
	for _, pattern := range allPatterns() {
		rule := patternRules[pattern]
		score := 0.0

		matches := 0
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if len(rule.keywords) > 0 {
			score += float64(matches) / float64(len(rule.keywords)) * 0.4
		}

		if descriptor != nil && descriptor.ChartHint != "" {
			for _, kind := range rule.chartKinds {
				if kind == descriptor.ChartHint {
					score += 0.2
					break
				}
			}
		}

		if score > 0 {
			score += rule.boost
		}
		if score > 1.0 {
			score = 1.0
		}
		if score > bestScore {
			best = pattern
			bestScore = score
		}
	}

	if bestScore == 0 {
		return PatternCategorical, 0.5
	}
	return best, bestScore
}

func reasoning(pattern QueryPattern, descriptor *intent.Descriptor) string {
	out := reasoningTemplates[pattern]
	if descriptor == nil {
		return out
	}
	if descriptor.ChartHint != "" {
		out += fmt.Sprintf(" with a %s visualization preference", descriptor.ChartHint)
	}
	if descriptor.Pattern != "" {
		out += fmt.Sprintf(" (intent: %s)", descriptor.Pattern)
	}
	return out
}

func improvements(pattern QueryPattern, descriptor *intent.Descriptor, result *search.ResultSet) []string {
	var out []string

	switch pattern {
	case PatternTimeSeries:
		out = append(out,
			"Add a time range filter for a focused window",
			"Try grouping by a different interval (daily, weekly, monthly)",
		)
	case PatternCategorical:
		out = append(out,
			"Limit the number of categories for a clearer picture",
			"Sort by value for better readability",
		)
	case PatternCorrelation:
		out = append(out,
			"Try a scatter chart to see the relationship directly",
			"Filter outliers for a clearer correlation",
		)
	case PatternAggregationSummary:
		out = append(out,
			"Break the total down by a key dimension",
			"Ask for a percentage-of-total view",
		)
	}

	if result != nil {
		switch {
		case result.Total == 0:
			out = append(out, "Try broadening your search criteria")
		case result.Total > 1000:
			out = append(out, "Add filters to narrow down the results")
		case result.Total < 10:
			out = append(out, "Expand the criteria for a more comprehensive view")
		}
	}

	if descriptor != nil && descriptor.Pattern == intent.PatternChart && descriptor.ChartHint == "" {
		out = append(out, "Name a chart type for a better visualization")
	}

	if len(out) > maxImprovements {
		out = out[:maxImprovements]
	}
	return out
}

// Complexity returns the pattern's position on the simple-to-advanced
// scale, used for the profile's moving average.
func Complexity(pattern QueryPattern) float64 {
	if rule, ok := patternRules[pattern]; ok {
		return rule.complexity
	}
	return 0.5
}

func allPatterns() []QueryPattern {
	return []QueryPattern{
		PatternTimeSeries,
		PatternCategorical,
		PatternAggregationSummary,
		PatternCorrelation,
		PatternDistribution,
		PatternTrend,
		PatternAnomaly,
		PatternDrillDown,
		PatternRollUp,
		PatternFilterRefinement,
	}
}
