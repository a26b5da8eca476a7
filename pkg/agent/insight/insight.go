package insight

import (
	"fmt"
	"sort"

	"datachat-be/pkg/agent/intent"
	"datachat-be/pkg/store"
)

// SessionProfile summarizes how a session has been querying its data.
// Derived from the turn history on demand, never persisted.
type SessionProfile struct {
	TotalTurns      int                    `json:"total_turns"`
	PatternCounts   map[intent.Pattern]int `json:"pattern_counts"`
	DominantPattern intent.Pattern         `json:"dominant_pattern"`
	FavoriteChart   string                 `json:"favorite_chart,omitempty"`
	ActiveIndex     string                 `json:"active_index,omitempty"`
}

// BuildProfile scans the session's turn window and tallies intent
// patterns and chart usage.
func BuildProfile(session *store.Session) *SessionProfile {
	profile := &SessionProfile{
		PatternCounts:   map[intent.Pattern]int{},
		DominantPattern: intent.PatternGeneral,
		ActiveIndex:     session.ActiveIndex,
	}

	chartCounts := map[string]int{}
	for _, turn := range session.Turns {
		if turn.Role != "user" {
			continue
		}
		profile.TotalTurns++
		if turn.Intent != "" {
			profile.PatternCounts[intent.Pattern(turn.Intent)]++
		}
		if turn.ChartType != "" {
			chartCounts[turn.ChartType]++
		}
	}

	profile.DominantPattern = dominant(profile.PatternCounts)
	profile.FavoriteChart = mostUsed(chartCounts)
	return profile
}

func dominant(counts map[intent.Pattern]int) intent.Pattern {
	best := intent.PatternGeneral
	bestCount := 0
	// Deterministic iteration
	patterns := make([]string, 0, len(counts))
	for p := range counts {
		patterns = append(patterns, string(p))
	}
	sort.Strings(patterns)
	for _, p := range patterns {
		if counts[intent.Pattern(p)] > bestCount {
			best = intent.Pattern(p)
			bestCount = counts[intent.Pattern(p)]
		}
	}
	return best
}

func mostUsed(counts map[string]int) string {
	best := ""
	bestCount := 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best = k
			bestCount = counts[k]
		}
	}
	return best
}

const maxSuggestions = 3

// Suggestions proposes follow-up questions from the session's dominant
// behavior and the fields available on the active index.
func Suggestions(profile *SessionProfile, knownFields []string) []string {
	var out []string

	switch profile.DominantPattern {
	case intent.PatternAggregate:
		out = append(out, "Try visualizing the last result as a chart")
		if len(knownFields) > 0 {
			out = append(out, fmt.Sprintf("Break the result down by %s", knownFields[0]))
		}
	case intent.PatternSearch:
		out = append(out, "Narrow the results with a filter, e.g. a date range")
		out = append(out, "Ask for a count to see how many documents match")
	case intent.PatternChart:
		if profile.FavoriteChart != "" && profile.FavoriteChart != "line" {
			out = append(out, "Compare the trend over time with a line chart")
		} else {
			out = append(out, "Compare category shares with a pie chart")
		}
	case intent.PatternCount:
		out = append(out, "Break the count down by a category field")
	case intent.PatternFilter:
		out = append(out, "Aggregate the filtered results, e.g. totals per group")
	default:
		if len(knownFields) > 0 {
			out = append(out, fmt.Sprintf("Try: show the top values of %s", knownFields[0]))
		}
		out = append(out, "Ask a question about your data, e.g. 'top 5 products by revenue'")
	}

	if profile.TotalTurns >= 3 && profile.DominantPattern != intent.PatternChart {
		out = append(out, "You can ask for any result as a chart")
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
