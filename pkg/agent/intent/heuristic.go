package intent

import (
	"strings"
)

// chartKeywords map explicit chart mentions to the kind they name.
// Checked in order so overlapping mentions resolve deterministically.
var chartKeywords = []struct {
	keyword string
	kind    string
}{
	{"pie", "pie"},
	{"donut", "pie"},
	{"line", "line"},
	{"trend", "line"},
	{"bar", "bar"},
	{"column", "bar"},
	{"scatter", "scatter"},
	{"area", "area"},
}

var aggregateKeywords = []string{
	"top ", "group by", "grouped by", "average", "avg ", "sum of", "total",
	"most ", "highest", "lowest", "breakdown", "distribution", "per ",
	"by category", "by month", "by product", "by region",
}

var countKeywords = []string{
	"how many", "count", "number of",
}

var filterKeywords = []string{
	"where ", "filter", "only ", "between", "greater than", "less than",
	"more than", "fewer than", "above", "below", "after ", "before ",
	"since ", "last week", "last month", "this year",
}

var searchKeywords = []string{
	"show", "find", "list", "search", "get ", "display", "give me",
}

var chartVerbs = []string{
	"chart", "graph", "plot", "visualize", "visualise", "draw",
}

// Classify is the deterministic keyword classifier used when the model
// is unavailable or returns an unparseable answer. knownFields lets it
// recover field references from the utterance text.
func Classify(utterance string, knownFields []string) *Descriptor {
	text := strings.ToLower(utterance)

	desc := &Descriptor{
		Pattern:    PatternGeneral,
		Confidence: 0.5,
		Reasoning:  "keyword classifier",
		Fields:     matchFields(text, knownFields),
		ChartHint:  detectChartHint(text),
	}

	switch {
	case containsAny(text, chartVerbs):
		desc.Pattern = PatternChart
	case containsAny(text, countKeywords):
		desc.Pattern = PatternCount
	case containsAny(text, aggregateKeywords):
		desc.Pattern = PatternAggregate
	case containsAny(text, filterKeywords):
		desc.Pattern = PatternFilter
	case containsAny(text, searchKeywords):
		desc.Pattern = PatternSearch
	}

	// A named chart kind implies the chart pattern even without a chart verb
	if desc.Pattern == PatternGeneral && desc.ChartHint != "" {
		desc.Pattern = PatternChart
	}

	return desc
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func detectChartHint(text string) string {
	for _, entry := range chartKeywords {
		if strings.Contains(text, entry.keyword+" chart") ||
			strings.Contains(text, entry.keyword+" graph") ||
			strings.Contains(text, "as a "+entry.keyword) ||
			strings.Contains(text, "as "+entry.keyword) {
			return entry.kind
		}
	}
	return ""
}

// matchFields finds known index fields mentioned in the utterance.
// Nested fields match on their leaf name ("product.name" matches "name").
func matchFields(text string, knownFields []string) []string {
	var fields []string
	for _, field := range knownFields {
		leaf := field
		if idx := strings.LastIndex(field, "."); idx >= 0 {
			leaf = field[idx+1:]
		}
		if strings.Contains(text, strings.ToLower(leaf)) {
			fields = append(fields, field)
		}
	}
	return fields
}
