package respond

import (
	"fmt"
	"strings"

	"datachat-be/pkg/agent/intent"
	"datachat-be/pkg/agent/viz"
	"datachat-be/pkg/search"
)

// Input is everything the composer merges into one reply.
type Input struct {
	Utterance      string
	Descriptor     *intent.Descriptor
	Result         *search.ResultSet
	Recommendation *viz.Recommendation
	Suggestions    []string
	Degraded       bool
}

// Response is the user-facing message plus machine-readable metadata.
type Response struct {
	Message      string                   `json:"message"`
	ChartConfig  *viz.ChartConfig         `json:"chart_config,omitempty"`
	Data         []map[string]interface{} `json:"data,omitempty"`
	Intent       *intent.Descriptor       `json:"intent,omitempty"`
	Reasoning    string                   `json:"reasoning,omitempty"`
	Alternatives []viz.Candidate          `json:"alternatives,omitempty"`
	Insights     []string                 `json:"insights,omitempty"`
}

const maxDataRows = 20

// Compose is a pure function of its inputs; no I/O.
// An empty result yields an explicit "no data" message with chart
// metadata suppressed.
func Compose(in Input) *Response {
	resp := &Response{
		Intent:   in.Descriptor,
		Insights: in.Suggestions,
	}

	if in.Descriptor != nil && in.Descriptor.Pattern == intent.PatternGeneral {
		resp.Message = greetingMessage(in.Utterance)
		return resp
	}

	if in.Result == nil || in.Result.Empty() {
		resp.Message = "No data found for that question. Try rephrasing it or asking about a different field."
		return resp
	}

	resp.Data = dataRows(in.Result, in.Recommendation)
	resp.Message = summaryMessage(in)

	if in.Recommendation != nil {
		resp.Reasoning = in.Recommendation.Reasoning
		resp.Alternatives = in.Recommendation.Alternatives
		resp.ChartConfig = viz.BuildChartConfig(in.Recommendation, chartTitle(in))
	}

	if in.Degraded {
		resp.Message += " (I could not build an exact query for that, so this shows a general sample.)"
	}

	return resp
}

func greetingMessage(utterance string) string {
	lower := strings.ToLower(utterance)
	if strings.Contains(lower, "help") || strings.Contains(lower, "what can you") {
		return "I can answer questions about your data: search it, count it, aggregate it, and recommend charts. Try 'top 5 products by revenue'."
	}
	return "Hello! Ask me anything about your data, for example 'top 5 products by revenue'."
}

func summaryMessage(in Input) string {
	total := in.Result.Total

	if in.Descriptor != nil && in.Descriptor.Pattern == intent.PatternCount {
		return fmt.Sprintf("Found %d matching documents.", total)
	}

	if len(in.Result.Aggregations) > 0 {
		rows := 0
		if in.Recommendation != nil && in.Recommendation.Profile != nil {
			rows = in.Recommendation.Profile.RowCount
		}
		if rows > 0 {
			return fmt.Sprintf("Here is the breakdown across %d groups (from %d matching documents).", rows, total)
		}
		return fmt.Sprintf("Here is the aggregated result over %d matching documents.", total)
	}

	shown := len(in.Result.Hits)
	if int64(shown) < total {
		return fmt.Sprintf("Found %d matching documents, showing the first %d.", total, shown)
	}
	return fmt.Sprintf("Found %d matching documents.", total)
}

func chartTitle(in Input) string {
	if in.Utterance != "" {
		return in.Utterance
	}
	return "Result"
}

// dataRows returns the tabular payload for the client: profiled rows for
// aggregations, raw sources otherwise, both bounded.
func dataRows(rs *search.ResultSet, rec *viz.Recommendation) []map[string]interface{} {
	if len(rs.Aggregations) > 0 && rec != nil && rec.Profile != nil {
		rows := rec.Profile.Rows()
		if len(rows) > maxDataRows {
			rows = rows[:maxDataRows]
		}
		return rows
	}

	var rows []map[string]interface{}
	for i, hit := range rs.Hits {
		if i >= maxDataRows {
			break
		}
		rows = append(rows, hit.Source)
	}
	return rows
}
