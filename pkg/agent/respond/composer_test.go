package respond

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-be/pkg/agent/intent"
	"datachat-be/pkg/agent/viz"
	"datachat-be/pkg/search"
)

func TestEmptyResultSuppressesChart(t *testing.T) {
	rec := viz.NewRecommender(viz.KindBar).Recommend(&search.ResultSet{}, "")

	resp := Compose(Input{
		Utterance:      "revenue for nonexistent product",
		Descriptor:     &intent.Descriptor{Pattern: intent.PatternAggregate},
		Result:         &search.ResultSet{},
		Recommendation: rec,
	})

	assert.Contains(t, resp.Message, "No data found")
	assert.Nil(t, resp.ChartConfig)
	assert.Empty(t, resp.Data)
}

func TestCountIntentReportsTotal(t *testing.T) {
	resp := Compose(Input{
		Descriptor: &intent.Descriptor{Pattern: intent.PatternCount},
		Result: &search.ResultSet{
			Total: 42,
			Hits:  []search.Hit{{Source: map[string]interface{}{"a": 1.0}}},
		},
	})

	assert.Equal(t, "Found 42 matching documents.", resp.Message)
}

func TestAggregatedResultCarriesChartAndData(t *testing.T) {
	rs := &search.ResultSet{
		Total: 100,
		Aggregations: map[string]json.RawMessage{
			"by_product": json.RawMessage(`{"buckets":[
				{"key":"laptop","doc_count":40,"total_revenue":{"value":4000}},
				{"key":"phone","doc_count":35,"total_revenue":{"value":3500}}
			]}`),
		},
	}
	rec := viz.NewRecommender(viz.KindBar).Recommend(rs, "")

	resp := Compose(Input{
		Utterance:      "top products by revenue",
		Descriptor:     &intent.Descriptor{Pattern: intent.PatternAggregate},
		Result:         rs,
		Recommendation: rec,
		Suggestions:    []string{"Try visualizing the last result as a chart"},
	})

	require.NotNil(t, resp.ChartConfig)
	assert.Equal(t, viz.KindBar, resp.ChartConfig.Type)
	assert.Len(t, resp.Data, 2)
	assert.Contains(t, resp.Message, "2 groups")
	assert.NotEmpty(t, resp.Reasoning)
	assert.NotEmpty(t, resp.Insights)
}

func TestGeneralIntentSkipsData(t *testing.T) {
	resp := Compose(Input{
		Utterance:  "hello",
		Descriptor: &intent.Descriptor{Pattern: intent.PatternGeneral},
	})

	assert.Contains(t, resp.Message, "Hello")
	assert.Nil(t, resp.ChartConfig)
}

func TestDegradedResultIsFlaggedInMessage(t *testing.T) {
	rs := &search.ResultSet{
		Total: 5,
		Hits:  []search.Hit{{Source: map[string]interface{}{"product": "laptop"}}},
	}

	resp := Compose(Input{
		Utterance:  "weird question",
		Descriptor: &intent.Descriptor{Pattern: intent.PatternSearch},
		Result:     rs,
		Degraded:   true,
	})

	assert.Contains(t, resp.Message, "general sample")
}
