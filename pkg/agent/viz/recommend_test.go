package viz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-be/pkg/search"
)

func hitsResult(sources ...map[string]interface{}) *search.ResultSet {
	rs := &search.ResultSet{Total: int64(len(sources))}
	for _, src := range sources {
		rs.Hits = append(rs.Hits, search.Hit{Source: src})
	}
	return rs
}

func aggResult(raw string) *search.ResultSet {
	return &search.ResultSet{
		Total:        100,
		Aggregations: map[string]json.RawMessage{"result": json.RawMessage(raw)},
	}
}

func confidenceOf(rec *Recommendation, kind Kind) float64 {
	if rec.Primary == kind {
		return rec.Confidence
	}
	for _, alt := range rec.Alternatives {
		if alt.Kind == kind {
			return alt.Confidence
		}
	}
	return 0
}

func rankedConfidence(r *Recommender, rs *search.ResultSet, kind Kind) float64 {
	// Rank with all alternatives visible
	saved := r.AlternativeCount
	r.AlternativeCount = len(AllKinds)
	defer func() { r.AlternativeCount = saved }()
	return confidenceOf(r.Recommend(rs, ""), kind)
}

func TestTemporalNumericRanksLineAbovePie(t *testing.T) {
	rs := hitsResult(
		map[string]interface{}{"timestamp": "2024-01-01T00:00:00Z", "revenue": 10.0},
		map[string]interface{}{"timestamp": "2024-02-01T00:00:00Z", "revenue": 20.0},
		map[string]interface{}{"timestamp": "2024-03-01T00:00:00Z", "revenue": 15.0},
	)
	r := NewRecommender(KindBar)

	line := rankedConfidence(r, rs, KindLine)
	area := rankedConfidence(r, rs, KindArea)
	pie := rankedConfidence(r, rs, KindPie)

	assert.Greater(t, line, pie)
	assert.Greater(t, area, pie)
}

func TestTwoNumericFieldsFavorScatter(t *testing.T) {
	rs := hitsResult(
		map[string]interface{}{"price": 10.0, "quantity": 3.0},
		map[string]interface{}{"price": 25.0, "quantity": 1.0},
		map[string]interface{}{"price": 7.5, "quantity": 12.0},
	)
	r := NewRecommender(KindBar)

	scatter := rankedConfidence(r, rs, KindScatter)
	bar := rankedConfidence(r, rs, KindBar)

	assert.GreaterOrEqual(t, scatter, bar)
}

func TestCategoricalNumericFavorsBar(t *testing.T) {
	rs := aggResult(`{"buckets":[
		{"key":"laptop","doc_count":40,"total_revenue":{"value":4000}},
		{"key":"phone","doc_count":35,"total_revenue":{"value":3500}},
		{"key":"tablet","doc_count":25,"total_revenue":{"value":2500}}
	]}`)
	r := NewRecommender(KindBar)

	rec := r.Recommend(rs, "")

	assert.Equal(t, KindBar, rec.Primary)
	assert.Equal(t, "key", rec.Axes.X)
	assert.NotEmpty(t, rec.Axes.Y)
}

func TestPieScoresOnlyOnLowCardinality(t *testing.T) {
	small := aggResult(`{"buckets":[
		{"key":"a","doc_count":10},{"key":"b","doc_count":20},{"key":"c","doc_count":30}
	]}`)
	r := NewRecommender(KindBar)
	assert.Greater(t, rankedConfidence(r, small, KindPie), 0.0)

	var manyBuckets string
	manyBuckets = `{"buckets":[`
	for i := 0; i < 20; i++ {
		if i > 0 {
			manyBuckets += ","
		}
		manyBuckets += `{"key":"cat` + string(rune('a'+i)) + `","doc_count":5}`
	}
	manyBuckets += `]}`
	large := aggResult(manyBuckets)
	assert.Equal(t, 0.0, rankedConfidence(r, large, KindPie))
}

func TestIntentHintBiasesButDoesNotOverride(t *testing.T) {
	// Temporal+numeric data: line scores 0.6, pie scores 0. A pie hint
	// adds 0.25 which must not overturn the ranking.
	rs := hitsResult(
		map[string]interface{}{"timestamp": "2024-01-01T00:00:00Z", "revenue": 10.0},
		map[string]interface{}{"timestamp": "2024-02-01T00:00:00Z", "revenue": 20.0},
	)
	r := NewRecommender(KindBar)

	rec := r.Recommend(rs, "pie")

	assert.Equal(t, KindLine, rec.Primary)

	// But with near-tied candidates the hint decides
	tied := aggResult(`{"buckets":[
		{"key":"a","doc_count":10},{"key":"b","doc_count":20},{"key":"c","doc_count":30}
	]}`)
	near := NewRecommender(KindBar)
	near.DefaultKindBase = 0
	withHint := near.Recommend(tied, "pie")
	withoutHint := near.Recommend(tied, "")
	assert.Equal(t, KindPie, withHint.Primary)
	assert.Equal(t, KindBar, withoutHint.Primary)
}

func TestTieBreakFollowsKindPriority(t *testing.T) {
	// Empty profile: every kind scores 0 except the configured default
	r := NewRecommender(KindBar)
	r.DefaultKindBase = 0

	rec := r.Recommend(&search.ResultSet{}, "")

	assert.Equal(t, KindBar, rec.Primary)
	require.Len(t, rec.Alternatives, 2)
	assert.Equal(t, KindLine, rec.Alternatives[0].Kind)
	assert.Equal(t, KindPie, rec.Alternatives[1].Kind)
}

func TestConfidenceClamped(t *testing.T) {
	rs := aggResult(`{"buckets":[
		{"key":"a","doc_count":10},{"key":"b","doc_count":20}
	]}`)
	r := NewRecommender(KindBar)
	r.IntentBonus = 5.0

	rec := r.Recommend(rs, "bar")

	assert.Equal(t, KindBar, rec.Primary)
	assert.LessOrEqual(t, rec.Confidence, 1.0)
}

func TestDateHistogramBucketsAreTemporal(t *testing.T) {
	rs := aggResult(`{"buckets":[
		{"key":1704067200000,"key_as_string":"2024-01-01T00:00:00Z","doc_count":12},
		{"key":1706745600000,"key_as_string":"2024-02-01T00:00:00Z","doc_count":18}
	]}`)
	r := NewRecommender(KindBar)

	rec := r.Recommend(rs, "")

	assert.Equal(t, KindLine, rec.Primary)
	assert.Equal(t, "key", rec.Axes.X)
	assert.Equal(t, "doc_count", rec.Axes.Y)
}

func TestBuildChartConfigFromBuckets(t *testing.T) {
	rs := aggResult(`{"buckets":[
		{"key":"laptop","doc_count":40,"total_revenue":{"value":4000}},
		{"key":"phone","doc_count":35,"total_revenue":{"value":3500}}
	]}`)
	r := NewRecommender(KindBar)

	rec := r.Recommend(rs, "")
	cfg := BuildChartConfig(rec, "Revenue by product")

	require.NotNil(t, cfg)
	assert.Equal(t, KindBar, cfg.Type)
	assert.Equal(t, []string{"laptop", "phone"}, cfg.Labels)
	assert.Len(t, cfg.Series, 2)
}

func TestBuildChartConfigEmptyResult(t *testing.T) {
	r := NewRecommender(KindBar)
	rec := r.Recommend(&search.ResultSet{}, "")

	assert.Nil(t, BuildChartConfig(rec, "nothing"))
}
