package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/llm"
)

type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return f.Generate(ctx, "", opts...)
}

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		pattern   Pattern
		chartHint string
	}{
		{"top n is aggregate", "show me the top 5 products by revenue", PatternAggregate, ""},
		{"how many is count", "how many orders came in yesterday", PatternCount, ""},
		{"explicit chart verb", "plot monthly sales", PatternChart, ""},
		{"named pie chart", "revenue by region as a pie chart", PatternChart, "pie"},
		{"condition is filter", "orders greater than 100 dollars", PatternFilter, ""},
		{"plain retrieval", "list recent orders", PatternSearch, ""},
		{"greeting is general", "hello there", PatternGeneral, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := Classify(tt.utterance, nil)
			assert.Equal(t, tt.pattern, desc.Pattern)
			assert.Equal(t, tt.chartHint, desc.ChartHint)
		})
	}
}

func TestClassifyMatchesKnownFields(t *testing.T) {
	desc := Classify("show revenue by product", []string{"product.name", "revenue", "timestamp"})
	assert.Contains(t, desc.Fields, "revenue")
	assert.Contains(t, desc.Fields, "product.name")
	assert.NotContains(t, desc.Fields, "timestamp")
}

func TestResolveParsesModelOutput(t *testing.T) {
	provider := &fakeLLM{responses: []string{
		`Here you go: {"pattern":"aggregate","fields":["product","revenue"],"entities":[],"chart_hint":"","confidence":0.92,"reasoning":"top-n grouping"}`,
	}}
	r := NewResolver(provider, logger.NewNopLogger())

	desc := r.Resolve(context.Background(), ResolveInput{Utterance: "top 5 products by revenue"})

	assert.Equal(t, PatternAggregate, desc.Pattern)
	assert.InDelta(t, 0.92, desc.Confidence, 0.001)
	assert.Equal(t, []string{"product", "revenue"}, desc.Fields)
}

func TestResolveRetriesOnceThenFallsBack(t *testing.T) {
	provider := &fakeLLM{errs: []error{errors.New("boom"), errors.New("boom")}}
	r := NewResolver(provider, logger.NewNopLogger())

	desc := r.Resolve(context.Background(), ResolveInput{Utterance: "top 5 products by revenue"})

	require.Equal(t, 2, provider.calls)
	assert.Equal(t, PatternAggregate, desc.Pattern)
	assert.Equal(t, 0.0, desc.Confidence)
	assert.Equal(t, "fallback", desc.Reasoning)
}

func TestResolveSsecondAttemptSucceeds(t *testing.T) {
	provider := &fakeLLM{
		errs:      []error{errors.New("transient"), nil},
		responses: []string{"", `{"pattern":"count","confidence":0.8,"reasoning":"ok"}`},
	}
	r := NewResolver(provider, logger.NewNopLogger())

	desc := r.Resolve(context.Background(), ResolveInput{Utterance: "how many orders"})

	assert.Equal(t, PatternCount, desc.Pattern)
	assert.InDelta(t, 0.8, desc.Confidence, 0.001)
}

func TestResolveUnparseableOutputUsesClassifier(t *testing.T) {
	provider := &fakeLLM{responses: []string{"I think the user wants a search."}}
	r := NewResolver(provider, logger.NewNopLogger())

	desc := r.Resolve(context.Background(), ResolveInput{Utterance: "list recent orders"})

	assert.Equal(t, PatternSearch, desc.Pattern)
	assert.Equal(t, "keyword classifier", desc.Reasoning)
}

func TestResolveLowConfidenceUsesClassifier(t *testing.T) {
	provider := &fakeLLM{responses: []string{`{"pattern":"chart","confidence":0.1,"reasoning":"unsure"}`}}
	r := NewResolver(provider, logger.NewNopLogger())

	desc := r.Resolve(context.Background(), ResolveInput{Utterance: "how many orders"})

	assert.Equal(t, PatternCount, desc.Pattern)
}
