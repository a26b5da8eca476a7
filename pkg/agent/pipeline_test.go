package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/agent/exec"
	"datachat-be/pkg/agent/insight"
	"datachat-be/pkg/agent/intent"
	"datachat-be/pkg/agent/synth"
	"datachat-be/pkg/agent/viz"
	"datachat-be/pkg/cache"
	"datachat-be/pkg/events"
	"datachat-be/pkg/llm"
	"datachat-be/pkg/search"
	"datachat-be/pkg/store"
)

type scriptedLLM struct {
	responses []string
	errs      []error
	calls     int
}

func (f *scriptedLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
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

func (f *scriptedLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return f.Generate(ctx, "", opts...)
}

type scriptedSearcher struct {
	results []*search.ResultSet
	errs    []error
	calls   int
	queries []*search.StructuredQuery
}

func (s *scriptedSearcher) Search(ctx context.Context, query *search.StructuredQuery) (*search.ResultSet, error) {
	i := s.calls
	s.calls++
	s.queries = append(s.queries, query)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return &search.ResultSet{}, nil
}

type capturedEvents struct {
	published []events.Event
}

func (c *capturedEvents) Publish(ctx context.Context, event events.Event) error {
	c.published = append(c.published, event)
	return nil
}

var salesFields = []string{"product", "revenue", "category", "timestamp"}

func aggregationResult() *search.ResultSet {
	return &search.ResultSet{
		Total: 100,
		Aggregations: map[string]json.RawMessage{
			"by_product": json.RawMessage(`{"buckets":[
				{"key":"laptop","doc_count":40,"total_revenue":{"value":4000}},
				{"key":"phone","doc_count":35,"total_revenue":{"value":3500}},
				{"key":"tablet","doc_count":25,"total_revenue":{"value":2500}},
				{"key":"monitor","doc_count":20,"total_revenue":{"value":2000}},
				{"key":"keyboard","doc_count":15,"total_revenue":{"value":1500}}
			]}`),
		},
	}
}

func buildPipeline(llmProvider llm.LLMProvider, searcher exec.Searcher, publisher EventPublisher) *Pipeline {
	log := logger.NewNopLogger()
	qc := cache.NewQueryCache(5 * time.Minute)
	return NewPipeline(
		intent.NewResolver(llmProvider, log),
		synth.NewSynthesizer(llmProvider, qc, log, 1000),
		exec.NewCoordinator(searcher, log),
		viz.NewRecommender(viz.KindBar),
		nil, // memory store
		nil, // embedder
		publisher,
		insight.NewTracker(time.Hour),
		log,
		Config{Timeout: 10 * time.Second, MaxMessageChars: 1000},
	)
}

func turnInput(utterance string) TurnInput {
	return TurnInput{
		Session:     store.NewSession("sess-1", "user-1"),
		Utterance:   utterance,
		Index:       "sample-sales",
		KnownFields: salesFields,
	}
}

func TestTopFiveProductsScenario(t *testing.T) {
	intentJSON := `{"pattern":"aggregate","fields":["product","revenue"],"confidence":0.95,"reasoning":"top-n"}`
	queryJSON := `{"size":0,"aggs":{"by_product":{"terms":{"field":"product","size":5,"order":{"total_revenue":"desc"}},"aggs":{"total_revenue":{"sum":{"field":"revenue"}}}}}}`
	provider := &scriptedLLM{responses: []string{intentJSON, queryJSON}}
	searcher := &scriptedSearcher{results: []*search.ResultSet{aggregationResult()}}
	publisher := &capturedEvents{}
	p := buildPipeline(provider, searcher, publisher)

	var states []State
	in := turnInput("show me the top 5 products by revenue")
	in.OnState = func(s State) { states = append(states, s) }

	result, pipeErr := p.Run(context.Background(), in)

	require.Nil(t, pipeErr)
	require.NotNil(t, result.Response)

	assert.Equal(t, intent.PatternAggregate, result.Response.Intent.Pattern)
	assert.True(t, result.Query.HasAggregation())
	require.NotNil(t, result.Response.ChartConfig)
	assert.Equal(t, viz.KindBar, result.Response.ChartConfig.Type)

	assert.Equal(t, []State{
		StateInit, StateResolvingIntent, StateSynthesizingQuery,
		StateExecuting, StateRecommending, StateComposing, StateDone,
	}, states)

	// Session history was appended: user turn + assistant turn
	require.Len(t, in.Session.Turns, 2)
	assert.Equal(t, "user", in.Session.Turns[0].Role)
	assert.Equal(t, "aggregate", in.Session.Turns[0].Intent)

	// Successful non-degraded turn writes memory plus a completion event
	var types []string
	for _, e := range publisher.published {
		types = append(types, e.EventType())
	}
	assert.Contains(t, types, events.TypeMemoryWrite)
	assert.Contains(t, types, events.TypeTurnCompleted)
}

func TestTimeoutOnceThenSuccessIsInvisible(t *testing.T) {
	intentJSON := `{"pattern":"search","confidence":0.9,"reasoning":"list"}`
	queryJSON := `{"query":{"match_all":{}},"size":10}`
	provider := &scriptedLLM{responses: []string{intentJSON, queryJSON}}
	searcher := &scriptedSearcher{
		errs:    []error{search.ErrTimeout, nil},
		results: []*search.ResultSet{nil, {Total: 2, Hits: []search.Hit{{Source: map[string]interface{}{"product": "laptop"}}, {Source: map[string]interface{}{"product": "phone"}}}}},
	}
	p := buildPipeline(provider, searcher, nil)

	result, pipeErr := p.Run(context.Background(), turnInput("list recent orders"))

	require.Nil(t, pipeErr)
	assert.Equal(t, 2, searcher.calls)
	assert.NotContains(t, result.Response.Message, "error")
}

func TestTwoTimeoutsSurfaceRetryableError(t *testing.T) {
	intentJSON := `{"pattern":"search","confidence":0.9,"reasoning":"list"}`
	queryJSON := `{"query":{"match_all":{}},"size":10}`
	provider := &scriptedLLM{responses: []string{intentJSON, queryJSON}}
	searcher := &scriptedSearcher{errs: []error{search.ErrTimeout, search.ErrTimeout}}
	p := buildPipeline(provider, searcher, nil)

	_, pipeErr := p.Run(context.Background(), turnInput("list recent orders"))

	require.NotNil(t, pipeErr)
	assert.Equal(t, CodeUpstreamTimeout, pipeErr.Code)
	assert.True(t, pipeErr.Retryable())
}

func TestRejectedQueryDowngradesOnce(t *testing.T) {
	intentJSON := `{"pattern":"filter","confidence":0.9,"reasoning":"range"}`
	// Passes local validation but the engine still rejects it
	queryJSON := `{"query":{"range":{"revenue":{"gte":"not-a-number"}}},"size":10}`
	provider := &scriptedLLM{responses: []string{intentJSON, queryJSON}}
	searcher := &scriptedSearcher{
		errs: []error{&search.BadQueryError{StatusCode: http.StatusBadRequest, Reason: "failed to parse"}, nil},
		results: []*search.ResultSet{
			nil,
			{Total: 1, Hits: []search.Hit{{Source: map[string]interface{}{"product": "laptop"}}}},
		},
	}
	p := buildPipeline(provider, searcher, nil)

	result, pipeErr := p.Run(context.Background(), turnInput("orders with revenue above ten"))

	require.Nil(t, pipeErr)
	require.Equal(t, 2, searcher.calls)

	// Second execution used the safe default query
	assert.Equal(t, map[string]interface{}{"match_all": map[string]interface{}{}}, searcher.queries[1].Body["query"])
	assert.Contains(t, result.Response.Message, "general sample")
}

func TestGeneralIntentSkipsSearch(t *testing.T) {
	intentJSON := `{"pattern":"general","confidence":0.9,"reasoning":"greeting"}`
	provider := &scriptedLLM{responses: []string{intentJSON}}
	searcher := &scriptedSearcher{}
	p := buildPipeline(provider, searcher, nil)

	result, pipeErr := p.Run(context.Background(), turnInput("hello"))

	require.Nil(t, pipeErr)
	assert.Equal(t, 0, searcher.calls)
	assert.Nil(t, result.Query)
	assert.NotEmpty(t, result.Response.Message)
}

func TestEmptyUtteranceIsValidationError(t *testing.T) {
	p := buildPipeline(&scriptedLLM{}, &scriptedSearcher{}, nil)

	_, pipeErr := p.Run(context.Background(), turnInput("   "))

	require.NotNil(t, pipeErr)
	assert.Equal(t, CodeValidation, pipeErr.Code)
	assert.False(t, pipeErr.Retryable())
}

func TestOversizedUtteranceIsValidationError(t *testing.T) {
	p := buildPipeline(&scriptedLLM{}, &scriptedSearcher{}, nil)

	long := make([]rune, 1001)
	for i := range long {
		long[i] = 'a'
	}
	_, pipeErr := p.Run(context.Background(), turnInput(string(long)))

	require.NotNil(t, pipeErr)
	assert.Equal(t, CodeValidation, pipeErr.Code)
}
