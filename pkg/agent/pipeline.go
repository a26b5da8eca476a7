package agent

import (
	"context"
	"strings"
	"time"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/agent/insight"
	"datachat-be/pkg/agent/intent"
	"datachat-be/pkg/agent/respond"
	"datachat-be/pkg/agent/synth"
	"datachat-be/pkg/agent/viz"
	"datachat-be/pkg/embedding"
	"datachat-be/pkg/events"
	"datachat-be/pkg/memory"
	"datachat-be/pkg/search"
	"datachat-be/pkg/store"
)

// State is the pipeline lifecycle position. One pipeline instance runs
// per user turn; instances are never shared across turns.
type State string

const (
	StateInit              State = "INIT"
	StateResolvingIntent   State = "RESOLVING_INTENT"
	StateSynthesizingQuery State = "SYNTHESIZING_QUERY"
	StateExecuting         State = "EXECUTING"
	StateRecommending      State = "RECOMMENDING"
	StateComposing         State = "COMPOSING"
	StateDone              State = "DONE"
	StateError             State = "ERROR"
)

// Collaborator contracts, satisfied by the concrete stage packages.
type IntentResolver interface {
	Resolve(ctx context.Context, in intent.ResolveInput) *intent.Descriptor
}

type QuerySynthesizer interface {
	Synthesize(ctx context.Context, in synth.Input) (*synth.Output, error)
	DefaultQuery(index string) *search.StructuredQuery
}

type Executor interface {
	Execute(ctx context.Context, query *search.StructuredQuery) (*search.ResultSet, error)
}

type ChartRecommender interface {
	Recommend(rs *search.ResultSet, chartHint string) *viz.Recommendation
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Config bounds one pipeline run.
type Config struct {
	Timeout             time.Duration
	TopK                int
	SimilarityThreshold float64
	HistoryWindow       int
	MaxMessageChars     int
}

// Pipeline sequences intent resolution, query synthesis, execution,
// chart recommendation, and response composition for one turn.
type Pipeline struct {
	resolver    IntentResolver
	synthesizer QuerySynthesizer
	executor    Executor
	recommender ChartRecommender
	memoryStore memory.Store
	embedder    embedding.EmbeddingProvider
	publisher   EventPublisher   // optional
	tracker     *insight.Tracker // optional
	logger      logger.ILogger
	cfg         Config
}

func NewPipeline(
	resolver IntentResolver,
	synthesizer QuerySynthesizer,
	executor Executor,
	recommender ChartRecommender,
	memoryStore memory.Store,
	embedder embedding.EmbeddingProvider,
	publisher EventPublisher,
	tracker *insight.Tracker,
	log logger.ILogger,
	cfg Config,
) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	return &Pipeline{
		resolver:    resolver,
		synthesizer: synthesizer,
		executor:    executor,
		recommender: recommender,
		memoryStore: memoryStore,
		embedder:    embedder,
		publisher:   publisher,
		tracker:     tracker,
		logger:      log,
		cfg:         cfg,
	}
}

// Result is the terminal outcome of a successful run.
type Result struct {
	Response *respond.Response
	Query    *search.StructuredQuery
	Duration time.Duration
}

// TurnInput identifies the turn being processed. KnownFields describe
// the active index schema, already fetched by the caller.
type TurnInput struct {
	Session     *store.Session
	Utterance   string
	Index       string
	KnownFields []string
	// OnState is invoked on every state transition; may be nil.
	OnState func(State)
}

// Run executes the full state machine. The overall deadline bounds every
// collaborator call; exceeding it classifies the turn as a timeout no
// matter which stage was active.
func (p *Pipeline) Run(ctx context.Context, in TurnInput) (*Result, *PipelineError) {
	started := time.Now()

	utterance := strings.TrimSpace(in.Utterance)
	if utterance == "" {
		return nil, NewValidationError("message text is empty")
	}
	if p.cfg.MaxMessageChars > 0 && len([]rune(utterance)) > p.cfg.MaxMessageChars {
		return nil, NewValidationError("message text is too long")
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	notify := func(state State) {
		if in.OnState != nil {
			in.OnState(state)
		}
	}
	notify(StateInit)

	// Memory recall. Failures here degrade to zero hits, never fail the turn.
	vector := p.embedUtterance(ctx, utterance)
	examples := p.recall(ctx, memory.KindQueryExample, vector)
	contexts := p.recall(ctx, memory.KindConversationContext, vector)
	schemaFacts := p.recall(ctx, memory.KindDataSchema, vector)

	notify(StateResolvingIntent)
	descriptor := p.resolver.Resolve(ctx, intent.ResolveInput{
		Utterance:   utterance,
		History:     in.Session.Turns,
		Examples:    examples,
		Contexts:    contexts,
		SchemaFacts: schemaFacts,
		Index:       in.Index,
		KnownFields: in.KnownFields,
	})
	if err := ctx.Err(); err != nil {
		return nil, p.fail(in, utterance, Classify(err))
	}

	var (
		result   *search.ResultSet
		query    *search.StructuredQuery
		degraded bool
		cached   bool
	)

	if descriptor.Pattern != intent.PatternGeneral {
		notify(StateSynthesizingQuery)
		out, err := p.synthesizer.Synthesize(ctx, synth.Input{
			Utterance:   utterance,
			Descriptor:  descriptor,
			Index:       in.Index,
			KnownFields: in.KnownFields,
			SchemaFacts: schemaFacts,
			Examples:    examples,
		})
		if err != nil {
			return nil, p.fail(in, utterance, Classify(err))
		}
		query = out.Query
		degraded = out.Degraded
		cached = out.FromCache

		notify(StateExecuting)
		result, err = p.executor.Execute(ctx, query)
		if err != nil {
			classified := Classify(err)
			if classified.Code != CodeSynthesis || degraded {
				return nil, p.fail(in, utterance, classified)
			}

			// One downgrade per turn: the engine rejected the generated
			// query, so fall back to the safe default and re-execute.
			p.logger.Warn("pipeline", "query rejected, downgrading to default", map[string]interface{}{
				"session": in.Session.ID,
				"reason":  classified.Message,
			})
			query = p.synthesizer.DefaultQuery(in.Index)
			degraded = true
			result, err = p.executor.Execute(ctx, query)
			if err != nil {
				return nil, p.fail(in, utterance, Classify(err))
			}
		}
	}

	notify(StateRecommending)
	var recommendation *viz.Recommendation
	if result != nil && !result.Empty() {
		recommendation = p.recommender.Recommend(result, descriptor.ChartHint)
	}

	notify(StateComposing)
	analysis := insight.Analyze(utterance, descriptor, result)
	if p.tracker != nil {
		chartKind := ""
		if recommendation != nil {
			chartKind = string(recommendation.Primary)
		}
		p.tracker.Observe(in.Session.ID, analysis, descriptor, chartKind)
	}

	profile := insight.BuildProfile(in.Session)
	suggestions := append(analysis.Improvements, insight.Suggestions(profile, in.KnownFields)...)
	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	response := respond.Compose(respond.Input{
		Utterance:      utterance,
		Descriptor:     descriptor,
		Result:         result,
		Recommendation: recommendation,
		Suggestions:    suggestions,
		Degraded:       degraded,
	})

	p.recordTurns(in, utterance, descriptor, recommendation, response)
	p.writeBack(in, utterance, descriptor, query, degraded, cached, result)

	notify(StateDone)
	duration := time.Since(started)

	if p.publisher != nil {
		chartType := ""
		if recommendation != nil {
			chartType = string(recommendation.Primary)
		}
		p.publish(events.NewTurnCompletedEvent(
			in.Session.ID, utterance, string(descriptor.Pattern), chartType, duration.Milliseconds(),
		))
	}

	return &Result{
		Response: response,
		Query:    query,
		Duration: duration,
	}, nil
}

func (p *Pipeline) fail(in TurnInput, utterance string, err *PipelineError) *PipelineError {
	if in.OnState != nil {
		in.OnState(StateError)
	}
	p.logger.Error("pipeline", "turn failed", map[string]interface{}{
		"session":   in.Session.ID,
		"code":      string(err.Code),
		"retryable": err.Retryable(),
		"error":     err.Error(),
	})
	if p.publisher != nil {
		p.publish(events.NewTurnFailedEvent(in.Session.ID, utterance, string(err.Code)))
	}
	return err
}

func (p *Pipeline) embedUtterance(ctx context.Context, utterance string) []float32 {
	if p.embedder == nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	resp, err := p.embedder.Generate(utterance, "RETRIEVAL_QUERY")
	if err != nil {
		p.logger.Debug("pipeline", "embedding failed, memory recall skipped", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return resp.Embedding.Values
}

func (p *Pipeline) recall(ctx context.Context, kind memory.Kind, vector []float32) []*memory.ScoredRecord {
	if p.memoryStore == nil || len(vector) == 0 {
		return nil
	}
	records, err := p.memoryStore.SearchSimilar(ctx, kind, vector, p.cfg.TopK, p.cfg.SimilarityThreshold)
	if err != nil {
		p.logger.Debug("pipeline", "memory lookup failed, treating as zero hits", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
		return nil
	}
	return records
}

// recordTurns appends the exchange to the session's bounded history.
func (p *Pipeline) recordTurns(in TurnInput, utterance string, descriptor *intent.Descriptor, recommendation *viz.Recommendation, response *respond.Response) {
	chartType := ""
	if recommendation != nil {
		chartType = string(recommendation.Primary)
	}
	in.Session.AppendTurn(store.Turn{
		Role:      "user",
		Content:   utterance,
		Intent:    string(descriptor.Pattern),
		Index:     in.Index,
		ChartType: chartType,
	}, p.cfg.HistoryWindow)
	in.Session.AppendTurn(store.Turn{
		Role:    "assistant",
		Content: response.Message,
	}, p.cfg.HistoryWindow)
	in.Session.LastQuery = utterance
	in.Session.LastIntent = string(descriptor.Pattern)
}

// writeBack requests asynchronous memory writes for successful,
// non-degraded turns. Fire-and-forget: a lost write only costs recall.
func (p *Pipeline) writeBack(in TurnInput, utterance string, descriptor *intent.Descriptor, query *search.StructuredQuery, degraded, cached bool, result *search.ResultSet) {
	if p.publisher == nil || query == nil || degraded || cached {
		return
	}
	if result == nil || result.Empty() {
		return
	}

	p.publish(events.NewMemoryWriteEvent(
		string(memory.KindQueryExample),
		utterance,
		map[string]interface{}{"body": query.Body, "pattern": string(descriptor.Pattern)},
		in.Session.ID,
		in.Index,
	))
	p.publish(events.NewMemoryWriteEvent(
		string(memory.KindConversationContext),
		utterance+" -> "+string(descriptor.Pattern),
		map[string]interface{}{"total": result.Total},
		in.Session.ID,
		in.Index,
	))
}

func (p *Pipeline) publish(event events.Event) {
	// Publishing happens outside the turn deadline on purpose: the turn
	// is already answered, the write-back should still go out.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("pipeline", "event publish failed", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}
