package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/agent/intent"
	"datachat-be/pkg/cache"
	"datachat-be/pkg/llm"
	"datachat-be/pkg/memory"
	"datachat-be/pkg/search"
)

// Input is everything the synthesizer may consult for one turn.
type Input struct {
	Utterance   string
	Descriptor  *intent.Descriptor
	Index       string
	KnownFields []string
	SchemaFacts []*memory.ScoredRecord
	Examples    []*memory.ScoredRecord // past query examples, payload holds the body
}

// Output carries the query plus how it was obtained. A degraded query is
// never cached and never written to memory.
type Output struct {
	Query     *search.StructuredQuery
	FromCache bool
	Degraded  bool
}

// Synthesizer turns an intent descriptor into an executable query.
// Cache hits skip the model entirely; generated bodies are validated
// against the index schema before they are accepted.
type Synthesizer struct {
	llmProvider llm.LLMProvider
	queryCache  *cache.QueryCache
	logger      logger.ILogger

	MaxSize     int
	DefaultSize int
}

func NewSynthesizer(llmProvider llm.LLMProvider, queryCache *cache.QueryCache, log logger.ILogger, maxSize int) *Synthesizer {
	return &Synthesizer{
		llmProvider: llmProvider,
		queryCache:  queryCache,
		logger:      log,
		MaxSize:     maxSize,
		DefaultSize: 10,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (*Output, error) {
	cacheKey := s.queryCache.Key(in.Utterance, in.Index)
	if cached, found := s.queryCache.Get(cacheKey); found {
		// Hand out a clone: the cached body stays frozen even if a
		// caller mutates its copy, and concurrent hits never share a map
		query := cached.Clone()
		s.logger.Info("synth", "query cache hit", map[string]interface{}{
			"key":   cacheKey,
			"index": in.Index,
		})
		return &Output{Query: query, FromCache: true}, nil
	}

	query, err := s.generate(ctx, in, "")
	if err != nil {
		var hint string
		if invalid, ok := err.(*invalidBodyError); ok {
			hint = invalid.Hint()
		} else {
			hint = fmt.Sprintf("The previous attempt failed: %v. Emit ONLY the JSON request body.", err)
		}

		query, err = s.generate(ctx, in, hint)
		if err != nil {
			s.logger.Warn("synth", "generation failed twice, using default query", map[string]interface{}{
				"error": err.Error(),
				"index": in.Index,
			})
			return &Output{Query: s.DefaultQuery(in.Index), Degraded: true}, nil
		}
	}

	s.clampSize(query)
	s.queryCache.Put(cacheKey, query.Clone())
	return &Output{Query: query}, nil
}

// DefaultQuery is the safe fallback: unfiltered match, bounded size.
func (s *Synthesizer) DefaultQuery(index string) *search.StructuredQuery {
	return &search.StructuredQuery{
		Index: index,
		Body: map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
			"size":  s.DefaultSize,
		},
	}
}

// clampSize bounds a freshly generated body. An explicit size of 0 on an
// aggregation body is left alone; only an absent size gets the default.
func (s *Synthesizer) clampSize(query *search.StructuredQuery) {
	if !query.SizeSet() && !query.HasAggregation() {
		query.SetSize(s.DefaultSize)
	}
	if query.Size() > s.MaxSize {
		query.SetSize(s.MaxSize)
	}
}

func (s *Synthesizer) generate(ctx context.Context, in Input, hint string) (*search.StructuredQuery, error) {
	prompt := s.buildPrompt(in, hint)

	response, err := s.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		return nil, err
	}

	body, err := parseBody(response)
	if err != nil {
		return nil, &invalidBodyError{reason: err.Error()}
	}

	query := &search.StructuredQuery{Index: in.Index, Body: body}
	if err := ValidateBody(body, in.KnownFields); err != nil {
		return nil, &invalidBodyError{reason: err.Error()}
	}
	return query, nil
}

func (s *Synthesizer) buildPrompt(in Input, hint string) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You translate analytics questions into Elasticsearch request bodies.\n")
	prompt.WriteString("Respond with ONLY the JSON body. No prose, no markdown fences.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<target_index>\n")
	prompt.WriteString(fmt.Sprintf("INDEX: %s\n", in.Index))
	if len(in.KnownFields) > 0 {
		prompt.WriteString(fmt.Sprintf("FIELDS: %s\n", strings.Join(in.KnownFields, ", ")))
	}
	for _, fact := range in.SchemaFacts {
		prompt.WriteString(fact.Record.Document)
		prompt.WriteString("\n")
	}
	prompt.WriteString("</target_index>\n\n")

	prompt.WriteString("<intent>\n")
	prompt.WriteString(fmt.Sprintf("PATTERN: %s\n", in.Descriptor.Pattern))
	if len(in.Descriptor.Fields) > 0 {
		prompt.WriteString(fmt.Sprintf("FIELDS: %s\n", strings.Join(in.Descriptor.Fields, ", ")))
	}
	if len(in.Descriptor.Entities) > 0 {
		prompt.WriteString(fmt.Sprintf("VALUES: %s\n", strings.Join(in.Descriptor.Entities, ", ")))
	}
	prompt.WriteString("</intent>\n\n")

	if len(in.Examples) > 0 {
		prompt.WriteString("<similar_past_queries>\n")
		for _, example := range in.Examples {
			if body, ok := example.Record.Payload["body"]; ok {
				raw, err := json.Marshal(body)
				if err != nil {
					continue
				}
				prompt.WriteString(fmt.Sprintf("Q: %s\nBODY: %s\n", example.Record.Document, string(raw)))
			}
		}
		prompt.WriteString("</similar_past_queries>\n\n")
	}

	prompt.WriteString("<user_question>\n")
	prompt.WriteString(in.Utterance)
	prompt.WriteString("\n</user_question>\n\n")

	prompt.WriteString("<rules>\n")
	prompt.WriteString("- Reference ONLY fields listed in FIELDS.\n")
	prompt.WriteString("- For aggregate questions use a terms or date_histogram aggregation with size 0.\n")
	prompt.WriteString("- For top-N questions order the terms aggregation by the relevant metric.\n")
	prompt.WriteString("- Keyword fields used in terms aggregations keep their exact name from FIELDS.\n")
	prompt.WriteString(fmt.Sprintf("- Never request more than %d documents.\n", s.MaxSize))
	prompt.WriteString("</rules>\n")

	if hint != "" {
		prompt.WriteString("\n<previous_error>\n")
		prompt.WriteString(hint)
		prompt.WriteString("\n</previous_error>\n")
	}

	return prompt.String()
}

func parseBody(response string) (map[string]interface{}, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var body map[string]interface{}
	if err := json.Unmarshal([]byte(response[start:end+1]), &body); err != nil {
		return nil, fmt.Errorf("body is not valid JSON: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("body is empty")
	}
	return body, nil
}

type invalidBodyError struct {
	reason string
}

func (e *invalidBodyError) Error() string {
	return "invalid query body: " + e.reason
}

func (e *invalidBodyError) Hint() string {
	return fmt.Sprintf("The previous body was rejected: %s. Fix it and emit ONLY the corrected JSON body.", e.reason)
}
