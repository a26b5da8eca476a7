package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/llm"
	"datachat-be/pkg/memory"
	"datachat-be/pkg/store"
)

// confidence below this floor means the model is guessing; the
// deterministic classifier takes over.
const confidenceFloor = 0.3

// ResolveInput carries everything the resolver may consult for one turn.
type ResolveInput struct {
	Utterance   string
	History     []store.Turn
	Examples    []*memory.ScoredRecord // kind query_example
	Contexts    []*memory.ScoredRecord // kind conversation_context
	SchemaFacts []*memory.ScoredRecord // kind data_schema for the active index
	Index       string
	KnownFields []string
}

// Resolver classifies an utterance into a Descriptor. It is read-only
// against memory; a model failure degrades to the keyword classifier
// instead of failing the turn.
type Resolver struct {
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewResolver(llmProvider llm.LLMProvider, log logger.ILogger) *Resolver {
	return &Resolver{
		llmProvider: llmProvider,
		logger:      log,
	}
}

func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) *Descriptor {
	prompt := r.buildPrompt(in)

	var response string
	operation := func() error {
		var err error
		response, err = r.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0))
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(500*time.Millisecond),
		), 1),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		r.logger.Warn("intent", "model call failed, using keyword classifier", map[string]interface{}{
			"error": err.Error(),
		})
		desc := Classify(in.Utterance, in.KnownFields)
		desc.Confidence = 0
		desc.Reasoning = "fallback"
		return desc
	}

	desc, err := r.parseDescriptor(response)
	if err != nil {
		r.logger.Warn("intent", "unparseable model output, using keyword classifier", map[string]interface{}{
			"error": err.Error(),
		})
		return Classify(in.Utterance, in.KnownFields)
	}

	if desc.Confidence < confidenceFloor {
		r.logger.Debug("intent", "model confidence below floor, using keyword classifier", map[string]interface{}{
			"confidence": desc.Confidence,
		})
		return Classify(in.Utterance, in.KnownFields)
	}

	for _, example := range in.Examples {
		desc.SimilarExamples = append(desc.SimilarExamples, example.Record.Document)
	}

	r.logger.Info("intent", "resolved", map[string]interface{}{
		"pattern":    string(desc.Pattern),
		"confidence": desc.Confidence,
		"fields":     desc.Fields,
	})
	return desc
}

func (r *Resolver) buildPrompt(in ResolveInput) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are an intent analyzer for a data analytics assistant.\n")
	prompt.WriteString("Your ONLY job is to classify what the user wants to do with their data.\n")
	prompt.WriteString("You do NOT answer questions. You only classify intent.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<active_index>\n")
	prompt.WriteString(fmt.Sprintf("INDEX: %s\n", in.Index))
	if len(in.KnownFields) > 0 {
		prompt.WriteString(fmt.Sprintf("FIELDS: %s\n", strings.Join(in.KnownFields, ", ")))
	}
	for _, fact := range in.SchemaFacts {
		prompt.WriteString(fact.Record.Document)
		prompt.WriteString("\n")
	}
	prompt.WriteString("</active_index>\n\n")

	if len(in.History) > 0 {
		prompt.WriteString("<conversation_history>\n")
		for _, turn := range in.History {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, turn.Content))
		}
		prompt.WriteString("</conversation_history>\n\n")
	}

	if len(in.Examples) > 0 {
		prompt.WriteString("<similar_past_questions>\n")
		for _, example := range in.Examples {
			prompt.WriteString(fmt.Sprintf("- %s\n", example.Record.Document))
		}
		prompt.WriteString("</similar_past_questions>\n\n")
	}

	if len(in.Contexts) > 0 {
		prompt.WriteString("<related_context>\n")
		for _, c := range in.Contexts {
			prompt.WriteString(fmt.Sprintf("- %s\n", c.Record.Document))
		}
		prompt.WriteString("</related_context>\n\n")
	}

	prompt.WriteString("<user_query>\n")
	prompt.WriteString(in.Utterance)
	prompt.WriteString("\n</user_query>\n\n")

	prompt.WriteString("<intent_definitions>\n")
	prompt.WriteString("Choose ONE pattern that best matches what the user wants:\n\n")
	prompt.WriteString("search: User wants to retrieve matching documents (e.g. 'show recent orders')\n")
	prompt.WriteString("aggregate: User wants grouped or computed values (e.g. 'top 5 products by revenue', 'average price per category')\n")
	prompt.WriteString("filter: User wants documents narrowed by a condition (e.g. 'orders above 100 dollars')\n")
	prompt.WriteString("chart: User explicitly asks for a visualization (e.g. 'plot sales as a pie chart')\n")
	prompt.WriteString("count: User wants only how many documents match (e.g. 'how many orders last week')\n")
	prompt.WriteString("general: Greeting, meta question, or anything not about the data\n")
	prompt.WriteString("</intent_definitions>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"pattern\": \"search|aggregate|filter|chart|count|general\",\n")
	prompt.WriteString("  \"fields\": [\"field names from FIELDS the question refers to\"],\n")
	prompt.WriteString("  \"entities\": [\"literal values to match or filter on\"],\n")
	prompt.WriteString("  \"chart_hint\": \"bar|line|pie|scatter|area or empty\",\n")
	prompt.WriteString("  \"confidence\": 0.95,\n")
	prompt.WriteString("  \"reasoning\": \"Brief explanation\"\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

func (r *Resolver) parseDescriptor(response string) (*Descriptor, error) {
	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var desc Descriptor
	if err := json.Unmarshal([]byte(jsonContent), &desc); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	desc.Pattern = Pattern(strings.ToLower(string(desc.Pattern)))
	if !desc.Pattern.Valid() {
		return nil, fmt.Errorf("unknown pattern %q", desc.Pattern)
	}
	if desc.Confidence < 0 {
		desc.Confidence = 0
	}
	if desc.Confidence > 1 {
		desc.Confidence = 1
	}
	desc.ChartHint = strings.ToLower(desc.ChartHint)

	return &desc, nil
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
