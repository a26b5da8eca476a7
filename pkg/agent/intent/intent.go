package intent

// Pattern is the fixed enumeration of recognized question types.
type Pattern string

const (
	PatternSearch    Pattern = "search"
	PatternAggregate Pattern = "aggregate"
	PatternFilter    Pattern = "filter"
	PatternChart     Pattern = "chart"
	PatternCount     Pattern = "count"
	PatternGeneral   Pattern = "general"
)

// Valid reports whether p is one of the recognized patterns.
func (p Pattern) Valid() bool {
	switch p {
	case PatternSearch, PatternAggregate, PatternFilter, PatternChart, PatternCount, PatternGeneral:
		return true
	}
	return false
}

// Descriptor is the resolved classification of one user utterance.
// Immutable after creation; consumed by the synthesizer and composer.
type Descriptor struct {
	Pattern    Pattern  `json:"pattern"`
	Confidence float64  `json:"confidence"` // 0.0-1.0
	Fields     []string `json:"fields"`     // index fields the utterance refers to
	Entities   []string `json:"entities"`   // literal values to match/filter on
	ChartHint  string   `json:"chart_hint"` // explicit chart kind named by the user, if any
	Reasoning  string   `json:"reasoning"`
	// Documents of the most similar past query examples, best first
	SimilarExamples []string `json:"similar_examples,omitempty"`
}
