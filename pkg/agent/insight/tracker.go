package insight

import (
	"fmt"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"datachat-be/pkg/agent/intent"
)

// Behavior classifies how a session tends to query its data.
type Behavior string

const (
	BehaviorExplorer Behavior = "explorer" // many distinct patterns
	BehaviorAnalyst  Behavior = "analyst"  // deep dives into few patterns
	BehaviorReporter Behavior = "reporter" // steady standard questions
	BehaviorCasual   Behavior = "casual"   // occasional simple questions
)

const (
	maxPreferredCharts     = 5
	maxCommonFields        = 10
	maxPersonalized        = 5
	expertiseFeedbackFloor = 0.7
	complexitySmoothing    = 0.8
)

// Profile accumulates a session's querying habits across turns. Unlike
// the snapshot built from the turn window, it survives history trimming
// for as long as the cache keeps it.
type Profile struct {
	SessionID       string               `json:"session_id"`
	Behavior        Behavior             `json:"behavior"`
	PreferredCharts []string             `json:"preferred_charts,omitempty"`
	CommonFields    []string             `json:"common_fields,omitempty"`
	Complexity      float64              `json:"complexity"`
	Interactions    map[QueryPattern]int `json:"interactions"`
	DomainExpertise map[string]float64   `json:"domain_expertise,omitempty"`
	LastUpdated     time.Time            `json:"last_updated"`
}

// Feedback is one explicit user rating of a turn, all values 0.0-1.0.
type Feedback struct {
	Satisfaction    float64
	ChartRating     float64
	ResponseQuality float64
	IndexName       string
}

// Tracker keeps per-session profiles in the cache layer; entries expire
// with the session TTL.
type Tracker struct {
	mu       sync.Mutex
	profiles *gocache.Cache
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		profiles: gocache.New(ttl, 10*time.Minute),
	}
}

// Observe folds one analyzed turn into the session's profile.
func (t *Tracker) Observe(sessionID string, analysis *Analysis, descriptor *intent.Descriptor, chartKind string) {
	if sessionID == "" || analysis == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	profile := t.profile(sessionID)

	if chartKind != "" {
		profile.PreferredCharts = appendBounded(profile.PreferredCharts, chartKind, maxPreferredCharts)
	}
	if descriptor != nil {
		for _, field := range descriptor.Fields {
			profile.CommonFields = appendBounded(profile.CommonFields, field, maxCommonFields)
		}
	}

	profile.Complexity = profile.Complexity*complexitySmoothing + Complexity(analysis.Pattern)*(1-complexitySmoothing)
	profile.Interactions[analysis.Pattern]++
	profile.Behavior = classify(profile.Interactions)
	profile.LastUpdated = time.Now()

	t.profiles.Set(sessionID, profile, gocache.DefaultExpiration)
}

// RecordFeedback folds an explicit rating into the profile. Satisfied
// feedback raises the session's expertise on the rated index.
func (t *Tracker) RecordFeedback(sessionID string, fb Feedback) {
	if sessionID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	profile := t.profile(sessionID)
	if fb.Satisfaction > expertiseFeedbackFloor {
		index := fb.IndexName
		if index == "" {
			index = "general"
		}
		expertise := profile.DomainExpertise[index] + 0.1
		if expertise > 1.0 {
			expertise = 1.0
		}
		profile.DomainExpertise[index] = expertise
	}
	profile.LastUpdated = time.Now()
	t.profiles.Set(sessionID, profile, gocache.DefaultExpiration)
}

// Profile returns a copy of the session's accumulated profile.
func (t *Tracker) Profile(sessionID string) (*Profile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cached, found := t.profiles.Get(sessionID)
	if !found {
		return nil, false
	}

	src := cached.(*Profile)
	copied := *src
	copied.PreferredCharts = append([]string(nil), src.PreferredCharts...)
	copied.CommonFields = append([]string(nil), src.CommonFields...)
	copied.Interactions = make(map[QueryPattern]int, len(src.Interactions))
	for k, v := range src.Interactions {
		copied.Interactions[k] = v
	}
	copied.DomainExpertise = make(map[string]float64, len(src.DomainExpertise))
	for k, v := range src.DomainExpertise {
		copied.DomainExpertise[k] = v
	}
	return &copied, true
}

// PersonalizedSuggestions proposes next questions from the session's
// behavior and habits, at most five. Unknown sessions get the defaults.
func (t *Tracker) PersonalizedSuggestions(sessionID string) []string {
	profile, found := t.Profile(sessionID)
	if !found {
		return DefaultSuggestions()
	}

	var out []string
	switch profile.Behavior {
	case BehaviorExplorer:
		out = append(out,
			"Explore correlations between different fields",
			"Try other chart types on the same data",
			"Look for anomalies or outliers",
		)
	case BehaviorAnalyst:
		out = append(out,
			"Drill into a specific segment for deeper insight",
			"Compare trends across different time periods",
			"Analyze how the values are distributed",
		)
	case BehaviorReporter:
		out = append(out,
			"Build a summary with the key metrics",
			"Compare the results across categories",
			"Track the trend over time",
		)
	}

	for _, pattern := range topPatterns(profile.Interactions, 3) {
		switch pattern {
		case PatternTimeSeries:
			out = append(out, "Analyze the trend over a different time period")
		case PatternCategorical:
			out = append(out, "Compare performance across categories")
		}
	}

	if len(profile.CommonFields) > 0 {
		field := profile.CommonFields[len(profile.CommonFields)-1]
		out = append(out, fmt.Sprintf("Explore %s with a different visualization", field))
	}

	if len(out) > maxPersonalized {
		out = out[:maxPersonalized]
	}
	return out
}

// DefaultSuggestions are for sessions with no profile yet.
func DefaultSuggestions() []string {
	return []string{
		"Start with a simple data overview",
		"Try creating a chart to visualize your data",
		"Explore trends over time",
		"Compare different categories",
		"Look for patterns in your data",
	}
}

// profile returns the live entry, creating it if missing. Callers hold t.mu.
func (t *Tracker) profile(sessionID string) *Profile {
	if cached, found := t.profiles.Get(sessionID); found {
		return cached.(*Profile)
	}
	return &Profile{
		SessionID:       sessionID,
		Behavior:        BehaviorCasual,
		Complexity:      0.5,
		Interactions:    map[QueryPattern]int{},
		DomainExpertise: map[string]float64{},
	}
}

func classify(interactions map[QueryPattern]int) Behavior {
	total := 0
	for _, n := range interactions {
		total += n
	}
	switch {
	case total >= 10 && len(interactions) > 5:
		return BehaviorExplorer
	case total >= 10:
		return BehaviorAnalyst
	case total >= 5:
		return BehaviorReporter
	default:
		return BehaviorCasual
	}
}

func appendBounded(list []string, value string, max int) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	list = append(list, value)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

func topPatterns(interactions map[QueryPattern]int, n int) []QueryPattern {
	patterns := make([]QueryPattern, 0, len(interactions))
	for p := range interactions {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if interactions[patterns[i]] != interactions[patterns[j]] {
			return interactions[patterns[i]] > interactions[patterns[j]]
		}
		return patterns[i] < patterns[j]
	})
	if len(patterns) > n {
		patterns = patterns[:n]
	}
	return patterns
}
