package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"datachat-be/pkg/agent/intent"
	"datachat-be/pkg/store"
)

func sessionWithIntents(intents ...string) *store.Session {
	s := store.NewSession("sess", "user")
	for _, it := range intents {
		s.AppendTurn(store.Turn{Role: "user", Content: "q", Intent: it}, 0)
		s.AppendTurn(store.Turn{Role: "assistant", Content: "a"}, 0)
	}
	return s
}

func TestBuildProfileCountsUserTurnsOnly(t *testing.T) {
	s := sessionWithIntents("aggregate", "aggregate", "search")

	profile := BuildProfile(s)

	assert.Equal(t, 3, profile.TotalTurns)
	assert.Equal(t, 2, profile.PatternCounts[intent.PatternAggregate])
	assert.Equal(t, intent.PatternAggregate, profile.DominantPattern)
}

func TestBuildProfileTracksFavoriteChart(t *testing.T) {
	s := store.NewSession("sess", "user")
	s.AppendTurn(store.Turn{Role: "user", Intent: "chart", ChartType: "bar"}, 0)
	s.AppendTurn(store.Turn{Role: "user", Intent: "chart", ChartType: "bar"}, 0)
	s.AppendTurn(store.Turn{Role: "user", Intent: "chart", ChartType: "pie"}, 0)

	profile := BuildProfile(s)

	assert.Equal(t, "bar", profile.FavoriteChart)
}

func TestSuggestionsForAggregateHeavySession(t *testing.T) {
	profile := BuildProfile(sessionWithIntents("aggregate", "aggregate"))

	suggestions := Suggestions(profile, []string{"category", "revenue"})

	assert.NotEmpty(t, suggestions)
	assert.LessOrEqual(t, len(suggestions), maxSuggestions)
	assert.Contains(t, suggestions[0], "chart")
}

func TestSuggestionsForEmptySession(t *testing.T) {
	profile := BuildProfile(store.NewSession("sess", "user"))

	suggestions := Suggestions(profile, nil)

	assert.NotEmpty(t, suggestions)
}
