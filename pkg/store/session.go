package store

import "time"

// Turn is one completed exchange in a conversation.
type Turn struct {
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	Index     string    `json:"index,omitempty"`
	ChartType string    `json:"chart_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents the active conversation state.
type Session struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	State       string `json:"state"`        // "IDLE" | "PROCESSING"
	ActiveIndex string `json:"active_index"` // index the conversation is currently about

	// Sliding window of recent turns, oldest first
	Turns []Turn `json:"turns"`

	LastQuery    string    `json:"last_query"`
	LastIntent   string    `json:"last_intent"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

const (
	StateIdle       = "IDLE"
	StateProcessing = "PROCESSING"
)

func NewSession(id, userID string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		UserID:       userID,
		State:        StateIdle,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// AppendTurn records a turn and trims the history to the given window.
// A window of 0 keeps everything.
func (s *Session) AppendTurn(turn Turn, window int) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	s.Turns = append(s.Turns, turn)
	if window > 0 && len(s.Turns) > window {
		s.Turns = s.Turns[len(s.Turns)-window:]
	}
	s.LastActiveAt = turn.Timestamp
}

// RecentUserQueries returns the content of the latest user turns, newest last.
func (s *Session) RecentUserQueries(n int) []string {
	var queries []string
	for _, turn := range s.Turns {
		if turn.Role == "user" {
			queries = append(queries, turn.Content)
		}
	}
	if n > 0 && len(queries) > n {
		queries = queries[len(queries)-n:]
	}
	return queries
}
