package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "MEMORY_WRITE").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

const (
	TypeMemoryWrite   = "MEMORY_WRITE"
	TypeTurnCompleted = "TURN_COMPLETED"
	TypeTurnFailed    = "TURN_FAILED"
)

// NewMemoryWriteEvent requests an asynchronous write into semantic memory.
func NewMemoryWriteEvent(kind, document string, payload map[string]interface{}, sessionID, indexName string) Event {
	return BaseEvent{
		Type: TypeMemoryWrite,
		Data: map[string]interface{}{
			"kind":       kind,
			"document":   document,
			"payload":    payload,
			"session_id": sessionID,
			"index_name": indexName,
		},
		OccurredAt: time.Now(),
	}
}

// NewTurnCompletedEvent announces a successfully answered conversation turn.
func NewTurnCompletedEvent(sessionID, question, intent, chartType string, durationMs int64) Event {
	return BaseEvent{
		Type: TypeTurnCompleted,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"question":    question,
			"intent":      intent,
			"chart_type":  chartType,
			"duration_ms": durationMs,
		},
		OccurredAt: time.Now(),
	}
}

// NewTurnFailedEvent announces a turn that ended in the error state.
func NewTurnFailedEvent(sessionID, question, code string) Event {
	return BaseEvent{
		Type: TypeTurnFailed,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"question":   question,
			"code":       code,
		},
		OccurredAt: time.Now(),
	}
}
