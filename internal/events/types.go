// Package events provides the in-process event bus used to notify stream
// subscribers about queue changes.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	ActionSubmitted EventType = "ACTION_SUBMITTED"
	ActionExecuted  EventType = "ACTION_EXECUTED"
	ActionArchived  EventType = "ACTION_ARCHIVED"

	// Nightly re-ranking
	RerankStarted    EventType = "RERANK_STARTED"
	QueueReranked    EventType = "QUEUE_RERANKED"
	RerankFailed     EventType = "RERANK_FAILED"
	SnapshotArchived EventType = "SNAPSHOT_ARCHIVED"
)

// AllTypes lists every event type a stream subscriber may receive
var AllTypes = []EventType{
	ActionSubmitted,
	ActionExecuted,
	ActionArchived,
	RerankStarted,
	QueueReranked,
	RerankFailed,
	SnapshotArchived,
}

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data,omitempty"`
}
