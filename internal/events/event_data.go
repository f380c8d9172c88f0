package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ActionSubmittedData contains data for ActionSubmitted events
type ActionSubmittedData struct {
	ActionID string `json:"action_id"`
	Type     string `json:"type"`
	Target   string `json:"target"`
	Agent    string `json:"agent"`
}

// EventType returns the event type for ActionSubmittedData
func (d *ActionSubmittedData) EventType() EventType {
	return ActionSubmitted
}

// ActionExecutedData contains data for ActionExecuted events
type ActionExecutedData struct {
	ActionID      string   `json:"action_id"`
	ExecutionCost *float64 `json:"execution_cost,omitempty"`
}

// EventType returns the event type for ActionExecutedData
func (d *ActionExecutedData) EventType() EventType {
	return ActionExecuted
}

// ActionArchivedData contains data for ActionArchived events
type ActionArchivedData struct {
	ActionID string `json:"action_id"`
}

// EventType returns the event type for ActionArchivedData
func (d *ActionArchivedData) EventType() EventType {
	return ActionArchived
}

// RerankStartedData contains data for RerankStarted events
type RerankStartedData struct {
	Eligible int    `json:"eligible"`
	Trigger  string `json:"trigger"`
}

// EventType returns the event type for RerankStartedData
func (d *RerankStartedData) EventType() EventType {
	return RerankStarted
}

// QueueRerankedData contains data for QueueReranked events.
// Emitted once per run, after the complete ranking is published.
type QueueRerankedData struct {
	SnapshotID     string   `json:"snapshot_id"`
	Entries        int      `json:"entries"`
	Proven         int      `json:"proven"`
	ActionsUpdated int      `json:"actions_updated"`
	Failures       []string `json:"failures"`
	DurationMs     int64    `json:"duration_ms"`
	Cancelled      bool     `json:"cancelled"`
}

// EventType returns the event type for QueueRerankedData
func (d *QueueRerankedData) EventType() EventType {
	return QueueReranked
}

// RerankFailedData contains data for RerankFailed events
type RerankFailedData struct {
	Error string `json:"error"`
}

// EventType returns the event type for RerankFailedData
func (d *RerankFailedData) EventType() EventType {
	return RerankFailed
}

// SnapshotArchivedData contains data for SnapshotArchived events
type SnapshotArchivedData struct {
	SnapshotID string `json:"snapshot_id"`
	Location   string `json:"location"`
	SizeBytes  int    `json:"size_bytes"`
}

// EventType returns the event type for SnapshotArchivedData
func (d *SnapshotArchivedData) EventType() EventType {
	return SnapshotArchived
}
