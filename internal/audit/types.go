package audit

import "time"

// EventType represents the type of audit event
type EventType string

const (
	// Analysis events
	EventAnalysisStarted   EventType = "analysis.started"
	EventAnalysisCompleted EventType = "analysis.completed"
	EventAnalysisFailed    EventType = "analysis.failed"

	// Data events
	EventDatasetLoaded EventType = "data.dataset_loaded"
	EventSeedCompleted EventType = "data.seed_completed"

	// Configuration events
	EventConfigLoaded  EventType = "config.loaded"
	EventConfigChanged EventType = "config.changed"

	// System events
	EventServerStarted  EventType = "system.server_started"
	EventServerShutdown EventType = "system.server_shutdown"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultPending Result = "pending"
)

// Event represents a single audit event
type Event struct {
	// Core fields
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	EventType     EventType `json:"event_type"`
	Result        Result    `json:"result"`

	// Actor information
	Trigger  string `json:"trigger,omitempty"`
	SourceIP string `json:"source_ip,omitempty"`

	// Subject of the event, e.g. an analysis run
	Resource     string `json:"resource,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`

	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	// Error information
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	DurationMs int64 `json:"duration_ms,omitempty"`
}

// NewEvent creates a new audit event with default values
func NewEvent(eventType EventType) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Result:    ResultPending,
		Metadata:  make(map[string]interface{}),
	}
}

// WithCorrelationID sets the correlation ID for event tracking
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithTrigger records what started the audited operation (api, schedule, cli).
func (e *Event) WithTrigger(trigger string) *Event {
	e.Trigger = trigger
	return e
}

// WithSourceIP records the client address of an API-triggered operation.
func (e *Event) WithSourceIP(ip string) *Event {
	e.SourceIP = ip
	return e
}

// WithResource sets the resource being acted upon
func (e *Event) WithResource(resource, resourceType string) *Event {
	e.Resource = resource
	e.ResourceType = resourceType
	return e
}

// WithDescription sets a human-readable description
func (e *Event) WithDescription(desc string) *Event {
	e.Description = desc
	return e
}

// WithResult sets the result of the event
func (e *Event) WithResult(result Result) *Event {
	e.Result = result
	return e
}

// WithError sets error information
func (e *Event) WithError(err error, code string) *Event {
	if err != nil {
		e.Error = err.Error()
		e.ErrorCode = code
		e.Result = ResultFailure
	}
	return e
}

// WithDuration sets the duration in milliseconds
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.DurationMs = duration.Milliseconds()
	return e
}

// WithMetadata adds metadata to the event
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	e.Metadata[key] = value
	return e
}
