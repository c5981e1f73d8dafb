package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Member events
	EventMemberEnrolled      EventType = "member.enrolled"
	EventMemberStatusChanged EventType = "member.status_changed"

	// History events
	EventAttendanceRecorded EventType = "history.attendance_recorded"
	EventExamRegistered     EventType = "history.exam_registered"
	EventGradePromoted      EventType = "history.grade_promoted"

	// System events
	EventRosterScanned EventType = "system.roster_scanned"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the member (or other aggregate) the event
	// is about.
	AggregateID() string

	// Payload returns the event data as a map for logging and transport.
	Payload() map[string]any
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Aggregate     string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.Aggregate
}

// NewBaseEvent creates a new base event stamped at.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Timestamp: at,
		Aggregate: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Member Events
// ═══════════════════════════════════════════════════════════════════════════

// MemberEnrolledEvent is emitted when a member joins the dojo.
type MemberEnrolledEvent struct {
	BaseEvent
	Category   string    `json:"category"`
	EntryGrade string    `json:"entry_grade"`
	JoinDate   time.Time `json:"join_date"`
}

// Payload implements Event interface.
func (e MemberEnrolledEvent) Payload() map[string]any {
	return map[string]any{
		"category":    e.Category,
		"entry_grade": e.EntryGrade,
		"join_date":   e.JoinDate.Format(time.DateOnly),
	}
}

// MemberStatusChangedEvent is emitted when a member is paused or resumed.
type MemberStatusChangedEvent struct {
	BaseEvent
	Active bool `json:"active"`
}

// Payload implements Event interface.
func (e MemberStatusChangedEvent) Payload() map[string]any {
	return map[string]any{"active": e.Active}
}

// ═══════════════════════════════════════════════════════════════════════════
// History Events
// ═══════════════════════════════════════════════════════════════════════════

// AttendanceRecordedEvent is emitted when a session is added to the ledger.
type AttendanceRecordedEvent struct {
	BaseEvent
	RecordID    string    `json:"record_id"`
	SessionDate time.Time `json:"session_date"`
	SessionKind string    `json:"session_kind"`
	Present     bool      `json:"present"`
}

// Payload implements Event interface.
func (e AttendanceRecordedEvent) Payload() map[string]any {
	return map[string]any{
		"record_id":    e.RecordID,
		"session_date": e.SessionDate.Format(time.DateOnly),
		"session_kind": e.SessionKind,
		"present":      e.Present,
	}
}

// ExamRegisteredEvent is emitted for every exam outcome, passed or failed.
type ExamRegisteredEvent struct {
	BaseEvent
	ExamID    string    `json:"exam_id"`
	ExamDate  time.Time `json:"exam_date"`
	FromGrade string    `json:"from_grade"`
	ToGrade   string    `json:"to_grade"`
	Result    string    `json:"result"`
}

// Payload implements Event interface.
func (e ExamRegisteredEvent) Payload() map[string]any {
	return map[string]any{
		"exam_id":    e.ExamID,
		"exam_date":  e.ExamDate.Format(time.DateOnly),
		"from_grade": e.FromGrade,
		"to_grade":   e.ToGrade,
		"result":     e.Result,
	}
}

// GradePromotedEvent is emitted after a passed exam moved the member up.
type GradePromotedEvent struct {
	BaseEvent
	FromGrade string `json:"from_grade"`
	ToGrade   string `json:"to_grade"`
}

// Payload implements Event interface.
func (e GradePromotedEvent) Payload() map[string]any {
	return map[string]any{
		"from_grade": e.FromGrade,
		"to_grade":   e.ToGrade,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// RosterScannedEvent summarises a roster scan.
type RosterScannedEvent struct {
	BaseEvent
	Ready       int `json:"ready"`
	Overdue     int `json:"overdue"`
	InProgress  int `json:"in_progress"`
	MaxGrade    int `json:"max_grade"`
	Diagnostics int `json:"diagnostics"`
}

// Payload implements Event interface.
func (e RosterScannedEvent) Payload() map[string]any {
	return map[string]any{
		"ready":       e.Ready,
		"overdue":     e.Overdue,
		"in_progress": e.InProgress,
		"max_grade":   e.MaxGrade,
		"diagnostics": e.Diagnostics,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// InlineSubscriber registers handlers that finish before Publish returns,
// whatever delivery mode the bus uses for other handlers.
type InlineSubscriber interface {
	SubscribeInline(eventType EventType, handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
