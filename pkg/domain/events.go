package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventPollCreated    EventType = "poll_created"
	EventPollDeleted    EventType = "poll_deleted"
	EventSessionStart   EventType = "session_start"
	EventAnswer         EventType = "answer"
	EventSessionFinish  EventType = "session_finish"
	EventCompileFailure EventType = "compile_failure"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	PollID    int64     `json:"poll_id"`
}

// PollEvent is emitted on poll lifecycle changes and compile failures.
type PollEvent struct {
	EventBase
	OwnerID   int64     `json:"owner_id"`
	Questions int       `json:"questions,omitempty"`
	Kind      ErrorKind `json:"kind,omitempty"`
}

// SessionEvent is emitted when a respondent starts, answers or finishes.
type SessionEvent struct {
	EventBase
	RespondentID string `json:"respondent_id"`
	Question     int    `json:"question"`
	Answer       string `json:"answer,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnPollCreated    func(context.Context, *PollEvent)
	OnPollDeleted    func(context.Context, *PollEvent)
	OnCompileFailure func(context.Context, *PollEvent)
	OnSessionStart   func(context.Context, *SessionEvent)
	OnAnswer         func(context.Context, *SessionEvent)
	OnSessionFinish  func(context.Context, *SessionEvent)
}
