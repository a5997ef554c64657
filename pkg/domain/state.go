package domain

import (
	"strconv"
	"time"
)

// SessionStatus is the position of a respondent in the poll state machine.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusAtQuestion SessionStatus = "at_question"
	StatusTerminated SessionStatus = "terminated"
)

// SessionKey identifies one respondent's traversal of one poll.
type SessionKey struct {
	PollID       int64  `json:"poll_id"`
	RespondentID string `json:"respondent_id"`
}

// String renders the key as "<poll>:<respondent>", the form used by stores and locks.
func (k SessionKey) String() string {
	return strconv.FormatInt(k.PollID, 10) + ":" + k.RespondentID
}

// Step is one accepted answer.
type Step struct {
	Question int    `json:"question"`
	Answer   string `json:"answer"`
}

// SessionState is the cursor of one respondent through one poll.
type SessionState struct {
	SessionKey

	Status SessionStatus `json:"status"`

	// Current is the question being asked. Only meaningful when Status is StatusAtQuestion.
	Current int `json:"current"`

	// History is append-only within a session; a restart replaces it.
	History []Step `json:"history"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSessionState creates a session positioned at the entry question.
func NewSessionState(key SessionKey, entry int) *SessionState {
	now := time.Now().UTC()
	return &SessionState{
		SessionKey: key,
		Status:     StatusAtQuestion,
		Current:    entry,
		History:    []Step{},
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Terminated reports whether the respondent has finished the poll.
func (s *SessionState) Terminated() bool {
	return s.Status == StatusTerminated
}

// Clone returns a deep copy, so callers never share the history slice with a store.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	next := *s
	next.History = make([]Step, len(s.History))
	copy(next.History, s.History)
	return &next
}

// Prompt is what the host must present next: a question with its ordered
// options, or the end of the poll.
type Prompt struct {
	Done     bool     `json:"done"`
	Question int      `json:"question"`
	Text     string   `json:"text,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// PromptFor builds the prompt for the given state.
func PromptFor(g *PollGraph, s *SessionState) (Prompt, error) {
	if s.Status != StatusAtQuestion {
		return Prompt{Done: true, Question: -1}, nil
	}
	q, err := g.QuestionAt(s.Current)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{
		Question: s.Current,
		Text:     q.Text,
		Options:  q.AnswerTexts(),
	}, nil
}
