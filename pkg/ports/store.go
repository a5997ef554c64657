package ports

import (
	"context"

	"github.com/aretw0/branchpoll/pkg/domain"
)

// PollStore persists compiled polls.
type PollStore interface {
	// Create assigns the next id from a counter starting at 1, sets poll.ID
	// and stores the poll under its owner.
	Create(ctx context.Context, poll *domain.Poll) (int64, error)

	// Get returns domain.ErrPollNotFound if the poll does not exist.
	Get(ctx context.Context, id int64) (*domain.Poll, error)

	// Delete removes the poll and its owner index entry.
	// Returns domain.ErrPollNotFound if the poll does not exist.
	Delete(ctx context.Context, id int64) error

	// ListByOwner returns the owner's polls in ascending id order.
	ListByOwner(ctx context.Context, ownerID int64) ([]*domain.Poll, error)
}

// TallyStore holds vote counters. Increments of different counters must be
// able to proceed in parallel; increments of the same counter must not be lost.
type TallyStore interface {
	// Increment adds one vote and returns the new count. A new triple starts at 1.
	Increment(ctx context.Context, pollID int64, question int, answer string) (int64, error)

	// Counts returns every counter of a poll. Unknown polls yield empty Counts.
	Counts(ctx context.Context, pollID int64) (domain.Counts, error)

	// DeletePoll removes every counter of a poll.
	DeletePoll(ctx context.Context, pollID int64) error
}

// SessionStore persists respondent cursors.
// This allows sessions to resume after a process restart.
type SessionStore interface {
	// Save persists the state under its own key.
	Save(ctx context.Context, state *domain.SessionState) error

	// Load retrieves the state for a key.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, key domain.SessionKey) (*domain.SessionState, error)

	// Delete removes the state for a key.
	Delete(ctx context.Context, key domain.SessionKey) error

	// DeletePoll removes every session of a poll.
	DeletePoll(ctx context.Context, pollID int64) error
}
