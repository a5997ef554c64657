package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/branchpoll/internal/logging"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/aretw0/branchpoll/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock may be held.
const DefaultLockTTL = 30 * time.Second

// Recorder receives every accepted answer before the new state is committed.
type Recorder interface {
	Record(ctx context.Context, pollID int64, question int, answer string) error
}

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// persistOp is one unit of write-behind work. Exactly one field is set.
type persistOp struct {
	save       *domain.SessionState
	deletePoll *int64
	barrier    chan struct{}
}

// Tracker owns the cursors of all respondents.
// Mutations of one (poll, respondent) key are serialized; different keys
// proceed in parallel. The in-memory map is authoritative and the store is
// written behind by a single worker goroutine.
// It uses Reference Counting to garbage collect unused locks.
type Tracker struct {
	store    ports.SessionStore
	recorder Recorder

	mu    sync.Mutex            // Global lock for the lock map
	locks map[string]*lockEntry // Map of active locks

	statesMu sync.RWMutex
	states   map[domain.SessionKey]*domain.SessionState

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger

	queue     chan persistOp
	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(t *Tracker) {
		t.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		if ttl > 0 {
			t.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Tracker.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithRecorder sets where accepted answers are tallied.
func WithRecorder(r Recorder) Option {
	return func(t *Tracker) {
		t.recorder = r
	}
}

// WithQueueSize sets the capacity of the write-behind queue.
func WithQueueSize(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.queue = make(chan persistOp, n)
		}
	}
}

// NewTracker creates a tracker persisting to store and starts its worker.
// Close must be called to flush pending writes.
func NewTracker(store ports.SessionStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		locks:   make(map[string]*lockEntry),
		states:  make(map[domain.SessionKey]*domain.SessionState),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
		queue:   make(chan persistOp, 1024),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.run()
	return t
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (t *Tracker) acquire(key string) *lockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.locks[key]
	if !exists {
		entry = &lockEntry{}
		t.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (t *Tracker) release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(t.locks, key)
	}
}

// WithLock executes a function while holding the lock for the session key.
func (t *Tracker) WithLock(ctx context.Context, key domain.SessionKey, fn func(context.Context) error) error {
	id := key.String()
	entry := t.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		t.release(id)
	}()

	if t.locker != nil {
		unlock, err := t.locker.Lock(ctx, "session:"+id, t.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				t.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Start creates or restarts the session of respondentID on the poll.
// A restart overwrites the previous cursor; tallies already recorded stay.
func (t *Tracker) Start(ctx context.Context, g *domain.PollGraph, key domain.SessionKey) (*domain.SessionState, error) {
	var out *domain.SessionState
	err := t.WithLock(ctx, key, func(ctx context.Context) error {
		state, err := Start(g, key.PollID, key.RespondentID)
		if err != nil {
			return err
		}
		t.commit(ctx, state)
		out = state.Clone()
		return nil
	})
	return out, err
}

// Submit applies one answer to the respondent's cursor. On any error the
// cursor and the tallies are unchanged.
func (t *Tracker) Submit(ctx context.Context, g *domain.PollGraph, key domain.SessionKey, answer string) (*domain.SessionState, error) {
	var out *domain.SessionState
	err := t.WithLock(ctx, key, func(ctx context.Context) error {
		current, err := t.lookup(ctx, key)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return err
		}

		next, err := Advance(g, current, answer)
		if err != nil {
			return err
		}

		if t.recorder != nil {
			step := next.History[len(next.History)-1]
			if err := t.recorder.Record(ctx, key.PollID, step.Question, step.Answer); err != nil {
				return err
			}
		}

		t.commit(ctx, next)
		out = next.Clone()
		return nil
	})
	return out, err
}

// Get returns a copy of the respondent's cursor, or domain.ErrSessionNotFound.
func (t *Tracker) Get(ctx context.Context, key domain.SessionKey) (*domain.SessionState, error) {
	var out *domain.SessionState
	err := t.WithLock(ctx, key, func(ctx context.Context) error {
		state, err := t.lookup(ctx, key)
		if err != nil {
			return err
		}
		out = state.Clone()
		return nil
	})
	return out, err
}

// ForgetPoll drops every cursor of a poll, in memory and, in order after any
// pending writes, in the store.
func (t *Tracker) ForgetPoll(ctx context.Context, pollID int64) {
	t.statesMu.Lock()
	for key := range t.states {
		if key.PollID == pollID {
			delete(t.states, key)
		}
	}
	t.statesMu.Unlock()

	t.enqueue(ctx, persistOp{deletePoll: &pollID})
}

// Flush blocks until every write queued before the call has reached the store.
func (t *Tracker) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if !t.enqueue(ctx, persistOp{barrier: barrier}) {
		return ctx.Err()
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the write-behind queue and stops the worker.
// Mutations after Close are persisted synchronously.
func (t *Tracker) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		t.closeMu.Lock()
		t.closed = true
		close(t.queue)
		t.closeMu.Unlock()
	})
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lookup returns the authoritative in-memory state, falling back to the store
// for keys this process has not seen yet. The caller holds the key lock.
func (t *Tracker) lookup(ctx context.Context, key domain.SessionKey) (*domain.SessionState, error) {
	t.statesMu.RLock()
	state, ok := t.states[key]
	t.statesMu.RUnlock()
	if ok {
		return state, nil
	}

	state, err := t.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	t.statesMu.Lock()
	t.states[key] = state
	t.statesMu.Unlock()
	return state, nil
}

func (t *Tracker) commit(ctx context.Context, state *domain.SessionState) {
	t.statesMu.Lock()
	t.states[state.SessionKey] = state
	t.statesMu.Unlock()

	t.enqueue(ctx, persistOp{save: state.Clone()})
}

// enqueue hands op to the worker. Once closed, the op runs inline and false is returned.
// Saves and poll deletions are already committed in memory, so they are queued
// even when ctx is done; only a Flush barrier gives up on ctx.
func (t *Tracker) enqueue(ctx context.Context, op persistOp) bool {
	t.closeMu.RLock()
	defer t.closeMu.RUnlock()

	if t.closed {
		t.apply(op)
		return false
	}
	if op.barrier == nil {
		t.queue <- op
		return true
	}
	select {
	case t.queue <- op:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *Tracker) run() {
	defer close(t.done)
	for op := range t.queue {
		t.apply(op)
	}
}

// apply performs one op against the store. Failures are logged; memory stays authoritative.
func (t *Tracker) apply(op persistOp) {
	ctx := context.Background()
	switch {
	case op.save != nil:
		if err := t.store.Save(ctx, op.save); err != nil {
			t.logger.Warn("failed to persist session", "session", op.save.SessionKey.String(), "err", err)
		}
	case op.deletePoll != nil:
		if err := t.store.DeletePoll(ctx, *op.deletePoll); err != nil {
			t.logger.Warn("failed to delete poll sessions", "poll_id", *op.deletePoll, "err", err)
		}
	case op.barrier != nil:
		close(op.barrier)
	}
}

// activeLocks is used by tests to detect leaked lock entries.
func (t *Tracker) activeLocks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
