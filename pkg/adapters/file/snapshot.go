package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/branchpoll/internal/logging"
	"github.com/aretw0/branchpoll/pkg/adapters/memory"
	"github.com/aretw0/branchpoll/pkg/domain"
)

// DefaultSnapshotName is the file name used when only a directory is configured.
const DefaultSnapshotName = "poll_data.json"

// Snapshot is the on-disk layout. Integer map keys are encoded as JSON
// strings and decoded back into integers.
type Snapshot struct {
	Polls         map[int64]*domain.Poll  `json:"polls"`
	AdminPolls    map[int64][]int64       `json:"admin_polls"`
	PollResults   map[int64]domain.Counts `json:"poll_results"`
	PollIDCounter int64                   `json:"poll_id_counter"`
}

// Store implements ports.PollStore and ports.TallyStore over a single JSON
// snapshot. State lives in memory; poll changes are written through, vote
// increments mark the store dirty and are flushed periodically and on Close.
type Store struct {
	path     string
	interval time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	counter int64
	polls   map[int64]*domain.Poll
	owners  map[int64][]int64

	tallies *memory.TallyStore
	dirty   atomic.Bool
	writeMu sync.Mutex

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures the Store.
type Option func(*Store)

// WithFlushInterval sets how often pending vote increments are written.
// Zero disables the background flush; Flush and Close still write.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Store) {
		s.interval = d
	}
}

// WithLogger configures a logger for flush failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open loads the snapshot at path, or starts empty if the file does not exist.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:     path,
		interval: 5 * time.Second,
		logger:   logging.NewNop(),
		polls:    make(map[int64]*domain.Poll),
		owners:   make(map[int64][]int64),
		tallies:  memory.NewTallyStore(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	if s.interval > 0 {
		go s.flushLoop()
	} else {
		close(s.done)
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot %s: %w", s.path, err)
	}

	for id, p := range snap.Polls {
		if p == nil {
			continue
		}
		if err := p.Graph().Validate(); err != nil {
			return fmt.Errorf("poll %d in snapshot: %w", id, err)
		}
		p.ID = id
		s.polls[id] = p
	}
	for owner, ids := range snap.AdminPolls {
		s.owners[owner] = append([]int64(nil), ids...)
	}
	for id, counts := range snap.PollResults {
		s.tallies.Restore(id, counts)
	}
	s.counter = snap.PollIDCounter
	for id := range s.polls {
		if id > s.counter {
			s.counter = id
		}
	}
	return nil
}

// Create assigns the next id, stores the poll and writes the snapshot.
func (s *Store) Create(ctx context.Context, poll *domain.Poll) (int64, error) {
	s.mu.Lock()
	s.counter++
	poll.ID = s.counter
	s.polls[poll.ID] = poll.Clone()
	s.owners[poll.OwnerID] = append(s.owners[poll.OwnerID], poll.ID)
	s.mu.Unlock()

	s.persist()
	return poll.ID, nil
}

// Get returns a copy of the poll.
func (s *Store) Get(ctx context.Context, id int64) (*domain.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return p.Clone(), nil
}

// Delete removes the poll, its owner entry and its tallies, then writes the snapshot.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	p, ok := s.polls[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrPollNotFound
	}
	delete(s.polls, id)
	s.owners[p.OwnerID] = removeID(s.owners[p.OwnerID], id)
	if len(s.owners[p.OwnerID]) == 0 {
		delete(s.owners, p.OwnerID)
	}
	s.mu.Unlock()

	_ = s.tallies.DeletePoll(ctx, id)
	s.persist()
	return nil
}

// ListByOwner returns copies of the owner's polls in ascending id order.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]*domain.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Poll, 0, len(s.owners[ownerID]))
	for _, id := range s.owners[ownerID] {
		if p, ok := s.polls[id]; ok {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Increment adds one vote in memory and schedules a flush.
func (s *Store) Increment(ctx context.Context, pollID int64, question int, answer string) (int64, error) {
	n, err := s.tallies.Increment(ctx, pollID, question, answer)
	if err != nil {
		return 0, err
	}
	s.dirty.Store(true)
	return n, nil
}

// Counts returns the in-memory counters of a poll.
func (s *Store) Counts(ctx context.Context, pollID int64) (domain.Counts, error) {
	return s.tallies.Counts(ctx, pollID)
}

// DeletePoll removes the counters of a poll.
func (s *Store) DeletePoll(ctx context.Context, pollID int64) error {
	if err := s.tallies.DeletePoll(ctx, pollID); err != nil {
		return err
	}
	s.dirty.Store(true)
	return nil
}

// Snapshot returns the current state in its on-disk layout.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Polls:       make(map[int64]*domain.Poll),
		AdminPolls:  make(map[int64][]int64),
		PollResults: make(map[int64]domain.Counts),
	}

	s.mu.RLock()
	snap.PollIDCounter = s.counter
	for id, p := range s.polls {
		snap.Polls[id] = p.Clone()
	}
	for owner, ids := range s.owners {
		snap.AdminPolls[owner] = append([]int64(nil), ids...)
	}
	s.mu.RUnlock()

	for _, id := range s.tallies.Polls() {
		counts, err := s.tallies.Counts(ctx, id)
		if err != nil {
			return nil, err
		}
		snap.PollResults[id] = counts
	}
	return snap, nil
}

// Flush writes the snapshot now.
func (s *Store) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.dirty.Store(false)
	snap, err := s.Snapshot(ctx)
	if err != nil {
		s.dirty.Store(true)
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.dirty.Store(true)
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		s.dirty.Store(true)
		return err
	}
	return nil
}

// Close stops the background flush and writes a final snapshot.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		err = s.Flush(context.Background())
	})
	return err
}

// persist writes through after a poll change. Failures keep the store dirty
// so the next flush retries.
func (s *Store) persist() {
	if err := s.Flush(context.Background()); err != nil {
		s.logger.Warn("failed to write poll snapshot", "path", s.path, "err", err)
	}
}

func (s *Store) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.dirty.Load() {
				continue
			}
			if err := s.Flush(context.Background()); err != nil {
				s.logger.Warn("failed to flush tallies", "path", s.path, "err", err)
			}
		}
	}
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
