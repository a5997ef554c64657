package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aretw0/branchpoll/pkg/domain"
)

type counterKey struct {
	pollID   int64
	question int
	answer   string
}

// TallyStore implements ports.TallyStore in memory.
// The map lock is only held to find or create a counter; the increment itself
// is atomic, so votes on different counters never contend.
type TallyStore struct {
	mu       sync.RWMutex
	counters map[counterKey]*atomic.Int64
}

// NewTallyStore creates an empty tally store.
func NewTallyStore() *TallyStore {
	return &TallyStore{counters: make(map[counterKey]*atomic.Int64)}
}

func (s *TallyStore) counter(key counterKey) *atomic.Int64 {
	s.mu.RLock()
	c, ok := s.counters[key]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.counters[key]; !ok {
		c = new(atomic.Int64)
		s.counters[key] = c
	}
	return c
}

// Increment adds one vote.
func (s *TallyStore) Increment(ctx context.Context, pollID int64, question int, answer string) (int64, error) {
	return s.counter(counterKey{pollID, question, answer}).Add(1), nil
}

// Counts returns a snapshot of a poll's counters.
func (s *TallyStore) Counts(ctx context.Context, pollID int64) (domain.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := domain.Counts{}
	for key, c := range s.counters {
		if key.pollID != pollID {
			continue
		}
		if counts[key.question] == nil {
			counts[key.question] = make(map[string]int64)
		}
		counts[key.question][key.answer] = c.Load()
	}
	return counts, nil
}

// DeletePoll removes every counter of a poll.
func (s *TallyStore) DeletePoll(ctx context.Context, pollID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.counters {
		if key.pollID == pollID {
			delete(s.counters, key)
		}
	}
	return nil
}

// Restore seeds counters from a snapshot. Existing counters of the poll are replaced.
func (s *TallyStore) Restore(pollID int64, counts domain.Counts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.counters {
		if key.pollID == pollID {
			delete(s.counters, key)
		}
	}
	for q, answers := range counts {
		for text, n := range answers {
			c := new(atomic.Int64)
			c.Store(n)
			s.counters[counterKey{pollID, q, text}] = c
		}
	}
}

// Polls returns the ids of polls that have at least one counter.
func (s *TallyStore) Polls() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]bool)
	var ids []int64
	for key := range s.counters {
		if !seen[key.pollID] {
			seen[key.pollID] = true
			ids = append(ids, key.pollID)
		}
	}
	return ids
}
