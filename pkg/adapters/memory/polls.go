package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/branchpoll/pkg/domain"
)

// PollStore implements ports.PollStore in memory.
// Safe for concurrent use.
type PollStore struct {
	mu      sync.RWMutex
	counter int64
	polls   map[int64]*domain.Poll
	owners  map[int64][]int64
}

// NewPollStore creates an empty poll store whose first id is 1.
func NewPollStore() *PollStore {
	return &PollStore{
		polls:  make(map[int64]*domain.Poll),
		owners: make(map[int64][]int64),
	}
}

// Create assigns the next id and stores a copy of the poll.
func (s *PollStore) Create(ctx context.Context, poll *domain.Poll) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	poll.ID = s.counter
	s.polls[poll.ID] = poll.Clone()
	s.owners[poll.OwnerID] = append(s.owners[poll.OwnerID], poll.ID)
	return poll.ID, nil
}

// Get returns a copy of the poll.
func (s *PollStore) Get(ctx context.Context, id int64) (*domain.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	poll, ok := s.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return poll.Clone(), nil
}

// Delete removes the poll and its owner index entry.
func (s *PollStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[id]
	if !ok {
		return domain.ErrPollNotFound
	}
	delete(s.polls, id)

	ids := s.owners[poll.OwnerID]
	for i, pid := range ids {
		if pid == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.owners, poll.OwnerID)
	} else {
		s.owners[poll.OwnerID] = ids
	}
	return nil
}

// ListByOwner returns copies of the owner's polls in ascending id order.
func (s *PollStore) ListByOwner(ctx context.Context, ownerID int64) ([]*domain.Poll, error) {
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
