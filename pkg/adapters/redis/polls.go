package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/branchpoll/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// PollStore implements ports.PollStore using Redis.
// Ids come from INCR on a counter key, so they start at 1 and are unique
// across replicas. Each owner has a ZSET of poll ids scored by id.
type PollStore struct {
	client *backend.Client
	settings
}

// NewPollStore creates a poll store from an existing client.
func NewPollStore(client *backend.Client, opts ...Option) *PollStore {
	return &PollStore{client: client, settings: newSettings(opts)}
}

func (s *PollStore) counterKey() string {
	return s.prefix + "poll_id_counter"
}

func (s *PollStore) key(id int64) string {
	return s.prefix + "poll:" + strconv.FormatInt(id, 10)
}

func (s *PollStore) ownerKey(ownerID int64) string {
	return s.prefix + "owner:" + strconv.FormatInt(ownerID, 10)
}

// Create assigns the next id and stores the poll.
func (s *PollStore) Create(ctx context.Context, poll *domain.Poll) (int64, error) {
	id, err := s.client.Incr(ctx, s.counterKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate poll id: %w", err)
	}
	poll.ID = id

	data, err := json.Marshal(poll)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal poll: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(id), data, 0)
	pipe.ZAdd(ctx, s.ownerKey(poll.OwnerID), backend.Z{Score: float64(id), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to save poll: %w", err)
	}
	return id, nil
}

// Get loads one poll.
func (s *PollStore) Get(ctx context.Context, id int64) (*domain.Poll, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return decodePoll(val)
}

// Delete removes the poll and its owner index entry.
func (s *PollStore) Delete(ctx context.Context, id int64) error {
	poll, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.ownerKey(poll.OwnerID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's polls in ascending id order.
func (s *PollStore) ListByOwner(ctx context.Context, ownerID int64) ([]*domain.Poll, error) {
	ids, err := s.client.ZRange(ctx, s.ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Poll{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + "poll:" + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load polls: %w", err)
	}

	polls := make([]*domain.Poll, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // deleted between ZRANGE and MGET
		}
		p, err := decodePoll([]byte(str))
		if err != nil {
			return nil, err
		}
		polls = append(polls, p)
	}
	return polls, nil
}

func decodePoll(data []byte) (*domain.Poll, error) {
	var p domain.Poll
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal poll: %w", err)
	}
	if err := p.Graph().Validate(); err != nil {
		return nil, fmt.Errorf("poll %d: %w", p.ID, err)
	}
	return &p, nil
}
