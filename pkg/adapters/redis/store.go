package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/branchpoll/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// farFuture is the index score of sessions without TTL.
const farFuture = 4102444800 // 2100-01-01

// SessionStore implements ports.SessionStore using Redis.
// Each session is a JSON string; a per-poll ZSET indexes respondents so a
// poll's sessions can be removed together.
type SessionStore struct {
	client *backend.Client
	settings
}

// NewSessionStore creates a session store from an existing client.
func NewSessionStore(client *backend.Client, opts ...Option) *SessionStore {
	return &SessionStore{client: client, settings: newSettings(opts)}
}

func (s *SessionStore) key(k domain.SessionKey) string {
	return s.prefix + "session:" + k.String()
}

func (s *SessionStore) indexKey(pollID int64) string {
	return s.prefix + "sessions:" + strconv.FormatInt(pollID, 10)
}

// Save persists the state to Redis.
func (s *SessionStore) Save(ctx context.Context, state *domain.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Score = Now + TTL, so expired members can be pruned from the index.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(state.SessionKey), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(state.PollID), backend.Z{Score: score, Member: state.RespondentID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the state from Redis.
func (s *SessionStore) Load(ctx context.Context, key domain.SessionKey) (*domain.SessionState, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &state, nil
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, key domain.SessionKey) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(key))
	pipe.ZRem(ctx, s.indexKey(key.PollID), key.RespondentID)
	_, err := pipe.Exec(ctx)
	return err
}

// DeletePoll removes every session of a poll.
func (s *SessionStore) DeletePoll(ctx context.Context, pollID int64) error {
	respondents, err := s.Respondents(ctx, pollID)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(respondents)+1)
	for _, r := range respondents {
		keys = append(keys, s.key(domain.SessionKey{PollID: pollID, RespondentID: r}))
	}
	keys = append(keys, s.indexKey(pollID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete poll sessions: %w", err)
	}
	return nil
}

// Respondents lists the respondents with a live session on the poll.
// Expired index members are pruned lazily.
func (s *SessionStore) Respondents(ctx context.Context, pollID int64) ([]string, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(pollID), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}
	members, err := s.client.ZRange(ctx, s.indexKey(pollID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return members, nil
}
