package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/branchpoll/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// TallyStore implements ports.TallyStore with one hash per poll.
// Fields are "<question>:<answer>"; the question is always numeric, so the
// first colon separates the two.
type TallyStore struct {
	client *backend.Client
	settings
}

// NewTallyStore creates a tally store from an existing client.
func NewTallyStore(client *backend.Client, opts ...Option) *TallyStore {
	return &TallyStore{client: client, settings: newSettings(opts)}
}

func (s *TallyStore) key(pollID int64) string {
	return s.prefix + "tally:" + strconv.FormatInt(pollID, 10)
}

func field(question int, answer string) string {
	return strconv.Itoa(question) + ":" + answer
}

// Increment adds one vote with HINCRBY.
func (s *TallyStore) Increment(ctx context.Context, pollID int64, question int, answer string) (int64, error) {
	n, err := s.client.HIncrBy(ctx, s.key(pollID), field(question, answer), 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment tally: %w", err)
	}
	return n, nil
}

// Counts reads the whole hash of a poll.
func (s *TallyStore) Counts(ctx context.Context, pollID int64) (domain.Counts, error) {
	raw, err := s.client.HGetAll(ctx, s.key(pollID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tallies: %w", err)
	}

	counts := domain.Counts{}
	for f, v := range raw {
		qs, answer, ok := strings.Cut(f, ":")
		if !ok {
			return nil, fmt.Errorf("malformed tally field %q", f)
		}
		q, err := strconv.Atoi(qs)
		if err != nil {
			return nil, fmt.Errorf("malformed tally field %q: %w", f, err)
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed tally value %q: %w", v, err)
		}
		if counts[q] == nil {
			counts[q] = make(map[string]int64)
		}
		counts[q][answer] = n
	}
	return counts, nil
}

// DeletePoll removes the poll's hash.
func (s *TallyStore) DeletePoll(ctx context.Context, pollID int64) error {
	return s.client.Del(ctx, s.key(pollID)).Err()
}
