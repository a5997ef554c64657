package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/branchpoll/pkg/adapters/memory"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/aretw0/branchpoll/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graph() *domain.PollGraph {
	return &domain.PollGraph{Questions: []domain.Question{
		{Text: "Root?", Answers: []domain.Answer{
			{Text: "Yes", NextQuestion: domain.Next(1)},
			{Text: "No"},
		}},
		{Text: "Sub?", Level: 1, Answers: []domain.Answer{
			{Text: "LeafA"},
			{Text: "LeafB"},
		}},
	}}
}

// countingRecorder tallies in memory, with an optional delay to widen race windows.
type countingRecorder struct {
	mu     sync.Mutex
	counts domain.Counts
	delay  time.Duration
	fail   error
}

func (r *countingRecorder) Record(ctx context.Context, pollID int64, q int, answer string) error {
	if r.fail != nil {
		return r.fail
	}
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = domain.Counts{}
	}
	if r.counts[q] == nil {
		r.counts[q] = map[string]int64{}
	}
	r.counts[q][answer]++
	return nil
}

func TestTracker_Scenario(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	rec := &countingRecorder{}
	tr := NewTracker(store, WithRecorder(rec))
	key := domain.SessionKey{PollID: 1, RespondentID: "alice"}
	g := graph()

	s, err := tr.Start(ctx, g, key)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Current)

	s, err = tr.Submit(ctx, g, key, "Yes")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Current)

	s, err = tr.Submit(ctx, g, key, "LeafA")
	require.NoError(t, err)
	assert.True(t, s.Terminated())

	assert.EqualValues(t, 1, rec.counts.Get(0, "Yes"))
	assert.EqualValues(t, 1, rec.counts.Get(1, "LeafA"))

	require.NoError(t, tr.Close(ctx))
	persisted, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, persisted.Terminated())
	assert.Len(t, persisted.History, 2)
}

func TestTracker_SubmitErrorsLeaveStateAndTallies(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{}
	tr := NewTracker(memory.NewSessionStore(), WithRecorder(rec))
	defer tr.Close(ctx)
	key := domain.SessionKey{PollID: 1, RespondentID: "bob"}
	g := graph()

	_, err := tr.Submit(ctx, g, key, "Yes")
	assert.ErrorIs(t, err, domain.ErrSessionNotStarted)

	_, err = tr.Start(ctx, g, key)
	require.NoError(t, err)

	_, err = tr.Submit(ctx, g, key, "Maybe")
	assert.ErrorIs(t, err, domain.ErrUnknownAnswer)

	s, err := tr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Current)
	assert.Empty(t, s.History)
	assert.Empty(t, rec.counts)

	_, err = tr.Submit(ctx, g, key, "No")
	require.NoError(t, err)
	_, err = tr.Submit(ctx, g, key, "No")
	assert.ErrorIs(t, err, domain.ErrSessionTerminated)
	assert.EqualValues(t, 1, rec.counts.Get(0, "No"))
}

func TestTracker_RecorderFailureDoesNotCommit(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("tally down")
	rec := &countingRecorder{fail: boom}
	tr := NewTracker(memory.NewSessionStore(), WithRecorder(rec))
	defer tr.Close(ctx)
	key := domain.SessionKey{PollID: 1, RespondentID: "dave"}

	_, err := tr.Start(ctx, graph(), key)
	require.NoError(t, err)
	_, err = tr.Submit(ctx, graph(), key, "Yes")
	assert.ErrorIs(t, err, boom)

	s, err := tr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Current)
}

func TestTracker_RestartOverwrites(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(memory.NewSessionStore())
	defer tr.Close(ctx)
	key := domain.SessionKey{PollID: 1, RespondentID: "erin"}

	_, _ = tr.Start(ctx, graph(), key)
	_, _ = tr.Submit(ctx, graph(), key, "No")

	s, err := tr.Start(ctx, graph(), key)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAtQuestion, s.Status)
	assert.Empty(t, s.History)
}

func TestTracker_ConcurrentSubmitsSameKey(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{delay: time.Millisecond}
	tr := NewTracker(memory.NewSessionStore(), WithRecorder(rec))
	defer tr.Close(ctx)
	key := domain.SessionKey{PollID: 1, RespondentID: "race"}
	_, _ = tr.Start(ctx, graph(), key)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.Submit(ctx, graph(), key, "No"); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted, "only the first submit may be accepted")
	assert.EqualValues(t, 1, rec.counts.Get(0, "No"))
}

func TestTracker_ConcurrentRespondentsExactTallies(t *testing.T) {
	ctx := context.Background()
	tallies := memory.NewTallyStore()
	rec := recorderFunc(func(ctx context.Context, pollID int64, q int, answer string) error {
		_, err := tallies.Increment(ctx, pollID, q, answer)
		return err
	})
	tr := NewTracker(memory.NewSessionStore(), WithRecorder(rec))
	defer tr.Close(ctx)
	g := graph()

	const respondents = 50
	var wg sync.WaitGroup
	for i := 0; i < respondents; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := domain.SessionKey{PollID: 1, RespondentID: fmt.Sprintf("r%d", i)}
			_, err := tr.Start(ctx, g, key)
			assert.NoError(t, err)
			_, err = tr.Submit(ctx, g, key, "Yes")
			assert.NoError(t, err)
			_, err = tr.Submit(ctx, g, key, "LeafB")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	counts, err := tallies.Counts(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, respondents, counts.Get(0, "Yes"))
	assert.EqualValues(t, respondents, counts.Get(1, "LeafB"))
	assert.Zero(t, tr.activeLocks(), "lock entries must be released")
}

type recorderFunc func(ctx context.Context, pollID int64, q int, answer string) error

func (f recorderFunc) Record(ctx context.Context, pollID int64, q int, answer string) error {
	return f(ctx, pollID, q, answer)
}

func TestTracker_ColdKeyFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	key := domain.SessionKey{PollID: 1, RespondentID: "returning"}
	saved := domain.NewSessionState(key, 0)
	saved.Current = 1
	saved.History = []domain.Step{{Question: 0, Answer: "Yes"}}
	require.NoError(t, store.Save(ctx, saved))

	tr := NewTracker(store)
	defer tr.Close(ctx)

	s, err := tr.Submit(ctx, graph(), key, "LeafB")
	require.NoError(t, err)
	assert.True(t, s.Terminated())
	assert.Len(t, s.History, 2)
}

func TestTracker_ForgetPoll(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	tr := NewTracker(store)
	defer tr.Close(ctx)

	a := domain.SessionKey{PollID: 1, RespondentID: "a"}
	b := domain.SessionKey{PollID: 2, RespondentID: "b"}
	_, _ = tr.Start(ctx, graph(), a)
	_, _ = tr.Start(ctx, graph(), b)

	tr.ForgetPoll(ctx, 1)
	require.NoError(t, tr.Flush(ctx))

	_, err := tr.Get(ctx, a)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = tr.Get(ctx, b)
	assert.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

type failingStore struct {
	ports.SessionStore
}

func (failingStore) Save(context.Context, *domain.SessionState) error {
	return errors.New("disk full")
}

func TestTracker_PersistenceFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(failingStore{memory.NewSessionStore()})
	key := domain.SessionKey{PollID: 1, RespondentID: "x"}

	_, err := tr.Start(ctx, graph(), key)
	require.NoError(t, err)
	require.NoError(t, tr.Flush(ctx))

	s, err := tr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Current)
	require.NoError(t, tr.Close(ctx))
}

func TestTracker_AfterClosePersistsInline(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	tr := NewTracker(store, WithQueueSize(1))
	require.NoError(t, tr.Close(ctx))
	require.NoError(t, tr.Close(ctx), "Close is idempotent")

	key := domain.SessionKey{PollID: 1, RespondentID: "late"}
	_, err := tr.Start(ctx, graph(), key)
	require.NoError(t, err)
	require.NoError(t, tr.Flush(ctx))

	_, err = store.Load(ctx, key)
	assert.NoError(t, err)
}

type stubLocker struct {
	mu   sync.Mutex
	keys []string
	fail error
	ttl  time.Duration
}

func (l *stubLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.fail != nil {
		return nil, l.fail
	}
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.ttl = ttl
	l.mu.Unlock()
	return func(context.Context) error { return errors.New("already expired") }, nil
}

func TestTracker_DistributedLocker(t *testing.T) {
	ctx := context.Background()
	locker := &stubLocker{}
	tr := NewTracker(memory.NewSessionStore(), WithLocker(locker), WithLockTTL(5*time.Second))
	defer tr.Close(ctx)
	key := domain.SessionKey{PollID: 3, RespondentID: "z"}

	_, err := tr.Start(ctx, graph(), key)
	require.NoError(t, err, "unlock failures are only logged")
	assert.Equal(t, []string{"session:3:z"}, locker.keys)
	assert.Equal(t, 5*time.Second, locker.ttl)

	locker.fail = errors.New("redis down")
	_, err = tr.Submit(ctx, graph(), key, "Yes")
	assert.ErrorContains(t, err, "distributed lock")
}

func TestTracker_CancelledContextStillPersists(t *testing.T) {
	store := memory.NewSessionStore()
	tr := NewTracker(store, WithQueueSize(1))
	key := domain.SessionKey{PollID: 1, RespondentID: "gone"}

	_, err := tr.Start(context.Background(), graph(), key)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 50; i++ {
		other := domain.SessionKey{PollID: 2, RespondentID: fmt.Sprintf("r%d", i)}
		_, err := tr.Start(cancelled, graph(), other)
		require.NoError(t, err)
	}
	_, err = tr.Submit(cancelled, graph(), key, "Yes")
	require.NoError(t, err)

	tr.ForgetPoll(cancelled, 2)
	require.NoError(t, tr.Close(context.Background()))

	s, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Current)
	assert.Len(t, s.History, 1)
	assert.Equal(t, 1, store.Len(), "sessions of the forgotten poll are deleted")
}
