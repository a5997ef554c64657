package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractPoll(owner int64, name string) *domain.Poll {
	return &domain.Poll{
		Name:      name,
		OwnerID:   owner,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		PollGraph: domain.PollGraph{Questions: []domain.Question{
			{Text: "Root?", Level: 0, Answers: []domain.Answer{
				{Text: "Yes", NextQuestion: domain.Next(1)},
				{Text: "No"},
			}},
			{Text: "Sub?", Level: 1, Answers: []domain.Answer{
				{Text: "LeafA"},
				{Text: "LeafB"},
			}},
		}},
	}
}

// RunPollStoreContract runs a suite of tests to verify that a PollStore implementation
// adheres to the defined interface contract. The store must be empty.
func RunPollStoreContract(t *testing.T, store PollStore) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		poll := contractPoll(7, "coffee")
		id, err := store.Create(ctx, poll)
		require.NoError(t, err, "Create should not return error")
		assert.Positive(t, id)
		assert.Equal(t, id, poll.ID, "Create should set the assigned id")

		loaded, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, poll.Name, loaded.Name)
		assert.Equal(t, poll.OwnerID, loaded.OwnerID)
		assert.WithinDuration(t, poll.CreatedAt, loaded.CreatedAt, time.Second)
		assert.True(t, poll.Graph().Equal(loaded.Graph()), "graph should round-trip")
		assert.Equal(t, 1, loaded.Questions[1].Level)

		// Mutating the returned copy must not leak into the store.
		loaded.Name = "mutated"
		loaded.Questions[0].Answers[0].Text = "mutated"
		again, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "coffee", again.Name)
		assert.Equal(t, "Yes", again.Questions[0].Answers[0].Text)
	})

	t.Run("Ids Increase", func(t *testing.T) {
		first, err := store.Create(ctx, contractPoll(8, "first"))
		require.NoError(t, err)
		second, err := store.Create(ctx, contractPoll(8, "second"))
		require.NoError(t, err)
		assert.Equal(t, first+1, second)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, 999999)
		assert.ErrorIs(t, err, domain.ErrPollNotFound)
	})

	t.Run("ListByOwner", func(t *testing.T) {
		a, err := store.Create(ctx, contractPoll(42, "a"))
		require.NoError(t, err)
		b, err := store.Create(ctx, contractPoll(42, "b"))
		require.NoError(t, err)
		_, err = store.Create(ctx, contractPoll(43, "other"))
		require.NoError(t, err)

		polls, err := store.ListByOwner(ctx, 42)
		require.NoError(t, err)
		require.Len(t, polls, 2)
		assert.Equal(t, a, polls[0].ID)
		assert.Equal(t, b, polls[1].ID)

		none, err := store.ListByOwner(ctx, 4242)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Delete", func(t *testing.T) {
		id, err := store.Create(ctx, contractPoll(50, "doomed"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err = store.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrPollNotFound, "Get after Delete should return ErrPollNotFound")

		polls, err := store.ListByOwner(ctx, 50)
		require.NoError(t, err)
		assert.Empty(t, polls)

		assert.ErrorIs(t, store.Delete(ctx, id), domain.ErrPollNotFound)
	})
}

// RunTallyStoreContract runs a suite of tests to verify that a TallyStore implementation
// adheres to the defined interface contract.
func RunTallyStoreContract(t *testing.T, store TallyStore) {
	ctx := context.Background()

	t.Run("Increment and Counts", func(t *testing.T) {
		n, err := store.Increment(ctx, 1, 0, "Yes")
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, "a new triple starts at 1")

		n, err = store.Increment(ctx, 1, 0, "Yes")
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)

		_, err = store.Increment(ctx, 1, 0, "No")
		require.NoError(t, err)
		_, err = store.Increment(ctx, 1, 1, "LeafA")
		require.NoError(t, err)

		counts, err := store.Counts(ctx, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 2, counts.Get(0, "Yes"))
		assert.EqualValues(t, 1, counts.Get(0, "No"))
		assert.EqualValues(t, 1, counts.Get(1, "LeafA"))
		assert.EqualValues(t, 3, counts.Total(0))
	})

	t.Run("Answers With Separators", func(t *testing.T) {
		_, err := store.Increment(ctx, 2, 3, "a:b|c d")
		require.NoError(t, err)
		counts, err := store.Counts(ctx, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 1, counts.Get(3, "a:b|c d"))
	})

	t.Run("Unknown Poll", func(t *testing.T) {
		counts, err := store.Counts(ctx, 987654)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})

	t.Run("DeletePoll", func(t *testing.T) {
		_, err := store.Increment(ctx, 10, 0, "Yes")
		require.NoError(t, err)
		_, err = store.Increment(ctx, 11, 0, "Yes")
		require.NoError(t, err)

		require.NoError(t, store.DeletePoll(ctx, 10))

		gone, err := store.Counts(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, gone)

		kept, err := store.Counts(ctx, 11)
		require.NoError(t, err)
		assert.EqualValues(t, 1, kept.Get(0, "Yes"))
	})

	t.Run("Concurrent Increments", func(t *testing.T) {
		const workers, perWorker = 8, 25
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					_, err := store.Increment(ctx, 20, 0, "Yes")
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		counts, err := store.Counts(ctx, 20)
		require.NoError(t, err)
		assert.EqualValues(t, workers*perWorker, counts.Get(0, "Yes"))
	})
}

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	respondent := "contract-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		key := domain.SessionKey{PollID: 1, RespondentID: respondent}
		state := domain.NewSessionState(key, 0)
		state.History = append(state.History, domain.Step{Question: 0, Answer: "Yes"})
		state.Current = 1

		require.NoError(t, store.Save(ctx, state), "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, key, loaded.SessionKey)
		assert.Equal(t, domain.StatusAtQuestion, loaded.Status)
		assert.Equal(t, 1, loaded.Current)
		assert.Equal(t, []domain.Step{{Question: 0, Answer: "Yes"}}, loaded.History)
		assert.WithinDuration(t, state.StartedAt, loaded.StartedAt, time.Second)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		key := domain.SessionKey{PollID: 1, RespondentID: respondent + "-over"}
		require.NoError(t, store.Save(ctx, domain.NewSessionState(key, 0)))

		done := domain.NewSessionState(key, 0)
		done.Status = domain.StatusTerminated
		require.NoError(t, store.Save(ctx, done))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.True(t, loaded.Terminated())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, domain.SessionKey{PollID: 1, RespondentID: "non-existent-" + respondent})
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		key := domain.SessionKey{PollID: 2, RespondentID: respondent}
		require.NoError(t, store.Save(ctx, domain.NewSessionState(key, 0)))

		require.NoError(t, store.Delete(ctx, key), "Delete should not return error")

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("DeletePoll", func(t *testing.T) {
		doomed := []domain.SessionKey{
			{PollID: 3, RespondentID: respondent + "-1"},
			{PollID: 3, RespondentID: respondent + "-2"},
		}
		kept := domain.SessionKey{PollID: 4, RespondentID: respondent + "-1"}
		for _, key := range append(doomed, kept) {
			require.NoError(t, store.Save(ctx, domain.NewSessionState(key, 0)))
		}

		require.NoError(t, store.DeletePoll(ctx, 3))

		for _, key := range doomed {
			_, err := store.Load(ctx, key)
			assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		}
		_, err := store.Load(ctx, kept)
		assert.NoError(t, err)
	})
}
