package branchpoll_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/branchpoll"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenario = "Root?\nYes\n  Sub?\n    LeafA\n    LeafB\nNo"

func newEngine(t *testing.T, opts ...branchpoll.Option) *branchpoll.Engine {
	t.Helper()
	eng := branchpoll.New(opts...)
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	return eng
}

func TestEngine_Scenario(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)

	poll, err := eng.CreatePoll(ctx, 1, "  scenario  ", scenario)
	require.NoError(t, err)
	assert.EqualValues(t, 1, poll.ID)
	assert.Equal(t, "scenario", poll.Name)
	assert.Equal(t, 2, poll.Len())

	_, prompt, err := eng.Start(ctx, poll.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Root?", prompt.Text)
	assert.Equal(t, []string{"Yes", "No"}, prompt.Options)

	_, prompt, err = eng.Submit(ctx, poll.ID, "alice", "Yes")
	require.NoError(t, err)
	assert.Equal(t, "Sub?", prompt.Text)
	assert.Equal(t, []string{"LeafA", "LeafB"}, prompt.Options)

	state, prompt, err := eng.Submit(ctx, poll.ID, "alice", "LeafA")
	require.NoError(t, err)
	assert.True(t, prompt.Done)
	assert.True(t, state.Terminated())

	report, err := eng.Report(ctx, poll.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Root.Answers[0].Count)
	require.NotNil(t, report.Root.Answers[0].Branch)
	assert.EqualValues(t, 1, report.Root.Answers[0].Branch.Answers[0].Count)
	assert.InDelta(t, 100.0, report.Root.Answers[0].Percent, 0.001)
}

func TestEngine_CreatePollErrors(t *testing.T) {
	ctx := context.Background()
	var failures []domain.ErrorKind
	eng := newEngine(t, branchpoll.WithLifecycleHooks(domain.LifecycleHooks{
		OnCompileFailure: func(_ context.Context, ev *domain.PollEvent) {
			failures = append(failures, ev.Kind)
		},
	}))

	_, err := eng.CreatePoll(ctx, 1, "   ", scenario)
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindEmptyInput, kind)

	_, err = eng.CreatePoll(ctx, 1, "ok", "Root?")
	var ce *domain.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.KindQuestionWithoutAnswers, ce.Kind)
	assert.Equal(t, []domain.ErrorKind{domain.KindQuestionWithoutAnswers}, failures)

	polls, err := eng.ListPolls(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, polls)
}

func TestEngine_UnknownAnswerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	poll, err := eng.CreatePoll(ctx, 1, "p", scenario)
	require.NoError(t, err)
	_, _, err = eng.Start(ctx, poll.ID, "bob")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err = eng.Submit(ctx, poll.ID, "bob", "Perhaps")
		assert.ErrorIs(t, err, domain.ErrUnknownAnswer)
	}

	state, prompt, err := eng.Session(ctx, poll.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, state.Current)
	assert.Equal(t, "Root?", prompt.Text)

	report, err := eng.Report(ctx, poll.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Root.Total)
}

func TestEngine_SubmitWithoutStart(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	poll, err := eng.CreatePoll(ctx, 1, "p", scenario)
	require.NoError(t, err)

	_, _, err = eng.Submit(ctx, poll.ID, "carol", "Yes")
	assert.ErrorIs(t, err, domain.ErrSessionNotStarted)

	_, _, err = eng.Start(ctx, 999, "carol")
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestEngine_DeletePoll(t *testing.T) {
	ctx := context.Background()
	var deleted []int64
	eng := newEngine(t, branchpoll.WithLifecycleHooks(domain.LifecycleHooks{
		OnPollDeleted: func(_ context.Context, ev *domain.PollEvent) { deleted = append(deleted, ev.PollID) },
	}))

	poll, err := eng.CreatePoll(ctx, 10, "mine", scenario)
	require.NoError(t, err)
	_, _, _ = eng.Start(ctx, poll.ID, "dave")
	_, _, _ = eng.Submit(ctx, poll.ID, "dave", "No")

	assert.ErrorIs(t, eng.DeletePoll(ctx, 11, poll.ID), domain.ErrNotOwner)
	_, err = eng.GetPoll(ctx, poll.ID)
	require.NoError(t, err, "a refused delete leaves the poll")

	require.NoError(t, eng.DeletePoll(ctx, 10, poll.ID))
	assert.Equal(t, []int64{poll.ID}, deleted)

	_, err = eng.GetPoll(ctx, poll.ID)
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
	_, _, err = eng.Submit(ctx, poll.ID, "dave", "Yes")
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
	assert.ErrorIs(t, eng.DeletePoll(ctx, 10, poll.ID), domain.ErrPollNotFound)

	// A new poll never reuses the id, so it starts with no tallies.
	next, err := eng.CreatePoll(ctx, 10, "again", scenario)
	require.NoError(t, err)
	assert.Greater(t, next.ID, poll.ID)
	report, err := eng.Report(ctx, next.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Root.Total)
}

func TestEngine_ListPollsByOwner(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	a, _ := eng.CreatePoll(ctx, 1, "a", scenario)
	_, _ = eng.CreatePoll(ctx, 2, "b", scenario)
	c, _ := eng.CreatePoll(ctx, 1, "c", scenario)

	polls, err := eng.ListPolls(ctx, 1)
	require.NoError(t, err)
	require.Len(t, polls, 2)
	assert.Equal(t, a.ID, polls[0].ID)
	assert.Equal(t, c.ID, polls[1].ID)
}

func TestEngine_HooksAndConcurrency(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var answers, finished int
	eng := newEngine(t, branchpoll.WithLifecycleHooks(domain.LifecycleHooks{
		OnAnswer: func(context.Context, *domain.SessionEvent) {
			mu.Lock()
			answers++
			mu.Unlock()
		},
		OnSessionFinish: func(context.Context, *domain.SessionEvent) {
			mu.Lock()
			finished++
			mu.Unlock()
		},
	}))
	poll, err := eng.CreatePoll(ctx, 1, "p", scenario)
	require.NoError(t, err)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := fmt.Sprintf("user-%d", i)
			_, _, err := eng.Start(ctx, poll.ID, who)
			assert.NoError(t, err)
			if i%2 == 0 {
				_, _, err = eng.Submit(ctx, poll.ID, who, "No")
				assert.NoError(t, err)
				return
			}
			_, _, err = eng.Submit(ctx, poll.ID, who, "Yes")
			assert.NoError(t, err)
			_, _, err = eng.Submit(ctx, poll.ID, who, "LeafB")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n/2*3, answers)
	assert.Equal(t, n, finished)

	report, err := eng.Report(ctx, poll.ID)
	require.NoError(t, err)
	assert.EqualValues(t, n, report.Root.Total)
	assert.InDelta(t, 50.0, report.Root.Answers[0].Percent, 0.001)
	assert.EqualValues(t, n/2, report.Root.Answers[0].Branch.Answers[1].Count)
}
