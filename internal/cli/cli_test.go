package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/branchpoll/internal/config"
	"github.com/aretw0/branchpoll/internal/logging"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structure = "Root?\nYes\n  Sub?\n    LeafA\n    LeafB\nNo"

func openStack(t *testing.T, cfg *config.Config) *Stack {
	t.Helper()
	stack, err := OpenEngine(cfg, logging.NewNop(), domain.LifecycleHooks{})
	require.NoError(t, err)
	return stack
}

// roundTrip creates a poll, answers it once and checks the tally.
func roundTrip(t *testing.T, stack *Stack) int64 {
	t.Helper()
	ctx := context.Background()
	poll, err := stack.Engine.CreatePoll(ctx, 1, "backend", structure)
	require.NoError(t, err)

	_, _, err = stack.Engine.Start(ctx, poll.ID, "alice")
	require.NoError(t, err)
	_, _, err = stack.Engine.Submit(ctx, poll.ID, "alice", "No")
	require.NoError(t, err)

	rep, err := stack.Engine.Report(ctx, poll.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.Root.Answers[1].Count)
	return poll.ID
}

func TestOpenEngine_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		mutate func(*config.Config, string)
	}{
		{"Memory", func(c *config.Config, dir string) { c.Backend = config.BackendMemory }},
		{"File", func(c *config.Config, dir string) { c.Backend = config.BackendFile; c.DataDir = dir }},
		{"SQLite", func(c *config.Config, dir string) { c.Backend = config.BackendSQLite; c.DataDir = dir }},
		{"Redis", func(c *config.Config, dir string) { c.Backend = config.BackendRedis; c.Redis.Addr = mr.Addr() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg, t.TempDir())
			stack := openStack(t, cfg)
			roundTrip(t, stack)
			assert.NoError(t, stack.Close(context.Background()))
		})
	}
}

func TestOpenEngine_FilePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")

	stack := openStack(t, cfg)
	id := roundTrip(t, stack)
	require.NoError(t, stack.Close(ctx))

	stack = openStack(t, cfg)
	defer stack.Close(ctx)

	rep, err := stack.Engine.Report(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.Root.Answers[1].Count)

	state, _, err := stack.Engine.Session(ctx, id, "alice")
	require.NoError(t, err)
	assert.True(t, state.Terminated())
}

func TestOpenEngine_IndentUnit(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	cfg.IndentUnit = 4
	stack := openStack(t, cfg)
	defer stack.Close(context.Background())

	g, err := stack.Engine.Compile("Root?\nYes\n    Sub?\n        Leaf\nNo")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	_, err = stack.Engine.Compile(structure)
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindBadIndent, kind)
}

func TestOpenEngine_RedisUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendRedis
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := OpenEngine(cfg, logging.NewNop(), domain.LifecycleHooks{})
	assert.Error(t, err)
}

func TestMergeHooks(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnAnswer: func(ctx context.Context, e *domain.SessionEvent) { calls = append(calls, "a:"+e.Answer) },
	}
	b := domain.LifecycleHooks{
		OnAnswer:      func(ctx context.Context, e *domain.SessionEvent) { calls = append(calls, "b:"+e.Answer) },
		OnPollCreated: func(ctx context.Context, e *domain.PollEvent) { calls = append(calls, "created") },
	}

	merged := MergeHooks(a, b)
	assert.Nil(t, merged.OnSessionStart)
	merged.OnAnswer(context.Background(), &domain.SessionEvent{Answer: "Yes"})
	merged.OnPollCreated(context.Background(), &domain.PollEvent{})
	assert.Equal(t, []string{"a:Yes", "b:Yes", "created"}, calls)
}

func TestRun_AdHocStructure(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	stack := openStack(t, cfg)
	defer stack.Close(context.Background())

	out := &bytes.Buffer{}
	err := Run(context.Background(), stack, RunOptions{
		Structure:   structure,
		Respondent:  "alice",
		ShowResults: true,
	}, strings.NewReader("Yes\n2\n"), out, logging.NewNop())
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "Sub?")
	assert.Contains(t, got, "Poll #1: ad-hoc")
	assert.Contains(t, got, "LeafB: 1 (100.0%)")
	assert.NotContains(t, got, "\x1b[")
}

func TestRun_LeaveEarly(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	stack := openStack(t, cfg)
	defer stack.Close(context.Background())

	out := &bytes.Buffer{}
	err := Run(context.Background(), stack, RunOptions{Structure: structure, Respondent: "bob"},
		strings.NewReader("quit\n"), out, logging.NewNop())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Session left unfinished")
}

func TestRun_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	stack := openStack(t, cfg)
	defer stack.Close(context.Background())

	err := Run(context.Background(), stack, RunOptions{PollID: 1}, strings.NewReader(""), &bytes.Buffer{}, logging.NewNop())
	assert.Error(t, err)

	err = Run(context.Background(), stack, RunOptions{PollID: 42, Respondent: "x"}, strings.NewReader(""), &bytes.Buffer{}, logging.NewNop())
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}
