package branchpoll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/branchpoll/internal/compiler"
	"github.com/aretw0/branchpoll/internal/logging"
	"github.com/aretw0/branchpoll/internal/validator"
	"github.com/aretw0/branchpoll/pkg/adapters/memory"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/aretw0/branchpoll/pkg/ports"
	"github.com/aretw0/branchpoll/pkg/session"
	"github.com/aretw0/branchpoll/pkg/tally"
)

// Engine is the high-level entry point of the library.
// It wires the compiler, the stores, the session tracker and the tally
// aggregator, and owns the poll lifecycle.
type Engine struct {
	parser   ports.StructureParser
	polls    ports.PollStore
	tallies  ports.TallyStore
	sessions ports.SessionStore
	locker   ports.DistributedLocker
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	tracker    *session.Tracker
	aggregator *tally.Aggregator

	// Compiled graphs are immutable, so they are cached by poll id.
	graphMu sync.RWMutex
	graphs  map[int64]*domain.PollGraph
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPollStore replaces the in-memory poll store.
func WithPollStore(s ports.PollStore) Option {
	return func(e *Engine) {
		e.polls = s
	}
}

// WithTallyStore replaces the in-memory tally store.
func WithTallyStore(s ports.TallyStore) Option {
	return func(e *Engine) {
		e.tallies = s
	}
}

// WithSessionStore replaces the in-memory session store.
func WithSessionStore(s ports.SessionStore) Option {
	return func(e *Engine) {
		e.sessions = s
	}
}

// WithLocker serializes sessions across processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithParser replaces the default indentation parser.
func WithParser(p ports.StructureParser) Option {
	return func(e *Engine) {
		e.parser = p
	}
}

// New initializes an Engine. Without options every store is in memory.
func New(opts ...Option) *Engine {
	e := &Engine{graphs: make(map[int64]*domain.PollGraph)}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.parser == nil {
		e.parser = compiler.NewParser()
	}
	if e.polls == nil {
		e.polls = memory.NewPollStore()
	}
	if e.tallies == nil {
		e.tallies = memory.NewTallyStore()
	}
	if e.sessions == nil {
		e.sessions = memory.NewSessionStore()
	}

	e.aggregator = tally.NewAggregator(e.tallies, tally.WithLogger(e.logger))

	trackerOpts := []session.Option{
		session.WithLogger(e.logger),
		session.WithRecorder(e.aggregator),
	}
	if e.locker != nil {
		trackerOpts = append(trackerOpts, session.WithLocker(e.locker))
	}
	e.tracker = session.NewTracker(e.sessions, trackerOpts...)

	return e
}

// Compile parses poll text without storing anything.
func (e *Engine) Compile(text string) (*domain.PollGraph, error) {
	return e.parser.Parse(text)
}

// CreatePoll validates the name, compiles the text and stores the poll under ownerID.
func (e *Engine) CreatePoll(ctx context.Context, ownerID int64, name, text string) (*domain.Poll, error) {
	if err := validator.ValidateName(name); err != nil {
		return nil, err
	}

	g, err := e.parser.Parse(text)
	if err != nil {
		kind, _ := domain.KindOf(err)
		e.logger.Info("poll rejected", "owner_id", ownerID, "err", err)
		if e.hooks.OnCompileFailure != nil {
			e.hooks.OnCompileFailure(ctx, &domain.PollEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCompileFailure},
				OwnerID:   ownerID,
				Kind:      kind,
			})
		}
		return nil, err
	}

	poll := &domain.Poll{
		Name:      strings.TrimSpace(name),
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
		PollGraph: *g,
	}
	if _, err := e.polls.Create(ctx, poll); err != nil {
		return nil, fmt.Errorf("failed to store poll: %w", err)
	}

	e.logger.Info("poll created", "poll_id", poll.ID, "owner_id", ownerID, "questions", g.Len())
	if e.hooks.OnPollCreated != nil {
		e.hooks.OnPollCreated(ctx, &domain.PollEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventPollCreated, PollID: poll.ID},
			OwnerID:   ownerID,
			Questions: g.Len(),
		})
	}
	return poll, nil
}

// GetPoll returns one poll.
func (e *Engine) GetPoll(ctx context.Context, pollID int64) (*domain.Poll, error) {
	return e.polls.Get(ctx, pollID)
}

// ListPolls returns the polls owned by ownerID in ascending id order.
func (e *Engine) ListPolls(ctx context.Context, ownerID int64) ([]*domain.Poll, error) {
	return e.polls.ListByOwner(ctx, ownerID)
}

// DeletePoll removes a poll with its tallies and sessions.
// Only the owner may delete; anyone else gets domain.ErrNotOwner.
func (e *Engine) DeletePoll(ctx context.Context, ownerID, pollID int64) error {
	poll, err := e.polls.Get(ctx, pollID)
	if err != nil {
		return err
	}
	if !poll.OwnedBy(ownerID) {
		return domain.ErrNotOwner
	}

	if err := e.polls.Delete(ctx, pollID); err != nil {
		return err
	}
	e.graphMu.Lock()
	delete(e.graphs, pollID)
	e.graphMu.Unlock()

	if err := e.aggregator.DeletePoll(ctx, pollID); err != nil {
		e.logger.Warn("failed to delete tallies", "poll_id", pollID, "err", err)
	}
	e.tracker.ForgetPoll(ctx, pollID)

	e.logger.Info("poll deleted", "poll_id", pollID, "owner_id", ownerID)
	if e.hooks.OnPollDeleted != nil {
		e.hooks.OnPollDeleted(ctx, &domain.PollEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventPollDeleted, PollID: pollID},
			OwnerID:   ownerID,
		})
	}
	return nil
}

func (e *Engine) graph(ctx context.Context, pollID int64) (*domain.PollGraph, error) {
	e.graphMu.RLock()
	g, ok := e.graphs[pollID]
	e.graphMu.RUnlock()
	if ok {
		return g, nil
	}

	poll, err := e.polls.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	g = poll.Graph()

	e.graphMu.Lock()
	e.graphs[pollID] = g
	e.graphMu.Unlock()
	return g, nil
}

// Start begins (or restarts) respondentID's session and returns the first prompt.
func (e *Engine) Start(ctx context.Context, pollID int64, respondentID string) (*domain.SessionState, domain.Prompt, error) {
	g, err := e.graph(ctx, pollID)
	if err != nil {
		return nil, domain.Prompt{}, err
	}

	key := domain.SessionKey{PollID: pollID, RespondentID: respondentID}
	state, err := e.tracker.Start(ctx, g, key)
	if err != nil {
		return nil, domain.Prompt{}, err
	}

	e.logger.Debug("session started", "session", key.String())
	if e.hooks.OnSessionStart != nil {
		e.hooks.OnSessionStart(ctx, &domain.SessionEvent{
			EventBase:    domain.EventBase{Timestamp: time.Now(), Type: domain.EventSessionStart, PollID: pollID},
			RespondentID: respondentID,
			Question:     state.Current,
		})
	}

	prompt, err := domain.PromptFor(g, state)
	return state, prompt, err
}

// Submit applies one answer and returns the next prompt. Unknown answers
// return domain.ErrUnknownAnswer and leave the session where it was.
func (e *Engine) Submit(ctx context.Context, pollID int64, respondentID, answer string) (*domain.SessionState, domain.Prompt, error) {
	g, err := e.graph(ctx, pollID)
	if err != nil {
		return nil, domain.Prompt{}, err
	}

	key := domain.SessionKey{PollID: pollID, RespondentID: respondentID}
	state, err := e.tracker.Submit(ctx, g, key, answer)
	if err != nil {
		return nil, domain.Prompt{}, err
	}

	step := state.History[len(state.History)-1]
	if e.hooks.OnAnswer != nil {
		e.hooks.OnAnswer(ctx, &domain.SessionEvent{
			EventBase:    domain.EventBase{Timestamp: time.Now(), Type: domain.EventAnswer, PollID: pollID},
			RespondentID: respondentID,
			Question:     step.Question,
			Answer:       step.Answer,
		})
	}
	if state.Terminated() {
		e.logger.Debug("session finished", "session", key.String(), "answers", len(state.History))
		if e.hooks.OnSessionFinish != nil {
			e.hooks.OnSessionFinish(ctx, &domain.SessionEvent{
				EventBase:    domain.EventBase{Timestamp: time.Now(), Type: domain.EventSessionFinish, PollID: pollID},
				RespondentID: respondentID,
				Question:     step.Question,
			})
		}
	}

	prompt, err := domain.PromptFor(g, state)
	return state, prompt, err
}

// Session returns respondentID's current state and prompt.
func (e *Engine) Session(ctx context.Context, pollID int64, respondentID string) (*domain.SessionState, domain.Prompt, error) {
	g, err := e.graph(ctx, pollID)
	if err != nil {
		return nil, domain.Prompt{}, err
	}
	state, err := e.tracker.Get(ctx, domain.SessionKey{PollID: pollID, RespondentID: respondentID})
	if err != nil {
		return nil, domain.Prompt{}, err
	}
	prompt, err := domain.PromptFor(g, state)
	return state, prompt, err
}

// Report returns the tally of a poll laid out along its graph.
func (e *Engine) Report(ctx context.Context, pollID int64) (*domain.Report, error) {
	poll, err := e.polls.Get(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return e.aggregator.Report(ctx, poll)
}

// Flush waits until pending session writes have reached the session store.
func (e *Engine) Flush(ctx context.Context) error {
	return e.tracker.Flush(ctx)
}

// Close drains write-behind persistence. Stores are owned by the caller and stay open.
func (e *Engine) Close(ctx context.Context) error {
	return e.tracker.Close(ctx)
}
