package runner

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/branchpoll/internal/logging"
	"github.com/aretw0/branchpoll/pkg/domain"
)

// Engine is the subset of *branchpoll.Engine a Runner needs.
type Engine interface {
	Start(ctx context.Context, pollID int64, respondentID string) (*domain.SessionState, domain.Prompt, error)
	Submit(ctx context.Context, pollID int64, respondentID, answer string) (*domain.SessionState, domain.Prompt, error)
}

// Runner handles the answer loop of one respondent using a Presenter.
type Runner struct {
	Engine    Engine
	Presenter Presenter

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithPresenter configures how prompts reach the respondent.
func WithPresenter(p Presenter) Option {
	return func(r *Runner) {
		r.Presenter = p
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// New creates a Runner presenting on stdin/stdout unless configured otherwise.
func New(engine Engine, opts ...Option) *Runner {
	r := &Runner{Engine: engine}
	for _, opt := range opts {
		opt(r)
	}
	if r.Presenter == nil {
		r.Presenter = NewTextPresenter(nil, nil)
	}
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	return r
}

// Run starts (or restarts) respondentID's session and loops until it
// terminates. Rejected choices are reported and the same question is asked
// again. It returns the last state together with ErrQuit, io.EOF or a
// context error when the respondent leaves early.
func (r *Runner) Run(ctx context.Context, pollID int64, respondentID string) (*domain.SessionState, error) {
	state, prompt, err := r.Engine.Start(ctx, pollID, respondentID)
	if err != nil {
		return nil, err
	}

	for !prompt.Done {
		raw, err := r.Presenter.Present(ctx, prompt)
		if err != nil {
			r.Logger.Debug("session left unfinished", "poll_id", pollID, "respondent", respondentID, "err", err)
			return state, err
		}

		answer, err := SanitizeInput(raw)
		if err != nil {
			if err := r.Presenter.Reject(ctx, raw, err); err != nil {
				return state, err
			}
			continue
		}

		next, nextPrompt, err := r.Engine.Submit(ctx, pollID, respondentID, answer)
		if err != nil {
			if !errors.Is(err, domain.ErrUnknownAnswer) {
				return state, err
			}
			r.Logger.Debug("answer rejected", "poll_id", pollID, "question", prompt.Question, "answer", answer)
			if err := r.Presenter.Reject(ctx, answer, err); err != nil {
				return state, err
			}
			continue
		}
		state, prompt = next, nextPrompt
	}

	return state, r.Presenter.Finish(ctx, state)
}
