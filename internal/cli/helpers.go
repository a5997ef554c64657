package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/branchpoll/internal/config"
	"github.com/aretw0/branchpoll/internal/logging"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/aretw0/branchpoll/pkg/runner"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger creates the application logger from the log section of cfg.
func NewLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Format == "json" {
		return logging.NewJSON(level), nil
	}
	return logging.New(level), nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// MergeHooks calls every non-nil hook of each set in order.
func MergeHooks(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var poll [3][]func(context.Context, *domain.PollEvent)
	var sess [3][]func(context.Context, *domain.SessionEvent)
	for _, h := range sets {
		poll[0] = appendHook(poll[0], h.OnPollCreated)
		poll[1] = appendHook(poll[1], h.OnPollDeleted)
		poll[2] = appendHook(poll[2], h.OnCompileFailure)
		sess[0] = appendHook(sess[0], h.OnSessionStart)
		sess[1] = appendHook(sess[1], h.OnAnswer)
		sess[2] = appendHook(sess[2], h.OnSessionFinish)
	}
	return domain.LifecycleHooks{
		OnPollCreated:    fanOut(poll[0]),
		OnPollDeleted:    fanOut(poll[1]),
		OnCompileFailure: fanOut(poll[2]),
		OnSessionStart:   fanOut(sess[0]),
		OnAnswer:         fanOut(sess[1]),
		OnSessionFinish:  fanOut(sess[2]),
	}
}

func appendHook[E any](hooks []func(context.Context, E), h func(context.Context, E)) []func(context.Context, E) {
	if h == nil {
		return hooks
	}
	return append(hooks, h)
}

func fanOut[E any](hooks []func(context.Context, E)) func(context.Context, E) {
	if len(hooks) == 0 {
		return nil
	}
	return func(ctx context.Context, e E) {
		for _, h := range hooks {
			h(ctx, e)
		}
	}
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(ctx context.Context, e *domain.SessionEvent) {
			logger.Debug("Session Start", "poll_id", e.PollID, "respondent", e.RespondentID)
		},
		OnAnswer: func(ctx context.Context, e *domain.SessionEvent) {
			logger.Debug("Answer", "poll_id", e.PollID, "question", e.Question, "answer", e.Answer)
		},
		OnSessionFinish: func(ctx context.Context, e *domain.SessionEvent) {
			logger.Debug("Session Finish", "poll_id", e.PollID, "respondent", e.RespondentID)
		},
	}
}

// isInterrupted reports whether err means the respondent left rather than a failure.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, runner.ErrQuit)
}

func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}
