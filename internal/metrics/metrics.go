// Package metrics exposes engine lifecycle events as Prometheus counters.
package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/branchpoll/internal/logging"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "branchpoll"

// Collector holds the engine counters in its own registry, not the global one.
type Collector struct {
	registry *prometheus.Registry
	logger   *slog.Logger

	PollsCreated     prometheus.Counter
	PollsDeleted     prometheus.Counter
	CompileFailures  *prometheus.CounterVec
	SessionsStarted  prometheus.Counter
	Answers          prometheus.Counter
	SessionsFinished prometheus.Counter
}

// Option configures the Collector.
type Option func(*Collector)

// WithLogger logs every lifecycle event at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// New creates and registers the collectors.
func New(opts ...Option) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		logger:   logging.NewNop(),
		PollsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "polls_created_total",
			Help:      "Total number of polls created",
		}),
		PollsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "polls_deleted_total",
			Help:      "Total number of polls deleted",
		}),
		CompileFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "compile_failures_total",
			Help:      "Poll structures rejected by the compiler, by error kind",
		}, []string{"kind"}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of respondent sessions started or restarted",
		}),
		Answers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "answers_total",
			Help:      "Total number of accepted answers",
		}),
		SessionsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_finished_total",
			Help:      "Total number of sessions that reached a terminal answer",
		}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.registry.MustRegister(
		c.PollsCreated,
		c.PollsDeleted,
		c.CompileFailures,
		c.SessionsStarted,
		c.Answers,
		c.SessionsFinished,
	)
	return c
}

// Registry returns the registry holding the collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that feed the collectors.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPollCreated: func(ctx context.Context, e *domain.PollEvent) {
			c.logger.Debug("poll_created", "poll_id", e.PollID, "owner_id", e.OwnerID, "questions", e.Questions)
			c.PollsCreated.Inc()
		},
		OnPollDeleted: func(ctx context.Context, e *domain.PollEvent) {
			c.logger.Debug("poll_deleted", "poll_id", e.PollID, "owner_id", e.OwnerID)
			c.PollsDeleted.Inc()
		},
		OnCompileFailure: func(ctx context.Context, e *domain.PollEvent) {
			c.logger.Debug("compile_failure", "owner_id", e.OwnerID, "kind", e.Kind)
			c.CompileFailures.WithLabelValues(string(e.Kind)).Inc()
		},
		OnSessionStart: func(ctx context.Context, e *domain.SessionEvent) {
			c.logger.Debug("session_start", "poll_id", e.PollID, "respondent", e.RespondentID)
			c.SessionsStarted.Inc()
		},
		OnAnswer: func(ctx context.Context, e *domain.SessionEvent) {
			c.logger.Debug("answer", "poll_id", e.PollID, "question", e.Question, "answer", e.Answer)
			c.Answers.Inc()
		},
		OnSessionFinish: func(ctx context.Context, e *domain.SessionEvent) {
			c.logger.Debug("session_finish", "poll_id", e.PollID, "respondent", e.RespondentID)
			c.SessionsFinished.Inc()
		},
	}
}
