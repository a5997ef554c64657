package tally

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/branchpoll/internal/logging"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/aretw0/branchpoll/pkg/ports"
)

// Aggregator records accepted answers and builds reports.
type Aggregator struct {
	store  ports.TallyStore
	logger *slog.Logger
}

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithLogger configures a logger for the Aggregator.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// NewAggregator creates an aggregator over the given counter store.
func NewAggregator(store ports.TallyStore, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record adds one vote for answer at question q of the poll.
func (a *Aggregator) Record(ctx context.Context, pollID int64, q int, answer string) error {
	n, err := a.store.Increment(ctx, pollID, q, answer)
	if err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	a.logger.Debug("vote recorded", "poll_id", pollID, "question", q, "answer", answer, "count", n)
	return nil
}

// Counts returns the raw counters of a poll.
func (a *Aggregator) Counts(ctx context.Context, pollID int64) (domain.Counts, error) {
	return a.store.Counts(ctx, pollID)
}

// DeletePoll removes every counter of a poll.
func (a *Aggregator) DeletePoll(ctx context.Context, pollID int64) error {
	if err := a.store.DeletePoll(ctx, pollID); err != nil {
		return fmt.Errorf("failed to delete tallies: %w", err)
	}
	return nil
}

// Report walks the poll graph from the root and attaches the counts. Every
// answer of a visited question is listed; a branch is descended into only when
// its question received at least one vote.
func (a *Aggregator) Report(ctx context.Context, poll *domain.Poll) (*domain.Report, error) {
	counts, err := a.store.Counts(ctx, poll.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tallies: %w", err)
	}
	return Build(poll, counts), nil
}

// Build lays counts out along the poll graph.
func Build(poll *domain.Poll, counts domain.Counts) *domain.Report {
	report := &domain.Report{PollID: poll.ID, Name: poll.Name}
	g := poll.Graph()
	if g.Len() == 0 {
		return report
	}

	visited := make(map[int]bool, g.Len())
	var node func(i int) *domain.ReportNode
	node = func(i int) *domain.ReportNode {
		if visited[i] || i < 0 || i >= g.Len() {
			return nil
		}
		visited[i] = true

		q := g.Questions[i]
		total := counts.Total(i)
		n := &domain.ReportNode{
			Question: i,
			Text:     q.Text,
			Total:    total,
			Answers:  make([]domain.ReportAnswer, 0, len(q.Answers)),
		}
		for _, ans := range q.Answers {
			ra := domain.ReportAnswer{
				Text:    ans.Text,
				Count:   counts.Get(i, ans.Text),
				Percent: Percent(counts.Get(i, ans.Text), total),
			}
			if ans.NextQuestion != nil && counts.Total(*ans.NextQuestion) > 0 {
				ra.Branch = node(*ans.NextQuestion)
			}
			n.Answers = append(n.Answers, ra)
		}
		return n
	}
	report.Root = node(0)
	return report
}

// Percent returns count as a percentage of total, 0 when total is 0.
func Percent(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
