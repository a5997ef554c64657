package session

import (
	"fmt"
	"time"

	"github.com/aretw0/branchpoll/pkg/domain"
)

// Start positions a new session at the entry question with an empty history.
func Start(g *domain.PollGraph, pollID int64, respondentID string) (*domain.SessionState, error) {
	entry, err := g.EntryQuestion()
	if err != nil {
		return nil, err
	}
	return domain.NewSessionState(domain.SessionKey{PollID: pollID, RespondentID: respondentID}, entry), nil
}

// Advance applies one answer and returns the next state.
// The input state is never modified; on error it remains the current state.
func Advance(g *domain.PollGraph, s *domain.SessionState, answer string) (*domain.SessionState, error) {
	if s == nil || s.Status == domain.StatusNotStarted {
		return nil, domain.ErrSessionNotStarted
	}
	if s.Status == domain.StatusTerminated {
		return nil, domain.ErrSessionTerminated
	}

	q, err := g.QuestionAt(s.Current)
	if err != nil {
		return nil, err
	}
	a, ok := q.Find(answer)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an option of question %d", domain.ErrUnknownAnswer, answer, s.Current)
	}

	next := s.Clone()
	next.History = append(next.History, domain.Step{Question: s.Current, Answer: a.Text})
	next.UpdatedAt = time.Now().UTC()
	if a.Terminal() {
		next.Status = domain.StatusTerminated
		return next, nil
	}
	if _, err := g.QuestionAt(*a.NextQuestion); err != nil {
		return nil, err
	}
	next.Current = *a.NextQuestion
	return next, nil
}
