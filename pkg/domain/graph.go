package domain

import "fmt"

// Answer is one selectable choice of a Question.
type Answer struct {
	Text string `json:"text" yaml:"text"`

	// NextQuestion is the index of the question this answer branches to.
	// Nil means that choosing this answer ends the poll for the respondent.
	NextQuestion *int `json:"next_question" yaml:"next_question"`
}

// Terminal reports whether choosing this answer ends the session.
func (a Answer) Terminal() bool {
	return a.NextQuestion == nil
}

// Question is a prompt with an ordered list of answers.
// Answer order is the authoring order and is the order options are presented.
type Question struct {
	Text    string   `json:"text" yaml:"text"`
	Level   int      `json:"level" yaml:"level"`
	Answers []Answer `json:"answers" yaml:"answers"`
}

// AnswerTexts returns the answer texts in presentation order.
func (q Question) AnswerTexts() []string {
	texts := make([]string, len(q.Answers))
	for i, a := range q.Answers {
		texts[i] = a.Text
	}
	return texts
}

// Find returns the answer with exactly the given text.
func (q Question) Find(text string) (Answer, bool) {
	for _, a := range q.Answers {
		if a.Text == text {
			return a, true
		}
	}
	return Answer{}, false
}

// PollGraph is the compiled questionnaire.
// It is immutable once built; sessions share it without coordination.
type PollGraph struct {
	Questions []Question `json:"questions" yaml:"questions"`
}

// Len returns the number of questions.
func (g *PollGraph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Questions)
}

// EntryQuestion returns the index of the root question.
func (g *PollGraph) EntryQuestion() (int, error) {
	if g.Len() == 0 {
		return 0, ErrEmptyGraph
	}
	return 0, nil
}

// QuestionAt returns the question at index i.
func (g *PollGraph) QuestionAt(i int) (Question, error) {
	if i < 0 || i >= g.Len() {
		return Question{}, fmt.Errorf("%w: %d (graph has %d questions)", ErrIndexOutOfRange, i, g.Len())
	}
	return g.Questions[i], nil
}

// ChildOf returns the branch target of the answer with the given text.
// The boolean is false when the answer is terminal or does not exist.
func (g *PollGraph) ChildOf(i int, answerText string) (int, bool) {
	q, err := g.QuestionAt(i)
	if err != nil {
		return 0, false
	}
	a, ok := q.Find(answerText)
	if !ok || a.NextQuestion == nil {
		return 0, false
	}
	return *a.NextQuestion, true
}

// Validate re-checks the structural invariants of a graph.
// Compiled graphs always pass; it guards graphs decoded from storage.
func (g *PollGraph) Validate() error {
	if g.Len() == 0 {
		return ErrEmptyGraph
	}

	parents := make([]int, g.Len())
	for i := range parents {
		parents[i] = -1
	}

	for i, q := range g.Questions {
		if q.Level == 0 && i != 0 {
			return fmt.Errorf("%w: question %d is a second root", ErrInvalidGraph, i)
		}
		if len(q.Answers) == 0 {
			return fmt.Errorf("%w: question %d has no answers", ErrInvalidGraph, i)
		}
		seen := make(map[string]bool, len(q.Answers))
		for _, a := range q.Answers {
			if seen[a.Text] {
				return fmt.Errorf("%w: question %d repeats answer %q", ErrInvalidGraph, i, a.Text)
			}
			seen[a.Text] = true

			if a.NextQuestion == nil {
				continue
			}
			next := *a.NextQuestion
			if next <= 0 || next >= g.Len() {
				return fmt.Errorf("%w: answer %q of question %d points to %d", ErrInvalidGraph, a.Text, i, next)
			}
			if parents[next] != -1 {
				return fmt.Errorf("%w: question %d has two parents", ErrInvalidGraph, next)
			}
			parents[next] = i
		}
	}
	if g.Questions[0].Level != 0 {
		return fmt.Errorf("%w: root question is not at level 0", ErrInvalidGraph)
	}

	// Every non-root question must hang off an ancestor chain that ends at the root.
	for i := 1; i < g.Len(); i++ {
		steps := 0
		for p := parents[i]; p != 0; p = parents[p] {
			if p == -1 {
				return fmt.Errorf("%w: question %d is unreachable", ErrInvalidGraph, i)
			}
			steps++
			if steps > g.Len() {
				return fmt.Errorf("%w: cycle through question %d", ErrInvalidGraph, i)
			}
		}
	}
	return nil
}

// Reachable returns the indices reachable from the root in depth-first,
// answer order. Each index appears once.
func (g *PollGraph) Reachable() []int {
	if g.Len() == 0 {
		return nil
	}
	visited := make(map[int]bool, g.Len())
	var order []int
	var walk func(i int)
	walk = func(i int) {
		if visited[i] || i < 0 || i >= g.Len() {
			return
		}
		visited[i] = true
		order = append(order, i)
		for _, a := range g.Questions[i].Answers {
			if a.NextQuestion != nil {
				walk(*a.NextQuestion)
			}
		}
	}
	walk(0)
	return order
}

// Equal reports whether two graphs have identical question order, answer
// order and branch targets.
func (g *PollGraph) Equal(other *PollGraph) bool {
	if g.Len() != other.Len() {
		return false
	}
	for i := range g.Questions {
		a, b := g.Questions[i], other.Questions[i]
		if a.Text != b.Text || len(a.Answers) != len(b.Answers) {
			return false
		}
		for j := range a.Answers {
			x, y := a.Answers[j], b.Answers[j]
			if x.Text != y.Text || (x.NextQuestion == nil) != (y.NextQuestion == nil) {
				return false
			}
			if x.NextQuestion != nil && *x.NextQuestion != *y.NextQuestion {
				return false
			}
		}
	}
	return true
}

// Next is a helper to build answer targets in literals.
func Next(i int) *int {
	return &i
}

// Clone returns a deep copy of the graph.
func (g *PollGraph) Clone() PollGraph {
	out := PollGraph{Questions: make([]Question, len(g.Questions))}
	for i, q := range g.Questions {
		q.Answers = append([]Answer(nil), q.Answers...)
		for j, a := range q.Answers {
			if a.NextQuestion != nil {
				q.Answers[j].NextQuestion = Next(*a.NextQuestion)
			}
		}
		out.Questions[i] = q
	}
	return out
}
