package compiler

import (
	"fmt"
	"strings"

	"github.com/aretw0/branchpoll/internal/validator"
	"github.com/aretw0/branchpoll/pkg/domain"
)

// DefaultIndentUnit is the number of leading spaces that make one level.
const DefaultIndentUnit = 2

// QuestionMarker is the trailing character that classifies a line as a question.
const QuestionMarker = "?"

// Parser compiles the indentation dialect into a PollGraph.
// A Parser holds no state between calls and is safe for concurrent use.
type Parser struct {
	unit int
}

// Option configures the Parser.
type Option func(*Parser)

// WithIndentUnit sets how many spaces make one level. Values below 1 are ignored.
func WithIndentUnit(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.unit = n
		}
	}
}

// NewParser creates a new parser instance.
func NewParser(opts ...Option) *Parser {
	p := &Parser{unit: DefaultIndentUnit}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IndentUnit returns the configured number of spaces per level.
func (p *Parser) IndentUnit() int {
	return p.unit
}

// Compile parses text with the default parser.
func Compile(text string) (*domain.PollGraph, error) {
	return NewParser().Parse(text)
}

type line struct {
	num     int // 1-based physical line
	level   int
	content string
	err     error
}

// frame is an open question on the ancestor chain.
type frame struct {
	question    int
	level       int
	answerLevel int // -1 until the first answer fixes it
	line        int
}

// Parse compiles text into a graph, returning the first *domain.CompileError
// found scanning top to bottom. No partial graph is ever returned.
func (p *Parser) Parse(text string) (*domain.PollGraph, error) {
	lines := p.split(text)
	if len(lines) == 0 {
		return nil, &domain.CompileError{Kind: domain.KindEmptyStructure, Detail: "no content lines"}
	}

	first := lines[0]
	if first.err != nil {
		return nil, first.err
	}
	if !isQuestion(first.content) || first.level != 0 {
		return nil, &domain.CompileError{
			Line:   first.num,
			Kind:   domain.KindMissingRootQuestion,
			Detail: "the first line must be an unindented question ending with " + QuestionMarker,
		}
	}

	b := &builder{graph: &domain.PollGraph{}}
	var err error
	for _, ln := range lines {
		if ln.err != nil {
			return nil, ln.err
		}
		if isQuestion(ln.content) {
			err = b.question(ln)
		} else {
			err = b.answer(ln)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, f := range b.lines {
		if len(b.graph.Questions[f.question].Answers) == 0 {
			return nil, &domain.CompileError{
				Line:   f.line,
				Kind:   domain.KindQuestionWithoutAnswers,
				Detail: fmt.Sprintf("question %q has no answers", b.graph.Questions[f.question].Text),
			}
		}
	}

	return b.graph, nil
}

// split drops blank lines, right-trims the rest and measures indentation.
// Indentation errors are attached to their line so they surface in order.
func (p *Parser) split(text string) []line {
	var out []line
	for i, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}

		content := strings.TrimLeft(trimmed, " \t")
		lead := trimmed[:len(trimmed)-len(content)]
		ln := line{num: i + 1, level: len(lead) / p.unit, content: content}
		switch {
		case strings.ContainsRune(lead, '\t'):
			ln.err = &domain.CompileError{Line: ln.num, Kind: domain.KindBadIndent, Detail: "tabs are not allowed in indentation"}
		case len(lead)%p.unit != 0:
			ln.err = &domain.CompileError{
				Line:   ln.num,
				Kind:   domain.KindBadIndent,
				Detail: fmt.Sprintf("%d leading spaces is not a multiple of %d", len(lead), p.unit),
			}
		}
		out = append(out, ln)
	}
	return out
}

func isQuestion(content string) bool {
	return strings.HasSuffix(content, QuestionMarker)
}

type builder struct {
	graph *domain.PollGraph
	stack []frame
	lines []frame // every question in document order, for the final check
}

func (b *builder) question(ln line) error {
	idx := len(b.graph.Questions)

	if ln.level == 0 {
		if idx > 0 {
			return &domain.CompileError{Line: ln.num, Kind: domain.KindMultipleRoots, Detail: "only one unindented question is allowed"}
		}
		if err := validator.ValidateQuestionText(ln.content); err != nil {
			return wrap(ln, err)
		}
		b.push(frame{question: idx, level: 0, answerLevel: -1, line: ln.num}, 0)
		b.graph.Questions = append(b.graph.Questions, domain.Question{Text: ln.content, Level: 0})
		return nil
	}

	parent := -1
	for i := len(b.stack) - 1; i >= 0; i-- {
		f := b.stack[i]
		if f.answerLevel == ln.level-1 {
			parent = i
			break
		}
		if f.answerLevel == -1 && f.level == ln.level-1 {
			return &domain.CompileError{
				Line:   ln.num,
				Kind:   domain.KindNoParentAnswer,
				Detail: fmt.Sprintf("question %q has no answer to branch from yet", b.graph.Questions[f.question].Text),
			}
		}
	}
	if parent == -1 {
		return &domain.CompileError{
			Line:   ln.num,
			Kind:   domain.KindNoParentAtLevel,
			Detail: fmt.Sprintf("no open question has answers at level %d", ln.level-1),
		}
	}

	// Attach to the most recently appended answer of the parent question.
	owner := &b.graph.Questions[b.stack[parent].question]
	latest := &owner.Answers[len(owner.Answers)-1]
	if latest.NextQuestion != nil {
		return &domain.CompileError{
			Line:   ln.num,
			Kind:   domain.KindBranchConflict,
			Detail: fmt.Sprintf("answer %q already branches to another question", latest.Text),
		}
	}
	if err := validator.ValidateQuestionText(ln.content); err != nil {
		return wrap(ln, err)
	}

	latest.NextQuestion = domain.Next(idx)
	b.push(frame{question: idx, level: ln.level, answerLevel: -1, line: ln.num}, parent+1)
	b.graph.Questions = append(b.graph.Questions, domain.Question{Text: ln.content, Level: ln.level})
	return nil
}

func (b *builder) answer(ln line) error {
	if len(b.stack) == 0 {
		return &domain.CompileError{Line: ln.num, Kind: domain.KindAnswerBeforeQuestion}
	}

	owner := -1
	for i := len(b.stack) - 1; i >= 0; i-- {
		f := &b.stack[i]
		if f.answerLevel == ln.level {
			owner = i
			break
		}
		// The first answer fixes the level: the question's own, or one deeper.
		if f.answerLevel == -1 && (ln.level == f.level || ln.level == f.level+1) {
			f.answerLevel = ln.level
			owner = i
			break
		}
	}
	if owner == -1 {
		top := b.stack[len(b.stack)-1]
		return &domain.CompileError{
			Line:   ln.num,
			Kind:   domain.KindLevelMismatch,
			Detail: fmt.Sprintf("answer at level %d does not match any open question (innermost is at level %d)", ln.level, top.level),
		}
	}

	if err := validator.ValidateAnswerText(ln.content); err != nil {
		return wrap(ln, err)
	}

	q := &b.graph.Questions[b.stack[owner].question]
	if _, dup := q.Find(ln.content); dup {
		return &domain.CompileError{
			Line:   ln.num,
			Kind:   domain.KindDuplicateAnswer,
			Detail: fmt.Sprintf("answer %q already exists in question %q", ln.content, q.Text),
		}
	}

	b.stack = b.stack[:owner+1]
	q.Answers = append(q.Answers, domain.Answer{Text: ln.content})
	return nil
}

// push closes every frame from depth on and opens f.
func (b *builder) push(f frame, depth int) {
	b.stack = append(b.stack[:depth], f)
	b.lines = append(b.lines, f)
}

func wrap(ln line, err error) error {
	kind, _ := domain.KindOf(err)
	return &domain.CompileError{Line: ln.num, Kind: kind, Detail: err.Error(), Err: err}
}
