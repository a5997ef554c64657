package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/branchpoll/pkg/domain"
	"golang.org/x/term"
)

// ErrQuit is returned by a Presenter when the respondent asks to leave.
var ErrQuit = errors.New("respondent quit")

// Presenter is the host side of a poll: present N choices, receive one.
type Presenter interface {
	// Present shows the prompt and returns the raw choice of the respondent.
	Present(ctx context.Context, prompt domain.Prompt) (string, error)

	// Reject tells the respondent the last choice was not accepted.
	Reject(ctx context.Context, choice string, reason error) error

	// Finish is called once the session has terminated.
	Finish(ctx context.Context, state *domain.SessionState) error
}

// ContentRenderer transforms text before it is written, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)

// TextPresenter numbers the options and reads one line per prompt.
// A reply may be the option number or the exact answer text.
type TextPresenter struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	options   []string
	inputChan chan inputResult
	startOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextPresenterOption defines configuration for TextPresenter.
type TextPresenterOption func(*TextPresenter)

// WithRenderer configures the renderer applied to question text.
func WithRenderer(renderer ContentRenderer) TextPresenterOption {
	return func(p *TextPresenter) {
		p.Renderer = renderer
	}
}

// NewTextPresenter creates a presenter for standard text IO.
func NewTextPresenter(r io.Reader, w io.Writer, opts ...TextPresenterOption) *TextPresenter {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	p := &TextPresenter{
		Reader: bufio.NewReader(r),
		Writer: w,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsTerminal reports whether f is attached to an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func (p *TextPresenter) initPump() {
	p.startOnce.Do(func() {
		p.inputChan = make(chan inputResult)
		go p.pump()
	})
}

// pump reads lines in the background so a blocked read never outlives ctx.
// It exits once the presenter is closed, even with a line nobody asked for.
func (p *TextPresenter) pump() {
	defer close(p.inputChan)
	for {
		text, err := p.Reader.ReadString('\n')
		if text != "" && !p.send(inputResult{text: text}) {
			return
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.send(inputResult{err: err})
			}
			return
		}
	}
}

func (p *TextPresenter) send(res inputResult) bool {
	select {
	case p.inputChan <- res:
		return true
	case <-p.done:
		return false
	}
}

// Close stops the background reader. Present must not be called afterwards.
func (p *TextPresenter) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// Present prints the question with numbered options and waits for one reply.
// "exit" and "quit" return ErrQuit unless they are the exact text of an option.
func (p *TextPresenter) Present(ctx context.Context, prompt domain.Prompt) (string, error) {
	p.initPump()

	text := prompt.Text
	if p.Renderer != nil {
		if rendered, err := p.Renderer(text); err == nil {
			text = strings.TrimSpace(rendered)
		}
	}
	fmt.Fprintln(p.Writer, text)
	for i, opt := range prompt.Options {
		fmt.Fprintf(p.Writer, "  %d) %s\n", i+1, opt)
	}
	p.options = prompt.Options

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		fmt.Fprint(p.Writer, "> ")
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-p.inputChan:
		if !ok {
			return "", io.EOF
		}
		if res.err != nil {
			return "", res.err
		}
		choice := strings.TrimSpace(res.text)
		if slices.Contains(p.options, choice) {
			return choice, nil
		}
		switch strings.ToLower(choice) {
		case "exit", "quit":
			return "", ErrQuit
		}
		return p.resolve(choice), nil
	}
}

// resolve maps an option number to its text. An exact answer text wins over
// a number; anything else is passed through.
func (p *TextPresenter) resolve(choice string) string {
	for _, opt := range p.options {
		if opt == choice {
			return choice
		}
	}
	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(p.options) {
		return choice
	}
	return p.options[n-1]
}

// Reject prints why the choice was refused.
func (p *TextPresenter) Reject(ctx context.Context, choice string, reason error) error {
	if errors.Is(reason, domain.ErrUnknownAnswer) {
		_, err := fmt.Fprintf(p.Writer, "%q is not one of the options. Please try again.\n", choice)
		return err
	}
	_, err := fmt.Fprintf(p.Writer, "Error: %v. Please try again.\n", reason)
	return err
}

// Finish prints the respondent's path through the poll.
func (p *TextPresenter) Finish(ctx context.Context, state *domain.SessionState) error {
	_, err := fmt.Fprintf(p.Writer, "Thanks! You answered %d question(s).\n", len(state.History))
	return err
}
