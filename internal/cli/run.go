package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/branchpoll/internal/presentation/report"
	"github.com/aretw0/branchpoll/internal/presentation/tui"
	"github.com/aretw0/branchpoll/pkg/runner"
)

// RunOptions configures one interactive poll session.
type RunOptions struct {
	// PollID selects a stored poll. Ignored when Structure is set.
	PollID int64
	// Structure, when not empty, is compiled into a throwaway poll first.
	Structure  string
	Respondent string
	// Quiet suppresses the banner and the closing results.
	Quiet bool
	// ShowResults prints the poll tally once the session terminates.
	ShowResults bool
}

// Run drives one respondent through a poll reading from in and writing to out.
// Leaving early (quit, EOF or a signal) is not an error.
func Run(ctx context.Context, stack *Stack, opts RunOptions, in io.Reader, out io.Writer, logger *slog.Logger) error {
	eng := stack.Engine
	if opts.Respondent == "" {
		return errors.New("a respondent id is required")
	}

	pollID := opts.PollID
	if opts.Structure != "" {
		poll, err := eng.CreatePoll(ctx, 0, "ad-hoc", opts.Structure)
		if err != nil {
			return err
		}
		pollID = poll.ID
	}

	f, _ := in.(*os.File)
	fo, _ := out.(*os.File)
	interactive := runner.IsTerminal(f) && runner.IsTerminal(fo)

	var presenterOpts []runner.TextPresenterOption
	if interactive {
		presenterOpts = append(presenterOpts, runner.WithRenderer(func(s string) (string, error) {
			return tui.Highlight(out, s), nil
		}))
		if !opts.Quiet {
			tui.PrintBanner(out)
		}
	}

	presenter := runner.NewTextPresenter(in, out, presenterOpts...)
	defer presenter.Close()

	r := runner.New(eng,
		runner.WithPresenter(presenter),
		runner.WithLogger(logger),
	)
	state, err := r.Run(ctx, pollID, opts.Respondent)
	if err != nil {
		if isInterrupted(err) && !opts.Quiet {
			fmt.Fprintln(out)
			printSystemMessage(out, "Session left unfinished. Run again to restart from the first question.")
		}
		return handleExecutionError(err)
	}
	logger.Info("session finished", "poll_id", pollID, "respondent", opts.Respondent, "answers", len(state.History))

	if opts.ShowResults && !opts.Quiet {
		rep, err := eng.Report(ctx, pollID)
		if err != nil {
			return err
		}
		if interactive {
			if rendered, err := tui.NewRenderer()(report.Markdown(rep)); err == nil {
				fmt.Fprint(out, rendered)
				return nil
			}
		}
		fmt.Fprintln(out)
		return report.WriteText(out, rep)
	}
	return nil
}
