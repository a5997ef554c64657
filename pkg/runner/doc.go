/*
Package runner drives a respondent through a poll from a terminal or any
other host that can present a list of choices and read one back.

The engine never renders anything itself. A Presenter shows the question and
its ordered options and returns the respondent's raw choice; the Runner
sanitizes it, submits it and re-prompts on unknown answers until the session
terminates.

# Usage

	r := runner.New(engine,
		runner.WithPresenter(runner.NewTextPresenter(os.Stdin, os.Stdout)),
	)

	if err := r.Run(ctx, pollID, "alice"); err != nil {
		log.Fatal(err)
	}
*/
package runner
