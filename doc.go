/*
Package branchpoll compiles branching questionnaires written as indented text
and drives respondents through them one answer at a time, tallying every
accepted answer.

# Concept

An operator authors a poll as plain text. Lines ending in "?" are questions,
every other line is an answer, and indentation decides which answer a nested
question follows:

	Do you like coffee?
	Yes
	  How do you take it?
	  Black
	  With milk
	No

The text compiles into an immutable PollGraph. Each respondent walks it
independently; the Engine serializes answers per (poll, respondent), records
each one in a tally, and reports results along the branches that were
actually taken.

# Usage

	eng := branchpoll.New()
	defer eng.Close(ctx)

	poll, err := eng.CreatePoll(ctx, ownerID, "coffee", text)
	if err != nil {
		log.Fatal(err) // *domain.CompileError carries the line and the kind
	}

	_, prompt, _ := eng.Start(ctx, poll.ID, "alice")
	for !prompt.Done {
		_, prompt, err = eng.Submit(ctx, poll.ID, "alice", prompt.Options[0])
	}

	report, _ := eng.Report(ctx, poll.ID)

# Persistence

The Engine depends on the ports in pkg/ports only. In-memory adapters are the
default; pkg/adapters ships a JSON snapshot store, SQLite and Redis.
*/
package branchpoll
