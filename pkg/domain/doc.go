/*
Package domain contains the core models of a branching poll.

It defines the compiled questionnaire (PollGraph, Question, Answer), the poll
record that owns it, the per-respondent session cursor and the tally report.
This package is kept pure and free of I/O so that compilers, trackers and
storage adapters can share it.

# Key Entities

  - PollGraph: ordered questions addressed by index; questions[0] is the entry point.
  - Answer: choice text plus an optional branch target (NextQuestion).
  - SessionState: where one respondent is inside one poll, and what they chose so far.
  - Report: the recursive tally view rendered by presentation layers.
*/
package domain
