/*
Package tally aggregates votes per (poll, question, answer) and lays them out
as a branch-aware report.

Counters live behind ports.TallyStore, so the aggregator itself holds no state
and can be shared by every session of every poll.
*/
package tally
