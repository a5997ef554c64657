// Package redis implements the poll, tally and session ports and a
// distributed locker on top of Redis. Counters use HINCRBY, so votes from any
// number of replicas are never lost.
package redis
