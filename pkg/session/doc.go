/*
Package session implements the respondent state machine and its concurrent
bookkeeping.

Advance is the pure transition function over a PollGraph. Tracker wraps it
with per-respondent locking (local, and optionally distributed), in-memory
authoritative state, and write-behind persistence through a ports.SessionStore.
*/
package session
