/*
Package ports defines the driven ports (interfaces) of the poll engine.

These interfaces decouple the compiler, session tracker and tally aggregator
from concrete storage and locking backends.

# Key Interfaces

  - StructureParser: Compiles authored text into a PollGraph.
  - PollStore: Persists compiled polls and the owner index.
  - TallyStore: Holds the per (poll, question, answer) vote counters.
  - SessionStore: Persists respondent cursors so sessions survive restarts.
  - DistributedLocker: Serializes session access across replicas.
*/
package ports
