// Package recurrence decides when a recurring task can be completed again.
//
// Everything here is a pure function of its arguments. Callers read the clock
// once and pass "now" explicitly, so results are deterministic:
//   - IsAvailable gates the "complete" action for a task snapshot
//   - NextReset computes the next UTC reset boundary for a cadence
//   - FormatCountdown renders the remaining time until a boundary
//
// All calendar arithmetic happens in UTC regardless of the location carried by
// the supplied times.
package recurrence
