// Package futex provides the minimal wait/wake primitive required by the
// atomcell mutex: block while a 32-bit word holds an expected value, and wake
// goroutines blocked on that word.
//
// On Linux, [Wait] and [Wake] map directly onto the private futex operations.
// Elsewhere they are backed by a process-wide [Table], which emulates the
// same contract using a hashed set of mutex-guarded wait queues.
//
// Both implementations permit spurious wakeups. Callers must re-check the
// word after [Wait] returns.
package futex
