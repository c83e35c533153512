//go:build !linux

package futex

var global Table

// Wait blocks the calling goroutine while *addr == val, with no timeout.
// It returns immediately if the word already differs, and may return
// spuriously.
func Wait(addr *uint32, val uint32) { global.Wait(addr, val) }

// Wake wakes at most n goroutines blocked in [Wait] on addr, returning the
// number woken.
func Wake(addr *uint32, n int) int { return global.Wake(addr, n) }

// Native reports whether [Wait] and [Wake] are backed by the operating
// system, rather than by the process-wide [Table].
const Native = false
