//go:build linux

package futex

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// not exported by x/sys/unix (see futex(2))
const (
	_FUTEX_WAIT         = 0
	_FUTEX_WAKE         = 1
	_FUTEX_PRIVATE_FLAG = 128

	_FUTEX_WAIT_PRIVATE = _FUTEX_WAIT | _FUTEX_PRIVATE_FLAG
	_FUTEX_WAKE_PRIVATE = _FUTEX_WAKE | _FUTEX_PRIVATE_FLAG
)

// Wait blocks the calling thread while *addr == val, with no timeout.
// It returns immediately if the word already differs, and may return
// spuriously.
func Wait(addr *uint32, val uint32) {
	for {
		_, _, errno := unix.Syscall6(
			unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(addr)),
			_FUTEX_WAIT_PRIVATE,
			uintptr(val),
			0, // no timeout
			0,
			0,
		)
		// EAGAIN: the word no longer held val
		if errno != unix.EINTR {
			return
		}
	}
}

// Wake wakes at most n threads blocked in [Wait] on addr, returning the
// number woken.
func Wake(addr *uint32, n int) int {
	if n <= 0 {
		return 0
	}
	r1, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		_FUTEX_WAKE_PRIVATE,
		uintptr(n),
		0,
		0,
		0,
	)
	if errno != 0 {
		return 0
	}
	return int(r1)
}

// Native reports whether [Wait] and [Wake] are backed by the operating
// system, rather than by the process-wide [Table].
const Native = true
