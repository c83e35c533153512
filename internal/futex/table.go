package futex

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// tableSize must be a power of two.
const tableSize = 256

type (
	// Table emulates futex wait/wake for arbitrary words, using a fixed
	// number of hashed buckets. The zero value is ready to use. A Table must
	// not be copied after first use.
	//
	// Lost wakeups are prevented by checking the word while holding the
	// bucket lock: a waker that changes the word and then calls Wake must
	// acquire the same bucket lock, and will therefore observe any waiter
	// that saw the old value.
	Table struct {
		buckets [tableSize]bucket
	}

	bucket struct {
		waiters []*waiter
		mu      sync.Mutex
		_       [64]byte // reduce false sharing between neighbouring buckets
	}

	waiter struct {
		addr *uint32
		ch   chan struct{}
	}
)

// Waiter is the behavior shared by the OS futex and [Table].
type Waiter interface {
	Wait(addr *uint32, val uint32)
	Wake(addr *uint32, n int) int
}

var (
	// compile time assertions

	_ Waiter = (*Table)(nil)
	_ Waiter = System{}
)

// System is a [Waiter] that calls the package-level [Wait] and [Wake].
type System struct{}

func (System) Wait(addr *uint32, val uint32) { Wait(addr, val) }

func (System) Wake(addr *uint32, n int) int { return Wake(addr, n) }

// Wait blocks while *addr == val. See the package-level [Wait].
func (x *Table) Wait(addr *uint32, val uint32) {
	b := x.bucket(addr)
	b.mu.Lock()
	if atomic.LoadUint32(addr) != val {
		b.mu.Unlock()
		return
	}
	w := &waiter{addr: addr, ch: make(chan struct{})}
	b.waiters = append(b.waiters, w)
	b.mu.Unlock()
	<-w.ch
}

// Wake wakes at most n waiters on addr, oldest first. See the package-level
// [Wake].
func (x *Table) Wake(addr *uint32, n int) int {
	if n <= 0 {
		return 0
	}
	b := x.bucket(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	var woken int
	kept := b.waiters[:0]
	for _, w := range b.waiters {
		if woken < n && w.addr == addr {
			close(w.ch)
			woken++
			continue
		}
		kept = append(kept, w)
	}
	clear(b.waiters[len(kept):])
	b.waiters = kept
	return woken
}

// Waiters returns the number of goroutines currently blocked on addr.
func (x *Table) Waiters(addr *uint32) (n int) {
	b := x.bucket(addr)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.waiters {
		if w.addr == addr {
			n++
		}
	}
	return
}

func (x *Table) bucket(addr *uint32) *bucket {
	// heap objects are not moved by the collector, so the address is stable
	h := uintptr(unsafe.Pointer(addr))
	h ^= h >> 16
	h *= 0x45d9f3b
	h ^= h >> 16
	return &x.buckets[(h>>2)&(tableSize-1)]
}
