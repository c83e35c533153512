package atomcell

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-atomcell/internal/futex"
)

// MutexState is the value of a [Mutex]'s lock word.
//
// State Machine:
//
//	MutexUnlocked (0) → MutexLocked (1)     [Lock fast path, CAS]
//	MutexLocked (1)   → MutexContended (2)  [Lock slow path, Swap]
//	MutexUnlocked (0) → MutexContended (2)  [Lock slow path, Swap]
//	MutexLocked (1)   → MutexUnlocked (0)   [Unlock, no wake]
//	MutexContended (2) → MutexUnlocked (0)  [Unlock, wake one]
type MutexState uint32

const (
	// MutexUnlocked indicates the mutex is free.
	MutexUnlocked MutexState = 0
	// MutexLocked indicates the mutex is held, and no goroutine is known to
	// be waiting.
	MutexLocked MutexState = 1
	// MutexContended indicates the mutex is held, and at least one goroutine
	// is, or may be, blocked waiting for it.
	MutexContended MutexState = 2
)

const (
	mutexUnlocked  = uint32(MutexUnlocked)
	mutexLocked    = uint32(MutexLocked)
	mutexContended = uint32(MutexContended)
)

// String returns a human-readable representation of the state.
func (s MutexState) String() string {
	switch s {
	case MutexUnlocked:
		return "Unlocked"
	case MutexLocked:
		return "Locked"
	case MutexContended:
		return "Contended"
	default:
		return "Unknown"
	}
}

// Mutex is an adaptive mutual exclusion lock, optimised for short critical
// sections under low contention. An uncontended Lock is a single CAS, and an
// uncontended Unlock is a single swap. A contended Lock first spins
// (yielding the processor each iteration), then blocks using the operating
// system's futex (or an emulation, on platforms that lack one).
//
// Unlock wakes at most one waiter, and only if the lock was marked
// contended. The woken goroutine re-marks the lock contended when it
// acquires it, which ensures any remaining waiters are also eventually
// woken. There is no hand-off: a newly-arriving goroutine may win the race,
// and acquisition order is not FIFO.
//
// The zero value is an unlocked mutex, with default configuration. A Mutex
// must not be copied after first use.
type Mutex struct {
	state uint32
	cfg   *mutexConfig
}

var (
	// compile time assertions

	_ sync.Locker = (*Mutex)(nil)
)

// NewMutex returns a configured Mutex. It panics if any option is invalid.
// Configuration is only necessary to override defaults, or to attach stats
// or a logger.
func NewMutex(opts ...MutexOption) *Mutex {
	cfg, err := resolveMutexOptions(opts)
	if err != nil {
		panic(err)
	}
	return &Mutex{cfg: cfg}
}

// Lock acquires the mutex, blocking until it is available.
func (m *Mutex) Lock() {
	if atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexLocked) {
		m.config().stats.fastAcquire()
		return
	}
	m.lockContended()
}

// TryLock attempts to acquire the mutex without blocking, and reports
// whether it succeeded.
func (m *Mutex) TryLock() bool {
	if atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexLocked) {
		m.config().stats.fastAcquire()
		return true
	}
	return false
}

// Unlock releases the mutex. Like [sync.Mutex], a locked Mutex is not
// associated with a particular goroutine. It panics if the mutex is not
// locked.
func (m *Mutex) Unlock() {
	switch atomic.SwapUint32(&m.state, mutexUnlocked) {
	case mutexLocked:
	case mutexContended:
		m.wake()
	default:
		panic(`atomcell: unlock of unlocked mutex`)
	}
}

// State returns a snapshot of the lock word, e.g. for diagnostics.
func (m *Mutex) State() MutexState {
	return MutexState(atomic.LoadUint32(&m.state))
}

func (m *Mutex) lockContended() {
	cfg := m.config()
	cfg.stats.slowAcquire()

	// spin first, in case the lock is released quickly
	state := m.spin(cfg)

	// if it's unlocked now, try to take it without marking it contended
	if state == mutexUnlocked {
		if atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexLocked) {
			return
		}
		state = atomic.LoadUint32(&m.state)
	}

	for {
		// Mark contended. Skip the write if already contended, to be easier
		// on the cache. Swapping from unlocked means we now hold the lock.
		if state != mutexContended && atomic.SwapUint32(&m.state, mutexContended) == mutexUnlocked {
			return
		}

		cfg.stats.wait()
		// rate limited per call site, if the logger is configured for it
		cfg.logger.Trace().Limit().Log(`mutex contended, waiting`)

		// blocks only if the word is still contended
		cfg.wait(&m.state, mutexContended)

		state = m.spin(cfg)
	}
}

// spin loads (and never writes) the lock word, stopping once the mutex is
// unlocked, contended, or the spin limit is reached.
func (m *Mutex) spin(cfg *mutexConfig) uint32 {
	for n := cfg.spinLimit; ; n-- {
		state := atomic.LoadUint32(&m.state)
		if state != mutexLocked || n <= 0 {
			return state
		}
		cfg.stats.spin()
		runtime.Gosched()
	}
}

func (m *Mutex) wake() {
	cfg := m.config()
	cfg.stats.wake()
	cfg.wake(&m.state)
}

func (m *Mutex) config() *mutexConfig {
	if m.cfg != nil {
		return m.cfg
	}
	return &defaultMutexConfig
}

func (x *mutexConfig) wait(addr *uint32, val uint32) {
	if x.waiter != nil {
		x.waiter.Wait(addr, val)
	} else {
		futex.Wait(addr, val)
	}
}

func (x *mutexConfig) wake(addr *uint32) {
	if x.waiter != nil {
		x.waiter.Wake(addr, 1)
	} else {
		futex.Wake(addr, 1)
	}
}
