package atomcell

import (
	"sync/atomic"
)

type (
	// Stats accumulates contention counters for one or more [Mutex]
	// instances. It is attached using [WithStats], and is safe for
	// concurrent use. All methods accept a nil receiver, in which case they
	// do nothing.
	Stats struct {
		fastAcquires atomic.Uint64
		slowAcquires atomic.Uint64
		spins        atomic.Uint64
		waits        atomic.Uint64
		wakes        atomic.Uint64
	}

	// StatsSnapshot is a point-in-time copy of [Stats].
	StatsSnapshot struct {
		// FastAcquires counts acquisitions taken by the uncontended CAS.
		FastAcquires uint64
		// SlowAcquires counts acquisitions that entered the spin/wait path.
		SlowAcquires uint64
		// Spins counts spin iterations (each one yields the processor).
		Spins uint64
		// Waits counts calls to the OS wait primitive.
		Waits uint64
		// Wakes counts wake signals issued by Unlock.
		Wakes uint64
	}
)

// Snapshot returns the current counter values. Counters are read
// individually, so a snapshot taken under load is not a consistent cut.
func (x *Stats) Snapshot() (s StatsSnapshot) {
	if x != nil {
		s.FastAcquires = x.fastAcquires.Load()
		s.SlowAcquires = x.slowAcquires.Load()
		s.Spins = x.spins.Load()
		s.Waits = x.waits.Load()
		s.Wakes = x.wakes.Load()
	}
	return
}

// Acquires returns the total number of acquisitions.
func (x StatsSnapshot) Acquires() uint64 {
	return x.FastAcquires + x.SlowAcquires
}

func (x *Stats) fastAcquire() {
	if x != nil {
		x.fastAcquires.Add(1)
	}
}

func (x *Stats) slowAcquire() {
	if x != nil {
		x.slowAcquires.Add(1)
	}
}

func (x *Stats) spin() {
	if x != nil {
		x.spins.Add(1)
	}
}

func (x *Stats) wait() {
	if x != nil {
		x.waits.Add(1)
	}
}

func (x *Stats) wake() {
	if x != nil {
		x.wakes.Add(1)
	}
}
