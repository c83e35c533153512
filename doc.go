// Package atomcell implements a reference-counted, mutex-protected shared
// cell, intended as a lighter substitute for a pointer-plus-[sync.Mutex]
// pairing, in workloads with low contention and short critical sections.
//
// # Handles
//
// [New] allocates a control block, holding the value, a strong count, a weak
// count, and an embedded [Mutex]. It returns the first strong handle, a
// [Cell]. Further handles are produced by [Cell.Clone], [Cell.Downgrade],
// [Weak.Clone], and [Weak.Upgrade], and every handle must be released
// exactly once. When the last Cell is released the value is torn down, and
// weak handles can no longer upgrade. The control block itself is released
// after the last handle of either kind.
//
// The value is only accessible while holding the lock, via [Cell.Lock],
// [Map], [MapMut], [Cell.Get], [Cell.Set], and [Cell.Swap]. There is no
// unguarded accessor.
//
// # Cycles
//
// Reference cycles between cells are broken by construction: link forward
// with Cell, and link backward with Weak. For example, a doubly linked list
// node holds its next node as a *Cell, and its previous node as a *Weak, and
// the list holds its head as a *Cell and its tail as a *Weak.
//
// # Mutex
//
// [Mutex] is a three-state (unlocked, locked, contended) lock. Acquisition
// tries a single CAS, then spins briefly (yielding the processor), then
// blocks on the operating system's futex, which on Linux is the private
// futex, and elsewhere an in-process emulation. Release wakes one waiter,
// only if the lock was contended. Acquisition is not FIFO.
//
// # Parker
//
// [Parker] is a small FIFO parking utility built on [Cell], included to
// demonstrate composing the primitives.
package atomcell
