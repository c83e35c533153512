package atomcell

import (
	"math"
	"sync/atomic"
)

// Weak is a non-owning handle to a [Cell]'s control block. It does not keep
// the value alive, and cannot access it directly, only via [Weak.Upgrade].
//
// Weak handles are the intended way to break reference cycles: in a
// structure built from cells, link "forward" (e.g. next, children) with
// [Cell], and link "backward" (e.g. prev, parent, tail) with Weak.
//
// Each handle must be released exactly once, using [Weak.Release]. A Weak
// must not be copied, use [Weak.Clone].
type Weak[T any] struct {
	b atomic.Pointer[block[T]]
}

// Upgrade attempts to produce a new strong handle. It returns false if the
// last strong handle has already been released, in which case the value has
// been torn down, and every subsequent Upgrade will also fail.
func (w *Weak[T]) Upgrade() (*Cell[T], bool) {
	b := w.load()
	// Increment only from a freshly observed non-zero count. Once the count
	// reaches zero it can never be revived.
	for n := b.strong.Load(); n > 0; n = b.strong.Load() {
		if n == math.MaxInt64 {
			b.overflow(`strong`)
		}
		if b.strong.CompareAndSwap(n, n+1) {
			return newCell(b), true
		}
	}
	return nil, false
}

// Clone returns a new weak handle to the same control block.
func (w *Weak[T]) Clone() *Weak[T] {
	b := w.load()
	if b.weak.Add(1) <= 0 {
		b.overflow(`weak`)
	}
	return newWeak(b)
}

// Release drops this handle. If it was the last handle of any kind, the
// control block is released (see [WithFree]). Calling Release more than
// once, or on a nil handle, does nothing.
//
// No lock is required: reaching zero means no other handle exists, so no
// other goroutine can observe the block.
func (w *Weak[T]) Release() {
	if w == nil {
		return
	}
	if b := w.b.Swap(nil); b != nil {
		b.releaseWeak()
	}
}

// StrongCount returns a snapshot of the number of strong handles.
func (w *Weak[T]) StrongCount() int64 {
	return w.load().strong.Load()
}

// WeakCount returns a snapshot of the number of weak handles.
func (w *Weak[T]) WeakCount() int64 {
	return w.load().weakCount()
}

func newWeak[T any](b *block[T]) *Weak[T] {
	w := new(Weak[T])
	w.b.Store(b)
	return w
}

func (w *Weak[T]) load() *block[T] {
	if w != nil {
		if b := w.b.Load(); b != nil {
			return b
		}
	}
	panicf(ErrReleased, `%T`, w)
	return nil
}
