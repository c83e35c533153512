package atomcell

import (
	"fmt"
	"sync/atomic"
)

type (
	// Cell is a strong (owning) handle to a shared, mutex-protected value.
	// All handles produced from the same [New] call, by [Cell.Clone],
	// [Cell.Downgrade], or [Weak.Upgrade], share a single control block.
	//
	// The value is only reachable through [Cell.Lock], [Map], [MapMut], and
	// the helpers built on them, each of which holds the embedded [Mutex]
	// for the duration of the call. There is a single, exclusive, lock mode:
	// reads serialize with writes.
	//
	// Each handle must be released exactly once, using [Cell.Release]. When
	// the last Cell is released, the value is torn down (see [WithDrop]), and
	// any remaining [Weak] handles will fail to upgrade. Using a handle after
	// releasing it panics with an error wrapping [ErrReleased].
	//
	// A Cell must not be copied, use [Cell.Clone].
	Cell[T any] struct {
		b atomic.Pointer[block[T]]
	}

	// block is the control block shared by every handle.
	//
	// The weak count includes one implicit unit, held collectively by the
	// strong handles, so the block outlives the value even when no Weak was
	// ever created. The strong family releases that unit only after the
	// strong count reaches zero, so weak >= 1 whenever strong > 0.
	block[T any] struct {
		value  T
		opts   *cellOptions
		drop   func(T)
		clone  func(T) T
		mu     Mutex
		strong atomic.Int64
		weak   atomic.Int64
	}
)

// New allocates a control block holding value, returning the first strong
// handle to it (strong count 1, weak count 1). It panics if any option is
// invalid, e.g. a [WithDrop] hook for a different type.
func New[T any](value T, opts ...Option) *Cell[T] {
	cfg, err := resolveCellOptions(opts)
	if err != nil {
		panic(err)
	}
	return newWithOptions(value, cfg)
}

func newWithOptions[T any](value T, cfg *cellOptions) *Cell[T] {
	b := &block[T]{
		value: value,
		opts:  cfg,
	}
	b.mu.cfg = &cfg.mutex

	if cfg.drop != nil {
		drop, ok := cfg.drop.(func(T))
		if !ok {
			panic(fmt.Errorf(`atomcell: WithDrop hook %T does not match %T`, cfg.drop, (*Cell[T])(nil)))
		}
		b.drop = drop
	}
	if cfg.clone != nil {
		clone, ok := cfg.clone.(func(T) T)
		if !ok {
			panic(fmt.Errorf(`atomcell: WithClone hook %T does not match %T`, cfg.clone, (*Cell[T])(nil)))
		}
		b.clone = clone
	}

	b.strong.Store(1)
	b.weak.Store(1)

	return newCell(b)
}

// Map calls fn with a copy of the protected value, while holding the lock,
// returning the result of fn.
func Map[T, U any](c *Cell[T], fn func(value T) U) U {
	if fn == nil {
		panic(`atomcell: nil fn`)
	}
	b := c.load()
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(b.value)
}

// MapMut calls fn with a pointer to the protected value, while holding the
// lock, returning the result of fn. The pointer must not be retained beyond
// the call.
func MapMut[T, U any](c *Cell[T], fn func(value *T) U) U {
	if fn == nil {
		panic(`atomcell: nil fn`)
	}
	b := c.load()
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(&b.value)
}

// Lock calls fn with a pointer to the protected value, while holding the
// lock. The lock is released even if fn panics. The pointer must not be
// retained beyond the call.
func (c *Cell[T]) Lock(fn func(value *T)) {
	if fn == nil {
		panic(`atomcell: nil fn`)
	}
	b := c.load()
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.value)
}

// Get returns a copy of the protected value. The copy is shallow, unless a
// copy function was provided using [WithClone].
func (c *Cell[T]) Get() T {
	b := c.load()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clone != nil {
		return b.clone(b.value)
	}
	return b.value
}

// Set replaces the protected value.
func (c *Cell[T]) Set(value T) {
	b := c.load()
	b.mu.Lock()
	b.value = value
	b.mu.Unlock()
}

// Swap replaces the protected value, returning the previous value.
func (c *Cell[T]) Swap(value T) (old T) {
	b := c.load()
	b.mu.Lock()
	old, b.value = b.value, value
	b.mu.Unlock()
	return
}

// Clone returns a new strong handle to the same control block. It panics
// with an error wrapping [ErrRefCountOverflow] if the strong count cannot be
// incremented.
func (c *Cell[T]) Clone() *Cell[T] {
	b := c.load()
	if b.strong.Add(1) <= 0 {
		b.overflow(`strong`)
	}
	return newCell(b)
}

// Downgrade returns a new weak handle to the same control block. It does
// not touch the lock.
func (c *Cell[T]) Downgrade() *Weak[T] {
	b := c.load()
	if b.weak.Add(1) <= 0 {
		b.overflow(`weak`)
	}
	return newWeak(b)
}

// Release drops this handle. If it was the last strong handle, the value is
// torn down, and the strong family's share of the control block is
// released. Calling Release more than once, or on a nil handle, does
// nothing.
func (c *Cell[T]) Release() {
	if c == nil {
		return
	}
	if b := c.b.Swap(nil); b != nil {
		b.releaseStrong()
	}
}

// StrongCount returns a snapshot of the number of strong handles.
func (c *Cell[T]) StrongCount() int64 {
	return c.load().strong.Load()
}

// WeakCount returns a snapshot of the number of weak handles.
func (c *Cell[T]) WeakCount() int64 {
	return c.load().weakCount()
}

// Same reports whether c and other refer to the same control block.
func (c *Cell[T]) Same(other *Cell[T]) bool {
	return c.load() == other.load()
}

func newCell[T any](b *block[T]) *Cell[T] {
	c := new(Cell[T])
	c.b.Store(b)
	return c
}

func (c *Cell[T]) load() *block[T] {
	if c != nil {
		if b := c.b.Load(); b != nil {
			return b
		}
	}
	panicf(ErrReleased, `%T`, c)
	return nil
}

func (b *block[T]) releaseStrong() {
	if b.strong.Add(-1) != 0 {
		return
	}
	b.dropValue()
	// the implicit weak reference held by the strong family
	b.releaseWeak()
}

// dropValue tears down the value. No strong handle exists, and none can be
// created, so the lock is uncontended here.
func (b *block[T]) dropValue() {
	var zero T
	b.mu.Lock()
	value := b.value
	b.value = zero
	b.mu.Unlock()
	if b.drop != nil {
		b.drop(value)
	}
	b.opts.logger.Debug().Log(`cell value dropped`)
}

func (b *block[T]) releaseWeak() {
	if b.weak.Add(-1) != 0 {
		return
	}
	if b.opts.free != nil {
		b.opts.free()
	}
	b.opts.logger.Trace().Log(`cell block freed`)
}

func (b *block[T]) weakCount() int64 {
	weak := b.weak.Load()
	if b.strong.Load() > 0 {
		weak--
	}
	return weak
}

func (b *block[T]) overflow(count string) {
	b.opts.logger.Crit().
		Str(`count`, count).
		Log(`cell reference count overflow`)
	panicf(ErrRefCountOverflow, `%s count`, count)
}
