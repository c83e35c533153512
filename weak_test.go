package atomcell

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeak_Upgrade(t *testing.T) {
	t.Parallel()
	c := New(3)
	w := c.Downgrade()
	defer w.Release()

	assert.Equal(t, int64(1), w.WeakCount())
	assert.Equal(t, int64(1), c.WeakCount())

	u, ok := w.Upgrade()
	require.True(t, ok)
	assert.Equal(t, c.Get(), u.Get())
	assert.True(t, u.Same(c))
	assert.Equal(t, int64(2), w.StrongCount())

	u.Release()
	c.Release()
	assert.Zero(t, w.StrongCount())
	assert.Equal(t, int64(1), w.WeakCount())

	for range 3 {
		u, ok = w.Upgrade()
		assert.False(t, ok)
		assert.Nil(t, u)
	}
}

func TestWeak_Clone(t *testing.T) {
	t.Parallel()
	var counter lifecycleCounter
	c := New([]int{1}, counter.options()...)
	w1 := c.Downgrade()
	w2 := w1.Clone()
	assert.Equal(t, int64(2), c.WeakCount())
	c.Release()
	assert.Equal(t, int64(2), w1.WeakCount())
	assert.Equal(t, int32(1), counter.drops.Load())
	w1.Release()
	w1.Release()
	assert.Zero(t, counter.frees.Load())
	w2.Release()
	assert.Equal(t, int32(1), counter.frees.Load())
}

// Every release ordering of strong and weak handles must free exactly once.
func TestLifecycle_releaseOrders(t *testing.T) {
	t.Parallel()
	type handles struct {
		strong []*Cell[[]int]
		weak   []*Weak[[]int]
	}
	for _, tc := range []struct {
		name  string
		steps func(h *handles)
	}{
		{`strong only`, func(h *handles) {
			h.strong[0].Release()
		}},
		{`strong, weak, drop strong, drop weak`, func(h *handles) {
			h.weak = append(h.weak, h.strong[0].Downgrade())
			h.strong[0].Release()
			h.weak[0].Release()
		}},
		{`weak, strong, drop weak, drop strong`, func(h *handles) {
			w := h.strong[0].Downgrade()
			h.strong = append(h.strong, h.strong[0].Clone())
			w.Release()
			h.strong[0].Release()
			h.strong[1].Release()
		}},
		{`upgrade keeps value alive`, func(h *handles) {
			w := h.strong[0].Downgrade()
			u, ok := w.Upgrade()
			if !ok {
				panic(`expected upgrade`)
			}
			h.strong[0].Release()
			w.Release()
			u.Release()
		}},
		{`many clones, interleaved`, func(h *handles) {
			for range 5 {
				h.strong = append(h.strong, h.strong[0].Clone())
				h.weak = append(h.weak, h.strong[len(h.strong)-1].Downgrade())
			}
			for i := range h.strong {
				h.strong[i].Release()
				h.weak[len(h.weak)-1-i%len(h.weak)].Release()
			}
			for _, w := range h.weak {
				w.Release()
			}
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var counter lifecycleCounter
			h := handles{strong: []*Cell[[]int]{New([]int{1}, counter.options()...)}}
			tc.steps(&h)
			assert.Equal(t, int32(1), counter.drops.Load())
			assert.Equal(t, int32(1), counter.frees.Load())
		})
	}
}

// Upgrade must never resurrect a cell whose value has been dropped.
func TestWeak_Upgrade_raceWithRelease(t *testing.T) {
	t.Parallel()
	for range 2000 {
		var (
			dropped atomic.Bool
			frees   atomic.Int32
			c       = New(1,
				WithDrop(func(int) {
					if dropped.Swap(true) {
						t.Error(`dropped twice`)
					}
				}),
				WithFree(func() { frees.Add(1) }),
			)
			w     = c.Downgrade()
			start = make(chan struct{})
			wg    sync.WaitGroup
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			c.Release()
		}()
		go func() {
			defer wg.Done()
			defer w.Release()
			<-start
			if u, ok := w.Upgrade(); ok {
				if dropped.Load() {
					t.Error(`upgraded after drop`)
				}
				if v := u.Get(); v != 1 {
					t.Errorf(`unexpected value %d`, v)
				}
				u.Release()
			}
		}()
		close(start)
		wg.Wait()
		require.True(t, dropped.Load())
		require.Equal(t, int32(1), frees.Load())
	}
}

func TestWeak_Upgrade_overflow(t *testing.T) {
	t.Parallel()
	c := New(1)
	w := c.Downgrade()
	c.load().strong.Store(math.MaxInt64)
	require.ErrorIs(t, recoverError(func() { w.Upgrade() }), ErrRefCountOverflow)
}

func TestWeak_Clone_overflow(t *testing.T) {
	t.Parallel()
	c := New(1)
	w := c.Downgrade()
	c.load().weak.Store(math.MaxInt64)
	require.ErrorIs(t, recoverError(func() { w.Clone() }), ErrRefCountOverflow)
}

func TestWeak_useAfterRelease(t *testing.T) {
	t.Parallel()
	c := New(1)
	defer c.Release()
	w := c.Downgrade()
	w.Release()
	assert.ErrorIs(t, recoverError(func() { w.Upgrade() }), ErrReleased)
	assert.ErrorIs(t, recoverError(func() { w.Clone() }), ErrReleased)
	assert.ErrorIs(t, recoverError(func() { w.StrongCount() }), ErrReleased)
	assert.ErrorIs(t, recoverError(func() { w.WeakCount() }), ErrReleased)
	var nilWeak *Weak[int]
	nilWeak.Release()
	assert.ErrorIs(t, recoverError(func() { nilWeak.Upgrade() }), ErrReleased)
}
