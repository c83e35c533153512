package atomcell

import (
	"context"
	"slices"
)

// Parker blocks goroutines until they are explicitly unparked, in FIFO
// order. The queue is held in a [Cell], so a Parker and its clones share
// state, and must each be released.
//
// Unlike the Cell's own mutex (which never hands off), an Unpark always
// releases the oldest parked goroutine.
type Parker struct {
	queue *Cell[[]chan struct{}]
	opts  *parkerOptions
}

// NewParker returns a Parker with an empty queue. It panics if any option is
// invalid.
func NewParker(opts ...ParkerOption) *Parker {
	cfg, err := resolveParkerOptions(opts)
	if err != nil {
		panic(err)
	}
	return &Parker{
		queue: newWithOptions[[]chan struct{}](nil, &cfg.cell),
		opts:  cfg,
	}
}

// Park blocks the calling goroutine until it is unparked.
func (x *Parker) Park() {
	<-x.enqueue()
}

// ParkContext blocks the calling goroutine until it is unparked, or ctx is
// done. A goroutine that gives up is removed from the queue. If an unpark
// races with cancellation, the unpark wins, and nil is returned, so no
// wakeup is ever lost.
func (x *Parker) ParkContext(ctx context.Context) error {
	if ctx == nil {
		panic(`atomcell: nil context`)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := x.enqueue()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
	}
	// channels are only closed while holding the lock, so if it isn't
	// queued any more, it has already been unparked
	removed := MapMut(x.queue, func(queue *[]chan struct{}) bool {
		if i := slices.Index(*queue, ch); i >= 0 {
			*queue = slices.Delete(*queue, i, i+1)
			return true
		}
		return false
	})
	if !removed {
		return nil
	}
	x.opts.cell.logger.Debug().Log(`parker wait canceled`)
	return ctx.Err()
}

// Unpark releases the oldest parked goroutine, reporting false if there
// were none.
func (x *Parker) Unpark() bool {
	ok := MapMut(x.queue, func(queue *[]chan struct{}) bool {
		if len(*queue) == 0 {
			return false
		}
		close((*queue)[0])
		(*queue)[0] = nil
		*queue = (*queue)[1:]
		return true
	})
	if ok {
		x.opts.cell.logger.Debug().Log(`parker unparked one`)
	}
	return ok
}

// UnparkAll releases every parked goroutine, returning the number released.
func (x *Parker) UnparkAll() int {
	n := MapMut(x.queue, func(queue *[]chan struct{}) int {
		n := len(*queue)
		for _, ch := range *queue {
			close(ch)
		}
		*queue = nil
		return n
	})
	if n != 0 {
		x.opts.cell.logger.Debug().
			Int(`count`, n).
			Log(`parker unparked all`)
	}
	return n
}

// Len returns the number of currently parked goroutines.
func (x *Parker) Len() int {
	return Map(x.queue, func(queue []chan struct{}) int { return len(queue) })
}

// Clone returns a new Parker sharing the same queue.
func (x *Parker) Clone() *Parker {
	return &Parker{queue: x.queue.Clone(), opts: x.opts}
}

// Release drops this Parker's reference to the queue. Goroutines still
// parked are not woken.
func (x *Parker) Release() {
	if x != nil {
		x.queue.Release()
	}
}

func (x *Parker) enqueue() chan struct{} {
	ch := make(chan struct{})
	x.queue.Lock(func(queue *[]chan struct{}) {
		*queue = append(*queue, ch)
		x.opts.cell.logger.Debug().
			Int(`queued`, len(*queue)).
			Log(`parker parked`)
	})
	return ch
}
