package atomcell

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-atomcell/internal/futex"
	"github.com/joeycumines/logiface"
)

// defaultSpinLimit is the number of yielding spin iterations attempted
// before a contended [Mutex] blocks.
const defaultSpinLimit = 100

type (
	// Option configures a [Cell], see [New].
	Option interface {
		applyCell(*cellOptions) error
	}

	// MutexOption configures a [Mutex], see [NewMutex].
	MutexOption interface {
		applyMutex(*mutexConfig) error
	}

	// ParkerOption configures a [Parker], see [NewParker].
	ParkerOption interface {
		applyParker(*parkerOptions) error
	}

	// SharedOption may be used to configure any of [Cell], [Mutex], or
	// [Parker]. Options that tune the mutex apply to the mutex embedded in
	// a Cell (or in the Cell backing a Parker).
	SharedOption interface {
		Option
		MutexOption
		ParkerOption
	}

	// cellOptions is resolved once per New, then shared (read-only) by every
	// handle to the block. The typed hooks are stored as any, and checked
	// against the cell's type parameter by New.
	cellOptions struct {
		mutex  mutexConfig
		drop   any // func(T)
		free   func()
		clone  any // func(T) T
		logger *logiface.Logger[logiface.Event]
	}

	// mutexConfig is shared by pointer, a nil *mutexConfig means defaults.
	mutexConfig struct {
		stats     *Stats
		logger    *logiface.Logger[logiface.Event]
		waiter    futex.Waiter // tests may substitute futex.Table
		spinLimit int
	}

	parkerOptions struct {
		cell cellOptions
	}

	optionImpl struct {
		applyCellFunc   func(*cellOptions) error
		applyMutexFunc  func(*mutexConfig) error
		applyParkerFunc func(*parkerOptions) error
	}
)

var (
	errNilHook = errors.New(`atomcell: nil hook`)

	defaultMutexConfig = mutexConfig{spinLimit: defaultSpinLimit}

	// compile time assertions

	_ SharedOption = (*optionImpl)(nil)
)

func (x *optionImpl) applyCell(opts *cellOptions) error {
	if x.applyCellFunc == nil {
		return nil
	}
	return x.applyCellFunc(opts)
}

func (x *optionImpl) applyMutex(opts *mutexConfig) error {
	if x.applyMutexFunc == nil {
		return nil
	}
	return x.applyMutexFunc(opts)
}

func (x *optionImpl) applyParker(opts *parkerOptions) error {
	if x.applyParkerFunc == nil {
		return nil
	}
	return x.applyParkerFunc(opts)
}

// sharedOption builds an option that applies fn to the mutex config of all
// three targets.
func sharedOption(fn func(*mutexConfig) error) SharedOption {
	return &optionImpl{
		applyCellFunc: func(opts *cellOptions) error {
			return fn(&opts.mutex)
		},
		applyMutexFunc: fn,
		applyParkerFunc: func(opts *parkerOptions) error {
			return fn(&opts.cell.mutex)
		},
	}
}

// WithLogger attaches a structured logger. Cells log value teardown (debug)
// and control block release (trace), mutexes log each transition into the
// blocking wait (trace), and parkers log park/unpark (debug). A nil logger
// disables logging, which is also the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) SharedOption {
	return &optionImpl{
		applyCellFunc: func(opts *cellOptions) error {
			opts.logger = logger
			opts.mutex.logger = logger
			return nil
		},
		applyMutexFunc: func(opts *mutexConfig) error {
			opts.logger = logger
			return nil
		},
		applyParkerFunc: func(opts *parkerOptions) error {
			opts.cell.logger = logger
			opts.cell.mutex.logger = logger
			return nil
		},
	}
}

// WithStats attaches contention counters to the mutex. The same [Stats] may
// be shared across many mutexes.
func WithStats(stats *Stats) SharedOption {
	return sharedOption(func(opts *mutexConfig) error {
		opts.stats = stats
		return nil
	})
}

// WithSpinLimit sets the number of spin iterations (each yielding the
// processor) attempted before a contended mutex blocks. Zero disables
// spinning. Defaults to 100.
func WithSpinLimit(n int) SharedOption {
	return sharedOption(func(opts *mutexConfig) error {
		if n < 0 {
			return fmt.Errorf(`atomcell: invalid spin limit %d`, n)
		}
		opts.spinLimit = n
		return nil
	})
}

// WithDrop registers fn to be called with the protected value, exactly once,
// when the last strong handle ([Cell]) is released. It is the teardown hook
// for the payload. The type parameter must match the cell's.
func WithDrop[T any](fn func(value T)) Option {
	return &optionImpl{applyCellFunc: func(opts *cellOptions) error {
		if fn == nil {
			return fmt.Errorf(`%w: WithDrop`, errNilHook)
		}
		opts.drop = fn
		return nil
	}}
}

// WithFree registers fn to be called, exactly once, when the control block
// is released, i.e. after the last [Cell] and the last [Weak] have both been
// released.
func WithFree(fn func()) Option {
	return &optionImpl{applyCellFunc: func(opts *cellOptions) error {
		if fn == nil {
			return fmt.Errorf(`%w: WithFree`, errNilHook)
		}
		opts.free = fn
		return nil
	}}
}

// WithClone registers fn as the copy function used by [Cell.Get], e.g. to
// return a deep copy of a slice or map. By default, Get returns a shallow
// copy. The type parameter must match the cell's.
func WithClone[T any](fn func(value T) T) Option {
	return &optionImpl{applyCellFunc: func(opts *cellOptions) error {
		if fn == nil {
			return fmt.Errorf(`%w: WithClone`, errNilHook)
		}
		opts.clone = fn
		return nil
	}}
}

// resolveCellOptions applies Option instances to cellOptions.
func resolveCellOptions(opts []Option) (*cellOptions, error) {
	cfg := &cellOptions{mutex: defaultMutexConfig}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyCell(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// resolveMutexOptions applies MutexOption instances to mutexConfig.
func resolveMutexOptions(opts []MutexOption) (*mutexConfig, error) {
	cfg := defaultMutexConfig
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyMutex(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// resolveParkerOptions applies ParkerOption instances to parkerOptions.
func resolveParkerOptions(opts []ParkerOption) (*parkerOptions, error) {
	cfg := &parkerOptions{cell: cellOptions{mutex: defaultMutexConfig}}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyParker(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
