package atomcell

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(level),
	).Logger()
}

func logLines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
}

func TestWithLogger_cellLifecycle(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c := New(1, WithLogger(newTestLogger(&buf, logiface.LevelTrace)))
	w := c.Downgrade()
	c.Release()
	require.Equal(t, []string{`{"lvl":"debug","msg":"cell value dropped"}`}, logLines(&buf))
	w.Release()
	assert.Equal(t, []string{
		`{"lvl":"debug","msg":"cell value dropped"}`,
		`{"lvl":"trace","msg":"cell block freed"}`,
	}, logLines(&buf))
}

func TestWithLogger_level(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c := New(1, WithLogger(newTestLogger(&buf, logiface.LevelInformational)))
	c.Release()
	assert.Empty(t, buf.String())
}

func TestWithLogger_overflow(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c := New(1, WithLogger(newTestLogger(&buf, logiface.LevelTrace)))
	c.load().strong.Store(math.MaxInt64)
	err := recoverError(func() { c.Clone() })
	require.ErrorIs(t, err, ErrRefCountOverflow)
	assert.Equal(t, []string{`{"lvl":"crit","count":"strong","msg":"cell reference count overflow"}`}, logLines(&buf))
}

func TestWithLogger_mutexWait(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	m, tbl := newTableMutex(WithSpinLimit(0), WithLogger(newTestLogger(&buf, logiface.LevelTrace)))
	m.Lock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Lock()
		m.Unlock()
	}()
	require.Eventually(t, func() bool {
		return tbl.Waiters(&m.state) == 1
	}, 5*time.Second, time.Millisecond)
	m.Unlock()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal(`waiter was not woken`)
	}
	lines := logLines(&buf)
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Equal(t, `{"lvl":"trace","msg":"mutex contended, waiting"}`, line)
	}
}

func TestWithLogger_parker(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := NewParker(WithLogger(newTestLogger(&buf, logiface.LevelDebug)))
	defer p.Release()

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Park()
	}()
	waitParked(t, p, 1)
	require.True(t, p.Unpark())
	runWithin(t, 5*time.Second, func() { <-done })

	for range 2 {
		go p.Park()
	}
	waitParked(t, p, 2)
	require.Equal(t, 2, p.UnparkAll())

	assert.Equal(t, []string{
		`{"lvl":"debug","queued":1,"msg":"parker parked"}`,
		`{"lvl":"debug","msg":"parker unparked one"}`,
		`{"lvl":"debug","queued":1,"msg":"parker parked"}`,
		`{"lvl":"debug","queued":2,"msg":"parker parked"}`,
		`{"lvl":"debug","count":2,"msg":"parker unparked all"}`,
	}, logLines(&buf))
}
