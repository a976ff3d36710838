package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrAlreadyStarted is returned when a Task is started twice.
var ErrAlreadyStarted = errors.New("task: already started")

// Work is a unit of background work.
type Work interface {
	DoWork(ctx context.Context)
}

// Finisher is implemented by Work that delivers its results on the owner
// goroutine once DoWork has returned.
type Finisher interface {
	AfterFinish()
}

const (
	stateIdle int32 = iota
	stateRunning
	stateDone
	stateFinished
)

// Task is a handle on one Work unit.
type Task struct {
	work  Work
	state atomic.Int32
	done  chan struct{}
	err   error
}

// New wraps w in a Task.
func New(w Work) *Task {
	return &Task{work: w, done: make(chan struct{})}
}

// Work returns the wrapped unit.
func (t *Task) Work() Work { return t.work }

// Start schedules the unit on p. The context handed to DoWork keeps the
// values of ctx but not its cancellation.
func (t *Task) Start(ctx context.Context, p *Pool) error {
	if !t.state.CompareAndSwap(stateIdle, stateRunning) {
		return ErrAlreadyStarted
	}
	workCtx := context.WithoutCancel(ctx)
	err := p.Submit(ctx, func() { t.run(workCtx) })
	if err != nil {
		t.state.Store(stateIdle)
	}
	return err
}

// StartSync runs the unit on the calling goroutine.
func (t *Task) StartSync(ctx context.Context) error {
	if !t.state.CompareAndSwap(stateIdle, stateRunning) {
		return ErrAlreadyStarted
	}
	t.run(ctx)
	return nil
}

func (t *Task) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("task: work panicked: %v", r)
		}
		t.state.Store(stateDone)
		close(t.done)
	}()
	t.work.DoWork(ctx)
}

// Done is closed when DoWork has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// IsDone reports whether DoWork has returned.
func (t *Task) IsDone() bool {
	return t.state.Load() >= stateDone
}

// Wait blocks until DoWork has returned or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the panic recovered from DoWork, if any. It is only
// meaningful once IsDone reports true.
func (t *Task) Err() error {
	if !t.IsDone() {
		return nil
	}
	return t.err
}

// finish runs AfterFinish at most once, and only after DoWork returned.
// A unit whose DoWork panicked is still finished so its callers hear back;
// Err reports the panic.
func (t *Task) finish() bool {
	if !t.state.CompareAndSwap(stateDone, stateFinished) {
		return t.state.Load() == stateFinished
	}
	if f, ok := t.work.(Finisher); ok {
		f.AfterFinish()
	}
	return true
}
