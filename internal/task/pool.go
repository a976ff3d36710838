package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned when submitting to a closed Pool.
var ErrPoolClosed = errors.New("task: pool closed")

// Pool is a bounded set of worker goroutines.
type Pool struct {
	g       *errgroup.Group
	logger  *slog.Logger
	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewPool creates a pool running at most workers units at once. A
// non-positive workers means one.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)
	return &Pool{g: g, logger: logger}
}

// Submit schedules fn. It never blocks the caller: when every worker is
// busy fn is queued until one frees up. ctx only gates scheduling; fn
// itself is not cancelled.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.pending.Add(1)
	p.mu.Unlock()

	run := func() error {
		defer p.pending.Done()
		fn()
		return nil
	}
	if p.g.TryGo(run) {
		return nil
	}
	go p.g.Go(run)
	return nil
}

// Close stops accepting work and waits for scheduled units to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()
	_ = p.g.Wait()
	p.logger.Debug("task pool closed")
}
