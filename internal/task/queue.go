package task

import (
	"context"
	"sync"
)

// Queue collects started tasks and completes them on the owner goroutine.
type Queue struct {
	mu    sync.Mutex
	tasks []*Task
}

// Add tracks a started task until it has been completed by Tick or Drain.
func (q *Queue) Add(t *Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
}

// Len returns the number of tasks not yet completed.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Tick runs AfterFinish for every task whose work has returned, in the
// order the tasks were added, and forgets them. It returns the number of
// tasks completed. Tick must be called from the owner goroutine.
func (q *Queue) Tick() int {
	q.mu.Lock()
	var ready, waiting []*Task
	for _, t := range q.tasks {
		if t.IsDone() {
			ready = append(ready, t)
		} else {
			waiting = append(waiting, t)
		}
	}
	q.tasks = waiting
	q.mu.Unlock()

	// Callbacks run unlocked so they may add follow-up tasks.
	for _, t := range ready {
		t.finish()
	}
	return len(ready)
}

// Drain waits for every tracked task, including ones added by callbacks,
// and completes them. It stops early when ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return nil
		}
		head := q.tasks[0]
		q.mu.Unlock()

		select {
		case <-head.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		q.Tick()
	}
}
