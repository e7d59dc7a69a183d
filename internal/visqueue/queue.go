// Package visqueue defers expensive work while the consuming UI is not
// in the foreground, replaying deferred requests oldest-first once
// visibility returns. It prevents a backgrounded tab from burning
// vision-API spend without dropping user-initiated requests.
package visqueue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is one deferrable unit of work.
type Task func(ctx context.Context) (any, error)

// Result is delivered to the submitter when a queued task completes.
type Result struct {
	Value any
	Err   error
}

type pending struct {
	ctx      context.Context
	task     Task
	enqueued time.Time
	done     chan Result // buffered, written exactly once
}

// Queue gates task execution on a visibility flag. While visible,
// submitted tasks run immediately on the caller's goroutine. While
// invisible they queue FIFO by submission time; the invisible→visible
// edge starts a single drain that executes them oldest-first.
type Queue struct {
	mu       sync.Mutex
	visible  bool
	draining bool
	items    []*pending
	now      func() time.Time
}

// New creates a Queue with the given initial visibility.
func New(visible bool) *Queue {
	return &Queue{visible: visible, now: time.Now}
}

// Visible reports the current visibility state.
func (q *Queue) Visible() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.visible
}

// SetVisible updates the visibility state. Restoring visibility triggers
// a drain unless one is already running.
func (q *Queue) SetVisible(visible bool) {
	q.mu.Lock()
	wasVisible := q.visible
	q.visible = visible
	startDrain := visible && !wasVisible && !q.draining && len(q.items) > 0
	if startDrain {
		q.draining = true
	}
	queued := len(q.items)
	q.mu.Unlock()

	if visible != wasVisible {
		log.Debug().Bool("visible", visible).Int("queued", queued).Msg("Visibility changed")
	}
	if startDrain {
		go q.drain()
	}
}

// Submit executes task immediately if the UI is visible at call time.
// Otherwise it enqueues the task and blocks until the queue drains it or
// ctx is done; a cancelled context abandons the wait but the task stays
// queued and its eventual result is discarded.
func (q *Queue) Submit(ctx context.Context, task Task) (any, error) {
	q.mu.Lock()
	if q.visible && !q.draining {
		q.mu.Unlock()
		return task(ctx)
	}

	p := &pending{
		ctx:      ctx,
		task:     task,
		enqueued: q.now(),
		done:     make(chan Result, 1),
	}
	q.items = append(q.items, p)
	queued := len(q.items)
	q.mu.Unlock()

	log.Debug().Int("queued", queued).Msg("Request deferred until visibility returns")

	select {
	case res := <-p.done:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of queued requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drain pops the oldest-enqueued request, executes it, delivers its
// result, and continues while the queue is non-empty and the UI is
// still visible. Only one drain runs at a time.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 || !q.visible {
			q.draining = false
			q.mu.Unlock()
			return
		}
		p := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		if p.ctx.Err() != nil {
			p.done <- Result{Err: p.ctx.Err()}
			continue
		}
		v, err := p.task(p.ctx)
		p.done <- Result{Value: v, Err: err}
	}
}
