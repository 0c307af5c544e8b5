// Package queue implements the bounded, priority task queue Workers pull
// from: High (DDL), Medium (ChunkTable), Low (DumpRange), each its own
// bounded FIFO so a burst of one priority cannot starve the others.
package queue

import (
	"sync"

	"github.com/nethalo/dbdump/internal/dumpmodel"
)

// Queue is a bounded, multi-priority task queue. Push blocks while the
// queue (at the task's own priority level) is full; Pop blocks until a
// task is available or the queue is closed and drained.
type Queue struct {
	mu     sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	capacityPerLevel int
	levels           [3][]dumpmodel.Task

	closed   bool
	draining int // number of Pop callers to release with ok=false on Shutdown
}

// New returns a Queue whose each priority level holds up to
// capacityPerLevel tasks before Push blocks.
func New(capacityPerLevel int) *Queue {
	q := &Queue{capacityPerLevel: capacityPerLevel}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push enqueues t, blocking while its priority level is full. Push on a
// closed queue is a silent no-op: a producer racing Shutdown should not
// panic.
func (q *Queue) Push(t dumpmodel.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	level := t.Priority()
	for !q.closed && len(q.levels[level]) >= q.capacityPerLevel {
		q.notFull.Wait()
	}
	if q.closed {
		return
	}
	q.levels[level] = append(q.levels[level], t)
	q.notEmpty.Signal()
}

// Pop removes and returns the highest-priority available task. It blocks
// until one is available. ok is false once Shutdown has released this
// caller and no task remains at any level.
func (q *Queue) Pop() (t dumpmodel.Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		for level := range q.levels {
			if len(q.levels[level]) > 0 {
				t = q.levels[level][0]
				q.levels[level] = q.levels[level][1:]
				q.notFull.Signal()
				return t, true
			}
		}
		if q.draining > 0 {
			q.draining--
			return nil, false
		}
		q.notEmpty.Wait()
	}
}

// Shutdown wakes exactly n blocked (or future) Pop callers with ok=false,
// once every already-queued task has been drained ahead of them. Push
// after Shutdown is a no-op so producers racing the Coordinator's
// shutdown don't block forever.
func (q *Queue) Shutdown(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.draining += n
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len reports the total number of queued tasks across all levels, for
// diagnostics and tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, l := range q.levels {
		n += len(l)
	}
	return n
}
