package engine

import "sync"

// Task is one schedulable unit of work: execute a single node with a given
// input within an execution.
type Task struct {
	ExecutionID string
	NodeID      string
	Input       map[string]any
	Attempt     int
}

// taskQueue is an unbounded FIFO of tasks. Producers never block, which
// lets a worker schedule successor tasks without deadlocking the bounded
// worker set that consumes the queue.
type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Task
	closed bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a task. Pushing to a closed queue is a no-op.
func (q *taskQueue) Push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, t)
	q.cond.Signal()
}

// Pop blocks until a task is available or the queue is closed. The second
// return value is false once the queue is closed and drained.
func (q *taskQueue) Pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Task{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

// Close wakes all blocked consumers. Queued tasks already pushed remain
// poppable until drained.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued tasks.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
