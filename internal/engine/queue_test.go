package engine

import (
	"sync"
	"testing"
	"time"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()
	q.Push(Task{NodeID: "a"})
	q.Push(Task{NodeID: "b"})
	q.Push(Task{NodeID: "c"})

	for _, want := range []string{"a", "b", "c"} {
		task, ok := q.Pop()
		if !ok {
			t.Fatal("queue closed unexpectedly")
		}
		if task.NodeID != want {
			t.Errorf("expected %s, got %s", want, task.NodeID)
		}
	}
}

func TestTaskQueue_PopBlocksUntilPush(t *testing.T) {
	q := newTaskQueue()

	got := make(chan Task, 1)
	go func() {
		task, ok := q.Pop()
		if ok {
			got <- task
		}
	}()

	select {
	case <-got:
		t.Fatal("pop returned before push")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(Task{NodeID: "late"})

	select {
	case task := <-got:
		if task.NodeID != "late" {
			t.Errorf("expected late, got %s", task.NodeID)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not wake after push")
	}
}

func TestTaskQueue_CloseDrainsRemaining(t *testing.T) {
	q := newTaskQueue()
	q.Push(Task{NodeID: "a"})
	q.Push(Task{NodeID: "b"})
	q.Close()

	if _, ok := q.Pop(); !ok {
		t.Fatal("queued tasks must remain poppable after close")
	}
	if _, ok := q.Pop(); !ok {
		t.Fatal("queued tasks must remain poppable after close")
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("drained closed queue must report closed")
	}
}

func TestTaskQueue_PushAfterCloseIsDropped(t *testing.T) {
	q := newTaskQueue()
	q.Close()
	q.Push(Task{NodeID: "ghost"})

	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
}

func TestTaskQueue_CloseWakesAllWaiters(t *testing.T) {
	q := newTaskQueue()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiters did not wake on close")
	}
}

func TestTaskQueue_ConcurrentProducersConsumers(t *testing.T) {
	q := newTaskQueue()

	const producers, perProducer = 8, 50

	var produced sync.WaitGroup
	for i := 0; i < producers; i++ {
		produced.Add(1)
		go func() {
			defer produced.Done()
			for j := 0; j < perProducer; j++ {
				q.Push(Task{NodeID: "n"})
			}
		}()
	}
	go func() {
		produced.Wait()
		q.Close()
	}()

	var mu sync.Mutex
	consumed := 0
	var consumers sync.WaitGroup
	for i := 0; i < 4; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for {
				if _, ok := q.Pop(); !ok {
					return
				}
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}
	consumers.Wait()

	if consumed != producers*perProducer {
		t.Errorf("expected %d consumed, got %d", producers*perProducer, consumed)
	}
}
