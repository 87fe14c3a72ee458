package taskqueue

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestEnqueueDequeueOrder(t *testing.T) {
	q := New()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue(func() { order = append(order, i) })
	}
	for {
		task := q.Dequeue()
		if task == nil {
			break
		}
		task()
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order mismatch at %d: got %v", i, order)
		}
	}
}

func TestConcurrentProducers(t *testing.T) {
	q := New()
	var count int32
	var wg sync.WaitGroup
	const producers, perProducer = 20, 200
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Enqueue(func() { atomic.AddInt32(&count, 1) })
			}
		}()
	}
	wg.Wait()

	drained := 0
	for {
		task := q.Dequeue()
		if task == nil {
			break
		}
		task()
		drained++
	}
	if drained != producers*perProducer {
		t.Fatalf("drained %d tasks, want %d", drained, producers*perProducer)
	}
	if int(count) != producers*perProducer {
		t.Fatalf("ran %d tasks, want %d", count, producers*perProducer)
	}
}

func TestDequeueEmpty(t *testing.T) {
	q := New()
	if task := q.Dequeue(); task != nil {
		t.Fatal("want nil from empty queue")
	}
}
