package pool

import (
	"testing"
	"time"
)

func queueFuture() *Future {
	return newFuture(nil, NewSubmission(NewSilentCommand("noop")))
}

func TestQueueFIFO(t *testing.T) {
	q := newSubmissionQueue()
	first, second := queueFuture(), queueFuture()

	if !q.enqueue(first) || !q.enqueue(second) {
		t.Fatal("enqueue failed")
	}
	if got, ok, _ := q.take(nil); !ok || got != first {
		t.Errorf("first take = %v, want first enqueued", got)
	}
	if got, ok, _ := q.take(nil); !ok || got != second {
		t.Errorf("second take = %v, want second enqueued", got)
	}
}

func TestQueueRemovePreservesOrder(t *testing.T) {
	q := newSubmissionQueue()
	a, b, c := queueFuture(), queueFuture(), queueFuture()
	q.enqueue(a)
	q.enqueue(b)
	q.enqueue(c)

	if !q.remove(b) {
		t.Fatal("remove should succeed for a queued submission")
	}
	if q.remove(b) {
		t.Error("second remove should fail")
	}

	if got, _, _ := q.take(nil); got != a {
		t.Error("expected first submission after removal")
	}
	if got, _, _ := q.take(nil); got != c {
		t.Error("expected third submission after removal")
	}
}

func TestQueueTakeBlocksUntilEnqueue(t *testing.T) {
	q := newSubmissionQueue()
	f := queueFuture()

	got := make(chan *Future, 1)
	go func() {
		item, _, _ := q.take(nil)
		got <- item
	}()

	time.Sleep(20 * time.Millisecond)
	q.enqueue(f)

	select {
	case item := <-got:
		if item != f {
			t.Errorf("take returned %v, want enqueued future", item)
		}
	case <-time.After(time.Second):
		t.Fatal("take did not return after enqueue")
	}
}

func TestQueueTakeTimeout(t *testing.T) {
	q := newSubmissionQueue()
	timer := time.NewTimer(10 * time.Millisecond)
	defer timer.Stop()

	_, ok, timedOut := q.take(timer.C)
	if ok || !timedOut {
		t.Errorf("take = ok=%v timedOut=%v, want timeout", ok, timedOut)
	}
}

func TestQueueShutdownDrainsThenCloses(t *testing.T) {
	q := newSubmissionQueue()
	f := queueFuture()
	q.enqueue(f)
	q.shutdown()

	if q.enqueue(queueFuture()) {
		t.Error("enqueue should fail after shutdown")
	}
	if got, ok, _ := q.take(nil); !ok || got != f {
		t.Error("queued submissions must still be handed out after shutdown")
	}
	if _, ok, _ := q.take(nil); ok {
		t.Error("take should report closed once shut down and empty")
	}
}

func TestQueueDrain(t *testing.T) {
	q := newSubmissionQueue()
	q.enqueue(queueFuture())
	q.enqueue(queueFuture())

	if got := q.drain(); len(got) != 2 {
		t.Errorf("drain returned %d items, want 2", len(got))
	}
	if q.depth() != 0 {
		t.Error("queue should be empty after drain")
	}
}

func TestQueueWakesSecondTakerWhenItemsRemain(t *testing.T) {
	q := newSubmissionQueue()
	results := make(chan *Future, 2)
	for i := 0; i < 2; i++ {
		go func() {
			item, _, _ := q.take(nil)
			results <- item
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.enqueue(queueFuture())
	q.enqueue(queueFuture())

	for i := 0; i < 2; i++ {
		select {
		case <-results:
		case <-time.After(time.Second):
			t.Fatal("blocked taker was not woken")
		}
	}
}
