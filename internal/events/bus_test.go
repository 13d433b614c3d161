package events

import (
	"testing"
	"time"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan ExecutorStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e ExecutorStateChangedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(ExecutorStateChangedEvent{
		ExecutorID: "executor-1",
		From:       "idle",
		To:         "executing",
		Timestamp:  time.Now(),
	})

	select {
	case e := <-received:
		if e.ExecutorID != "executor-1" || e.To != "executing" {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBusSubscriberOnlySeesItsType(t *testing.T) {
	bus := New()
	stateEvents := make(chan ExecutorStateChangedEvent, 4)

	unsub := bus.Subscribe(func(e ExecutorStateChangedEvent) {
		stateEvents <- e
	})
	defer unsub()

	bus.Publish(SubmissionCompletedEvent{Outcome: "succeeded", Timestamp: time.Now()})
	bus.Publish(ExecutorStateChangedEvent{ExecutorID: "executor-2", Timestamp: time.Now()})

	select {
	case e := <-stateEvents:
		if e.ExecutorID != "executor-2" {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("state event not delivered")
	}

	select {
	case e := <-stateEvents:
		t.Errorf("unexpected second event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New()
	received := make(chan SubmissionCompletedEvent, 1)

	unsub := bus.Subscribe(func(e SubmissionCompletedEvent) {
		received <- e
	})
	unsub()

	bus.Publish(SubmissionCompletedEvent{Outcome: "failed", Timestamp: time.Now()})

	select {
	case e := <-received:
		t.Errorf("event delivered after unsubscribe: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 2)

	unsub := SubscribeToChannel[ConfigReloadedEvent](bus, ch)
	defer unsub()

	bus.Publish(ConfigReloadedEvent{MinSize: 1, MaxSize: 4, Timestamp: time.Now()})

	select {
	case raw := <-ch:
		e, ok := raw.(ConfigReloadedEvent)
		if !ok || e.MaxSize != 4 {
			t.Errorf("unexpected event: %+v", raw)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered to channel")
	}

	unknown := bus.Subscribe(func(s string) {})
	unknown()
}
