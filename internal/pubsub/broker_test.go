package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSubscribeAndPublish(t *testing.T) {
	broker := NewBroker[string]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)
	if n := broker.Publish(SyncCompleted, "run-1"); n != 1 {
		t.Errorf("expected delivery to 1 subscriber, got %d", n)
	}

	select {
	case evt := <-ch:
		if evt.Type != SyncCompleted {
			t.Errorf("expected %s, got %s", SyncCompleted, evt.Type)
		}
		if evt.Payload != "run-1" {
			t.Errorf("expected payload run-1, got %q", evt.Payload)
		}
		if evt.At.IsZero() {
			t.Error("expected publish time to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	broker := NewBroker[int]()
	if n := broker.Publish(SyncFailed, 1); n != 0 {
		t.Errorf("expected no deliveries, got %d", n)
	}
}

func TestMultipleSubscribersInOrder(t *testing.T) {
	broker := NewBroker[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subs := []<-chan Event[int]{broker.Subscribe(ctx), broker.Subscribe(ctx)}

	types := []EventType{SyncCompleted, ChangesFound, SyncFailed}
	for i, typ := range types {
		broker.Publish(typ, i)
	}

	for _, ch := range subs {
		for i, typ := range types {
			select {
			case evt := <-ch:
				if evt.Type != typ || evt.Payload != i {
					t.Errorf("event %d: got %s/%d, want %s/%d", i, evt.Type, evt.Payload, typ, i)
				}
			case <-time.After(time.Second):
				t.Fatal("timed out")
			}
		}
	}
}

func TestContextCancellationClosesChannel(t *testing.T) {
	broker := NewBroker[int]()
	ctx, cancel := context.WithCancel(context.Background())

	ch := broker.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after cancel")
	}

	deadline := time.Now().Add(time.Second)
	for broker.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := broker.Subscribers(); n != 0 {
		t.Errorf("expected subscription to be removed, %d remain", n)
	}
}

func TestSlowSubscriberDrop(t *testing.T) {
	broker := NewBroker[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)

	delivered := 0
	for i := 0; i < subscriberBufferSize+10; i++ {
		delivered += broker.Publish(SyncCompleted, i)
	}
	if delivered != subscriberBufferSize {
		t.Errorf("expected %d deliveries, got %d", subscriberBufferSize, delivered)
	}
	if len(ch) != subscriberBufferSize {
		t.Errorf("expected full buffer, got %d", len(ch))
	}
}

// TestConcurrentPublishAndCancel exercises publishing while subscriptions
// come and go; run with -race.
func TestConcurrentPublishAndCancel(t *testing.T) {
	broker := NewBroker[int]()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				broker.Publish(ChangesFound, id*100+j)
			}
		}(i)
	}

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			ch := broker.Subscribe(ctx)
			time.Sleep(time.Millisecond)
			cancel()
			for range ch {
			}
		}()
	}

	wg.Wait()
}
