package eventbus

import (
	"testing"
	"time"

	"github.com/ifpj/netwatch/internal/types"
)

func TestBus_PublishStatusDeliversToSubscriber(t *testing.T) {
	bus := New()
	sub := bus.SubscribeStatus()
	defer sub.Unsubscribe()

	want := types.TargetStatus{Target: types.Target{ID: "a"}}
	bus.PublishStatus(want)

	select {
	case msg := <-sub.Events():
		if msg.Value.Target.ID != "a" {
			t.Fatalf("expected target id 'a', got %q", msg.Value.Target.ID)
		}
		if msg.Lag {
			t.Fatalf("expected first delivery to be unlagged")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status message")
	}
}

func TestBus_TransitionsAreIndependentOfStatusUpdates(t *testing.T) {
	bus := New()
	statusSub := bus.SubscribeStatus()
	defer statusSub.Unsubscribe()
	transitionSub := bus.SubscribeTransitions()
	defer transitionSub.Unsubscribe()

	bus.PublishTransition(types.Transition{Target: types.Target{ID: "a"}, To: true})

	select {
	case <-transitionSub.Events():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for transition message")
	}

	select {
	case msg := <-statusSub.Events():
		t.Fatalf("status subscriber should not see a transition, got %+v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscription_DropsOldestWhenQueueFull(t *testing.T) {
	bus := New()
	sub := bus.SubscribeStatus()
	defer sub.Unsubscribe()

	for i := 0; i < queueDepth+5; i++ {
		bus.PublishStatus(types.TargetStatus{Target: types.Target{ID: "a"}, PendingCount: i})
	}

	var lastLagged bool
	var count int
	for {
		select {
		case msg := <-sub.Events():
			count++
			lastLagged = lastLagged || msg.Lag
			continue
		default:
		}
		break
	}

	if count != queueDepth {
		t.Fatalf("expected exactly %d queued messages after overflow, got %d", queueDepth, count)
	}
	if !lastLagged {
		t.Fatalf("expected at least one message marked as lagged after overflow")
	}
}

func TestSubscription_UnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	sub := bus.SubscribeStatus()
	sub.Unsubscribe()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected channel to be closed after Unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}

	// publishing after unsubscribe must not panic or block.
	bus.PublishStatus(types.TargetStatus{Target: types.Target{ID: "a"}})
}
