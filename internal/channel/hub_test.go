// ABOUTME: Tests for the predicate-scoped listener hub
// ABOUTME: Covers fan-out, predicate isolation, slow listeners, unsubscribe, close

package channel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEvent(sender, text string) *InboundEvent {
	return &InboundEvent{
		Sender:    Identity{ID: sender, Username: localpart(sender)},
		Text:      text,
		Timestamp: time.Now(),
	}
}

func fromSender(sender string) func(*InboundEvent) bool {
	return func(evt *InboundEvent) bool {
		return evt.Sender.ID == sender
	}
}

func TestHub_MatchingListenerReceivesEvent(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ch, _ := h.Subscribe(fromSender("@a_bot:example.org"))

	h.Publish(makeEvent("@a_bot:example.org", "hello"))

	select {
	case evt := <-ch:
		assert.Equal(t, "hello", evt.Text)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_MultipleListenersReceiveSameEvent(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ch1, _ := h.Subscribe(fromSender("@a_bot:example.org"))
	ch2, _ := h.Subscribe(fromSender("@a_bot:example.org"))
	ch3, _ := h.Subscribe(nil) // nil predicate matches everything

	h.Publish(makeEvent("@a_bot:example.org", "broadcast"))

	for i, ch := range []<-chan *InboundEvent{ch1, ch2, ch3} {
		select {
		case evt := <-ch:
			assert.Equal(t, "broadcast", evt.Text, "listener %d got wrong event", i)
		case <-time.After(time.Second):
			t.Fatalf("listener %d timed out", i)
		}
	}
}

func TestHub_NonMatchingListenerDoesNotReceive(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	chA, _ := h.Subscribe(fromSender("@bot_a:example.org"))
	chB, _ := h.Subscribe(fromSender("@bot_b:example.org"))

	h.Publish(makeEvent("@bot_a:example.org", "for A only"))

	select {
	case evt := <-chA:
		assert.Equal(t, "for A only", evt.Text)
	case <-time.After(time.Second):
		t.Fatal("listener for bot_a timed out")
	}

	select {
	case <-chB:
		t.Fatal("listener for bot_b should not receive bot_a's event")
	case <-time.After(100 * time.Millisecond):
		// Expected: no event
	}
}

func TestHub_SlowListenerDoesNotBlockPublish(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	// Subscribe but never read (slow listener)
	_, _ = h.Subscribe(nil)
	ch, _ := h.Subscribe(nil)

	// Publish more events than the buffer size
	for i := range 100 {
		h.Publish(makeEvent("@noisy:example.org", string(rune('a'+i%26))))
	}

	// The fast listener still receives events; Publish never blocked
	received := 0
	for {
		select {
		case <-ch:
			received++
		case <-time.After(200 * time.Millisecond):
			assert.Greater(t, received, 0, "fast listener should receive at least some events")
			return
		}
	}
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ch, subID := h.Subscribe(nil)

	h.Unsubscribe(subID)
	h.Unsubscribe(subID) // second call is a no-op
	h.Unsubscribe("never-existed")

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Publishing after unsubscribe must not panic
	h.Publish(makeEvent("@a_bot:example.org", "late"))
}

func TestHub_CloseClosesAllListeners(t *testing.T) {
	h := NewHub(nil)

	ch1, _ := h.Subscribe(nil)
	ch2, _ := h.Subscribe(fromSender("@a_bot:example.org"))

	h.Close()

	for i, ch := range []<-chan *InboundEvent{ch1, ch2} {
		select {
		case _, ok := <-ch:
			assert.False(t, ok, "channel %d should be closed after Close()", i)
		case <-time.After(time.Second):
			t.Fatalf("channel %d not closed after Close()", i)
		}
	}

	// Subscribing after close returns a closed channel
	ch3, _ := h.Subscribe(nil)
	_, ok := <-ch3
	assert.False(t, ok)
}

func TestHub_SubscribeReturnsUniqueIDs(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	_, id1 := h.Subscribe(nil)
	_, id2 := h.Subscribe(nil)
	_, id3 := h.Subscribe(nil)

	require.NotEqual(t, id1, id2)
	require.NotEqual(t, id1, id3)
	require.NotEqual(t, id2, id3)
}

func TestHub_ConcurrentPublishSubscribe(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var wg sync.WaitGroup

	for range 10 {
		wg.Go(func() {
			ch, subID := h.Subscribe(fromSender("@concurrent:example.org"))
			defer h.Unsubscribe(subID)
			for range 5 {
				select {
				case <-ch:
				case <-time.After(500 * time.Millisecond):
					return
				}
			}
		})
	}

	for range 10 {
		wg.Go(func() {
			for range 10 {
				h.Publish(makeEvent("@concurrent:example.org", "x"))
			}
		})
	}

	wg.Wait()
	// No deadlock or panic means the hub held up
}

func TestHub_PublishDuringUnsubscribeChurn(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	stop := make(chan struct{})
	var publishers, churners sync.WaitGroup

	// Continuous publishing, as the sync loop would under live traffic
	for range 4 {
		publishers.Go(func() {
			evt := makeEvent("@a_bot:example.org", "x")
			for {
				select {
				case <-stop:
					return
				default:
					h.Publish(evt)
				}
			}
		})
	}

	// Listeners registering and releasing constantly, as waiters finishing
	// would. Every unsubscribe closes a channel that publishers may still
	// be targeting; this must never panic.
	for range 4 {
		churners.Go(func() {
			for range 500 {
				ch, subID := h.Subscribe(fromSender("@a_bot:example.org"))
				select {
				case <-ch:
				default:
				}
				h.Unsubscribe(subID)
			}
		})
	}

	churnersDone := make(chan struct{})
	go func() {
		churners.Wait()
		close(churnersDone)
	}()

	select {
	case <-churnersDone:
	case <-time.After(30 * time.Second):
		t.Fatal("hub deadlocked under publish/unsubscribe churn")
	}

	close(stop)
	publishers.Wait()
}

func TestLocalpart(t *testing.T) {
	assert.Equal(t, "a_bot", localpart("@a_bot:example.org"))
	assert.Equal(t, "a_bot", localpart("a_bot"))
	assert.Equal(t, "bot", localpart("@bot:sub.example.org"))
}
