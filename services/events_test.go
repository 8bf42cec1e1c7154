package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub_FanOut(t *testing.T) {
	hub := NewEventHub()

	id1, ch1 := hub.Subscribe()
	id2, ch2 := hub.Subscribe()
	defer hub.Unsubscribe(id1)
	defer hub.Unsubscribe(id2)

	hub.Publish(MintEvent{Type: MintEventStarted, JobID: "j1", UserID: "u1", Level: 1})

	for _, ch := range []<-chan MintEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, MintEventStarted, ev.Type)
			assert.Equal(t, "j1", ev.JobID)
			assert.False(t, ev.At.IsZero(), "publish stamps the event time")
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestEventHub_PublishNeverBlocks(t *testing.T) {
	hub := NewEventHub()

	id, _ := hub.Subscribe()
	defer hub.Unsubscribe(id)

	// Nobody drains the channel; publishing past the buffer must still
	// return promptly, dropping the overflow.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(MintEvent{Type: MintEventError, JobID: "j", UserID: "u", Level: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestEventHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewEventHub()

	id, ch := hub.Subscribe()
	hub.Unsubscribe(id)

	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe is a no-op.
	hub.Publish(MintEvent{Type: MintEventCompleted, JobID: "j2", UserID: "u2", Level: 2})
}
