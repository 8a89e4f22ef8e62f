package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedNotification(t *testing.T) {
	ctx := context.Background()
	_, _, _, store, _, bus := newTestHarness(t)

	received := make(chan *Notification, 1)
	sub := bus.Subscribe(ctx, "b", true, func(n *Notification) {
		received <- n
	})
	defer sub.Close()

	// Give the listener goroutine a moment to establish its subscription.
	time.Sleep(50 * time.Millisecond)

	msg, err := store.Publish(ctx, PublishRequest{Type: TypeGeneral, FromInstance: "a", ToInstance: "b"})
	require.NoError(t, err)

	select {
	case n := <-received:
		require.Equal(t, msg.ID, n.MessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestSubscriptionCloseUnsubscribes(t *testing.T) {
	ctx := context.Background()
	_, _, _, _, _, bus := newTestHarness(t)

	sub := bus.Subscribe(ctx, "b", false, func(*Notification) {})
	require.NoError(t, sub.Close())
}
