package coordination

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// NotificationCallback receives decoded inbound notifications on a
// subscription task, spec §4.5.
type NotificationCallback func(*Notification)

// NotificationBus implements the fan-out pub/sub plus per-instance
// offline queue (left-pushed, so a drain replays newest first), spec §4.5. Grounded on
// original_source/.../client.py's subscribe_notifications/
// queue_notification/pop_notifications; the generic interfaces in
// control_plane/streaming/interface.go and the log-only publisher in
// control_plane/streaming/logger.go inspired the subscribe/callback
// shape, specialized here to the coordination substrate's concrete
// Redis pub/sub channels.
type NotificationBus struct {
	client   *redis.Client
	keys     *KeyNamer
	presence *PresenceTracker
}

func NewNotificationBus(client *redis.Client, keys *KeyNamer, presence *PresenceTracker) *NotificationBus {
	return &NotificationBus{client: client, keys: keys, presence: presence}
}

// queueIfOffline is the best-effort fallback invoked by Store.Publish
// after its transaction commits. Errors here are logged only, never
// propagated, per spec §4.3/§7.
func (b *NotificationBus) queueIfOffline(ctx context.Context, n *Notification, ttl time.Duration) error {
	entries, err := b.presence.GetPresence(ctx)
	if err != nil {
		return err
	}
	entry, live := entries[n.To]
	if live && entry.Active {
		return nil
	}

	data, err := EncodeNotification(n)
	if err != nil {
		return err
	}

	key := b.keys.OfflineQueueKey(n.To)
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

// DrainOfflineQueue pops and replays the queued notifications for an
// instance at startup, spec §4.5 "Drain-on-start".
func (b *NotificationBus) DrainOfflineQueue(ctx context.Context, instanceID string, limit int64, callback NotificationCallback) error {
	key := b.keys.OfflineQueueKey(instanceID)

	cmds, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRange(ctx, key, 0, limit-1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return wrapf(KindCoordination, err, "drain offline queue for %s", instanceID)
	}

	rangeCmd, ok := cmds[0].(*redis.StringSliceCmd)
	if !ok {
		return nil
	}
	for _, raw := range rangeCmd.Val() {
		n, err := DecodeNotification([]byte(raw))
		if err != nil {
			log.Printf("coordination: skipping unparseable queued notification for %s: %v", instanceID, err)
			continue
		}
		callback(n)
	}
	return nil
}

// Subscription is a live handle on a subscriber task; Close unsubscribes
// and releases pub/sub resources.
type Subscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

// Close cancels the listener and waits for it to unsubscribe, spec §5
// "cancelling the listener task unsubscribes cleanly".
func (s *Subscription) Close() error {
	s.cancel()
	<-s.done
	return s.pubsub.Close()
}

// Subscribe opens a subscription to notify:<instance> and, optionally,
// notify:all, delivering decoded notifications to callback one at a time
// on the listener's own goroutine. The listener logs decode failures and
// callback panics and exits when ctx is cancelled or the pub/sub channel
// closes; it does not report connection loss to the caller.
func (b *NotificationBus) Subscribe(ctx context.Context, instanceID string, includeBroadcast bool, callback NotificationCallback) *Subscription {
	channels := []string{b.keys.NotifyChannel(instanceID)}
	if includeBroadcast {
		channels = append(channels, b.keys.BroadcastChannel())
	}

	pubsub := b.client.Subscribe(ctx, channels...)
	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer pubsub.Unsubscribe(context.Background(), channels...)

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				n, err := DecodeNotification([]byte(msg.Payload))
				if err != nil {
					log.Printf("coordination: listener callback error decoding notification: %v", err)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("coordination: listener callback panicked: %v", r)
						}
					}()
					callback(n)
				}()
			}
		}
	}()

	return &Subscription{pubsub: pubsub, cancel: cancel, done: done}
}
