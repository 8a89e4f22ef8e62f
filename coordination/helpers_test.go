package coordination

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newTestHarness starts an in-process miniredis server, grounded on the
// usage shown in jordigilh/kubernaut's test/unit/cache/redis_client_test.go
// (miniredis.Run() / .Addr()), and wires a Store/Presence/Bus triple
// against it.
func newTestHarness(t *testing.T) (*miniredis.Miniredis, *redis.Client, *KeyNamer, *Store, *PresenceTracker, *NotificationBus) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	keys := NewKeyNamer("coord")
	cfg := DefaultConfig()
	store := NewStore(client, keys, cfg)
	presence := NewPresenceTracker(client, keys, 5*time.Minute)
	bus := NewNotificationBus(client, keys, presence)
	store.SetNotificationBus(bus)

	return mr, client, keys, store, presence, bus
}
