package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPresenceRegisterHeartbeatUnregister(t *testing.T) {
	ctx := context.Background()
	_, _, _, _, presence, _ := newTestHarness(t)

	require.NoError(t, presence.Register(ctx, "c", "sess-1"))

	entries, err := presence.GetPresence(ctx)
	require.NoError(t, err)
	require.Contains(t, entries, "c")
	require.True(t, entries["c"].Active)
	require.Equal(t, "sess-1", entries["c"].SessionID)

	require.NoError(t, presence.Heartbeat(ctx, "c"))

	require.NoError(t, presence.Unregister(ctx, "c"))
	entries, err = presence.GetPresence(ctx)
	require.NoError(t, err)
	require.NotContains(t, entries, "c")
}

// TestPresenceStaleness covers seed scenario S4.
func TestPresenceStaleness(t *testing.T) {
	ctx := context.Background()
	_, client, keys, _, presence, _ := newTestHarness(t)
	presence.timeout = 5 * time.Minute

	require.NoError(t, presence.Register(ctx, "c", ""))

	stale := time.Now().Add(-10 * time.Minute)
	require.NoError(t, client.HSet(ctx, keys.PresenceKey(), presenceHeartbeatField("c"), formatTime(stale)).Err())

	entries, err := presence.GetPresence(ctx)
	require.NoError(t, err)
	require.False(t, entries["c"].Active)
}

func TestPresenceInstanceIDWithDots(t *testing.T) {
	ctx := context.Background()
	_, _, _, _, presence, _ := newTestHarness(t)

	require.NoError(t, presence.Register(ctx, "host.region.1", "sess"))

	entries, err := presence.GetPresence(ctx)
	require.NoError(t, err)
	require.Contains(t, entries, "host.region.1")
	require.True(t, entries["host.region.1"].Active)
}
