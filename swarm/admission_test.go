package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/asdlc-dev/swarmcoord/coordination"
	"github.com/stretchr/testify/require"
)

func TestAdmissionGateAcquireUpToSlotsThenRejects(t *testing.T) {
	_, client, cfg := newSwarmTestHarness(t)
	cfg.MaxConcurrentSwarms = 2
	locker := coordination.NewRedisLocker(client)
	gate := NewAdmissionGate(locker, cfg)
	ctx := context.Background()

	a1, ok, err := gate.Acquire(ctx, "swarm-1")
	require.NoError(t, err)
	require.True(t, ok)

	a2, ok, err := gate.Acquire(ctx, "swarm-2")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = gate.Acquire(ctx, "swarm-3")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a1.Release(ctx))

	a3, ok, err := gate.Acquire(ctx, "swarm-3")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a2.Release(ctx))
	require.NoError(t, a3.Release(ctx))
}

func TestAdmissionGateRenewExtendsTTL(t *testing.T) {
	_, client, cfg := newSwarmTestHarness(t)
	cfg.MaxConcurrentSwarms = 1
	locker := coordination.NewRedisLocker(client)
	gate := NewAdmissionGate(locker, cfg)
	ctx := context.Background()

	acquired, ok, err := gate.Acquire(ctx, "swarm-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = acquired.Renew(ctx, 2*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, acquired.Release(ctx))
}
