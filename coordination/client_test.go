package coordination

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	c, err := NewClient(cfg)
	require.NoError(t, err)

	return mr, c
}

func TestClientEnterExit(t *testing.T) {
	ctx := context.Background()
	_, c := newTestClient(t)

	require.NoError(t, c.Enter(ctx, "instance-a"))
	require.True(t, c.connected)

	c.Exit()
	require.False(t, c.connected)
}

func TestClientEnterFailsWhenBackendDown(t *testing.T) {
	ctx := context.Background()
	mr, c := newTestClient(t)
	mr.Close()

	err := c.Enter(ctx, "instance-a")
	require.Error(t, err)
}

func TestClientHealthCheck(t *testing.T) {
	ctx := context.Background()
	_, c := newTestClient(t)

	report, err := c.HealthCheck(ctx)
	require.NoError(t, err)
	require.True(t, report.Connected)
	require.Equal(t, "ok", report.Status)
	require.Equal(t, c.cfg.KeyPrefix, report.KeyPrefix)
}

func TestClientPublishGeneratesID(t *testing.T) {
	ctx := context.Background()
	_, c := newTestClient(t)

	msg, err := c.Publish(ctx, PublishRequest{Type: TypeGeneral, FromInstance: "a", ToInstance: "b"})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	require.Regexp(t, `^msg-[0-9a-f]{8}$`, msg.ID)
}

func TestDefaultSingletonLazyAndResettable(t *testing.T) {
	ResetDefault()
	t.Cleanup(ResetDefault)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	t.Setenv("COORD_REDIS_ADDR", mr.Addr())

	c1, err := Default()
	require.NoError(t, err)
	c2, err := Default()
	require.NoError(t, err)
	require.Same(t, c1, c2)

	ResetDefault()
	t.Setenv("COORD_REDIS_ADDR", mr.Addr())
	c3, err := Default()
	require.NoError(t, err)
	require.NotSame(t, c1, c3)
}
