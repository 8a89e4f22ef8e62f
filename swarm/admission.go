package swarm

import (
	"context"
	"fmt"
	"time"

	"github.com/asdlc-dev/swarmcoord/coordination"
	"github.com/asdlc-dev/swarmcoord/observability"
)

// AdmissionGate enforces max_concurrent_swarms via a fixed set of
// numbered Redis locks, adapted from control_plane/coordination/
// leader.go's acquire/renew/release lease loop, relabeled from
// leader-election to a plain concurrency-slot gate, since admission here
// is cross-process but has no leadership or fencing-epoch concept (see
// DESIGN.md). Admission is enforced at the dispatch boundary, not inside
// a swarm's own reviewer fan-out, per spec §4.8.
type AdmissionGate struct {
	locker coordination.Locker
	keys   *keyNamer
	slots  int
	ttl    time.Duration
}

func NewAdmissionGate(locker coordination.Locker, cfg *Config) *AdmissionGate {
	return &AdmissionGate{
		locker: locker,
		keys:   newKeyNamer(cfg.KeyPrefix),
		slots:  cfg.MaxConcurrentSwarms,
		ttl:    time.Duration(cfg.TaskTimeoutSeconds) * time.Second,
	}
}

// Acquired is a held admission slot; Release must be called exactly once.
type Acquired struct {
	gate  *AdmissionGate
	key   string
	owner string
}

// Acquire tries each numbered slot in turn and holds the first one that
// is free. Returns ok=false when every slot is currently held.
func (g *AdmissionGate) Acquire(ctx context.Context, sessionID string) (*Acquired, bool, error) {
	for i := 0; i < g.slots; i++ {
		key := g.keys.SlotKey(i)
		ok, err := g.locker.Acquire(ctx, key, sessionID, g.ttl)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return &Acquired{gate: g, key: key, owner: sessionID}, true, nil
		}
	}
	observability.SwarmAdmissionRejections.Inc()
	return nil, false, nil
}

// Renew extends the slot's TTL, intended to be called once at the
// midpoint of a long-running dispatch.
func (a *Acquired) Renew(ctx context.Context, ttl time.Duration) (bool, error) {
	return a.gate.locker.Renew(ctx, a.key, a.owner, ttl)
}

// Release frees the slot.
func (a *Acquired) Release(ctx context.Context) error {
	return a.gate.locker.Release(ctx, a.key, a.owner)
}

func (g *AdmissionGate) String() string {
	return fmt.Sprintf("AdmissionGate{prefix=%s, slots=%d}", g.keys.prefix, g.slots)
}
