package swarm

import (
	"context"
	"log"
	"time"

	"github.com/asdlc-dev/swarmcoord/coordination"
	"github.com/asdlc-dev/swarmcoord/observability"
)

// SlotJanitor periodically scans the admission gate's numbered slot locks,
// adapted from control_plane/coordination/janitor.go's LockJanitor. That
// janitor exists because FluxForge's leader lock carries epoch-fencing
// metadata and a grace window that must be actively scanned; swarm slot
// locks carry neither. Acquire/Renew always pass an explicit TTL, so Redis
// itself reclaims an abandoned slot. SlotJanitor is narrowed to a
// defect-recovery safety net: any slot key found with no TTL at all
// (PTTL/TTL returning -1, meaning it was somehow set without an expiry)
// is force-deleted, since a slot stuck that way would otherwise never be
// released except by an explicit owner-matched Release.
type SlotJanitor struct {
	locker   coordination.Locker
	keys     *keyNamer
	slots    int
	interval time.Duration
}

func NewSlotJanitor(locker coordination.Locker, cfg *Config, interval time.Duration) *SlotJanitor {
	return &SlotJanitor{
		locker:   locker,
		keys:     newKeyNamer(cfg.KeyPrefix),
		slots:    cfg.MaxConcurrentSwarms,
		interval: interval,
	}
}

func (j *SlotJanitor) Start(ctx context.Context) {
	go j.loop(ctx)
}

func (j *SlotJanitor) loop(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.clean(ctx)
		}
	}
}

// ttlReporter is satisfied by *coordination.RedisLocker; narrowed out of
// the broader coordination.Locker interface so SlotJanitor depends only on
// what it needs.
type ttlReporter interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
	ForceDelete(ctx context.Context, key string) error
}

func (j *SlotJanitor) clean(ctx context.Context) {
	reporter, ok := j.locker.(ttlReporter)
	if !ok {
		return
	}

	for i := 0; i < j.slots; i++ {
		key := j.keys.SlotKey(i)

		owner, err := j.locker.Owner(ctx, key)
		if err != nil {
			log.Printf("SlotJanitor: failed to read owner of %s: %v", key, err)
			continue
		}
		if owner == "" {
			continue
		}

		ttl, err := reporter.TTL(ctx, key)
		if err != nil {
			log.Printf("SlotJanitor: failed to read ttl of %s: %v", key, err)
			continue
		}
		if ttl >= 0 {
			continue
		}

		log.Printf("SlotJanitor: slot %s held by %s has no ttl, reclaiming", key, owner)
		if err := reporter.ForceDelete(ctx, key); err != nil {
			log.Printf("SlotJanitor: failed to reclaim %s: %v", key, err)
			continue
		}
		observability.SwarmSlotJanitorReclaims.Inc()
	}
}
