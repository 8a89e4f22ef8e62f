package coordination

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceTracker implements register/heartbeat/unregister/read-presence
// with on-read staleness, spec §4.4. Grounded on
// original_source/.../client.py's register_instance/heartbeat/
// unregister_instance/get_presence, including the exact rightmost-dot
// field-name parsing (instance ids may themselves contain dots).
type PresenceTracker struct {
	client  *redis.Client
	keys    *KeyNamer
	timeout time.Duration
}

func NewPresenceTracker(client *redis.Client, keys *KeyNamer, timeout time.Duration) *PresenceTracker {
	return &PresenceTracker{client: client, keys: keys, timeout: timeout}
}

// Register writes active/last_heartbeat/optional session_id fields.
func (p *PresenceTracker) Register(ctx context.Context, instanceID, sessionID string) error {
	key := p.keys.PresenceKey()
	fields := map[string]any{
		presenceActiveField(instanceID):    "1",
		presenceHeartbeatField(instanceID): formatTime(time.Now()),
	}
	if sessionID != "" {
		fields[presenceSessionField(instanceID)] = sessionID
	}
	if err := p.client.HSet(ctx, key, fields).Err(); err != nil {
		return wrapf(KindPresence, err, "register instance %s", instanceID)
	}
	return nil
}

// Heartbeat refreshes only last_heartbeat.
func (p *PresenceTracker) Heartbeat(ctx context.Context, instanceID string) error {
	key := p.keys.PresenceKey()
	if err := p.client.HSet(ctx, key, presenceHeartbeatField(instanceID), formatTime(time.Now())).Err(); err != nil {
		return wrapf(KindPresence, err, "heartbeat instance %s", instanceID)
	}
	return nil
}

// Unregister deletes all three fields for the instance.
func (p *PresenceTracker) Unregister(ctx context.Context, instanceID string) error {
	key := p.keys.PresenceKey()
	err := p.client.HDel(ctx, key,
		presenceActiveField(instanceID),
		presenceHeartbeatField(instanceID),
		presenceSessionField(instanceID),
	).Err()
	if err != nil {
		return wrapf(KindPresence, err, "unregister instance %s", instanceID)
	}
	return nil
}

// GetPresence returns every tracked instance, with freshness resolved on
// read: an entry whose last heartbeat exceeds the configured timeout is
// reported active=false regardless of the stored flag (spec §4.4, S4).
func (p *PresenceTracker) GetPresence(ctx context.Context) (map[string]*PresenceEntry, error) {
	raw, err := p.client.HGetAll(ctx, p.keys.PresenceKey()).Result()
	if err != nil {
		return nil, wrapf(KindPresence, err, "read presence hash")
	}

	entries := map[string]*PresenceEntry{}
	now := time.Now()

	for field, value := range raw {
		instanceID, suffix, ok := splitPresenceField(field)
		if !ok {
			continue
		}
		entry, exists := entries[instanceID]
		if !exists {
			entry = &PresenceEntry{InstanceID: instanceID}
			entries[instanceID] = entry
		}
		switch suffix {
		case "active":
			entry.Active = flagToBool(value)
		case "last_heartbeat":
			if t, err := parseTime(value); err == nil {
				entry.LastHeartbeat = t
			}
		case "session_id":
			entry.SessionID = value
		}
	}

	for _, entry := range entries {
		if entry.LastHeartbeat.IsZero() || now.Sub(entry.LastHeartbeat) > p.timeout {
			entry.Active = false
		}
	}

	return entries, nil
}

// splitPresenceField splits on the rightmost dot so instance ids
// containing dots are handled correctly, per spec §4.1.
func splitPresenceField(field string) (instanceID, suffix string, ok bool) {
	idx := strings.LastIndex(field, ".")
	if idx < 0 {
		return "", "", false
	}
	return field[:idx], field[idx+1:], true
}
