package coordination

import "fmt"

// KeyNamer derives every Redis key/channel name from a configured prefix.
// Grounded on control_plane/store/keys.go's TenantKey/TenantPrefix
// colon-joined naming, generalized from the tenant-scoped pattern to the
// coordination substrate's flat prefix scheme (spec §4.1).
type KeyNamer struct {
	prefix string
}

func NewKeyNamer(prefix string) *KeyNamer {
	return &KeyNamer{prefix: prefix}
}

func (k *KeyNamer) MessageKey(id string) string {
	return fmt.Sprintf("%s:msg:%s", k.prefix, id)
}

func (k *KeyNamer) TimelineKey() string {
	return fmt.Sprintf("%s:timeline", k.prefix)
}

func (k *KeyNamer) InboxKey(to string) string {
	return fmt.Sprintf("%s:inbox:%s", k.prefix, to)
}

func (k *KeyNamer) PendingKey() string {
	return fmt.Sprintf("%s:pending", k.prefix)
}

func (k *KeyNamer) PresenceKey() string {
	return fmt.Sprintf("%s:presence", k.prefix)
}

func (k *KeyNamer) NotifyChannel(to string) string {
	return fmt.Sprintf("%s:notify:%s", k.prefix, to)
}

func (k *KeyNamer) BroadcastChannel() string {
	return fmt.Sprintf("%s:notify:all", k.prefix)
}

func (k *KeyNamer) OfflineQueueKey(to string) string {
	return fmt.Sprintf("%s:notifications:%s", k.prefix, to)
}

// presenceActiveField, presenceHeartbeatField and presenceSessionField
// build the dot-delimited presence hash field names described in spec
// §4.1. Parsing them back splits on the rightmost dot so instance ids
// may themselves contain dots (see splitPresenceField in presence.go).
func presenceActiveField(instanceID string) string {
	return instanceID + ".active"
}

func presenceHeartbeatField(instanceID string) string {
	return instanceID + ".last_heartbeat"
}

func presenceSessionField(instanceID string) string {
	return instanceID + ".session_id"
}
