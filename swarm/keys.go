package swarm

import "fmt"

// keyNamer derives swarm Redis key names from the configured prefix,
// spec §4.1. Grounded on the same colon-joined naming idiom as
// coordination.KeyNamer / control_plane/store/keys.go.
type keyNamer struct {
	prefix string
}

func newKeyNamer(prefix string) *keyNamer {
	return &keyNamer{prefix: prefix}
}

func (k *keyNamer) SessionKey(sid string) string {
	return fmt.Sprintf("%s:session:%s", k.prefix, sid)
}

func (k *keyNamer) ResultsKey(sid string) string {
	return fmt.Sprintf("%s:results:%s", k.prefix, sid)
}

func (k *keyNamer) ProgressKey(sid string) string {
	return fmt.Sprintf("%s:progress:%s", k.prefix, sid)
}

func (k *keyNamer) SlotKey(n int) string {
	return fmt.Sprintf("%s:slot:%d", k.prefix, n)
}
