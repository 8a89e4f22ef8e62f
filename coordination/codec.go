package coordination

import (
	"encoding/json"
	"time"
)

// MessageCodec serializes Messages to/from the flat string-to-string hash
// form Redis stores them in, and Notifications to/from JSON, per spec
// §4.2. Grounded on the hash-field layout used throughout
// original_source/src/infrastructure/coordination/client.py's
// publish_message/get_message, and on control_plane/store/redis.go's
// stdlib-json-in-hash convention (marshals structs into Redis values
// with encoding/json).
const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts a trailing "Z" as "+00:00", per spec §4.2.
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func boolToFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func flagToBool(s string) bool {
	return s == "1"
}

// EncodeMessageHash renders a Message into the flat map written to Redis.
func EncodeMessageHash(m *Message) map[string]string {
	h := map[string]string{
		"id":           m.ID,
		"type":         string(m.Type),
		"from":         m.FromInstance,
		"to":           m.ToInstance,
		"timestamp":    formatTime(m.Timestamp),
		"requires_ack": boolToFlag(m.RequiresAck),
		"acknowledged": boolToFlag(m.Acknowledged),
		"subject":      m.Payload.Subject,
		"description":  m.Payload.Description,
	}
	if m.AckBy != "" {
		h["ack_by"] = m.AckBy
	}
	if m.AckTimestamp != nil {
		h["ack_timestamp"] = formatTime(*m.AckTimestamp)
	}
	if m.AckComment != "" {
		h["ack_comment"] = m.AckComment
	}
	return h
}

// DecodeMessageHash reconstructs a Message from a Redis hash read. Returns
// nil, nil when the hash is empty (not-found convention, spec §7).
func DecodeMessageHash(h map[string]string) (*Message, error) {
	if len(h) == 0 {
		return nil, nil
	}
	ts, err := parseTime(h["timestamp"])
	if err != nil {
		return nil, wrapf(KindCoordination, err, "decode message timestamp")
	}
	m := &Message{
		ID:           h["id"],
		Type:         MessageType(h["type"]),
		FromInstance: h["from"],
		ToInstance:   h["to"],
		Timestamp:    ts,
		RequiresAck:  flagToBool(h["requires_ack"]),
		Acknowledged: flagToBool(h["acknowledged"]),
		AckBy:        h["ack_by"],
		AckComment:   h["ack_comment"],
		Payload: Payload{
			Subject:     h["subject"],
			Description: h["description"],
		},
	}
	if at, ok := h["ack_timestamp"]; ok && at != "" {
		t, err := parseTime(at)
		if err != nil {
			return nil, wrapf(KindCoordination, err, "decode ack timestamp")
		}
		m.AckTimestamp = &t
	}
	return m, nil
}

// EncodeNotification renders a Notification to its wire JSON form.
func EncodeNotification(n *Notification) ([]byte, error) {
	return json.Marshal(n)
}

// DecodeNotification parses the wire JSON form back into a Notification,
// rejecting an unrecognized Type the way client.py's
// MessageType(event_dict["type"]) raises on an unknown enum value.
func DecodeNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	if !n.Type.valid() {
		return nil, newError(KindCoordination, "unknown notification type: "+string(n.Type), nil, map[string]any{"type": string(n.Type)})
	}
	return &n, nil
}

func newNotification(m *Message) *Notification {
	return &Notification{
		Event:       notificationEvent,
		MessageID:   m.ID,
		Type:        m.Type,
		From:        m.FromInstance,
		To:          m.ToInstance,
		RequiresAck: m.RequiresAck,
		Timestamp:   m.Timestamp,
	}
}
