package coordination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageHashRoundTrip(t *testing.T) {
	ack := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	original := &Message{
		ID:           "msg-deadbeef",
		Type:         TypeGeneral,
		FromInstance: "a",
		ToInstance:   "b",
		Timestamp:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		RequiresAck:  true,
		Acknowledged: true,
		AckBy:        "b",
		AckTimestamp: &ack,
		AckComment:   "looks good",
		Payload:      Payload{Subject: "s", Description: "d"},
	}

	hash := EncodeMessageHash(original)
	decoded, err := DecodeMessageHash(hash)
	require.NoError(t, err)
	require.Equal(t, original.ID, decoded.ID)
	require.Equal(t, original.Type, decoded.Type)
	require.Equal(t, original.FromInstance, decoded.FromInstance)
	require.Equal(t, original.ToInstance, decoded.ToInstance)
	require.True(t, original.Timestamp.Equal(decoded.Timestamp))
	require.Equal(t, original.RequiresAck, decoded.RequiresAck)
	require.Equal(t, original.Acknowledged, decoded.Acknowledged)
	require.Equal(t, original.AckBy, decoded.AckBy)
	require.True(t, original.AckTimestamp.Equal(*decoded.AckTimestamp))
	require.Equal(t, original.AckComment, decoded.AckComment)
	require.Equal(t, original.Payload, decoded.Payload)
}

func TestDecodeMessageHashEmptyIsNotFound(t *testing.T) {
	msg, err := DecodeMessageHash(map[string]string{})
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestNotificationJSONRoundTrip(t *testing.T) {
	n := &Notification{
		Event:       notificationEvent,
		MessageID:   "msg-cafebabe",
		Type:        TypeSwarmStarted,
		From:        "a",
		To:          "all",
		RequiresAck: false,
		Timestamp:   time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	data, err := EncodeNotification(n)
	require.NoError(t, err)

	decoded, err := DecodeNotification(data)
	require.NoError(t, err)
	require.Equal(t, n.Event, decoded.Event)
	require.Equal(t, n.MessageID, decoded.MessageID)
	require.Equal(t, n.Type, decoded.Type)
	require.Equal(t, n.From, decoded.From)
	require.Equal(t, n.To, decoded.To)
	require.Equal(t, n.RequiresAck, decoded.RequiresAck)
	require.True(t, n.Timestamp.Equal(decoded.Timestamp))
}

func TestDecodeNotificationRejectsGarbage(t *testing.T) {
	_, err := DecodeNotification([]byte("not json"))
	require.Error(t, err)
}

func TestDecodeNotificationRejectsUnknownType(t *testing.T) {
	n := &Notification{
		Event:     notificationEvent,
		MessageID: "msg-cafebabe",
		Type:      MessageType("NOT_A_REAL_TYPE"),
		From:      "a",
		To:        "all",
		Timestamp: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	data, err := EncodeNotification(n)
	require.NoError(t, err)

	_, err = DecodeNotification(data)
	require.Error(t, err)
	var coordErr *Error
	require.ErrorAs(t, err, &coordErr)
	require.Equal(t, KindCoordination, coordErr.Kind)
}
