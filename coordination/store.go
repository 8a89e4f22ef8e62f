package coordination

import (
	"context"
	"log"
	"time"

	"github.com/asdlc-dev/swarmcoord/observability"
	"github.com/redis/go-redis/v9"
)

// offlineQueuer is satisfied by *NotificationBus; Store holds the bus
// through this interface and leaves it nil until SetNotificationBus.
type offlineQueuer interface {
	queueIfOffline(ctx context.Context, n *Notification, ttl time.Duration) error
}

// Store implements CoordinationStore: atomic Redis-pipeline operations for
// publish/ack/inbox/pending/timeline, spec §4.3. Grounded on
// control_plane/store/redis.go's pipeline/transaction style (NewRedisStore,
// its Set/Get/Lua-script methods) and on
// original_source/.../client.py's publish_message/get_messages/
// acknowledge_message for exact step ordering and resolution semantics.
type Store struct {
	client *redis.Client
	keys   *KeyNamer
	cfg    *Config
	bus    offlineQueuer
}

func NewStore(client *redis.Client, keys *KeyNamer, cfg *Config) *Store {
	return &Store{client: client, keys: keys, cfg: cfg}
}

// SetNotificationBus wires the offline-queue fallback used after a
// successful publish. Optional: a Store with no bus simply skips that
// best-effort step.
func (s *Store) SetNotificationBus(bus *NotificationBus) {
	s.bus = bus
}

func (s *Store) messageTTL() time.Duration {
	return time.Duration(s.cfg.MessageTTLDays) * 24 * time.Hour
}

// Publish writes a message through the exact 8-step atomic pipeline of
// spec §4.3, preceded by a non-transactional duplicate-id pre-check.
func (s *Store) Publish(ctx context.Context, req PublishRequest) (*Message, error) {
	id := req.ID
	if id == "" {
		id = GenerateMessageID()
	}

	start := time.Now()
	msgKey := s.keys.MessageKey(id)
	exists, err := s.client.Exists(ctx, msgKey).Result()
	observability.RedisLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, wrapf(KindConnection, err, "check duplicate id %s", id)
	}
	if exists > 0 {
		observability.DuplicatePublishRejected.Inc()
		return nil, newError(KindDuplicate, "message id already exists: "+id, nil, map[string]any{"id": id})
	}

	msg := &Message{
		ID:           id,
		Type:         req.Type,
		FromInstance: req.FromInstance,
		ToInstance:   req.ToInstance,
		Timestamp:    time.Now().UTC(),
		RequiresAck:  req.RequiresAck,
		Acknowledged: false,
		Payload:      Payload{Subject: req.Subject, Description: req.Description},
	}

	notif := newNotification(msg)
	notifJSON, err := EncodeNotification(notif)
	if err != nil {
		return nil, wrapf(KindPublish, err, "encode notification for %s", id)
	}

	ttl := s.messageTTL()
	timelineKey := s.keys.TimelineKey()
	inboxKey := s.keys.InboxKey(req.ToInstance)
	pendingKey := s.keys.PendingKey()
	instanceChannel := s.keys.NotifyChannel(req.ToInstance)
	broadcastChannel := s.keys.BroadcastChannel()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, msgKey, EncodeMessageHash(msg))
		pipe.Expire(ctx, msgKey, ttl)
		pipe.ZAdd(ctx, timelineKey, redis.Z{Score: float64(msg.Timestamp.Unix()), Member: id})
		pipe.ZRemRangeByRank(ctx, timelineKey, 0, int64(-s.cfg.TimelineMax)-1)
		pipe.SAdd(ctx, inboxKey, id)
		if req.RequiresAck {
			pipe.SAdd(ctx, pendingKey, id)
		}
		pipe.Publish(ctx, instanceChannel, notifJSON)
		pipe.Publish(ctx, broadcastChannel, notifJSON)
		return nil
	})
	if err != nil {
		return nil, wrapf(KindPublish, err, "publish pipeline for %s", id)
	}

	if s.bus != nil && req.ToInstance != BroadcastInstance {
		if err := s.bus.queueIfOffline(ctx, notif, ttl); err != nil {
			log.Printf("coordination: queue-if-offline failed for %s: %v", id, err)
		}
	}

	observability.MessagesPublished.WithLabelValues(string(msg.Type)).Inc()
	return msg, nil
}

// Acknowledge marks a message acknowledged, idempotently. Returns
// (false, nil) when the message does not exist, per the not-found
// convention in spec §7.
func (s *Store) Acknowledge(ctx context.Context, id, ackBy, comment string) (bool, error) {
	msgKey := s.keys.MessageKey(id)

	h, err := s.client.HGetAll(ctx, msgKey).Result()
	if err != nil {
		return false, wrapf(KindAcknowledge, err, "read message %s", id)
	}
	if len(h) == 0 {
		return false, nil
	}
	if flagToBool(h["acknowledged"]) {
		return true, nil
	}

	now := time.Now().UTC()
	pendingKey := s.keys.PendingKey()
	fields := map[string]any{
		"acknowledged":  "1",
		"ack_by":        ackBy,
		"ack_timestamp": formatTime(now),
	}
	if comment != "" {
		fields["ack_comment"] = comment
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, msgKey, fields)
		pipe.SRem(ctx, pendingKey, id)
		return nil
	})
	if err != nil {
		return false, wrapf(KindAcknowledge, err, "acknowledge pipeline for %s", id)
	}
	observability.MessagesAcknowledged.Inc()
	return true, nil
}

// GetMessage reads a single message by id. Returns (nil, nil) when absent.
func (s *Store) GetMessage(ctx context.Context, id string) (*Message, error) {
	h, err := s.client.HGetAll(ctx, s.keys.MessageKey(id)).Result()
	if err != nil {
		return nil, wrapf(KindCoordination, err, "get message %s", id)
	}
	msg, err := DecodeMessageHash(h)
	if err != nil {
		return nil, wrapf(KindCoordination, err, "decode message %s", id)
	}
	return msg, nil
}

// Query resolves the filtered candidate id-set and hydrates it, spec
// §4.3 step 3-4.
func (s *Store) Query(ctx context.Context, q Query) ([]*Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	var candidates []string
	var err error

	switch {
	case q.ToInstance != "":
		candidates, err = s.client.SMembers(ctx, s.keys.InboxKey(q.ToInstance)).Result()
		if err != nil {
			return nil, wrapf(KindCoordination, err, "read inbox for %s", q.ToInstance)
		}
		if q.PendingOnly {
			candidates, err = s.intersectWithPending(ctx, candidates)
			if err != nil {
				return nil, err
			}
		}
	case q.PendingOnly:
		candidates, err = s.client.SMembers(ctx, s.keys.PendingKey()).Result()
		if err != nil {
			return nil, wrapf(KindCoordination, err, "read pending set")
		}
	case q.Since != nil:
		candidates, err = s.client.ZRangeByScore(ctx, s.keys.TimelineKey(), &redis.ZRangeBy{
			Min: formatUnixScore(q.Since.Unix()),
			Max: "+inf",
		}).Result()
		if err != nil {
			return nil, wrapf(KindCoordination, err, "read timeline since %v", q.Since)
		}
	default:
		candidates, err = s.client.ZRevRange(ctx, s.keys.TimelineKey(), 0, int64(limit*2-1)).Result()
		if err != nil {
			return nil, wrapf(KindCoordination, err, "read timeline head")
		}
	}

	messages := make([]*Message, 0, len(candidates))
	for _, id := range candidates {
		h, err := s.client.HGetAll(ctx, s.keys.MessageKey(id)).Result()
		if err != nil {
			return nil, wrapf(KindCoordination, err, "hydrate message %s", id)
		}
		msg, err := DecodeMessageHash(h)
		if err != nil {
			log.Printf("coordination: skipping unparseable message %s: %v", id, err)
			continue
		}
		if msg == nil {
			continue // TTL-expired entry still indexed elsewhere; skip silently.
		}
		if q.FromInstance != "" && msg.FromInstance != q.FromInstance {
			continue
		}
		if q.MsgType != "" && msg.Type != q.MsgType {
			continue
		}
		if q.Since != nil && msg.Timestamp.Before(*q.Since) {
			continue
		}
		messages = append(messages, msg)
	}

	sortMessagesDescending(messages)
	if len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func (s *Store) intersectWithPending(ctx context.Context, candidates []string) ([]string, error) {
	pending, err := s.client.SMembers(ctx, s.keys.PendingKey()).Result()
	if err != nil {
		return nil, wrapf(KindCoordination, err, "read pending set")
	}
	pendingSet := make(map[string]struct{}, len(pending))
	for _, id := range pending {
		pendingSet[id] = struct{}{}
	}
	out := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if _, ok := pendingSet[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// Stats reports timeline/pending cardinalities and active-instance count.
// messages_by_type is intentionally left unpopulated; see DESIGN.md
// "Open Question decisions".
func (s *Store) Stats(ctx context.Context, presence *PresenceTracker) (*Stats, error) {
	timelineKey := s.keys.TimelineKey()
	pendingKey := s.keys.PendingKey()

	pipe := s.client.Pipeline()
	timelineCmd := pipe.ZCard(ctx, timelineKey)
	pendingCmd := pipe.SCard(ctx, pendingKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, wrapf(KindCoordination, err, "read stats counters")
	}

	active := 0
	if presence != nil {
		entries, err := presence.GetPresence(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Active {
				active++
			}
		}
	}

	return &Stats{
		TimelineSize:    timelineCmd.Val(),
		PendingSize:     pendingCmd.Val(),
		ActiveInstances: active,
		MessagesByType:  map[MessageType]int64{},
	}, nil
}
