package coordination

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// GenerateMessageID produces a msg-<8 hex> id, the literal scheme from
// original_source's generate_message_id: f"msg-{uuid.uuid4().hex[:8]}".
func GenerateMessageID() string {
	return "msg-" + shortHex()
}

func shortHex() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return hex[:8]
}

// HealthReport is the result of CoordinationClient.HealthCheck, spec §4.6.
type HealthReport struct {
	Connected bool
	Status    string
	LatencyMS float64
	KeyPrefix string
}

// Client is CoordinationClient: a thin façade composing Store, Presence
// and NotificationBus, spec §4.6. Grounded on
// original_source/.../client.py's CoordinationClient class, which plays
// the identical facade role over the same three concerns.
type Client struct {
	redis    *redis.Client
	keys     *KeyNamer
	cfg      *Config
	Store    *Store
	Presence *PresenceTracker
	Bus      *NotificationBus

	mu            sync.Mutex
	instanceID    string
	connected     bool
	correlationID string
}

// NewClient wires the full substrate from a Config, mirroring
// control_plane/main.go's sequential-construction wiring style.
func NewClient(cfg *Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	keys := NewKeyNamer(cfg.KeyPrefix)
	store := NewStore(rdb, keys, cfg)
	presence := NewPresenceTracker(rdb, keys, time.Duration(cfg.PresenceTimeoutMinutes)*time.Minute)
	bus := NewNotificationBus(rdb, keys, presence)
	store.SetNotificationBus(bus)

	return &Client{
		redis:    rdb,
		keys:     keys,
		cfg:      cfg,
		Store:    store,
		Presence: presence,
		Bus:      bus,
	}, nil
}

// Enter is the lifecycle-scope boundary: it ping-verifies the backend and
// marks the instance connected. Entry fails if ping fails, spec §4.6.
func (c *Client) Enter(ctx context.Context, instanceID string) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.redis.Ping(pingCtx).Err(); err != nil {
		return wrapf(KindConnection, err, "enter: ping backend")
	}

	c.mu.Lock()
	c.instanceID = instanceID
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Exit clears per-scope state.
func (c *Client) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.correlationID = ""
}

// SetCorrelationID stores a correlation id for cross-cutting log context.
func (c *Client) SetCorrelationID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.correlationID = id
}

func (c *Client) CorrelationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.correlationID
}

// HealthCheck measures a single ping round-trip with no retry, spec §5.
func (c *Client) HealthCheck(ctx context.Context) (*HealthReport, error) {
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := c.redis.Ping(pingCtx).Err(); err != nil {
		return &HealthReport{Connected: false, Status: "unreachable", KeyPrefix: c.cfg.KeyPrefix}, wrapf(KindConnection, err, "health check ping")
	}

	return &HealthReport{
		Connected: true,
		Status:    "ok",
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000.0,
		KeyPrefix: c.cfg.KeyPrefix,
	}, nil
}

// Publish generates a message id when req.ID is empty and delegates to
// Store.Publish, spec §4.6 "Generates message ids centrally".
func (c *Client) Publish(ctx context.Context, req PublishRequest) (*Message, error) {
	if req.ID == "" {
		req.ID = GenerateMessageID()
	}
	return c.Store.Publish(ctx, req)
}

// RedisClient exposes the underlying client for components (e.g. swarm
// admission locks) that share the same Redis connection.
func (c *Client) RedisClient() *redis.Client {
	return c.redis
}

func (c *Client) Keys() *KeyNamer {
	return c.keys
}

func (c *Client) Config() *Config {
	return c.cfg
}

// --- process-wide singleton, spec §5/§9 ---

var (
	defaultOnce   sync.Once
	defaultClient *Client
	defaultMu     sync.Mutex
)

// Default lazily constructs the process-wide singleton from
// LoadConfigFromEnv on first call, never at package init, per spec §9
// "any mutex must itself be lazily created at first async entry".
func Default() (*Client, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	var constructErr error
	defaultOnce.Do(func() {
		cfg, err := LoadConfigFromEnv()
		if err != nil {
			constructErr = err
			return
		}
		defaultClient, constructErr = NewClient(cfg)
	})
	if constructErr != nil {
		return nil, constructErr
	}
	return defaultClient, nil
}

// SetDefault overrides the process-wide singleton, primarily for tests.
func SetDefault(c *Client) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultClient = c
	defaultOnce.Do(func() {})
}

// ResetDefault clears the singleton so the next Default() call
// reconstructs it, test-only per spec §5.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultClient = nil
	defaultOnce = sync.Once{}
}
