package coordination

import (
	"os"
	"strconv"
)

// Config holds the coordination substrate's tunables. Grounded on
// control_plane/scheduler/types.go's DefaultXConfig()/env-loader shape,
// with env parsing tightened to reject-at-load-time (see DESIGN.md
// "Deviations from teacher").
type Config struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	KeyPrefix      string
	MessageTTLDays int
	TimelineMax    int
	PresenceTimeoutMinutes int
}

// DefaultConfig returns the documented default values.
func DefaultConfig() *Config {
	return &Config{
		RedisAddr:              "localhost:6379",
		RedisPassword:          "",
		RedisDB:                0,
		KeyPrefix:              "coord",
		MessageTTLDays:         7,
		TimelineMax:            1000,
		PresenceTimeoutMinutes: 5,
	}
}

// LoadConfigFromEnv overlays DefaultConfig with COORD_* environment
// variables. Invalid numeric values are rejected at load time rather than
// silently ignored, per spec §6 "out-of-range numerics reject at load time".
func LoadConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("COORD_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("COORD_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("COORD_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, newError(KindConfiguration, "COORD_REDIS_DB must be an integer", err, nil)
		}
		cfg.RedisDB = n
	}
	if v := os.Getenv("COORD_KEY_PREFIX"); v != "" {
		cfg.KeyPrefix = v
	}
	if v := os.Getenv("COORD_MESSAGE_TTL_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, newError(KindConfiguration, "COORD_MESSAGE_TTL_DAYS must be an integer", err, nil)
		}
		if n < 1 {
			return nil, newError(KindConfiguration, "COORD_MESSAGE_TTL_DAYS must be >= 1", nil, map[string]any{"value": n})
		}
		cfg.MessageTTLDays = n
	}
	if v := os.Getenv("COORD_TIMELINE_MAX_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, newError(KindConfiguration, "COORD_TIMELINE_MAX_SIZE must be an integer", err, nil)
		}
		if n < 1 {
			return nil, newError(KindConfiguration, "COORD_TIMELINE_MAX_SIZE must be >= 1", nil, map[string]any{"value": n})
		}
		cfg.TimelineMax = n
	}
	if v := os.Getenv("COORD_PRESENCE_TIMEOUT_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, newError(KindConfiguration, "COORD_PRESENCE_TIMEOUT_MINUTES must be an integer", err, nil)
		}
		if n < 1 {
			return nil, newError(KindConfiguration, "COORD_PRESENCE_TIMEOUT_MINUTES must be >= 1", nil, map[string]any{"value": n})
		}
		cfg.PresenceTimeoutMinutes = n
	}

	return cfg, nil
}
