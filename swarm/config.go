package swarm

import (
	"os"
	"strconv"
	"strings"

	"github.com/asdlc-dev/swarmcoord/coordination"
)

// Config is SwarmConfig, spec §6. Grounded field-for-field on
// original_source/src/workers/swarm/config.py's SwarmConfig and
// get_swarm_config, including the exact SWARM_* environment variable
// names and comma-separated list parsing.
type Config struct {
	TaskTimeoutSeconds           int
	AggregateTimeoutSeconds      int
	MaxConcurrentSwarms          int
	DefaultReviewers             []string
	KeyPrefix                    string
	ResultTTLSeconds             int
	DuplicateSimilarityThreshold float64
	AllowedPathPrefixes          []string
}

// DefaultConfig returns the documented default values, matching
// SwarmConfig's Pydantic field defaults exactly.
func DefaultConfig() *Config {
	return &Config{
		TaskTimeoutSeconds:           300,
		AggregateTimeoutSeconds:      60,
		MaxConcurrentSwarms:          5,
		DefaultReviewers:             []string{"security", "performance", "style"},
		KeyPrefix:                    "swarm",
		ResultTTLSeconds:             86400,
		DuplicateSimilarityThreshold: 0.80,
		AllowedPathPrefixes:          []string{"src/", "docker/", "tests/"},
	}
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadConfigFromEnv overlays DefaultConfig with SWARM_* environment
// variables, rejecting invalid numeric values at load time (spec §6).
func LoadConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	intFields := []struct {
		env string
		dst *int
	}{
		{"SWARM_TASK_TIMEOUT_SECONDS", &cfg.TaskTimeoutSeconds},
		{"SWARM_AGGREGATE_TIMEOUT_SECONDS", &cfg.AggregateTimeoutSeconds},
		{"SWARM_MAX_CONCURRENT_SWARMS", &cfg.MaxConcurrentSwarms},
		{"SWARM_RESULT_TTL_SECONDS", &cfg.ResultTTLSeconds},
	}
	for _, f := range intFields {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &coordination.Error{Kind: coordination.KindConfiguration, Message: "invalid integer value for " + f.env + ": " + v, Err: err}
		}
		if n <= 0 {
			return nil, &coordination.Error{Kind: coordination.KindConfiguration, Message: f.env + " must be > 0"}
		}
		*f.dst = n
	}

	if v := os.Getenv("SWARM_DUPLICATE_SIMILARITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &coordination.Error{Kind: coordination.KindConfiguration, Message: "invalid float value for SWARM_DUPLICATE_SIMILARITY_THRESHOLD: " + v, Err: err}
		}
		if f < 0.0 || f > 1.0 {
			return nil, &coordination.Error{Kind: coordination.KindConfiguration, Message: "SWARM_DUPLICATE_SIMILARITY_THRESHOLD must be within 0.0-1.0"}
		}
		cfg.DuplicateSimilarityThreshold = f
	}

	if v := os.Getenv("SWARM_KEY_PREFIX"); v != "" {
		cfg.KeyPrefix = v
	}
	if v := os.Getenv("SWARM_DEFAULT_REVIEWERS"); v != "" {
		cfg.DefaultReviewers = parseList(v)
	}
	if v := os.Getenv("SWARM_ALLOWED_PATH_PREFIXES"); v != "" {
		cfg.AllowedPathPrefixes = parseList(v)
	}

	return cfg, nil
}
