package swarm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is SwarmStore: Redis-backed session state, per-reviewer results,
// and the completion progress set, spec §4.7. Grounded on
// control_plane/store/redis.go's JSON-in-hash persistence pattern
// (UpsertAgent/GetAgent), generalized from FluxForge's Agent/Job entities
// to SwarmSession/ReviewerResult, and on
// original_source/src/workers/swarm/models.py's flat-hash-plus-JSON-
// subfields shape for session serialization.
type Store struct {
	client *redis.Client
	keys   *keyNamer
	cfg    *Config
}

func NewStore(client *redis.Client, cfg *Config) *Store {
	return &Store{client: client, keys: newKeyNamer(cfg.KeyPrefix), cfg: cfg}
}

func (s *Store) ttl() time.Duration {
	return time.Duration(s.cfg.ResultTTLSeconds) * time.Second
}

// CreateSession persists a new session hash with the configured TTL.
func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	reviewersJSON, err := json.Marshal(session.Reviewers)
	if err != nil {
		return err
	}
	key := s.keys.SessionKey(session.ID)
	fields := map[string]any{
		"id":          session.ID,
		"target_path": session.TargetPath,
		"reviewers":   string(reviewersJSON),
		"status":      string(session.Status),
		"created_at":  session.CreatedAt.UTC().Format(time.RFC3339),
	}
	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.ttl())
		return nil
	}); err != nil {
		return err
	}
	return nil
}

// GetSession reads and reconstructs a session. Returns (nil, nil) if absent.
func (s *Store) GetSession(ctx context.Context, sid string) (*Session, error) {
	h, err := s.client.HGetAll(ctx, s.keys.SessionKey(sid)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, nil
	}

	var reviewers []string
	if v, ok := h["reviewers"]; ok && v != "" {
		if err := json.Unmarshal([]byte(v), &reviewers); err != nil {
			return nil, err
		}
	}

	createdAt, err := time.Parse(time.RFC3339, h["created_at"])
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:         h["id"],
		TargetPath: h["target_path"],
		Reviewers:  reviewers,
		Status:     Status(h["status"]),
		CreatedAt:  createdAt,
	}

	if v, ok := h["completed_at"]; ok && v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		session.CompletedAt = &t
	}

	if v, ok := h["unified_report"]; ok && v != "" {
		var report UnifiedReport
		if err := json.Unmarshal([]byte(v), &report); err != nil {
			return nil, err
		}
		session.UnifiedReport = &report
	}

	return session, nil
}

// UpdateStatus sets status and, when completedAt is non-nil, the
// completed_at field, mirroring session.py's update_status.
func (s *Store) UpdateStatus(ctx context.Context, sid string, status Status, completedAt *time.Time) error {
	key := s.keys.SessionKey(sid)
	fields := map[string]any{"status": string(status)}
	if completedAt != nil {
		fields["completed_at"] = completedAt.UTC().Format(time.RFC3339)
	}
	return s.client.HSet(ctx, key, fields).Err()
}

// StoreUnifiedReport writes the aggregation output onto the session hash.
func (s *Store) StoreUnifiedReport(ctx context.Context, sid string, report *UnifiedReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.keys.SessionKey(sid), "unified_report", string(data)).Err()
}

// StoreReviewerResult writes one reviewer's result and marks it complete
// in the progress set, spec §4.7.
func (s *Store) StoreReviewerResult(ctx context.Context, sid string, result *ReviewerResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	resultsKey := s.keys.ResultsKey(sid)
	progressKey := s.keys.ProgressKey(sid)
	ttl := s.ttl()

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, resultsKey, result.ReviewerType, string(data))
		pipe.Expire(ctx, resultsKey, ttl)
		pipe.SAdd(ctx, progressKey, result.ReviewerType)
		pipe.Expire(ctx, progressKey, ttl)
		return nil
	})
	return err
}

// GetResults reads every reviewer result stored so far.
func (s *Store) GetResults(ctx context.Context, sid string) (map[string]*ReviewerResult, error) {
	raw, err := s.client.HGetAll(ctx, s.keys.ResultsKey(sid)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*ReviewerResult, len(raw))
	for reviewerType, data := range raw {
		var r ReviewerResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, err
		}
		out[reviewerType] = &r
	}
	return out, nil
}

// WaitForCompletion polls the progress set until it is a superset of
// expected, or timeout elapses, spec §4.7. An empty expected list returns
// true immediately.
func (s *Store) WaitForCompletion(ctx context.Context, sid string, expected []string, timeout, pollInterval time.Duration) (bool, error) {
	if len(expected) == 0 {
		return true, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		done, err := s.client.SMembers(ctx, s.keys.ProgressKey(sid)).Result()
		if err != nil {
			return false, err
		}
		doneSet := make(map[string]struct{}, len(done))
		for _, r := range done {
			doneSet[r] = struct{}{}
		}
		allDone := true
		for _, r := range expected {
			if _, ok := doneSet[r]; !ok {
				allDone = false
				break
			}
		}
		if allDone {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
