package swarm

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionManager owns swarm session creation and status transitions,
// spec §4.7/§4.8. Grounded on
// original_source/src/workers/swarm/session.py's SwarmSessionManager.
type SessionManager struct {
	store *Store
	cfg   *Config
}

func NewSessionManager(store *Store, cfg *Config) *SessionManager {
	return &SessionManager{store: store, cfg: cfg}
}

// generateID produces a swarm-<8hex> id, the literal scheme from
// session.py's _generate_id: f"swarm-{uuid.uuid4().hex[:8]}".
func generateID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "swarm-" + hex[:8]
}

// CreateSession creates a new session in PENDING, defaulting reviewers
// to the configured list when none are supplied.
func (m *SessionManager) CreateSession(ctx context.Context, targetPath string, reviewerTypes []string) (*Session, error) {
	if len(reviewerTypes) == 0 {
		reviewerTypes = m.cfg.DefaultReviewers
	}

	session := &Session{
		ID:         generateID(),
		TargetPath: targetPath,
		Reviewers:  reviewerTypes,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *SessionManager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return m.store.GetSession(ctx, sessionID)
}

// UpdateStatus transitions a session's status, optionally stamping
// completed_at.
func (m *SessionManager) UpdateStatus(ctx context.Context, sessionID string, status Status, completedAt *time.Time) error {
	return m.store.UpdateStatus(ctx, sessionID, status, completedAt)
}
