package swarm

import (
	"context"
	"fmt"
	"time"

	"github.com/asdlc-dev/swarmcoord/coordination"
	"github.com/asdlc-dev/swarmcoord/observability"
)

// ReviewExecutor runs a single reviewer against a target path. Supplied
// externally; the actual reviewer implementation is beyond this core,
// spec §4.8 step 4.
type ReviewExecutor func(ctx context.Context, sessionID, targetPath, reviewerType string) ([]ReviewFinding, error)

// Dispatcher is SwarmDispatcher, spec §4.8. The seven-step lifecycle
// (admission, create, SWARM_STARTED, fan-out, bounded wait, aggregate,
// complete) is assembled from session.py/aggregator.py's session and
// result shapes plus routes/swarm.py's SwarmDispatcher/SwarmSessionManager
// split (referenced there under TYPE_CHECKING); admission-gate usage is
// grounded on control_plane/coordination/leader.go's acquire/renew/release
// lease loop, relabeled from leader election to numbered slot locks.
type Dispatcher struct {
	sessions *SessionManager
	store    *Store
	coord    *coordination.Client
	gate     *AdmissionGate
	agg      *Aggregator
	cfg      *Config
	instance string
}

func NewDispatcher(sessions *SessionManager, store *Store, coord *coordination.Client, gate *AdmissionGate, cfg *Config, instance string) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		store:    store,
		coord:    coord,
		gate:     gate,
		agg:      NewAggregator(cfg),
		cfg:      cfg,
		instance: instance,
	}
}

// Dispatch runs the full lifecycle: admission, create, SWARM_STARTED,
// concurrent reviewer fan-out, bounded wait, aggregation, completion
// publish. reviewerTypes defaults to cfg.DefaultReviewers when empty.
func (d *Dispatcher) Dispatch(ctx context.Context, targetPath string, reviewerTypes []string, exec ReviewExecutor) (*Session, error) {
	slot, ok, err := d.gate.Acquire(ctx, targetPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &coordination.Error{Kind: coordination.KindSwarm, Message: "swarm admission rejected: max_concurrent_swarms reached"}
	}
	defer func() {
		if rerr := slot.Release(ctx); rerr != nil {
			_ = rerr
		}
	}()
	if ttl := d.gate.ttl; ttl > 0 {
		renewTimer := time.AfterFunc(ttl/2, func() { _, _ = slot.Renew(ctx, ttl) })
		defer renewTimer.Stop()
	}

	session, err := d.sessions.CreateSession(ctx, targetPath, reviewerTypes)
	if err != nil {
		return nil, err
	}
	observability.SwarmSessionsStarted.Inc()

	if _, err := d.coord.Publish(ctx, coordination.PublishRequest{
		Type:         coordination.TypeSwarmStarted,
		FromInstance: d.instance,
		ToInstance:   coordination.BroadcastInstance,
		Subject:      "swarm started",
		Description:  fmt.Sprintf("swarm %s dispatching %d reviewers against %s", session.ID, len(session.Reviewers), targetPath),
	}); err != nil {
		return nil, err
	}

	if err := d.sessions.UpdateStatus(ctx, session.ID, StatusInProgress, nil); err != nil {
		return nil, err
	}
	session.Status = StatusInProgress

	d.fanOut(ctx, session, exec)

	timeout := time.Duration(d.cfg.TaskTimeoutSeconds) * time.Second
	_, waitErr := d.store.WaitForCompletion(ctx, session.ID, session.Reviewers, timeout, time.Second)
	if waitErr != nil && waitErr != context.Canceled && waitErr != context.DeadlineExceeded {
		return nil, waitErr
	}

	if err := d.sessions.UpdateStatus(ctx, session.ID, StatusAggregating, nil); err != nil {
		return nil, err
	}

	results, err := d.store.GetResults(ctx, session.ID)
	if err != nil {
		completedAt := time.Now().UTC()
		_ = d.sessions.UpdateStatus(ctx, session.ID, StatusFailed, &completedAt)
		observability.SwarmSessionsCompleted.WithLabelValues(string(StatusFailed)).Inc()
		d.publishFailed(ctx, session, err)
		return nil, err
	}
	d.markMissingReviewersTimedOut(session, results)

	report := d.agg.Aggregate(session, results)
	observability.SwarmDuplicatesRemoved.Add(float64(report.DuplicatesRemoved))
	for _, f := range report.CriticalFindings {
		observability.SwarmFindingsEmitted.WithLabelValues(string(f.Severity)).Inc()
	}
	for _, f := range report.HighFindings {
		observability.SwarmFindingsEmitted.WithLabelValues(string(f.Severity)).Inc()
	}
	for _, f := range report.MediumFindings {
		observability.SwarmFindingsEmitted.WithLabelValues(string(f.Severity)).Inc()
	}
	for _, f := range report.LowFindings {
		observability.SwarmFindingsEmitted.WithLabelValues(string(f.Severity)).Inc()
	}
	for _, f := range report.InfoFindings {
		observability.SwarmFindingsEmitted.WithLabelValues(string(f.Severity)).Inc()
	}

	if err := d.store.StoreUnifiedReport(ctx, session.ID, report); err != nil {
		completedAt := time.Now().UTC()
		_ = d.sessions.UpdateStatus(ctx, session.ID, StatusFailed, &completedAt)
		observability.SwarmSessionsCompleted.WithLabelValues(string(StatusFailed)).Inc()
		d.publishFailed(ctx, session, err)
		return nil, err
	}

	completedAt := time.Now().UTC()
	if err := d.sessions.UpdateStatus(ctx, session.ID, StatusComplete, &completedAt); err != nil {
		return nil, err
	}
	session.Status = StatusComplete
	session.CompletedAt = &completedAt
	session.UnifiedReport = report
	observability.SwarmSessionsCompleted.WithLabelValues(string(StatusComplete)).Inc()

	if _, err := d.coord.Publish(ctx, coordination.PublishRequest{
		Type:         coordination.TypeSwarmComplete,
		FromInstance: d.instance,
		ToInstance:   coordination.BroadcastInstance,
		Subject:      "swarm complete",
		Description:  fmt.Sprintf("swarm %s: %d findings, %d duplicates removed", session.ID, report.TotalFindings, report.DuplicatesRemoved),
	}); err != nil {
		return nil, err
	}

	return session, nil
}

// fanOut launches one goroutine per reviewer, spec §4.8 step 4, and
// returns without joining them. WaitForCompletion imposes the
// task_timeout_seconds bound on the caller's side instead; a reviewer
// that outlives the bound keeps running in the background and simply
// writes its result late, after the swarm has already been reported
// complete with that reviewer marked failed/timeout.
func (d *Dispatcher) fanOut(ctx context.Context, session *Session, exec ReviewExecutor) {
	for _, reviewerType := range session.Reviewers {
		go d.runReviewer(ctx, session, reviewerType, exec)
	}
}

// markMissingReviewersTimedOut fills in a synthetic ReviewTimeout result
// for every expected reviewer absent from results once the bounded wait
// in Dispatch has elapsed, so aggregation reports them as failed instead
// of silently omitting them, spec §4.8 step 5 / §1.
func (d *Dispatcher) markMissingReviewersTimedOut(session *Session, results map[string]*ReviewerResult) {
	for _, reviewerType := range session.Reviewers {
		if _, ok := results[reviewerType]; ok {
			continue
		}
		results[reviewerType] = &ReviewerResult{
			ReviewerType: reviewerType,
			Status:       ReviewTimeout,
			ErrorMessage: "reviewer did not complete within task_timeout_seconds",
		}
		observability.SwarmReviewerDuration.WithLabelValues(reviewerType, string(ReviewTimeout)).Observe(float64(d.cfg.TaskTimeoutSeconds))
	}
}

func (d *Dispatcher) runReviewer(ctx context.Context, session *Session, reviewerType string, exec ReviewExecutor) {
	start := time.Now()
	findings, err := exec(ctx, session.ID, session.TargetPath, reviewerType)
	duration := time.Since(start).Seconds()

	result := &ReviewerResult{
		ReviewerType:    reviewerType,
		DurationSeconds: duration,
	}
	if err != nil {
		result.Status = ReviewFailed
		result.ErrorMessage = err.Error()
	} else {
		result.Status = ReviewSuccess
		result.Findings = findings
		result.FilesReviewed = 1
	}
	observability.SwarmReviewerDuration.WithLabelValues(reviewerType, string(result.Status)).Observe(duration)

	if storeErr := d.store.StoreReviewerResult(ctx, session.ID, result); storeErr != nil {
		return
	}

	_, _ = d.coord.Publish(ctx, coordination.PublishRequest{
		Type:         coordination.TypeSwarmReviewerComplete,
		FromInstance: d.instance,
		ToInstance:   coordination.BroadcastInstance,
		Subject:      "reviewer complete",
		Description:  fmt.Sprintf("swarm %s: reviewer %s finished with status %s", session.ID, reviewerType, result.Status),
	})
}

func (d *Dispatcher) publishFailed(ctx context.Context, session *Session, cause error) {
	_, _ = d.coord.Publish(ctx, coordination.PublishRequest{
		Type:         coordination.TypeSwarmFailed,
		FromInstance: d.instance,
		ToInstance:   coordination.BroadcastInstance,
		Subject:      "swarm failed",
		Description:  fmt.Sprintf("swarm %s aggregation failed: %v", session.ID, cause),
	})
}
