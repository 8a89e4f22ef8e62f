package activity

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/asdlc-dev/swarmcoord/coordination"
)

// devopsTypes is the set of message types ActivityFolder folds, spec §4.10.
var devopsTypes = map[coordination.MessageType]struct{}{
	coordination.TypeDevOpsStarted:    {},
	coordination.TypeDevOpsStepUpdate: {},
	coordination.TypeDevOpsComplete:   {},
	coordination.TypeDevOpsFailed:     {},
}

// stepUpdate is a buffered (step_name, status, timestamp) tuple, applied
// before the activity's next COMPLETE/FAILED or after the main fold pass,
// spec §4.10 step 7.
type stepUpdate struct {
	name      string
	status    StepStatus
	timestamp time.Time
}

// Folder is ActivityFolder: a read-only projection over the coordination
// event stream, spec §4.10. Structurally similar to
// control_plane/timeline/store.go's timeline.Store, an in-memory
// projection built from an ordered event list, but specialized to the
// DEVOPS_* fold algorithm's latest-by-timestamp step resolution instead of
// arbitrary event replay, and built fresh from a coordination query on
// every call rather than held as long-lived mutable state.
type Folder struct {
	store *coordination.Store
}

func NewFolder(store *coordination.Store) *Folder {
	return &Folder{store: store}
}

// GetActivity queries the coordination substrate for recent DEVOPS_*
// messages, folds them into activities, and partitions current vs recent,
// spec §4.10 steps 1-8. Never fails its caller: any error, including the
// substrate being unavailable, yields an empty Projection.
func (f *Folder) GetActivity(ctx context.Context, limit int) *Projection {
	if limit <= 0 {
		limit = 10
	}

	messages, err := f.store.Query(ctx, coordination.Query{Limit: limit * 10})
	if err != nil {
		log.Printf("activity: coordination substrate unavailable: %v", err)
		return &Projection{}
	}

	var devopsMessages []*coordination.Message
	for _, m := range messages {
		if _, ok := devopsTypes[m.Type]; ok {
			devopsMessages = append(devopsMessages, m)
		}
	}

	activities := f.buildActivities(devopsMessages)

	var current *Activity
	var recent []Activity
	for _, a := range activities {
		if a.Status == StatusInProgress {
			if current == nil || a.StartedAt.After(current.StartedAt) {
				aCopy := *a
				current = &aCopy
			}
		} else {
			recent = append(recent, *a)
		}
	}

	sort.Slice(recent, func(i, j int) bool {
		return recent[i].StartedAt.After(recent[j].StartedAt)
	})
	if len(recent) > limit {
		recent = recent[:limit]
	}

	return &Projection{Current: current, Recent: recent}
}

// buildActivities implements spec §4.10 steps 1-7: sort ascending, fold
// STARTED/STEP_UPDATE(buffered)/COMPLETE/FAILED in order. Buffered step
// updates are applied just before a COMPLETE/FAILED is folded, so the
// completion and failure rules see each step's current status; updates
// still buffered at the end of the pass are applied over the final states.
func (f *Folder) buildActivities(messages []*coordination.Message) map[string]*Activity {
	activities := make(map[string]*Activity)
	stepUpdates := make(map[string][]stepUpdate)

	sorted := make([]*coordination.Message, len(messages))
	copy(sorted, messages)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	for _, msg := range sorted {
		payload, ok := parseDescription(msg.Payload.Description)
		if !ok || payload.ActivityID == "" {
			continue
		}
		activityID := payload.ActivityID

		switch msg.Type {
		case coordination.TypeDevOpsStarted:
			activities[activityID] = createActivity(activityID, payload, msg.Timestamp)
			stepUpdates[activityID] = nil

		case coordination.TypeDevOpsStepUpdate:
			if payload.Step == "" {
				continue
			}
			if _, tracked := stepUpdates[activityID]; !tracked {
				continue
			}
			status := payload.Status
			if status == "" {
				status = "running"
			}
			stepUpdates[activityID] = append(stepUpdates[activityID], stepUpdate{
				name:      payload.Step,
				status:    parseStepStatus(status),
				timestamp: msg.Timestamp,
			})

		case coordination.TypeDevOpsComplete:
			if a, ok := activities[activityID]; ok {
				a = applyStepUpdates(a, stepUpdates[activityID])
				stepUpdates[activityID] = nil
				activities[activityID] = completeActivity(a, msg.Timestamp)
			}

		case coordination.TypeDevOpsFailed:
			if a, ok := activities[activityID]; ok {
				a = applyStepUpdates(a, stepUpdates[activityID])
				stepUpdates[activityID] = nil
				activities[activityID] = failActivity(a, msg.Timestamp, payload.Error)
			}
		}
	}

	for activityID, updates := range stepUpdates {
		if a, ok := activities[activityID]; ok {
			activities[activityID] = applyStepUpdates(a, updates)
		}
	}

	return activities
}

func parseDescription(description string) (*descriptionPayload, bool) {
	var p descriptionPayload
	if err := json.Unmarshal([]byte(description), &p); err != nil {
		return nil, false
	}
	return &p, true
}

func parseStepStatus(s string) StepStatus {
	switch s {
	case "pending":
		return StepPending
	case "running":
		return StepRunning
	case "completed":
		return StepCompleted
	case "failed":
		return StepFailed
	default:
		return StepPending
	}
}

func createActivity(id string, payload *descriptionPayload, timestamp time.Time) *Activity {
	operation := payload.Operation
	if operation == "" {
		operation = "Unknown operation"
	}
	steps := make([]Step, 0, len(payload.Steps))
	for _, name := range payload.Steps {
		steps = append(steps, Step{Name: name, Status: StepPending})
	}
	return &Activity{
		ID:        id,
		Operation: operation,
		Status:    StatusInProgress,
		StartedAt: timestamp,
		Steps:     steps,
	}
}

// applyStepUpdates implements spec §4.10 step 7: per step name, keep the
// latest-by-timestamp status, stamping started_at when it leaves PENDING
// and completed_at when it enters COMPLETED or FAILED.
func applyStepUpdates(activity *Activity, updates []stepUpdate) *Activity {
	latest := make(map[string]stepUpdate)
	for _, u := range updates {
		existing, ok := latest[u.name]
		if !ok || u.timestamp.After(existing.timestamp) {
			latest[u.name] = u
		}
	}

	updatedSteps := make([]Step, len(activity.Steps))
	for i, step := range activity.Steps {
		u, ok := latest[step.Name]
		if !ok {
			updatedSteps[i] = step
			continue
		}

		ts := u.timestamp
		var completedAt *time.Time
		if u.status == StepCompleted || u.status == StepFailed {
			completedAt = &ts
		}
		startedAt := step.StartedAt
		if startedAt == nil && u.status != StepPending {
			startedAt = &ts
		}

		updatedSteps[i] = Step{
			Name:        step.Name,
			Status:      u.status,
			StartedAt:   startedAt,
			CompletedAt: completedAt,
			Error:       step.Error,
		}
	}

	return &Activity{
		ID:          activity.ID,
		Operation:   activity.Operation,
		Status:      activity.Status,
		StartedAt:   activity.StartedAt,
		CompletedAt: activity.CompletedAt,
		Steps:       updatedSteps,
	}
}

// completeActivity implements spec §4.10 step 5: mark COMPLETED; any step
// still PENDING is promoted to COMPLETED at the message timestamp.
func completeActivity(activity *Activity, timestamp time.Time) *Activity {
	ts := timestamp
	steps := make([]Step, len(activity.Steps))
	for i, step := range activity.Steps {
		if step.Status == StepPending {
			steps[i] = Step{Name: step.Name, Status: StepCompleted, StartedAt: step.StartedAt, CompletedAt: &ts, Error: step.Error}
		} else {
			steps[i] = step
		}
	}
	return &Activity{
		ID:          activity.ID,
		Operation:   activity.Operation,
		Status:      StatusCompleted,
		StartedAt:   activity.StartedAt,
		CompletedAt: &ts,
		Steps:       steps,
	}
}

// failActivity implements spec §4.10 step 6: mark FAILED; any step
// currently RUNNING becomes FAILED carrying the error string.
func failActivity(activity *Activity, timestamp time.Time, errMsg string) *Activity {
	ts := timestamp
	steps := make([]Step, len(activity.Steps))
	for i, step := range activity.Steps {
		if step.Status == StepRunning {
			steps[i] = Step{Name: step.Name, Status: StepFailed, StartedAt: step.StartedAt, CompletedAt: &ts, Error: errMsg}
		} else {
			steps[i] = step
		}
	}
	return &Activity{
		ID:          activity.ID,
		Operation:   activity.Operation,
		Status:      StatusFailed,
		StartedAt:   activity.StartedAt,
		CompletedAt: &ts,
		Steps:       steps,
	}
}
