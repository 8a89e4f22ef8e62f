package activity

import "time"

// Status is an Activity's lifecycle state, spec §3 "Activity".
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// StepStatus is a single step's state within an Activity.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step is one named unit of work inside an Activity, spec §3.
type Step struct {
	Name        string
	Status      StepStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string
}

// Activity is the read-only projection entity folded from DEVOPS_*
// coordination messages, spec §3/§4.10. Never persisted.
type Activity struct {
	ID          string
	Operation   string
	Status      Status
	StartedAt   time.Time
	CompletedAt *time.Time
	Steps       []Step
}

// Projection is the output of Folder.GetActivity: the single newest
// in-progress activity (if any) plus a bounded, newest-first list of
// completed/failed activities.
type Projection struct {
	Current *Activity
	Recent  []Activity
}

// descriptionPayload is the JSON shape carried in a DEVOPS_* message's
// payload.description field, spec §4.10.
type descriptionPayload struct {
	ActivityID string   `json:"activity_id"`
	Operation  string   `json:"operation"`
	Steps      []string `json:"steps"`
	Step       string   `json:"step"`
	Status     string   `json:"status"`
	Error      string   `json:"error"`
}
