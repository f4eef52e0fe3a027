package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further polling happens for the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job tracks one generation request from submission to a terminal state.
// Jobs are values: the store replaces whole records and never edits in place.
type Job struct {
	ID          string    `json:"id"`
	OperationID string    `json:"operation_id"`
	Name        string    `json:"name"`
	Model       string    `json:"model"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	World       *World    `json:"world,omitempty"`
	Error       string    `json:"error,omitempty"`
	Locale      string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PendingOperation is what the generation API hands back when a job is accepted.
type PendingOperation struct {
	OperationID string `json:"operation_id"`
	Model       string `json:"model"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// OperationError is the error object attached to a failed operation.
type OperationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// OperationStatus is the normalized view of one operation poll. Progress is
// nil when the upstream omitted it.
type OperationStatus struct {
	Done      bool            `json:"done"`
	Progress  *int            `json:"progress,omitempty"`
	WorldID   string          `json:"world_id,omitempty"`
	Error     *OperationError `json:"error,omitempty"`
	World     *World          `json:"world,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

// ProgressOrZero returns the reported progress, or 0 when absent.
func (s OperationStatus) ProgressOrZero() int {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}
