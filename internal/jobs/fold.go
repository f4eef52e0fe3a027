package jobs

import (
	"strings"
	"time"

	"spatia/internal/domain"
)

// Transition classifies what a fold did to a job.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionStarted
	TransitionProgressed
	TransitionCompleted
	TransitionFailed
)

func (t Transition) String() string {
	switch t {
	case TransitionStarted:
		return "started"
	case TransitionProgressed:
		return "progressed"
	case TransitionCompleted:
		return "completed"
	case TransitionFailed:
		return "failed"
	default:
		return "none"
	}
}

const (
	progressStep    = 5
	progressCeiling = 95

	defaultFailureMessage = "Generation failed"
)

// Fold applies one poll response to a job and returns the replacement record.
// Terminal jobs come back unchanged. Progress never decreases and stays at or
// below progressCeiling until the completed transition forces it to 100.
func Fold(job domain.Job, st domain.OperationStatus, now time.Time) (domain.Job, Transition) {
	if job.Status.Terminal() {
		return job, TransitionNone
	}
	next := job
	next.UpdatedAt = now

	if st.Error != nil {
		next.Status = domain.JobStatusFailed
		next.Error = strings.TrimSpace(st.Error.Message)
		if next.Error == "" {
			next.Error = defaultFailureMessage
		}
		return next, TransitionFailed
	}

	if st.Done && st.World != nil {
		next.Status = domain.JobStatusCompleted
		next.Progress = 100
		next.World = st.World
		return next, TransitionCompleted
	}

	tr := TransitionProgressed
	if job.Status == domain.JobStatusPending {
		tr = TransitionStarted
	}
	next.Status = domain.JobStatusRunning
	next.Progress = advance(job.Progress, st.Progress)
	return next, tr
}

func advance(current int, reported *int) int {
	next := current + progressStep
	if reported != nil && *reported > current {
		next = *reported
	}
	if next > progressCeiling {
		next = progressCeiling
	}
	if next < current {
		next = current
	}
	return next
}
