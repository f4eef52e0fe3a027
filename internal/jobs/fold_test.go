package jobs

import (
	"reflect"
	"testing"
	"time"

	"pgregory.net/rapid"

	"spatia/internal/domain"
)

var foldNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func pendingJob() domain.Job {
	return domain.Job{
		ID:          "job-1",
		OperationID: "op-1",
		Name:        "Cave",
		Status:      domain.JobStatusPending,
		CreatedAt:   foldNow.Add(-time.Minute),
		UpdatedAt:   foldNow.Add(-time.Minute),
	}
}

func TestFold_ProgressSequence(t *testing.T) {
	job := pendingJob()

	job, tr := Fold(job, domain.OperationStatus{}, foldNow)
	if tr != TransitionStarted || job.Status != domain.JobStatusRunning || job.Progress != 5 {
		t.Fatalf("first poll: got %s status=%s progress=%d", tr, job.Status, job.Progress)
	}

	job, tr = Fold(job, domain.OperationStatus{Progress: intPtr(40)}, foldNow)
	if tr != TransitionProgressed || job.Progress != 40 {
		t.Fatalf("reported progress: got %s progress=%d", tr, job.Progress)
	}

	// A lower report falls back to the heuristic.
	job, _ = Fold(job, domain.OperationStatus{Progress: intPtr(10)}, foldNow)
	if job.Progress != 45 {
		t.Fatalf("expected 45 after stale report, got %d", job.Progress)
	}

	job, _ = Fold(job, domain.OperationStatus{Progress: intPtr(99)}, foldNow)
	if job.Progress != 95 {
		t.Fatalf("expected clamp at 95, got %d", job.Progress)
	}
}

func TestFold_Completed(t *testing.T) {
	job := pendingJob()
	job.Status = domain.JobStatusRunning
	job.Progress = 60
	world := &domain.World{WorldID: "w1", DisplayName: "Cave"}

	got, tr := Fold(job, domain.OperationStatus{Done: true, World: world}, foldNow)
	if tr != TransitionCompleted {
		t.Fatalf("expected completed transition, got %s", tr)
	}
	if got.Status != domain.JobStatusCompleted || got.Progress != 100 || got.World != world {
		t.Fatalf("unexpected job: %+v", got)
	}
	if !got.UpdatedAt.Equal(foldNow) {
		t.Fatalf("updated_at not bumped: %v", got.UpdatedAt)
	}
}

func TestFold_DoneWithoutWorldKeepsRunning(t *testing.T) {
	job := pendingJob()
	got, tr := Fold(job, domain.OperationStatus{Done: true}, foldNow)
	if tr != TransitionStarted || got.Status != domain.JobStatusRunning {
		t.Fatalf("got %s status=%s", tr, got.Status)
	}
}

func TestFold_Failed(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "upstream message", message: "content policy", want: "content policy"},
		{name: "blank message", message: "  ", want: "Generation failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			job := pendingJob()
			job.Progress = 30
			got, tr := Fold(job, domain.OperationStatus{Error: &domain.OperationError{Message: tc.message}}, foldNow)
			if tr != TransitionFailed {
				t.Fatalf("expected failed transition, got %s", tr)
			}
			if got.Status != domain.JobStatusFailed || got.Error != tc.want {
				t.Fatalf("unexpected job: status=%s error=%q", got.Status, got.Error)
			}
			if got.Progress != 30 {
				t.Fatalf("progress changed on failure: %d", got.Progress)
			}
		})
	}
}

func TestFold_ErrorWinsOverDone(t *testing.T) {
	job := pendingJob()
	st := domain.OperationStatus{Done: true, World: &domain.World{WorldID: "w"}, Error: &domain.OperationError{Message: "boom"}}
	got, tr := Fold(job, st, foldNow)
	if tr != TransitionFailed || got.World != nil {
		t.Fatalf("expected failure without world, got %s %+v", tr, got)
	}
}

func statusGen() *rapid.Generator[domain.OperationStatus] {
	return rapid.Custom(func(t *rapid.T) domain.OperationStatus {
		var st domain.OperationStatus
		st.Progress = rapid.Ptr(rapid.IntRange(-10, 120), true).Draw(t, "progress")
		st.Done = rapid.Bool().Draw(t, "done")
		if st.Done && rapid.Bool().Draw(t, "hasWorld") {
			st.World = &domain.World{WorldID: "w"}
		}
		if rapid.IntRange(0, 9).Draw(t, "errRoll") == 0 {
			st.Error = &domain.OperationError{Message: rapid.StringMatching(`[a-z ]{0,8}`).Draw(t, "msg")}
		}
		return st
	})
}

func TestFold_ProgressMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		job := pendingJob()
		steps := rapid.SliceOfN(statusGen(), 1, 40).Draw(t, "steps")
		for _, st := range steps {
			before := job
			next, _ := Fold(job, st, foldNow)
			if next.Progress < before.Progress {
				t.Fatalf("progress decreased %d -> %d", before.Progress, next.Progress)
			}
			if next.Status != domain.JobStatusCompleted && next.Progress > progressCeiling {
				t.Fatalf("progress %d above ceiling while %s", next.Progress, next.Status)
			}
			if next.Status == domain.JobStatusCompleted && next.Progress != 100 {
				t.Fatalf("completed with progress %d", next.Progress)
			}
			job = next
		}
	})
}

func TestFold_TerminalIsFixedPoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		job := pendingJob()
		job.Status = rapid.SampledFrom([]domain.JobStatus{domain.JobStatusCompleted, domain.JobStatusFailed}).Draw(t, "status")
		job.Progress = rapid.IntRange(0, 100).Draw(t, "progress")
		st := statusGen().Draw(t, "st")
		got, tr := Fold(job, st, foldNow)
		if tr != TransitionNone {
			t.Fatalf("terminal job produced %s", tr)
		}
		if !reflect.DeepEqual(got, job) {
			t.Fatalf("terminal job changed: %+v -> %+v", job, got)
		}
	})
}
