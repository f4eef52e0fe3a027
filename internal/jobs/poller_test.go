package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spatia/internal/domain"
)

type fakeRemote struct {
	mu       sync.Mutex
	starts   int
	polls    map[string]int
	statuses map[string]func(call int) (*domain.OperationStatus, error)
	startErr error
	nextOp   int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		polls:    make(map[string]int),
		statuses: make(map[string]func(int) (*domain.OperationStatus, error)),
	}
}

func (f *fakeRemote) StartGeneration(ctx context.Context, in domain.GenerationInput) (*domain.PendingOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.nextOp++
	return &domain.PendingOperation{OperationID: fmt.Sprintf("op-%d", f.nextOp), Model: in.Quality.Model()}, nil
}

func (f *fakeRemote) PollStatus(ctx context.Context, operationID string) (*domain.OperationStatus, error) {
	f.mu.Lock()
	f.polls[operationID]++
	call := f.polls[operationID]
	fn := f.statuses[operationID]
	f.mu.Unlock()
	if fn == nil {
		return &domain.OperationStatus{}, nil
	}
	return fn(call)
}

func (f *fakeRemote) on(operationID string, fn func(call int) (*domain.OperationStatus, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[operationID] = fn
}

func (f *fakeRemote) pollCount(operationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[operationID]
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.starts
	for _, c := range f.polls {
		n += c
	}
	return n
}

func addJob(t *testing.T, s *Store, id, op string) {
	t.Helper()
	if err := s.Add(domain.Job{ID: id, OperationID: op, Name: id, Status: domain.JobStatusPending}); err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func TestPoller_TimerFollowsActiveJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	remote := newFakeRemote()
	p := NewPoller(ctx, store, remote, PollerOptions{Interval: time.Hour})

	p.Sync()
	if p.Running() {
		t.Fatal("timer running with no jobs")
	}

	addJob(t, store, "a", "op-a")
	p.Sync()
	p.Sync()
	if !p.Running() || p.TimersStarted() != 1 {
		t.Fatalf("expected one timer, running=%v started=%d", p.Running(), p.TimersStarted())
	}

	remote.on("op-a", func(int) (*domain.OperationStatus, error) {
		return &domain.OperationStatus{Done: true, World: &domain.World{WorldID: "w"}}, nil
	})
	p.Tick(ctx)
	if p.Running() {
		t.Fatal("timer still running after the only job completed")
	}

	addJob(t, store, "b", "op-b")
	p.Sync()
	if !p.Running() || p.TimersStarted() != 2 {
		t.Fatalf("expected restarted timer, running=%v started=%d", p.Running(), p.TimersStarted())
	}
	p.Stop()
	if p.Running() {
		t.Fatal("Stop left the timer running")
	}
}

func TestPoller_TimerTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	remote := newFakeRemote()
	done := make(chan struct{})
	remote.on("op-a", func(call int) (*domain.OperationStatus, error) {
		if call == 2 {
			return &domain.OperationStatus{Done: true, World: &domain.World{WorldID: "w"}}, nil
		}
		return &domain.OperationStatus{}, nil
	})
	p := NewPoller(ctx, store, remote, PollerOptions{
		Interval: 5 * time.Millisecond,
		OnTransition: func(_ domain.Job, tr Transition) {
			if tr == TransitionCompleted {
				close(done)
			}
		},
	})
	addJob(t, store, "a", "op-a")
	p.Sync()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never completed")
	}
	deadline := time.Now().Add(time.Second)
	for p.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.Running() {
		t.Fatal("timer did not stop after completion")
	}
}

func TestPoller_FailedJobIsNotPolledAgain(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	remote := newFakeRemote()
	remote.on("op-a", func(int) (*domain.OperationStatus, error) {
		return &domain.OperationStatus{Error: &domain.OperationError{Message: "quota exceeded"}}, nil
	})
	p := NewPoller(ctx, store, remote, PollerOptions{Interval: time.Hour})
	addJob(t, store, "a", "op-a")

	p.Tick(ctx)
	p.Tick(ctx)

	job, _ := store.Get("a")
	if job.Status != domain.JobStatusFailed || job.Error != "quota exceeded" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if n := remote.pollCount("op-a"); n != 1 {
		t.Fatalf("failed job polled %d times", n)
	}
}

func TestPoller_ErrorsAreIsolatedPerJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	remote := newFakeRemote()
	remote.on("op-a", func(int) (*domain.OperationStatus, error) {
		return nil, errors.New("connection reset")
	})
	remote.on("op-b", func(int) (*domain.OperationStatus, error) {
		return &domain.OperationStatus{Progress: intPtr(30)}, nil
	})
	remote.on("op-c", func(int) (*domain.OperationStatus, error) {
		return nil, &domain.RemoteError{StatusCode: 404, Message: "not found"}
	})
	p := NewPoller(ctx, store, remote, PollerOptions{Interval: time.Hour})
	addJob(t, store, "a", "op-a")
	addJob(t, store, "b", "op-b")
	addJob(t, store, "c", "op-c")

	p.Tick(ctx)

	a, _ := store.Get("a")
	if a.Status != domain.JobStatusPending || a.Progress != 0 {
		t.Fatalf("transport error changed job a: %+v", a)
	}
	b, _ := store.Get("b")
	if b.Status != domain.JobStatusRunning || b.Progress != 30 {
		t.Fatalf("job b not advanced: %+v", b)
	}
	c, _ := store.Get("c")
	if c.Status != domain.JobStatusFailed || c.Error != "not found" {
		t.Fatalf("remote error not folded into job c: %+v", c)
	}
	p.Stop()
}

func TestPoller_ConfigurationErrorFailsJob(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	remote := newFakeRemote()
	remote.on("op-a", func(int) (*domain.OperationStatus, error) {
		return nil, domain.ErrMissingAPIKey
	})
	p := NewPoller(ctx, store, remote, PollerOptions{Interval: time.Hour})
	addJob(t, store, "a", "op-a")
	p.Sync()

	p.Tick(ctx)
	p.Tick(ctx)

	a, _ := store.Get("a")
	if a.Status != domain.JobStatusFailed || a.Error != domain.ErrMissingAPIKey.Error() {
		t.Fatalf("configuration error not folded into job: %+v", a)
	}
	if n := remote.pollCount("op-a"); n != 1 {
		t.Fatalf("failed job polled %d times", n)
	}
	if p.Running() {
		t.Fatal("timer still running with no active jobs")
	}
}

func TestPoller_DeletedJobResultDropped(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	remote := newFakeRemote()
	inFlight := make(chan struct{})
	release := make(chan struct{})
	remote.on("op-a", func(int) (*domain.OperationStatus, error) {
		close(inFlight)
		<-release
		return &domain.OperationStatus{Done: true, World: &domain.World{WorldID: "w"}}, nil
	})
	var transitions atomic.Int32
	p := NewPoller(ctx, store, remote, PollerOptions{
		Interval:     time.Hour,
		OnTransition: func(domain.Job, Transition) { transitions.Add(1) },
	})
	addJob(t, store, "a", "op-a")

	finished := make(chan struct{})
	go func() {
		p.Tick(ctx)
		close(finished)
	}()
	<-inFlight
	store.Remove("a")
	close(release)
	<-finished

	if _, ok := store.Get("a"); ok {
		t.Fatal("late poll result resurrected a deleted job")
	}
	if transitions.Load() != 0 {
		t.Fatal("transition fired for a deleted job")
	}
}

func TestPoller_OverlappingTicksNeverRegress(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	remote := newFakeRemote()
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	remote.on("op-a", func(call int) (*domain.OperationStatus, error) {
		if call == 1 {
			close(slowStarted)
			<-releaseSlow
			return &domain.OperationStatus{Progress: intPtr(20)}, nil
		}
		return &domain.OperationStatus{Progress: intPtr(60)}, nil
	})
	p := NewPoller(ctx, store, remote, PollerOptions{Interval: time.Hour})
	addJob(t, store, "a", "op-a")

	slowDone := make(chan struct{})
	go func() {
		p.Tick(ctx)
		close(slowDone)
	}()
	<-slowStarted
	p.Tick(ctx)
	job, _ := store.Get("a")
	if job.Progress != 60 {
		t.Fatalf("fast tick progress = %d, want 60", job.Progress)
	}
	close(releaseSlow)
	<-slowDone

	job, _ = store.Get("a")
	if job.Progress < 60 {
		t.Fatalf("stale tick regressed progress to %d", job.Progress)
	}
	p.Stop()
}

func TestPoller_CompletionNotifiedOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	remote := newFakeRemote()
	remote.on("op-a", func(int) (*domain.OperationStatus, error) {
		return &domain.OperationStatus{Done: true, World: &domain.World{WorldID: "w"}}, nil
	})
	var completed atomic.Int32
	p := NewPoller(ctx, store, remote, PollerOptions{
		Interval: time.Hour,
		OnTransition: func(_ domain.Job, tr Transition) {
			if tr == TransitionCompleted {
				completed.Add(1)
			}
		},
	})
	addJob(t, store, "a", "op-a")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Tick(ctx)
		}()
	}
	wg.Wait()

	if n := completed.Load(); n != 1 {
		t.Fatalf("completion notified %d times", n)
	}
	job, _ := store.Get("a")
	if job.Status != domain.JobStatusCompleted || job.Progress != 100 {
		t.Fatalf("unexpected job: %+v", job)
	}
}
