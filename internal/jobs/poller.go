package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"spatia/internal/domain"
	"spatia/internal/infra"
	"spatia/internal/metrics"
)

// DefaultPollInterval matches the cadence of the front-end poll loop.
const DefaultPollInterval = 3 * time.Second

const defaultPollConcurrency = 8

// Remote is the slice of the generation API the job lifecycle needs.
type Remote interface {
	StartGeneration(ctx context.Context, in domain.GenerationInput) (*domain.PendingOperation, error)
	PollStatus(ctx context.Context, operationID string) (*domain.OperationStatus, error)
}

// Poller keeps the store converged with the remote operations. A single timer
// goroutine exists while at least one job is non-terminal; Sync creates or
// cancels it to match the store.
type Poller struct {
	ctx          context.Context
	store        *Store
	remote       Remote
	interval     time.Duration
	concurrency  int
	logger       infra.Logger
	metrics      *metrics.Collector
	now          func() time.Time
	onTransition func(domain.Job, Transition)

	mu     sync.Mutex
	cancel context.CancelFunc
	timers int
}

// PollerOptions configures NewPoller.
type PollerOptions struct {
	Interval     time.Duration
	Concurrency  int
	Logger       *infra.Logger
	Metrics      *metrics.Collector
	Now          func() time.Time
	OnTransition func(domain.Job, Transition)
}

// NewPoller builds a poller bound to ctx; cancelling ctx stops any timer.
func NewPoller(ctx context.Context, store *Store, remote Remote, opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultPollConcurrency
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Poller{
		ctx:          ctx,
		store:        store,
		remote:       remote,
		interval:     interval,
		concurrency:  concurrency,
		logger:       logger,
		metrics:      opts.Metrics,
		now:          now,
		onTransition: opts.OnTransition,
	}
}

// Sync starts the timer when the store has active jobs and none is running,
// and cancels it when the store has none. It is safe to call at any time.
func (p *Poller) Sync() {
	p.mu.Lock()
	defer p.mu.Unlock()

	active := p.store.ActiveCount()
	p.metrics.SetActiveJobs(active)
	switch {
	case active > 0 && p.cancel == nil:
		if p.ctx.Err() != nil {
			return
		}
		ctx, cancel := context.WithCancel(p.ctx)
		p.cancel = cancel
		p.timers++
		go p.run(ctx)
		p.logger.Debug().Int("active", active).Dur("interval", p.interval).Msg("jobs: poll timer started")
	case active == 0 && p.cancel != nil:
		p.cancel()
		p.cancel = nil
		p.logger.Debug().Msg("jobs: poll timer stopped")
	}
	p.metrics.SetPollerRunning(p.cancel != nil)
}

// Running reports whether the poll timer currently exists.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// TimersStarted returns how many timers have been created so far.
func (p *Poller) TimersStarted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timers
}

// Stop cancels the timer regardless of store contents.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.metrics.SetPollerRunning(false)
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick polls every active job once. Jobs are polled independently: one
// failure is logged and never blocks the others.
func (p *Poller) Tick(ctx context.Context) {
	active := p.store.Active()
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, job := range active {
		job := job
		g.Go(func() error {
			p.pollOne(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	p.Sync()
}

func (p *Poller) pollOne(ctx context.Context, job domain.Job) {
	start := time.Now()
	status, err := p.remote.PollStatus(ctx, job.OperationID)
	p.metrics.ObserveUpstream("poll_status", time.Since(start))
	if err != nil {
		if domain.IsTransient(err) {
			if ctx.Err() != nil {
				return
			}
			p.metrics.PollResult("transient")
			p.logger.Warn().Err(err).
				Str("job_id", job.ID).
				Str("operation_id", job.OperationID).
				Msg("jobs: poll failed")
			return
		}
		p.metrics.PollResult("remote_error")
		opErr := &domain.OperationError{Message: err.Error()}
		var remote *domain.RemoteError
		if errors.As(err, &remote) {
			opErr = &domain.OperationError{Code: remote.StatusCode, Message: remote.Message}
		}
		status = &domain.OperationStatus{Error: opErr}
	} else if status == nil {
		return
	} else {
		p.metrics.PollResult("ok")
	}

	var tr Transition
	updated, ok := p.store.Apply(job.ID, func(cur domain.Job) domain.Job {
		next, t := Fold(cur, *status, p.now())
		tr = t
		return next
	})
	if !ok {
		p.logger.Debug().Str("job_id", job.ID).Msg("jobs: dropping poll result for removed job")
		return
	}
	if tr == TransitionNone {
		return
	}
	p.metrics.JobTransition(tr.String())
	if p.onTransition != nil {
		p.onTransition(updated, tr)
	}
}
