package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"spatia/internal/domain"
	"spatia/internal/infra"
	"spatia/internal/metrics"
)

// Recorder receives jobs that reached a terminal state.
type Recorder interface {
	Record(ctx context.Context, job domain.Job) error
}

// Options configures NewService.
type Options struct {
	Remote       Remote
	PollInterval time.Duration
	Concurrency  int
	Logger       *infra.Logger
	Events       *EventBus
	Recorder     Recorder
	Metrics      *metrics.Collector
	Now          func() time.Time
}

// Service ties the store, the poller and the remote client together. User
// actions (submit, delete) and the poll loop are the only writers.
type Service struct {
	ctx      context.Context
	store    *Store
	poller   *Poller
	remote   Remote
	events   *EventBus
	recorder Recorder
	metrics  *metrics.Collector
	logger   infra.Logger
	now      func() time.Time
}

// NewService wires a store and a poller bound to ctx.
func NewService(ctx context.Context, opts Options) *Service {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	events := opts.Events
	if events == nil {
		events = NewEventBus(0)
	}
	s := &Service{
		ctx:      ctx,
		store:    NewStore(),
		remote:   opts.Remote,
		events:   events,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		logger:   logger,
		now:      now,
	}
	s.poller = NewPoller(ctx, s.store, opts.Remote, PollerOptions{
		Interval:     opts.PollInterval,
		Concurrency:  opts.Concurrency,
		Logger:       &logger,
		Metrics:      opts.Metrics,
		Now:          now,
		OnTransition: s.handleTransition,
	})
	return s
}

// Submit validates the input locally, starts the remote generation and adds a
// pending job. Invalid input never reaches the network.
func (s *Service) Submit(ctx context.Context, in domain.GenerationInput, locale string) (domain.Job, error) {
	if err := in.Validate(); err != nil {
		return domain.Job{}, err
	}
	now := s.now()
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = "Environment " + now.Format("15:04:05")
	}
	in.DisplayName = name

	op, err := s.remote.StartGeneration(ctx, in)
	if err != nil {
		return domain.Job{}, err
	}
	job := domain.Job{
		ID:          uuid.NewString(),
		OperationID: op.OperationID,
		Name:        name,
		Model:       op.Model,
		Status:      domain.JobStatusPending,
		Progress:    0,
		Locale:      locale,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Add(job); err != nil {
		return domain.Job{}, err
	}
	s.metrics.JobSubmitted()
	s.events.Publish(Event{
		JobID:   job.ID,
		Type:    EventJobSubmitted,
		Level:   LevelSuccess,
		Message: localize(locale, msgStarted),
	})
	s.logger.Info().
		Str("job_id", job.ID).
		Str("operation_id", job.OperationID).
		Str("model", job.Model).
		Msg("jobs: submitted")
	s.poller.Sync()
	return job, nil
}

// Delete removes a job immediately, whatever its status. A poll already in
// flight for it is dropped when it lands.
func (s *Service) Delete(id string) error {
	if !s.store.Remove(id) {
		return domain.ErrJobNotFound
	}
	s.logger.Info().Str("job_id", id).Msg("jobs: deleted")
	s.poller.Sync()
	return nil
}

// Get returns one job.
func (s *Service) Get(id string) (domain.Job, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return job, nil
}

// List returns all jobs, newest first.
func (s *Service) List() []domain.Job {
	return s.store.List()
}

// Events exposes the notification bus.
func (s *Service) Events() *EventBus {
	return s.events
}

// Poller exposes the poll loop.
func (s *Service) Poller() *Poller {
	return s.poller
}

// Close stops polling.
func (s *Service) Close() {
	s.poller.Stop()
}

func (s *Service) handleTransition(job domain.Job, tr Transition) {
	switch tr {
	case TransitionCompleted:
		s.events.Publish(Event{
			JobID:   job.ID,
			Type:    EventJobCompleted,
			Level:   LevelSuccess,
			Message: localize(job.Locale, msgReady, job.Name),
		})
		s.logger.Info().Str("job_id", job.ID).Msg("jobs: completed")
	case TransitionFailed:
		s.events.Publish(Event{
			JobID:   job.ID,
			Type:    EventJobFailed,
			Level:   LevelError,
			Message: localize(job.Locale, msgFailed, job.Name, job.Error),
		})
		s.logger.Warn().Str("job_id", job.ID).Str("error", job.Error).Msg("jobs: failed")
	default:
		return
	}
	s.record(job)
}

func (s *Service) record(job domain.Job) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 5*time.Second)
	defer cancel()
	if err := s.recorder.Record(ctx, job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("jobs: archive record failed")
	}
}
