package pricing

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pricewise/internal/domain/job"
	"pricewise/internal/domain/recommendation"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
)

// Service is the entry point used by the ops API, the run-request consumer
// and the batch worker. Runs started by TriggerRun outlive the caller's
// context and are stopped by Shutdown.
type Service struct {
	orchestrator    *Orchestrator
	jobs            job.Store
	recommendations recommendation.Repository
	log             *logger.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(orchestrator *Orchestrator, jobs job.Store, recommendations recommendation.Repository) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		orchestrator:    orchestrator,
		jobs:            jobs,
		recommendations: recommendations,
		log:             logger.Get().With("service", "pricing"),
		ctx:             ctx,
		cancel:          cancel,
	}
}

// TriggerRun starts a background run for userID and returns its job id.
// A user can have at most one non-terminal job.
func (s *Service) TriggerRun(ctx context.Context, userID uuid.UUID) (string, error) {
	j, err := s.start(ctx, userID)
	if err != nil {
		return "", err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.orchestrator.Run(s.ctx, j.ID, userID); err != nil {
			s.log.Warnw("Background pricing run failed", "job_id", j.ID, "user_id", userID, "error", err)
		}
	}()

	return j.ID, nil
}

// RunSync starts a run and blocks until it reaches a terminal state.
func (s *Service) RunSync(ctx context.Context, userID uuid.UUID) (*RunResult, error) {
	j, err := s.start(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.wg.Add(1)
	defer s.wg.Done()
	return s.orchestrator.Run(ctx, j.ID, userID)
}

func (s *Service) start(ctx context.Context, userID uuid.UUID) (*job.Job, error) {
	if userID == uuid.Nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "user id is required")
	}
	if err := s.ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "pricing service is shutting down")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.jobs.LatestForOwner(ctx, userID.String())
	switch {
	case err == nil && !latest.State.Terminal():
		return nil, errors.Wrapf(errors.ErrRunInProgress, "job %s is %s", latest.ID, latest.State)
	case err != nil && !errors.Is(err, errors.ErrJobNotFound):
		return nil, errors.Wrap(err, "check active run")
	}

	j, err := s.jobs.Start(ctx, userID.String())
	if err != nil {
		return nil, errors.Wrap(err, "start job")
	}
	s.log.Infow("Pricing run queued", "job_id", j.ID, "user_id", userID)
	return j, nil
}

// GetRunStatus returns a snapshot of the job.
func (s *Service) GetRunStatus(ctx context.Context, jobID string) (*job.Job, error) {
	return s.jobs.Get(ctx, jobID)
}

// GetLatestBatch returns the newest persisted batch of the user.
func (s *Service) GetLatestBatch(ctx context.Context, userID uuid.UUID) (*recommendation.Batch, error) {
	batch, err := s.recommendations.LatestBatch(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "latest batch for user %s", userID)
	}
	return batch, nil
}

// CancelRun requests cancellation. The run stops before its next stage;
// cancelling a finished job leaves it unchanged.
func (s *Service) CancelRun(ctx context.Context, jobID string) (*job.Job, error) {
	j, err := s.jobs.Cancel(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.CancelRequested {
		s.log.Infow("Pricing run cancellation requested", "job_id", jobID, "state", j.State)
	}
	return j, nil
}

// Shutdown interrupts background runs and waits for them to record a
// terminal state, or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Pricing service stopped")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for pricing runs")
	}
}
