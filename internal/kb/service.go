package kb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/kb-chat/internal/common"
	"github.com/suPer8Hu/kb-chat/internal/logging"
	"github.com/suPer8Hu/kb-chat/internal/metrics"
	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("kb: ingestion job not found")

// Publisher enqueues a job id for the worker.
type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Service struct {
	repo            *Repo
	pub             Publisher
	backend         Backend
	knowledgeBaseID string
	dataSourceID    string
	log             *logging.Logger
	metrics         *metrics.Metrics
}

type Options struct {
	KnowledgeBaseID string
	DataSourceID    string
	Logger          *logging.Logger
	Metrics         *metrics.Metrics
}

func NewService(repo *Repo, pub Publisher, backend Backend, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Service{
		repo:            repo,
		pub:             pub,
		backend:         backend,
		knowledgeBaseID: opts.KnowledgeBaseID,
		dataSourceID:    opts.DataSourceID,
		log:             opts.Logger,
		metrics:         opts.Metrics,
	}
}

// Start records a queued job and hands it to the worker. A repeated
// idempotency key returns the existing job and enqueues nothing.
func (s *Service) Start(ctx context.Context, userID uint64, idempotencyKey string) (*IngestionJob, bool, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}
	job := &IngestionJob{
		ID:              id,
		UserID:          userID,
		KnowledgeBaseID: s.knowledgeBaseID,
		DataSourceID:    s.dataSourceID,
		Status:          JobQueued,
	}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		job.IdempotencyKey = &key
	}

	job, created, err := s.repo.CreateJobOrGetExisting(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return job, false, nil
	}
	s.metrics.IncIngestion(string(JobQueued))

	if err := s.pub.PublishJob(ctx, job.ID); err != nil {
		_ = s.repo.MarkFailed(ctx, job.ID, "enqueue failed: "+err.Error())
		s.metrics.IncIngestion(string(JobFailed))
		return nil, false, fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return job, true, nil
}

// Run is the worker step: it asks the backend to start the job. A job that
// is no longer queued is skipped.
func (s *Service) Run(ctx context.Context, jobID string) error {
	ok, err := s.repo.MarkStarting(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Infow("ingestion job not queued; skipping", "job_id", jobID)
		return nil
	}
	s.metrics.IncIngestion(string(JobStarting))

	bj, err := s.backend.StartJob(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.ApplyBackend(ctx, jobID, bj); err != nil {
		return err
	}
	s.metrics.IncIngestion(bj.Status)
	s.log.Infow("ingestion job started", "job_id", jobID, "backend_job_id", bj.ID, "status", bj.Status)
	return nil
}

// Requeue puts a job whose start failed transiently back to queued.
func (s *Service) Requeue(ctx context.Context, jobID string) error {
	return s.repo.Requeue(ctx, jobID)
}

// Fail marks a job failed for good.
func (s *Service) Fail(ctx context.Context, jobID string, cause error) error {
	s.metrics.IncIngestion(string(JobFailed))
	return s.repo.MarkFailed(ctx, jobID, cause.Error())
}

// Status returns the user's job, refreshed from the backend while it is
// still running there. A failed refresh returns the stored state.
func (s *Service) Status(ctx context.Context, userID uint64, jobID string) (*IngestionJob, error) {
	job, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.UserID != userID {
		// hide existence
		return nil, ErrJobNotFound
	}
	if job.BackendJobID == nil || job.Status.Terminal() {
		return job, nil
	}

	bj, err := s.backend.GetJob(ctx, *job.BackendJobID)
	if err != nil {
		s.log.Warnw("ingestion status refresh failed", "job_id", jobID, "err", err)
		return job, nil
	}
	if err := s.repo.ApplyBackend(ctx, jobID, bj); err != nil {
		return nil, err
	}
	if JobStatus(bj.Status) != job.Status {
		s.metrics.IncIngestion(bj.Status)
	}
	return s.repo.GetJobByID(ctx, jobID)
}
