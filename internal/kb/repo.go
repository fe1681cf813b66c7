package kb

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateJob(ctx context.Context, job *IngestionJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*IngestionJob, error) {
	var j IngestionJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*IngestionJob, error) {
	var job IngestionJob
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting creates job, or returns the existing job when
// (user_id, idempotency_key) is already taken.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *IngestionJob) (*IngestionJob, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// MarkStarting moves a queued job to starting. It reports false when the
// job was not queued, so a redelivered message does not start it twice.
func (r *Repo) MarkStarting(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&IngestionJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobStarting)
	return res.RowsAffected == 1, res.Error
}

// Requeue returns a starting job to queued so a retry can pick it up.
func (r *Repo) Requeue(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&IngestionJob{}).
		Where("id = ? AND status = ?", id, JobStarting).
		Update("status", JobQueued).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&IngestionJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}

// ApplyBackend records the backend's view of a job.
func (r *Repo) ApplyBackend(ctx context.Context, id string, bj BackendJob) error {
	updates := map[string]any{
		"backend_job_id":             bj.ID,
		"status":                     JobStatus(bj.Status),
		"documents_scanned":          bj.Statistics.DocumentsScanned,
		"new_documents_indexed":      bj.Statistics.NewDocumentsIndexed,
		"modified_documents_indexed": bj.Statistics.ModifiedDocumentsIndexed,
		"documents_failed":           bj.Statistics.DocumentsFailed,
		"documents_deleted":          bj.Statistics.DocumentsDeleted,
		"metadata_scanned":           bj.Statistics.MetadataScanned,
		"metadata_modified":          bj.Statistics.MetadataModified,
	}
	if bj.StartedAt != nil {
		updates["started_at"] = *bj.StartedAt
	}
	if len(bj.FailureReasons) > 0 {
		updates["error"] = bj.FailureReasons[0]
	}
	return r.db.WithContext(ctx).Model(&IngestionJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}
