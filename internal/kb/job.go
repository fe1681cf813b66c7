package kb

import "time"

type JobStatus string

// Local statuses. Once the backend accepted a job its own status string
// (STARTING, IN_PROGRESS, COMPLETE, FAILED, STOPPING, STOPPED) is stored
// verbatim.
const (
	JobQueued   JobStatus = "queued"
	JobStarting JobStatus = "starting"
	JobFailed   JobStatus = "failed"
)

// Terminal reports whether no further status changes are expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobFailed, "COMPLETE", "FAILED", "STOPPED":
		return true
	}
	return false
}

type IngestionJob struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID

	UserID          uint64 `gorm:"index;not null;index:uniq_kb_user_idempo,unique,priority:1" json:"-"`
	KnowledgeBaseID string `gorm:"type:varchar(64);not null" json:"knowledge_base_id"`
	DataSourceID    string `gorm:"type:varchar(64);not null" json:"data_source_id"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_kb_user_idempo,unique,priority:2" json:"-"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled once the backend accepted the job
	BackendJobID *string `gorm:"type:varchar(64);index" json:"backend_job_id,omitempty"`

	Statistics

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (IngestionJob) TableName() string { return "kb_ingestion_jobs" }

type Statistics struct {
	DocumentsScanned         int64 `json:"documents_scanned"`
	NewDocumentsIndexed      int64 `json:"new_documents_indexed"`
	ModifiedDocumentsIndexed int64 `json:"modified_documents_indexed"`
	DocumentsFailed          int64 `json:"documents_failed"`
	DocumentsDeleted         int64 `json:"documents_deleted"`
	MetadataScanned          int64 `json:"metadata_documents_scanned"`
	MetadataModified         int64 `json:"metadata_documents_modified"`
}
