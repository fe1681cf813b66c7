package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrBackend = errors.New("kb: ingestion backend error")

// BackendJob is the backend's description of an ingestion job.
type BackendJob struct {
	ID              string     `json:"ingestionJobId"`
	KnowledgeBaseID string     `json:"knowledgeBaseId"`
	DataSourceID    string     `json:"dataSourceId"`
	Status          string     `json:"status"`
	Description     string     `json:"description,omitempty"`
	FailureReasons  []string   `json:"failureReasons,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
	Statistics      Statistics `json:"-"`
}

type backendStats struct {
	Scanned          int64 `json:"numberOfDocumentsScanned"`
	NewIndexed       int64 `json:"numberOfNewDocumentsIndexed"`
	ModifiedIndexed  int64 `json:"numberOfModifiedDocumentsIndexed"`
	Failed           int64 `json:"numberOfDocumentsFailed"`
	Deleted          int64 `json:"numberOfDocumentsDeleted"`
	MetadataScanned  int64 `json:"numberOfMetadataDocumentsScanned"`
	MetadataModified int64 `json:"numberOfMetadataDocumentsModified"`
}

type backendEnvelope struct {
	IngestionJob struct {
		BackendJob
		Statistics *backendStats `json:"statistics"`
	} `json:"ingestionJob"`
}

// Backend starts and inspects re-indexing jobs for one data source.
type Backend interface {
	StartJob(ctx context.Context) (BackendJob, error)
	GetJob(ctx context.Context, jobID string) (BackendJob, error)
}

// HTTPBackend speaks the knowledge-base REST shape:
//
//	PUT /knowledgebases/{kb}/datasources/{ds}/ingestionjobs/
//	GET /knowledgebases/{kb}/datasources/{ds}/ingestionjobs/{id}
type HTTPBackend struct {
	BaseURL         string
	KnowledgeBaseID string
	DataSourceID    string
	Token           string
	Client          *http.Client
}

func NewHTTPBackend(baseURL, kbID, dsID, token string) *HTTPBackend {
	return &HTTPBackend{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		KnowledgeBaseID: kbID,
		DataSourceID:    dsID,
		Token:           token,
		Client:          &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *HTTPBackend) jobsURL() string {
	return fmt.Sprintf("%s/knowledgebases/%s/datasources/%s/ingestionjobs/",
		b.BaseURL, url.PathEscape(b.KnowledgeBaseID), url.PathEscape(b.DataSourceID))
}

func (b *HTTPBackend) StartJob(ctx context.Context) (BackendJob, error) {
	body := []byte(`{"description":"kb-chat refresh"}`)
	return b.do(ctx, http.MethodPut, b.jobsURL(), bytes.NewReader(body))
}

func (b *HTTPBackend) GetJob(ctx context.Context, jobID string) (BackendJob, error) {
	if jobID == "" {
		return BackendJob{}, errors.New("kb: job id required")
	}
	return b.do(ctx, http.MethodGet, b.jobsURL()+url.PathEscape(jobID), nil)
}

func (b *HTTPBackend) do(ctx context.Context, method, u string, body io.Reader) (BackendJob, error) {
	if b.BaseURL == "" {
		return BackendJob{}, fmt.Errorf("%w: backend url not configured", ErrBackend)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return BackendJob{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.Token)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return BackendJob{}, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return BackendJob{}, fmt.Errorf("%w: status %d: %s", ErrBackend, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var env backendEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return BackendJob{}, fmt.Errorf("%w: decode: %v", ErrBackend, err)
	}
	job := env.IngestionJob.BackendJob
	if s := env.IngestionJob.Statistics; s != nil {
		job.Statistics = Statistics{
			DocumentsScanned:         s.Scanned,
			NewDocumentsIndexed:      s.NewIndexed,
			ModifiedDocumentsIndexed: s.ModifiedIndexed,
			DocumentsFailed:          s.Failed,
			DocumentsDeleted:         s.Deleted,
			MetadataScanned:          s.MetadataScanned,
			MetadataModified:         s.MetadataModified,
		}
	}
	if job.ID == "" {
		return BackendJob{}, fmt.Errorf("%w: response has no job id", ErrBackend)
	}
	return job, nil
}
