package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore issues time-limited signed URLs for objects.
type BlobStore interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// PresignPut signs contentType into the URL; the upload must send the
	// same Content-Type header.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Store presigns against any S3-compatible endpoint. Presigning is local;
// no request leaves the process.
type S3Store struct {
	client *minio.Client
	bucket string
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3: bucket is required")
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	region := cfg.Region
	if region == "" {
		// an explicit region avoids a bucket-location round trip per presign
		region = "us-east-1"
	}
	c, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}
	return &S3Store{client: c, bucket: cfg.Bucket}, nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	var h http.Header
	if contentType != "" {
		h = http.Header{"Content-Type": []string{contentType}}
	}
	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, key, ttl, url.Values{}, h)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// CheckSigned checks that a presigned GET URL is live by fetching its first
// byte. The URL is signed for GET only, so HEAD would fail the signature
// check, and no Authorization header may accompany it.
func CheckSigned(ctx context.Context, c *http.Client, signedURL string) (int, error) {
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
