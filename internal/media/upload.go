package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	MaxUploadSize    = 50 * 1024 * 1024
	defaultUploadTTL = time.Hour
)

var (
	ErrFileType     = errors.New("upload: file type not allowed")
	ErrFileTooLarge = errors.New("upload: file exceeds size limit")
	ErrUpload       = errors.New("upload failed")
)

var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",
	"csv":  "text/csv",

	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",

	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"wav":  "audio/wav",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"webm": "video/webm",
	"mov":  "video/quicktime",
}

var (
	spaceRunRe = regexp.MustCompile(`\s+`)
	unsafeRe   = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)
	dashRunRe  = regexp.MustCompile(`-+`)
	edgeDashRe = regexp.MustCompile(`^-+|-+$`)
)

// Ext returns the lowercased extension of filename without the dot.
func Ext(filename string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}

// ContentType maps filename's extension to a MIME type, or fallback.
func ContentType(filename, fallback string) string {
	if ct, ok := contentTypes[Ext(filename)]; ok {
		return ct
	}
	if fallback == "" {
		return "application/octet-stream"
	}
	return fallback
}

// SanitizeFileName makes a name safe to use as an object key.
func SanitizeFileName(name string) string {
	s := spaceRunRe.ReplaceAllString(name, "-")
	s = unsafeRe.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = dashRunRe.ReplaceAllString(s, "-")
	s = edgeDashRe.ReplaceAllString(s, "")
	if s == "" {
		return "unnamed-file"
	}
	return s
}

// ObjectKey validates filename and size and returns the sanitized key.
func ObjectKey(filename string, size int64) (string, error) {
	ext := Ext(filename)
	if KindOfExt(ext) == KindUnknown {
		return "", fmt.Errorf("%w: %q", ErrFileType, filename)
	}
	if size > MaxUploadSize {
		return "", fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}
	base := filename
	if i := strings.LastIndex(filename, "."); i > 0 {
		base = filename[:i]
	}
	return SanitizeFileName(base) + "." + ext, nil
}

// UploadTicket is a signed PUT for one file.
type UploadTicket struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Uploads struct {
	store BlobStore
	ttl   time.Duration
}

func NewUploads(store BlobStore, ttl time.Duration) *Uploads {
	if ttl <= 0 {
		ttl = defaultUploadTTL
	}
	return &Uploads{store: store, ttl: ttl}
}

func (u *Uploads) Presign(ctx context.Context, filename string, size int64, declaredType string) (UploadTicket, error) {
	key, err := ObjectKey(filename, size)
	if err != nil {
		return UploadTicket{}, err
	}
	ct := ContentType(filename, declaredType)
	signed, err := u.store.PresignPut(ctx, key, ct, u.ttl)
	if err != nil {
		return UploadTicket{}, fmt.Errorf("presign put %s: %w", key, err)
	}
	return UploadTicket{
		Key:         key,
		URL:         signed,
		ContentType: ct,
		ExpiresAt:   time.Now().Add(u.ttl),
	}, nil
}

// ProgressFunc receives the bytes sent so far and the total.
type ProgressFunc func(sent, total int64)

type progressReader struct {
	r        io.Reader
	sent     int64
	total    int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.progress != nil {
			p.progress(p.sent, p.total)
		}
	}
	return n, err
}

// Upload streams body to a signed PUT URL, reporting progress as it goes.
func Upload(ctx context.Context, c *http.Client, putURL string, body io.Reader, size int64, contentType string, progress ProgressFunc) error {
	if c == nil {
		c = &http.Client{}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL,
		&progressReader{r: body, total: size, progress: progress})
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d %s", ErrUpload, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
