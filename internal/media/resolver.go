package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/suPer8Hu/kb-chat/internal/auth"
	"github.com/suPer8Hu/kb-chat/internal/logging"
	"github.com/suPer8Hu/kb-chat/internal/metrics"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEmptySource  = errors.New("media: source id is empty")
	ErrNotAvailable = errors.New("media: source not available")
)

const (
	defaultURLTTL        = 15 * time.Minute
	defaultMaxConcurrent = 8
	presignTimeout       = 10 * time.Second
	// cached URLs are dropped this long before the signature expires
	cacheSafetyMargin = time.Minute
)

// ResolvedMedia is a playable URL for one cited source.
type ResolvedMedia struct {
	SourceRef   string    `json:"source_ref"`
	Key         string    `json:"key"`
	PlayableURL string    `json:"playable_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// URLCache stores signed URLs across render instances.
type URLCache interface {
	GetURL(ctx context.Context, key string) (string, bool, error)
	SetURL(ctx context.Context, key, url string, ttl time.Duration) error
}

type ResolverOptions struct {
	TTL           time.Duration
	MaxConcurrent int64
	Cache         URLCache
	// CheckOpen fetches the first byte of a document before handing it out for viewing.
	CheckOpen bool
	HTTP      *http.Client
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
}

type Resolver struct {
	store     BlobStore
	cache     URLCache
	ttl       time.Duration
	sem       *semaphore.Weighted
	group     singleflight.Group
	checkOpen bool
	http      *http.Client
	log       *logging.Logger
	metrics   *metrics.Metrics
}

func NewResolver(store BlobStore, opts ResolverOptions) *Resolver {
	if opts.TTL <= 0 {
		opts.TTL = defaultURLTTL
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Resolver{
		store:     store,
		cache:     opts.Cache,
		ttl:       opts.TTL,
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
		checkOpen: opts.CheckOpen,
		http:      opts.HTTP,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Resolve returns a signed, playable URL for sourceID. Concurrent calls for
// the same object share one presign; a caller whose ctx ends stops waiting
// without failing the others.
func (r *Resolver) Resolve(ctx context.Context, sourceID string) (ResolvedMedia, error) {
	if sourceID == "" {
		return ResolvedMedia{}, ErrEmptySource
	}
	start := time.Now()
	key := StorageKey(sourceID)

	ch := r.group.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), presignTimeout)
		defer cancel()
		return r.presign(sctx, key)
	})

	select {
	case <-ctx.Done():
		r.metrics.ObserveResolution(metrics.OutcomeCanceled, time.Since(start))
		return ResolvedMedia{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			r.metrics.ObserveResolution(metrics.OutcomeFailed, time.Since(start))
			r.log.Warnw("resolve failed", "source", sourceID, "key", key, "err", res.Err)
			return ResolvedMedia{}, res.Err
		}
		m := res.Val.(ResolvedMedia)
		m.SourceRef = sourceID
		r.metrics.ObserveResolution(metrics.OutcomeOK, time.Since(start))
		return m, nil
	}
}

func (r *Resolver) presign(ctx context.Context, key string) (ResolvedMedia, error) {
	if r.cache != nil {
		u, ok, err := r.cache.GetURL(ctx, key)
		if err != nil {
			r.log.Debugw("url cache read failed", "key", key, "err", err)
		}
		if ok {
			return ResolvedMedia{Key: key, PlayableURL: u, ExpiresAt: time.Now().Add(cacheSafetyMargin)}, nil
		}
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return ResolvedMedia{}, err
	}
	defer r.sem.Release(1)

	u, err := r.store.PresignGet(ctx, key, r.ttl)
	if err != nil {
		return ResolvedMedia{}, fmt.Errorf("presign %s: %w", key, err)
	}

	if r.cache != nil && r.ttl > cacheSafetyMargin {
		if err := r.cache.SetURL(ctx, key, u, r.ttl-cacheSafetyMargin); err != nil {
			r.log.Debugw("url cache write failed", "key", key, "err", err)
		}
	}
	return ResolvedMedia{Key: key, PlayableURL: u, ExpiresAt: time.Now().Add(r.ttl)}, nil
}

// OpenTarget describes how a client should open a document out of band.
type OpenTarget struct {
	URL    string `json:"url"`
	Target string `json:"target"`
	Rel    string `json:"rel"`
}

// Open resolves sourceID on demand for the "show document" action. The
// result must be opened in a new context with no opener reference. The
// caller must hold a live session; its token is checked here and never sent
// to the object store, which only accepts the URL's own signature.
func (r *Resolver) Open(ctx context.Context, sourceID string, id auth.IdentityProvider) (OpenTarget, error) {
	if id == nil {
		return OpenTarget{}, auth.ErrUnauthenticated
	}
	if _, err := id.SessionToken(ctx); err != nil {
		return OpenTarget{}, fmt.Errorf("%w: %v", auth.ErrUnauthenticated, err)
	}
	m, err := r.Resolve(ctx, sourceID)
	if err != nil {
		return OpenTarget{}, err
	}
	if r.checkOpen {
		status, err := CheckSigned(ctx, r.http, m.PlayableURL)
		if err != nil {
			return OpenTarget{}, err
		}
		if status != http.StatusOK && status != http.StatusPartialContent {
			return OpenTarget{}, fmt.Errorf("%w: status %d", ErrNotAvailable, status)
		}
	}
	return OpenTarget{URL: m.PlayableURL, Target: "_blank", Rel: "noopener noreferrer"}, nil
}
