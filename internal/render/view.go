// Package render turns an assistant message into elements whose citations
// resolve to playable media lazily and independently of each other.
package render

import (
	"context"
	"strconv"
	"sync"

	"github.com/suPer8Hu/kb-chat/internal/annotate"
	"github.com/suPer8Hu/kb-chat/internal/logging"
	"github.com/suPer8Hu/kb-chat/internal/media"
)

type State int

const (
	Pending State = iota
	Resolved
	Unresolved
)

func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Unresolved:
		return "unresolved"
	default:
		return "pending"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// View is one rendering of one message. It owns the resolved-media cache
// for that rendering; Close discards it.
type View struct {
	resolver *media.Resolver
	log      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	cache    map[string]media.ResolvedMedia
	inflight map[string]*media.Lookup

	elements []*Element
}

func NewView(ctx context.Context, resolver *media.Resolver, segments []annotate.Segment, log *logging.Logger) *View {
	if log == nil {
		log = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	v := &View{
		resolver: resolver,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		cache:    make(map[string]media.ResolvedMedia),
		inflight: make(map[string]*media.Lookup),
	}
	v.elements = make([]*Element, len(segments))
	for i, seg := range segments {
		e := &Element{Index: i, Segment: seg, view: v, done: make(chan struct{})}
		if !e.Deferred() {
			close(e.done)
		}
		v.elements[i] = e
	}
	return v
}

func (v *View) Elements() []*Element { return v.elements }

// Close cancels in-flight lookups and drops the cache. Lookups that finish
// afterwards change nothing.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	for _, l := range v.inflight {
		l.Cancel()
	}
	v.inflight = nil
	v.cache = nil
	v.mu.Unlock()
	v.cancel()
}

// lookup returns a cached result or the lookup for sourceID, starting one
// if none is in flight. ok is false once the view is closed.
func (v *View) lookup(sourceID string) (cached *media.ResolvedMedia, l *media.Lookup, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, nil, false
	}
	if m, hit := v.cache[sourceID]; hit {
		return &m, nil, true
	}
	if l, running := v.inflight[sourceID]; running {
		return nil, l, true
	}
	l = v.resolver.Lookup(v.ctx, sourceID)
	v.inflight[sourceID] = l
	return nil, l, true
}

// complete records a finished lookup. It reports false when the view was
// closed meanwhile, in which case the result must be dropped.
func (v *View) complete(sourceID string, m media.ResolvedMedia, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	delete(v.inflight, sourceID)
	if err == nil {
		v.cache[sourceID] = m
	}
	return true
}

// Event reports one element reaching a final state.
type Event struct {
	Index       int    `json:"index"`
	SourceID    string `json:"source_id"`
	State       State  `json:"state"`
	DisplayTime string `json:"display_time"`
	URL         string `json:"url,omitempty"`
}

// Stream mounts every citation and emits an event per completion, in the
// order they complete. The channel closes when all are final or ctx ends.
func (v *View) Stream(ctx context.Context) <-chan Event {
	var deferred []*Element
	for _, e := range v.elements {
		if e.Deferred() {
			deferred = append(deferred, e)
		}
	}

	out := make(chan Event, len(deferred))
	var wg sync.WaitGroup
	for _, e := range deferred {
		wg.Add(1)
		go func(e *Element) {
			defer wg.Done()
			select {
			case <-e.Mount():
				out <- e.Event()
			case <-ctx.Done():
			}
		}(e)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Element is one segment of the rendered message.
type Element struct {
	Index   int
	Segment annotate.Segment

	view *View
	once sync.Once
	done chan struct{}

	mu    sync.Mutex
	state State
	media media.ResolvedMedia
}

// Deferred reports whether the element is a citation awaiting resolution.
func (e *Element) Deferred() bool { return e.Segment.Kind == annotate.SegmentCitation }

// Mount starts resolution on first call and returns a channel closed once
// the element is final. Plain elements are final from the start.
func (e *Element) Mount() <-chan struct{} {
	if !e.Deferred() {
		return e.done
	}
	e.once.Do(func() {
		id := e.Segment.SourceID
		cached, l, ok := e.view.lookup(id)
		switch {
		case !ok:
			e.finish(media.ResolvedMedia{}, context.Canceled)
		case cached != nil:
			e.finish(*cached, nil)
		default:
			go e.await(l)
		}
	})
	return e.done
}

func (e *Element) await(l *media.Lookup) {
	select {
	case <-l.Done():
	case <-e.view.ctx.Done():
		// closed: stay pending
		close(e.done)
		return
	}
	m, err := l.Result()
	if !e.view.complete(l.SourceID, m, err) {
		close(e.done)
		return
	}
	if err != nil {
		e.view.log.Debugw("citation unresolved", "source", l.SourceID, "err", err)
	}
	e.finish(m, err)
}

func (e *Element) finish(m media.ResolvedMedia, err error) {
	e.mu.Lock()
	if err != nil {
		e.state = Unresolved
	} else {
		e.state = Resolved
		e.media = m
	}
	e.mu.Unlock()
	close(e.done)
}

func (e *Element) State() State {
	if !e.Deferred() {
		return Resolved
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// URL is the playable URL positioned at the cited second, or "" until the
// element is resolved.
func (e *Element) URL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Resolved || e.media.PlayableURL == "" {
		return ""
	}
	return e.media.PlayableURL + "#t=" + strconv.Itoa(e.Segment.Seconds)
}

// Text is what the element shows without interaction: plain text, or the
// display time for citations in any state.
func (e *Element) Text() string {
	if e.Segment.Kind == annotate.SegmentText {
		return e.Segment.Text
	}
	return e.Segment.DisplayTime
}

func (e *Element) Event() Event {
	return Event{
		Index:       e.Index,
		SourceID:    e.Segment.SourceID,
		State:       e.State(),
		DisplayTime: e.Segment.DisplayTime,
		URL:         e.URL(),
	}
}
