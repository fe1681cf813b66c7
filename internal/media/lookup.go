package media

import "context"

// Lookup is one asynchronous resolution. It is safe to abandon: Cancel
// releases it and a late completion touches nothing but the Lookup itself.
type Lookup struct {
	SourceID string

	cancel context.CancelFunc
	done   chan struct{}
	media  ResolvedMedia
	err    error
}

// Lookup starts resolving sourceID in the background.
func (r *Resolver) Lookup(ctx context.Context, sourceID string) *Lookup {
	ctx, cancel := context.WithCancel(ctx)
	l := &Lookup{SourceID: sourceID, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		defer cancel()
		l.media, l.err = r.Resolve(ctx, sourceID)
	}()
	return l
}

// Done is closed once the lookup finished, failed or was canceled.
func (l *Lookup) Done() <-chan struct{} { return l.done }

// Result blocks until Done and returns the outcome.
func (l *Lookup) Result() (ResolvedMedia, error) {
	<-l.done
	return l.media, l.err
}

func (l *Lookup) Cancel() { l.cancel() }
