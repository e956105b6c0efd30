package media

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loader runs one asynchronous load per selection. Every Select starts a new
// generation and cancels the previous one; only the latest generation may
// publish its result, so a slow load finishing after a newer selection is
// dropped.
type Loader struct {
	resolver *Resolver
	onReady  func(gen uint64, src *Source)

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	current *Source
	wg      sync.WaitGroup
}

// NewLoader calls onReady (when non-nil) from the loading goroutine each time
// the latest selection finishes successfully. A newer Select may race the
// callback, so receivers that draw check IsCurrent(gen) under their own lock.
func NewLoader(resolver *Resolver, onReady func(gen uint64, src *Source)) *Loader {
	return &Loader{resolver: resolver, onReady: onReady}
}

// Select replaces the active source with an unloaded one for ref and starts
// loading it. It returns the generation of the new selection.
func (l *Loader) Select(ctx context.Context, ref string) uint64 {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	if l.cancel != nil {
		l.cancel()
	}
	lctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	prev := l.current
	l.current = &Source{Reference: ref, Kind: Classify(ref)}
	l.wg.Add(1)
	l.mu.Unlock()

	if err := prev.Close(); err != nil {
		logrus.WithField("error", err).Warn("failed to close previous source")
	}

	go func() {
		defer l.wg.Done()
		defer cancel()
		src, err := l.resolver.Load(lctx, ref)
		l.publish(gen, ref, src, err)
	}()
	return gen
}

func (l *Loader) publish(gen uint64, ref string, src *Source, err error) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		logrus.WithField("generation", gen).Debug("discarding stale load")
		if src != nil {
			src.Close()
		}
		return
	}
	if err != nil {
		l.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"generation": gen,
			"reference":  truncate(ref),
			"error":      err,
		}).Warn("failed to load background")
		return
	}
	l.current = src
	onReady := l.onReady
	l.mu.Unlock()

	if onReady != nil {
		onReady(gen, src)
	}
}

// Current returns the active source; it is not Ready until its load finished.
// Nil before the first selection.
func (l *Loader) Current() *Source {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Generation returns the generation of the latest selection.
func (l *Loader) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// IsCurrent reports whether gen is still the latest selection.
func (l *Loader) IsCurrent(gen uint64) bool {
	return l.Generation() == gen
}

// Wait blocks until every started load has published or been discarded.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// Close cancels any in-flight load and releases the active source.
func (l *Loader) Close() error {
	l.mu.Lock()
	l.gen++
	if l.cancel != nil {
		l.cancel()
	}
	cur := l.current
	l.current = nil
	l.mu.Unlock()
	l.wg.Wait()
	return cur.Close()
}
