// Package playback drives the redraw loop of video backgrounds.
package playback

import (
	"context"
	"time"
)

// Scheduler is the host frame signal. Start delivers the time elapsed since
// the previous tick until ctx is done, then closes the channel.
type Scheduler interface {
	Start(ctx context.Context) <-chan time.Duration
}

// TickerScheduler ticks at a fixed frame rate.
type TickerScheduler struct {
	Interval time.Duration
}

// NewTickerScheduler returns a scheduler for fps frames per second; fps <= 0
// falls back to 30.
func NewTickerScheduler(fps int) TickerScheduler {
	if fps <= 0 {
		fps = 30
	}
	return TickerScheduler{Interval: time.Second / time.Duration(fps)}
}

func (s TickerScheduler) Start(ctx context.Context) <-chan time.Duration {
	ch := make(chan time.Duration)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				elapsed := now.Sub(last)
				last = now
				select {
				case ch <- elapsed:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
