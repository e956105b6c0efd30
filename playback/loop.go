package playback

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Scriptzstarling/meme-Forge/media"
)

// DrawFunc receives each frame to composite.
type DrawFunc func(frame image.Image)

// Loop redraws a video background. While playing it draws on every scheduler
// tick; while paused it draws only on Seek or Redraw.
type Loop struct {
	stream media.VideoStream
	sched  Scheduler
	draw   DrawFunc

	mu       sync.Mutex
	position time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
}

func New(stream media.VideoStream, sched Scheduler, draw DrawFunc) *Loop {
	return &Loop{stream: stream, sched: sched, draw: draw}
}

// Playing reports whether the loop goroutine is running.
func (l *Loop) Playing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *Loop) Position() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

// Play starts the loop. It is a no-op when already playing or closed.
func (l *Loop) Play() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil || l.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.cancel, l.done = cancel, done
	go l.run(ctx, done)
}

// Pause stops the loop and returns once the loop goroutine has exited, so no
// draw happens after it returns. Callers must not hold a lock the draw
// function takes.
func (l *Loop) Pause() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Toggle flips between playing and paused and returns the new state.
func (l *Loop) Toggle() bool {
	if l.Playing() {
		l.Pause()
		return false
	}
	l.Play()
	return l.Playing()
}

// Seek moves the playback position. A paused loop draws the frame at the new
// position once; a playing loop picks it up on the next tick.
func (l *Loop) Seek(ctx context.Context, t time.Duration) {
	l.mu.Lock()
	l.position = l.wrap(t)
	playing := l.cancel != nil
	l.mu.Unlock()

	if !playing {
		l.Redraw(ctx)
	}
}

// Redraw draws the frame at the current position once.
func (l *Loop) Redraw(ctx context.Context) {
	l.mu.Lock()
	pos, closed := l.position, l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	l.drawAt(ctx, pos)
}

// Close stops the loop and releases the stream.
func (l *Loop) Close() error {
	l.Pause()
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.stream.Close()
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticks := l.sched.Start(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case elapsed, ok := <-ticks:
			if !ok {
				return
			}
			l.mu.Lock()
			l.position = l.wrap(l.position + elapsed)
			pos := l.position
			l.mu.Unlock()
			l.drawAt(ctx, pos)
		}
	}
}

func (l *Loop) drawAt(ctx context.Context, pos time.Duration) {
	frame, err := l.stream.FrameAt(ctx, pos)
	if err != nil {
		if ctx.Err() == nil {
			logrus.WithFields(logrus.Fields{"position": pos, "error": err}).Warn("failed to read video frame")
		}
		return
	}
	if ctx.Err() != nil {
		return
	}
	l.draw(frame)
}

// wrap keeps t inside [0, duration) so playback loops.
func (l *Loop) wrap(t time.Duration) time.Duration {
	d := l.stream.Duration()
	if t < 0 {
		t = 0
	}
	if d <= 0 {
		return t
	}
	return t % d
}
