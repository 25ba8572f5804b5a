package provider

import (
	"context"
	"sync"
	"time"
)

// limiter spaces request starts and holds every caller while the service
// has asked the client to back off. It is shared by all goroutines using
// one client, so a 429 seen by one worker pauses the others too.
type limiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	pauseEnd time.Time
}

func newLimiter(interval time.Duration) *limiter {
	return &limiter{interval: interval}
}

// wait blocks until the caller may start a request.
func (l *limiter) wait(ctx context.Context) error {
	l.mu.Lock()
	start := time.Now()
	if l.next.After(start) {
		start = l.next
	}
	if l.pauseEnd.After(start) {
		start = l.pauseEnd
	}
	l.next = start.Add(l.interval)
	l.mu.Unlock()
	return sleep(ctx, time.Until(start))
}

// pause holds all callers for d. A longer pause already in place wins.
func (l *limiter) pause(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if end := time.Now().Add(d); end.After(l.pauseEnd) {
		l.pauseEnd = end
	}
}

// paused reports whether a back-off pause is in effect.
func (l *limiter) paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Now().Before(l.pauseEnd)
}
