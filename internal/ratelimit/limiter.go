// Package ratelimit paces the outbound calls of a single probe.
package ratelimit

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter spaces the calls one probe makes against a third-party panel and
// slows down when the panel signals overload.
type Limiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	minRate     float64
	currentRate float64
	burst       int
	throttled   int
}

// NewLimiter creates a limiter allowing requestsPerSecond with the given burst.
// A non-positive rate disables pacing.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		burst:       burst,
		currentRate: requestsPerSecond,
		minRate:     requestsPerSecond / 4,
	}
	if requestsPerSecond <= 0 {
		l.limiter = rate.NewLimiter(rate.Inf, burst)
	} else {
		l.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return l
}

// Wait blocks until a call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Observe adjusts the pace from a response status. 429 and 503 halve the
// rate down to a quarter of the initial rate.
func (l *Limiter) Observe(status int) {
	if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.throttled++
	if l.currentRate <= 0 {
		return
	}

	l.currentRate = l.currentRate / 2
	if l.currentRate < l.minRate {
		l.currentRate = l.minRate
	}
	l.limiter.SetLimit(rate.Limit(l.currentRate))
}

// CurrentRate returns the current rate; zero means unlimited.
func (l *Limiter) CurrentRate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentRate
}

// Throttled returns how many overload responses were observed.
func (l *Limiter) Throttled() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.throttled
}
