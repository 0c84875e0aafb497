// Package metrics counts probe outcomes and outbound calls.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates counters across probes. It only observes; nothing in
// the probing path reads it back.
type Collector struct {
	probesTotal    atomic.Int64
	probesSuccess  atomic.Int64
	probesFailed   atomic.Int64
	probesInvalid  atomic.Int64
	probesInFlight atomic.Int64
	attemptsTotal  atomic.Int64
	errorsTotal    atomic.Int64
	challenges     atomic.Int64

	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	// <10, <50, <100, <250, <500, <1000, <2500, <5000, <10000, >=10000 ms
	responseTimeBuckets [10]atomic.Int64

	mu          sync.RWMutex
	strategies  map[string]*atomic.Int64
	errorCounts map[string]*atomic.Int64
	statusCodes map[int]*atomic.Int64

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		strategies:  make(map[string]*atomic.Int64),
		errorCounts: make(map[string]*atomic.Int64),
		statusCodes: make(map[int]*atomic.Int64),
		startTime:   time.Now(),
	}
}

// ProbeStarted marks a probe as in flight.
func (c *Collector) ProbeStarted() {
	c.probesTotal.Add(1)
	c.probesInFlight.Add(1)
}

// ProbeFinished records the outcome of a probe. strategy is the success
// label and is ignored on failure.
func (c *Collector) ProbeFinished(success bool, strategy string) {
	c.probesInFlight.Add(-1)
	if !success {
		c.probesFailed.Add(1)
		return
	}
	c.probesSuccess.Add(1)
	c.increment(c.strategies, strategy)
}

// ProbeRejected records a request that failed validation.
func (c *Collector) ProbeRejected() {
	c.probesInvalid.Add(1)
}

// RecordAttempt records one outbound call.
func (c *Collector) RecordAttempt(status int, d time.Duration, errorType string) {
	c.attemptsTotal.Add(1)

	if errorType != "" {
		c.errorsTotal.Add(1)
		c.increment(c.errorCounts, errorType)
		return
	}

	c.mu.Lock()
	if c.statusCodes[status] == nil {
		c.statusCodes[status] = &atomic.Int64{}
	}
	counter := c.statusCodes[status]
	c.mu.Unlock()
	counter.Add(1)

	ms := d.Milliseconds()
	c.responseTimesSum.Add(ms)
	c.responseTimesNum.Add(1)
	c.responseTimeBuckets[bucket(ms)].Add(1)
}

// RecordChallenge records a bot-mitigation interstitial.
func (c *Collector) RecordChallenge() {
	c.challenges.Add(1)
}

func (c *Collector) increment(m map[string]*atomic.Int64, key string) {
	c.mu.Lock()
	if m[key] == nil {
		m[key] = &atomic.Int64{}
	}
	counter := m[key]
	c.mu.Unlock()
	counter.Add(1)
}

func bucket(ms int64) int {
	switch {
	case ms < 10:
		return 0
	case ms < 50:
		return 1
	case ms < 100:
		return 2
	case ms < 250:
		return 3
	case ms < 500:
		return 4
	case ms < 1000:
		return 5
	case ms < 2500:
		return 6
	case ms < 5000:
		return 7
	case ms < 10000:
		return 8
	default:
		return 9
	}
}

// AverageResponseTime returns the mean duration of answered calls.
func (c *Collector) AverageResponseTime() time.Duration {
	sum := c.responseTimesSum.Load()
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Millisecond
}

// Snapshot returns a point-in-time copy of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.startTime),
		ProbesTotal:         c.probesTotal.Load(),
		ProbesSuccess:       c.probesSuccess.Load(),
		ProbesFailed:        c.probesFailed.Load(),
		ProbesInvalid:       c.probesInvalid.Load(),
		ProbesInFlight:      c.probesInFlight.Load(),
		AttemptsTotal:       c.attemptsTotal.Load(),
		ErrorsTotal:         c.errorsTotal.Load(),
		Challenges:          c.challenges.Load(),
		AverageResponseTime: c.AverageResponseTime(),
		Strategies:          make(map[string]int64),
		ErrorCounts:         make(map[string]int64),
		StatusCodes:         make(map[int]int64),
		ResponseTimeHist:    make([]int64, len(c.responseTimeBuckets)),
	}

	c.mu.RLock()
	for k, v := range c.strategies {
		s.Strategies[k] = v.Load()
	}
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v.Load()
	}
	c.mu.RUnlock()

	for i := range c.responseTimeBuckets {
		s.ResponseTimeHist[i] = c.responseTimeBuckets[i].Load()
	}

	return s
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp           time.Time        `json:"timestamp"`
	Uptime              time.Duration    `json:"uptime"`
	ProbesTotal         int64            `json:"probes_total"`
	ProbesSuccess       int64            `json:"probes_success"`
	ProbesFailed        int64            `json:"probes_failed"`
	ProbesInvalid       int64            `json:"probes_invalid"`
	ProbesInFlight      int64            `json:"probes_in_flight"`
	AttemptsTotal       int64            `json:"attempts_total"`
	ErrorsTotal         int64            `json:"errors_total"`
	Challenges          int64            `json:"challenges"`
	AverageResponseTime time.Duration    `json:"average_response_time"`
	Strategies          map[string]int64 `json:"successes_by_strategy"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
	StatusCodes         map[int]int64    `json:"status_codes"`
	ResponseTimeHist    []int64          `json:"response_time_histogram"`
}

// SuccessRate returns successes over finished probes.
func (s *Snapshot) SuccessRate() float64 {
	finished := s.ProbesSuccess + s.ProbesFailed
	if finished == 0 {
		return 0
	}
	return float64(s.ProbesSuccess) / float64(finished)
}

// ErrorRate returns transport errors over attempts.
func (s *Snapshot) ErrorRate() float64 {
	if s.AttemptsTotal == 0 {
		return 0
	}
	return float64(s.ErrorsTotal) / float64(s.AttemptsTotal)
}

// Summary returns a compact human-readable view.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":               s.Uptime.String(),
		"probes_total":         s.ProbesTotal,
		"probes_success":       s.ProbesSuccess,
		"success_rate":         s.SuccessRate(),
		"attempts_total":       s.AttemptsTotal,
		"error_rate":           s.ErrorRate(),
		"challenges":           s.Challenges,
		"avg_response_time_ms": s.AverageResponseTime.Milliseconds(),
	}
}

var globalCollector = New()

// SetGlobal sets the global metrics collector.
func SetGlobal(c *Collector) {
	globalCollector = c
}

// Global returns the global metrics collector.
func Global() *Collector {
	return globalCollector
}
