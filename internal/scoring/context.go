// SPDX-License-Identifier: Apache-2.0

// Package scoring implements a pure, stateless score calculator for
// ranking queued candidates. It has no I/O and no goroutines, in the
// style of internal/wrphandlers/qos/priority.go, which is likewise a pure
// enum/validation file with no side effects.
package scoring

import (
	"time"

	"github.com/Aid-On/llm-queue-dispatcher/internal/ratelimiter"
)

// QueueMetrics is the subset of the metrics collector's report made
// available to custom scorers. It intentionally carries only
// already-derived numbers, not the event log itself.
type QueueMetrics struct {
	TotalMessages    int
	OldestMessageAge time.Duration
	AverageWaitTime  time.Duration
	ThroughputPerMin float64
}

// Context is the snapshot of external state the score calculator
// evaluates a candidate against.
type Context struct {
	RateLimiter ratelimiter.Metrics
	Queue       QueueMetrics
	CurrentTime time.Time
}

// Weights assigns an importance to each subscore. Weights need not sum to
// 1; the dispatcher applies minScoreThreshold to the weighted total.
type Weights struct {
	Priority       float64
	Efficiency     float64
	WaitTime       float64
	Retry          float64
	TokenFit       float64
	ProcessingTime float64
}

// DefaultWeights returns the balanced default weight profile.
func DefaultWeights() Weights {
	return Weights{
		Priority:       0.25,
		Efficiency:     0.20,
		WaitTime:       0.20,
		Retry:          0.10,
		TokenFit:       0.15,
		ProcessingTime: 0.10,
	}
}

// CustomScorer is a user-supplied, additive scoring contribution. It must
// be pure and cheap: it is invoked once per candidate per dequeue. The
// calculator does not clamp its return value.
type CustomScorer interface {
	Name() string
	Weight() float64
	Calculate(candidate Candidate, ctx Context) float64
}
