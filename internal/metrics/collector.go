// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/xmidt-org/eventor"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
)

const (
	// DefaultRetention is the default time-bounded retention window.
	DefaultRetention = 5 * time.Minute
	// DefaultMaxRecords is the default count-bounded retention cap.
	DefaultMaxRecords = 10000
	// cleanupFactor triggers opportunistic cleanup once the log grows past
	// this fraction beyond DefaultMaxRecords/the configured cap.
	cleanupFactor = 1.2
)

type kind int

const (
	kindEnqueue kind = iota
	kindDequeue
	kindComplete
	kindFailure
)

type record struct {
	kind           kind
	messageID      string
	priority       llmqueue.Priority
	at             time.Time
	processingTime time.Duration
	tokensUsed     int
	err            error
}

// Collector is an append-only event log with time- and count-bounded
// retention, grounded on internal/credentials.Credentials's use of
// eventor.Eventor[T] per event kind, generalized from a single
// fetch/decorate pair to the four queue event kinds: enqueue, dequeue,
// complete, failure.
type Collector struct {
	mu      sync.Mutex
	records []record

	retention time.Duration
	maxCount  int
	now       func() time.Time

	enqueueListeners  eventor.Eventor[EnqueueListener]
	dequeueListeners  eventor.Eventor[DequeueListener]
	completeListeners eventor.Eventor[CompleteListener]
	failureListeners  eventor.Eventor[FailureListener]
}

// Option configures a Collector.
type Option interface {
	apply(*Collector)
}

type optionFunc func(*Collector)

func (f optionFunc) apply(c *Collector) { f(c) }

// WithRetention overrides the default 5 minute retention window.
func WithRetention(d time.Duration) Option {
	return optionFunc(func(c *Collector) { c.retention = d })
}

// WithMaxRecords overrides the default 10,000 record cap.
func WithMaxRecords(n int) Option {
	return optionFunc(func(c *Collector) { c.maxCount = n })
}

// New creates a Collector with the default retention (5 minutes, 10,000
// records).
func New(opts ...Option) *Collector {
	c := &Collector{
		retention: DefaultRetention,
		maxCount:  DefaultMaxRecords,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(c)
		}
	}
	return c
}

// AddEnqueueListener subscribes to EnqueueEvent notifications.
func (c *Collector) AddEnqueueListener(l EnqueueListener) eventor.CancelFunc {
	return c.enqueueListeners.Add(l)
}

// AddDequeueListener subscribes to DequeueEvent notifications.
func (c *Collector) AddDequeueListener(l DequeueListener) eventor.CancelFunc {
	return c.dequeueListeners.Add(l)
}

// AddCompleteListener subscribes to CompleteEvent notifications.
func (c *Collector) AddCompleteListener(l CompleteListener) eventor.CancelFunc {
	return c.completeListeners.Add(l)
}

// AddFailureListener subscribes to FailureEvent notifications.
func (c *Collector) AddFailureListener(l FailureListener) eventor.CancelFunc {
	return c.failureListeners.Add(l)
}

// RecordEnqueue appends an EnqueueEvent to the log.
func (c *Collector) RecordEnqueue(messageID string, priority llmqueue.Priority) {
	at := c.now()
	c.append(record{kind: kindEnqueue, messageID: messageID, priority: priority, at: at})
	c.enqueueListeners.Visit(func(l EnqueueListener) {
		l.OnEnqueue(EnqueueEvent{MessageID: messageID, Priority: priority, At: at})
	})
}

// RecordDequeue appends a DequeueEvent to the log.
func (c *Collector) RecordDequeue(messageID string, priority llmqueue.Priority) {
	at := c.now()
	c.append(record{kind: kindDequeue, messageID: messageID, priority: priority, at: at})
	c.dequeueListeners.Visit(func(l DequeueListener) {
		l.OnDequeue(DequeueEvent{MessageID: messageID, Priority: priority, At: at})
	})
}

// RecordComplete appends a CompleteEvent to the log.
func (c *Collector) RecordComplete(messageID string, tokensUsed int, processingTime time.Duration) {
	at := c.now()
	c.append(record{kind: kindComplete, messageID: messageID, tokensUsed: tokensUsed, processingTime: processingTime, at: at})
	c.completeListeners.Visit(func(l CompleteListener) {
		l.OnComplete(CompleteEvent{MessageID: messageID, TokensUsed: tokensUsed, ProcessingTime: processingTime, At: at})
	})
}

// RecordFailure appends a FailureEvent to the log.
func (c *Collector) RecordFailure(messageID string, err error) {
	at := c.now()
	c.append(record{kind: kindFailure, messageID: messageID, err: err, at: at})
	c.failureListeners.Visit(func(l FailureListener) {
		l.OnFailure(FailureEvent{MessageID: messageID, Err: err, At: at})
	})
}

func (c *Collector) append(r record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = append(c.records, r)
	if float64(len(c.records)) > float64(c.maxCount)*cleanupFactor {
		c.cleanupLocked()
	}
}

// cleanupLocked drops records outside the retention window and, if the
// log still exceeds the configured cap, drops the oldest excess records.
// Caller must hold c.mu.
func (c *Collector) cleanupLocked() {
	cutoff := c.now().Add(-c.retention)

	kept := c.records[:0]
	for _, r := range c.records {
		if r.at.After(cutoff) {
			kept = append(kept, r)
		}
	}
	c.records = kept

	if len(c.records) > c.maxCount {
		excess := len(c.records) - c.maxCount
		c.records = c.records[excess:]
	}
}

// Throughput summarizes recent completion rate.
type Throughput struct {
	CompletesPerMinute float64
	TokensPerMinute    float64
}

// Report is the strictly-derived snapshot returned by GetReport.
type Report struct {
	TotalMessages      int
	MessagesByPriority map[llmqueue.Priority]int
	OldestMessageAge   time.Duration
	AverageWaitTime    time.Duration
	Throughput         Throughput
}

// ReportOptions tunes GetReport's derivation.
type ReportOptions struct {
	// ApproximateThroughput reproduces a messagesPerMinute*1000
	// approximation for TokensPerMinute instead of summing actual tokens
	// consumed, for parity with callers that estimate rather than meter.
	ApproximateThroughput bool
}

// GetReport derives a Report strictly from the retained event window; it
// holds no state of its own beyond the event log.
func (c *Collector) GetReport(opts ReportOptions) Report {
	c.mu.Lock()
	records := make([]record, len(c.records))
	copy(records, c.records)
	now := c.now()
	retention := c.retention
	c.mu.Unlock()

	cutoff := now.Add(-retention)
	minuteAgo := now.Add(-time.Minute)

	report := Report{MessagesByPriority: make(map[llmqueue.Priority]int)}

	enqueuedAt := make(map[string]time.Time)
	var oldestEnqueue time.Time

	var totalWait time.Duration
	var waitSamples int

	var completesLastMinute int
	var tokensLastMinute int

	for _, r := range records {
		if r.at.Before(cutoff) {
			continue
		}

		switch r.kind {
		case kindEnqueue:
			report.TotalMessages++
			report.MessagesByPriority[r.priority]++
			enqueuedAt[r.messageID] = r.at
			if oldestEnqueue.IsZero() || r.at.Before(oldestEnqueue) {
				oldestEnqueue = r.at
			}
		case kindComplete:
			if t0, ok := enqueuedAt[r.messageID]; ok {
				totalWait += r.at.Sub(t0)
				waitSamples++
			}
			if r.at.After(minuteAgo) {
				completesLastMinute++
				tokensLastMinute += r.tokensUsed
			}
		}
	}

	if !oldestEnqueue.IsZero() {
		report.OldestMessageAge = now.Sub(oldestEnqueue)
	}
	if waitSamples > 0 {
		report.AverageWaitTime = totalWait / time.Duration(waitSamples)
	}

	report.Throughput.CompletesPerMinute = float64(completesLastMinute)
	if opts.ApproximateThroughput {
		report.Throughput.TokensPerMinute = float64(completesLastMinute) * 1000
	} else {
		report.Throughput.TokensPerMinute = float64(tokensLastMinute)
	}

	return report
}
