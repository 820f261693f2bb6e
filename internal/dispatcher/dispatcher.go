// SPDX-License-Identifier: Apache-2.0

// Package dispatcher coordinates the priority buffer, the score
// calculator and a caller-supplied rate limiter into a single admission
// and delivery surface over a storage.Queue, grounded on
// internal/wrphandlers/qos.Handler's Start/Stop/run lifecycle and
// internal/pubsub.PubSub's ownership of the mutable structures it
// mutates.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xmidt-org/retry"

	llmqueue "github.com/Aid-On/llm-queue-dispatcher"
	"github.com/Aid-On/llm-queue-dispatcher/internal/buffer"
	"github.com/Aid-On/llm-queue-dispatcher/internal/metrics"
	"github.com/Aid-On/llm-queue-dispatcher/internal/ratelimiter"
	"github.com/Aid-On/llm-queue-dispatcher/internal/scoring"
	"github.com/Aid-On/llm-queue-dispatcher/internal/storage"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrMisconfigured = errors.New("misconfigured dispatcher")
	ErrRateLimiter   = errors.New("rate limiter error")
)

// directFetchMinBuffer is the buffer-size floor below which Dequeue
// attempts a best-effort refill before collecting candidates.
const directFetchMinBuffer = 10

// directFetchBatch is how many messages a direct storage Dequeue asks for
// when the buffer produced no candidates and prefetch is disabled.
const directFetchBatch = 10

// Logger is the capability set the dispatcher core logs through. A no-op
// default is used unless WithLogger supplies one; cmd/dispatcherd adapts a
// *zap.SugaredLogger to it.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher is the queue's admission and delivery core. It owns the
// prefetch buffer and the in-flight index; storage is expected to
// provide its own internal concurrency safety.
type Dispatcher struct {
	storage storage.Queue
	buf     *buffer.Buffer
	metrics *metrics.Collector
	logger  Logger
	now     func() time.Time

	bufferSize                int
	enablePrefetch            bool
	prefetchInterval          time.Duration
	visibilityTimeout         time.Duration
	maxCandidatesToEvaluate   int
	minScoreThreshold         float64
	releaseUnpickedCandidates bool
	weights                   scoring.Weights
	customScorers             []scoring.CustomScorer
	retryPolicyFactory        retry.PolicyFactory

	inflightMu sync.Mutex
	inflight   map[string]llmqueue.InFlightMessage

	lifecycleMu sync.Mutex
	wg          sync.WaitGroup
	shutdown    context.CancelFunc
}

// Option is a functional option type for Dispatcher.
type Option interface {
	apply(*Dispatcher) error
}

type optionFunc func(*Dispatcher) error

func (f optionFunc) apply(d *Dispatcher) error { return f(d) }

// New creates a Dispatcher over the given storage backend.
func New(q storage.Queue, opts ...Option) (*Dispatcher, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: nil storage", ErrInvalidInput)
	}

	d := &Dispatcher{
		storage:                 q,
		logger:                  noopLogger{},
		now:                     time.Now,
		bufferSize:              50,
		prefetchInterval:        5 * time.Second,
		visibilityTimeout:       30 * time.Second,
		maxCandidatesToEvaluate: 20,
		minScoreThreshold:       0.1,
		weights:                 scoring.DefaultWeights(),
		retryPolicyFactory: retry.Config{
			Interval:    time.Second,
			Multiplier:  2.0,
			Jitter:      1.0 / 3.0,
			MaxInterval: 30 * time.Second,
		},
		inflight: make(map[string]llmqueue.InFlightMessage),
	}

	opts = append(opts,
		validateBufferSize(),
		validatePrefetchInterval(),
		validateMaxCandidatesToEvaluate(),
		validateMinScoreThreshold(),
		validateRetryPolicy(),
	)

	for _, opt := range opts {
		if opt != nil {
			if err := opt.apply(d); err != nil {
				return nil, err
			}
		}
	}

	d.buf = buffer.New(d.bufferSize)
	if d.metrics == nil {
		d.metrics = metrics.New()
	}

	return d, nil
}

// Enqueue forwards req to storage and records an enqueue event. No
// scoring happens here.
func (d *Dispatcher) Enqueue(ctx context.Context, req llmqueue.LLMRequest) (llmqueue.QueueMessage, error) {
	msg, err := d.storage.Enqueue(ctx, req)
	if err != nil {
		return llmqueue.QueueMessage{}, err
	}

	d.metrics.RecordEnqueue(msg.ID, msg.Body.Priority)
	return msg, nil
}

// BatchEnqueue uses the storage adapter's batch capability when
// available, falling back to sequential Enqueue calls otherwise.
func (d *Dispatcher) BatchEnqueue(ctx context.Context, reqs []llmqueue.LLMRequest) ([]llmqueue.QueueMessage, error) {
	if batcher, ok := d.storage.(storage.BatchEnqueuer); ok {
		msgs, err := batcher.BatchEnqueue(ctx, reqs)
		if err != nil {
			return nil, err
		}
		for _, msg := range msgs {
			d.metrics.RecordEnqueue(msg.ID, msg.Body.Priority)
		}
		return msgs, nil
	}

	msgs := make([]llmqueue.QueueMessage, 0, len(reqs))
	for _, req := range reqs {
		msg, err := d.Enqueue(ctx, req)
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// candidate is a message under consideration during one Dequeue call,
// tagged with where it came from so the winner can be cleaned up and the
// losers disposed of correctly.
type candidate struct {
	message    llmqueue.QueueMessage
	fromBuffer bool
}

// Dequeue collects candidates, scores the ones the limiter admits, and
// hands the winner to the caller as a ProcessableMessage. It never
// returns an error for "nothing available" — that case is (nil, nil).
func (d *Dispatcher) Dequeue(ctx context.Context, limiter ratelimiter.RateLimiter) (*ProcessableMessage, error) {
	if limiter == nil {
		return nil, fmt.Errorf("%w: nil RateLimiter", ErrInvalidInput)
	}

	if !d.enablePrefetch && d.buf.Size() < directFetchMinBuffer {
		d.refillBuffer(ctx, d.bufferSize-d.buf.Size())
	}

	entries := d.buf.PeekByPriority(d.maxCandidatesToEvaluate)
	candidates := make([]candidate, len(entries))
	for i, e := range entries {
		candidates[i] = candidate{message: e.Message, fromBuffer: true}
	}

	usedDirectFetch := false
	if len(candidates) == 0 && !d.enablePrefetch {
		msgs, err := d.storage.Dequeue(ctx, directFetchBatch, int(d.visibilityTimeout/time.Second))
		if err != nil {
			d.logger.Warn("direct fetch failed", "error", err)
		} else {
			usedDirectFetch = true
			for _, msg := range msgs {
				candidates = append(candidates, candidate{message: msg})
			}
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	limiterMetrics, err := limiter.GetMetrics()
	if err != nil {
		d.logger.Warn("rate limiter metrics unavailable", "error", err)
	}

	sctx := scoring.Context{
		RateLimiter: limiterMetrics,
		Queue:       d.queueMetricsSnapshot(),
		CurrentTime: d.now(),
	}

	winner, score := d.selectWinner(candidates, limiter, sctx)

	if winner == nil || score.Total < d.minScoreThreshold {
		if usedDirectFetch && d.releaseUnpickedCandidates {
			d.releaseCandidates(ctx, candidates, nil)
		}
		return nil, nil
	}

	if winner.fromBuffer {
		d.buf.Remove(winner.message.ID)
	} else if usedDirectFetch && d.releaseUnpickedCandidates {
		d.releaseCandidates(ctx, candidates, winner)
	}

	d.registerInFlight(winner.message, limiter)
	d.metrics.RecordDequeue(winner.message.ID, winner.message.Body.Priority)

	return newProcessableMessage(d, winner.message, score, d.now()), nil
}

// selectWinner implements the optimal-selection algorithm: discard
// candidates the limiter denies, score the rest, and keep the single
// maximum by Total. A strict '>' comparator over candidates already
// ordered (priority order for buffered candidates, storage return order
// for direct-fetch candidates) yields "first-seen among equal scores"
// without extra bookkeeping.
func (d *Dispatcher) selectWinner(candidates []candidate, limiter ratelimiter.RateLimiter, sctx scoring.Context) (*candidate, llmqueue.MessageScore) {
	var winner *candidate
	var winnerScore llmqueue.MessageScore

	for i := range candidates {
		c := &candidates[i]

		decision, err := limiter.CanProcess(c.message.Body.TokenInfo.Estimated)
		if err != nil {
			d.logger.Warn("rate limiter denied candidate due to error", "error", err, "messageId", c.message.ID)
			continue
		}
		if !decision.Allowed {
			continue
		}

		score := scoring.Calculate(scoring.CandidateFor(c.message), sctx, d.weights, d.customScorers)
		if winner == nil || score.Total > winnerScore.Total {
			winner = c
			winnerScore = score
		}
	}

	return winner, winnerScore
}

// releaseCandidates immediately expires the visibility of every
// direct-fetch candidate other than winner, implementing the opt-in
// alternative to the default at-least-once behavior: unpicked candidates
// become visible again right away instead of waiting out their full
// visibility timeout.
func (d *Dispatcher) releaseCandidates(ctx context.Context, candidates []candidate, winner *candidate) {
	for i := range candidates {
		c := &candidates[i]
		if c.fromBuffer || c == winner {
			continue
		}
		if err := d.storage.UpdateVisibilityTimeout(ctx, c.message.Attributes.ReceiptHandle, 0); err != nil {
			d.logger.Warn("failed to release unpicked candidate", "error", err, "messageId", c.message.ID)
		}
	}
}

func (d *Dispatcher) registerInFlight(msg llmqueue.QueueMessage, limiter ratelimiter.RateLimiter) {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	d.inflight[msg.Attributes.ReceiptHandle] = llmqueue.InFlightMessage{
		Envelope:  msg,
		StartedAt: d.now(),
		Limiter:   limiter,
	}
}

func (d *Dispatcher) removeInFlight(receiptHandle string) (llmqueue.InFlightMessage, bool) {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	entry, ok := d.inflight[receiptHandle]
	if ok {
		delete(d.inflight, receiptHandle)
	}
	return entry, ok
}

// refillBuffer pulls up to n visible messages from storage into the
// buffer, best effort: errors are logged and swallowed, matching the
// "pull messages from storage into the buffer (best effort)" semantics
// of the direct-fetch compatibility path.
func (d *Dispatcher) refillBuffer(ctx context.Context, n int) {
	if n <= 0 {
		return
	}

	msgs, err := d.storage.Dequeue(ctx, n, int(d.visibilityTimeout/time.Second))
	if err != nil {
		d.logger.Warn("buffer refill failed", "error", err)
		return
	}

	for _, msg := range msgs {
		if !d.buf.Add(msg, msg.Body.Priority, nil) {
			// Buffer saturated against higher-priority occupants; let the
			// pulled message's visibility timeout expire naturally.
			d.logger.Debug("buffer refill rejected message", "messageId", msg.ID)
		}
	}
}

// queueMetricsSnapshot composes the metrics report into the shape the
// score calculator's custom scorers consume.
func (d *Dispatcher) queueMetricsSnapshot() scoring.QueueMetrics {
	report := d.metrics.GetReport(metrics.ReportOptions{})
	return scoring.QueueMetrics{
		TotalMessages:    report.TotalMessages,
		OldestMessageAge: report.OldestMessageAge,
		AverageWaitTime:  report.AverageWaitTime,
		ThroughputPerMin: report.Throughput.CompletesPerMinute,
	}
}

// InFlightSnapshot describes one currently in-flight message.
type InFlightSnapshot struct {
	ID        string
	Priority  llmqueue.Priority
	StartedAt time.Time
	Elapsed   time.Duration
}

// QueueMetricsReport composes storage attributes, the metrics report,
// the in-flight snapshot, and buffer utilization.
type QueueMetricsReport struct {
	Storage           storage.Attributes
	Report            metrics.Report
	InFlight          []InFlightSnapshot
	BufferSize        int
	BufferCapacity    int
	BufferUtilization float64
}

// GetQueueMetrics composes a full operational snapshot of the queue.
func (d *Dispatcher) GetQueueMetrics(ctx context.Context) (QueueMetricsReport, error) {
	var attrs storage.Attributes
	if getter, ok := d.storage.(storage.AttributeGetter); ok {
		a, err := getter.GetQueueAttributes(ctx)
		if err != nil {
			return QueueMetricsReport{}, err
		}
		attrs = a
	} else {
		count, err := d.storage.GetApproximateMessageCount(ctx)
		if err != nil {
			return QueueMetricsReport{}, err
		}
		attrs = storage.Attributes{ApproximateVisible: count}
	}

	now := d.now()
	d.inflightMu.Lock()
	inflight := make([]InFlightSnapshot, 0, len(d.inflight))
	for _, entry := range d.inflight {
		inflight = append(inflight, InFlightSnapshot{
			ID:        entry.Envelope.ID,
			Priority:  entry.Envelope.Body.Priority,
			StartedAt: entry.StartedAt,
			Elapsed:   now.Sub(entry.StartedAt),
		})
	}
	d.inflightMu.Unlock()

	size := d.buf.Size()
	utilization := 0.0
	if d.bufferSize > 0 {
		utilization = float64(size) / float64(d.bufferSize)
	}

	return QueueMetricsReport{
		Storage:           attrs,
		Report:            d.metrics.GetReport(metrics.ReportOptions{}),
		InFlight:          inflight,
		BufferSize:        size,
		BufferCapacity:    d.bufferSize,
		BufferUtilization: utilization,
	}, nil
}

// Purge stops the prefetch worker, clears in-flight accounting and the
// buffer, and purges storage if it supports Purger.
func (d *Dispatcher) Purge(ctx context.Context) (int, error) {
	d.Stop()

	d.inflightMu.Lock()
	d.inflight = make(map[string]llmqueue.InFlightMessage)
	d.inflightMu.Unlock()

	d.buf.Clear()

	purger, ok := d.storage.(storage.Purger)
	if !ok {
		return 0, nil
	}
	return purger.Purge(ctx)
}
