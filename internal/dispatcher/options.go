// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"fmt"
	"time"

	"github.com/xmidt-org/retry"

	"github.com/Aid-On/llm-queue-dispatcher/internal/metrics"
	"github.com/Aid-On/llm-queue-dispatcher/internal/scoring"
)

// WithBufferSize sets the prefetch buffer's maximum capacity.
func WithBufferSize(n int) Option {
	return optionFunc(func(d *Dispatcher) error {
		d.bufferSize = n
		return nil
	})
}

// WithPrefetch starts the periodic prefetch worker when the Dispatcher
// is started via Start.
func WithPrefetch(enabled bool) Option {
	return optionFunc(func(d *Dispatcher) error {
		d.enablePrefetch = enabled
		return nil
	})
}

// WithPrefetchInterval sets the period between prefetch ticks.
func WithPrefetchInterval(d time.Duration) Option {
	return optionFunc(func(disp *Dispatcher) error {
		disp.prefetchInterval = d
		return nil
	})
}

// WithVisibilityTimeout sets the visibility window granted to messages
// pulled into the buffer or returned via direct fetch.
func WithVisibilityTimeout(d time.Duration) Option {
	return optionFunc(func(disp *Dispatcher) error {
		disp.visibilityTimeout = d
		return nil
	})
}

// WithMaxCandidatesToEvaluate caps how many buffered candidates are
// scored per Dequeue call.
func WithMaxCandidatesToEvaluate(n int) Option {
	return optionFunc(func(d *Dispatcher) error {
		d.maxCandidatesToEvaluate = n
		return nil
	})
}

// WithMinScoreThreshold sets the floor a winning candidate's total score
// must clear to be selected.
func WithMinScoreThreshold(threshold float64) Option {
	return optionFunc(func(d *Dispatcher) error {
		d.minScoreThreshold = threshold
		return nil
	})
}

// WithWeights overrides the default score weight profile.
func WithWeights(w scoring.Weights) Option {
	return optionFunc(func(d *Dispatcher) error {
		d.weights = w
		return nil
	})
}

// WithCustomScorer registers an additive custom scorer.
func WithCustomScorer(cs scoring.CustomScorer) Option {
	return optionFunc(func(d *Dispatcher) error {
		if cs == nil {
			return fmt.Errorf("%w: nil CustomScorer", ErrInvalidInput)
		}
		d.customScorers = append(d.customScorers, cs)
		return nil
	})
}

// WithReleaseUnpickedCandidates opts into immediately expiring the
// visibility of direct-fetch candidates that were not selected, instead
// of leaving them to expire naturally.
func WithReleaseUnpickedCandidates(release bool) Option {
	return optionFunc(func(d *Dispatcher) error {
		d.releaseUnpickedCandidates = release
		return nil
	})
}

// WithMetricsCollector supplies a pre-configured metrics.Collector
// instead of letting New create one with default retention.
func WithMetricsCollector(c *metrics.Collector) Option {
	return optionFunc(func(d *Dispatcher) error {
		if c == nil {
			return fmt.Errorf("%w: nil Collector", ErrInvalidInput)
		}
		d.metrics = c
		return nil
	})
}

// WithRetryPolicy overrides the backoff used to pace retries of a failed
// prefetch tick.
func WithRetryPolicy(pf retry.PolicyFactory) Option {
	return optionFunc(func(d *Dispatcher) error {
		d.retryPolicyFactory = pf
		return nil
	})
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return optionFunc(func(d *Dispatcher) error {
		if l == nil {
			return fmt.Errorf("%w: nil Logger", ErrInvalidInput)
		}
		d.logger = l
		return nil
	})
}

// withClock overrides the dispatcher's notion of "now"; unexported
// because it exists for this module's own tests only.
func withClock(now func() time.Time) Option {
	return optionFunc(func(d *Dispatcher) error {
		d.now = now
		return nil
	})
}
