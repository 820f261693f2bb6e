// SPDX-License-Identifier: Apache-2.0

// Package presets collects named weight profiles built on the same
// dispatcher core, built on the functional options of
// internal/dispatcher/options.go: each preset is just a slice of
// dispatcher.Options a caller passes to dispatcher.New.
package presets

import (
	"github.com/Aid-On/llm-queue-dispatcher/internal/dispatcher"
	"github.com/Aid-On/llm-queue-dispatcher/internal/scoring"
)

// Default returns the balanced default weight profile. Equivalent to
// passing no weight-related options at all.
func Default() []dispatcher.Option {
	return []dispatcher.Option{
		dispatcher.WithWeights(scoring.DefaultWeights()),
	}
}

// SimplePriority weights almost entirely on priority, useful for queues
// where urgency should dominate every other signal.
func SimplePriority() []dispatcher.Option {
	return []dispatcher.Option{
		dispatcher.WithWeights(scoring.Weights{
			Priority:       0.80,
			Efficiency:     0.05,
			WaitTime:       0.10,
			Retry:          0.05,
			TokenFit:       0,
			ProcessingTime: 0,
		}),
	}
}

// Throughput favors token-budget efficiency over raw priority and turns
// on prefetch with a wide buffer and candidate pool, for workloads that
// want to maximize tokens processed per minute.
func Throughput() []dispatcher.Option {
	return []dispatcher.Option{
		dispatcher.WithWeights(scoring.Weights{
			Priority:       0.15,
			Efficiency:     0.35,
			WaitTime:       0.10,
			Retry:          0.05,
			TokenFit:       0.25,
			ProcessingTime: 0.10,
		}),
		dispatcher.WithPrefetch(true),
		dispatcher.WithBufferSize(200),
		dispatcher.WithMaxCandidatesToEvaluate(50),
	}
}

// Fair weights heavily on wait time, bounding how long any single
// message can be starved by a stream of higher-priority arrivals.
func Fair() []dispatcher.Option {
	return []dispatcher.Option{
		dispatcher.WithWeights(scoring.Weights{
			Priority:       0.20,
			Efficiency:     0.10,
			WaitTime:       0.50,
			Retry:          0.15,
			TokenFit:       0.05,
			ProcessingTime: 0,
		}),
	}
}

// Prefetching turns on the prefetch worker with a buffer of at least
// 100, inheriting whatever weight profile the caller composes it with
// rather than overriding it — apply this alongside another preset's
// options, e.g. append(presets.Fair(), presets.Prefetching(100)...).
func Prefetching(bufferSize int) []dispatcher.Option {
	if bufferSize < 100 {
		bufferSize = 100
	}

	return []dispatcher.Option{
		dispatcher.WithPrefetch(true),
		dispatcher.WithBufferSize(bufferSize),
	}
}
