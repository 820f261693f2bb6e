// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goschtalt/goschtalt"
	"github.com/xmidt-org/retry"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap/zapcore"
	"gopkg.in/dealancer/validate.v2"
)

// Config is the configuration for dispatcherd.
type Config struct {
	Logger    sallust.Config
	Queue     QueueConfig
	Prefetch  PrefetchConfig
	Scoring   ScoringConfig
	RateLimit RateLimitConfig
	HTTP      HTTPConfig
}

// QueueConfig controls the buffer and delivery semantics shared by every
// preset.
type QueueConfig struct {
	// BufferSize is the prefetch buffer's maximum capacity.
	BufferSize int
	// VisibilityTimeout is the window a dequeued message stays hidden
	// before becoming redeliverable.
	VisibilityTimeout time.Duration
	// MaxCandidatesToEvaluate caps how many buffered candidates are
	// scored per Dequeue call.
	MaxCandidatesToEvaluate int
	// MinScoreThreshold is the floor a winning candidate's total score
	// must clear to be selected.
	MinScoreThreshold float64
	// ReleaseUnpickedCandidates opts into immediately releasing
	// direct-fetch candidates that lost the selection instead of
	// leaving them to expire naturally.
	ReleaseUnpickedCandidates bool
}

// PrefetchConfig controls the background prefetch worker.
type PrefetchConfig struct {
	// Enabled starts the prefetch worker when the app starts.
	Enabled bool
	// Interval is the period between prefetch ticks.
	Interval time.Duration
	// RetryPolicy paces retries of a failed prefetch tick.
	RetryPolicy retry.Config
}

// ScoringConfig selects the named weight preset applied at startup.
// Valid values: "default", "simple-priority", "throughput", "fair".
type ScoringConfig struct {
	Preset string
}

// RateLimitConfig configures the demo rate limiter wired into the app.
// dispatcherd ships only the fixed-answer limiters in internal/ratelimiter;
// a production deployment supplies its own RateLimiter implementation.
type RateLimitConfig struct {
	RPM int
	TPM int
}

// HTTPConfig controls the read-only metrics introspection server.
type HTTPConfig struct {
	// Disable turns off the HTTP server entirely.
	Disable bool
	// ListenAddress is the address the metrics server listens on.
	ListenAddress string
}

// provideConfig collects and processes the configuration files and env
// vars and produces a configuration object.
func provideConfig(cli *CLI) (*goschtalt.Config, error) {
	gs, err := goschtalt.New(
		goschtalt.StdCfgLayout(applicationName, cli.Files...),
		goschtalt.ConfigIs("two_words"),
		goschtalt.DefaultUnmarshalOptions(
			goschtalt.WithValidator(
				goschtalt.ValidatorFunc(validate.Validate),
			),
		),

		goschtalt.AddValue("built-in", goschtalt.Root, defaultConfig,
			goschtalt.AsDefault()),
	)
	if err != nil {
		return nil, err
	}

	if cli.Show {
		fmt.Fprintln(os.Stdout, gs.Explain().String())

		out, err := gs.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Fprintln(os.Stdout, "## Final Configuration\n---\n"+string(out))
		}

		os.Exit(0)
	}

	var tmp Config
	if err := gs.Unmarshal(goschtalt.Root, &tmp); err != nil {
		fmt.Fprintln(os.Stderr, "There is a critical error in the configuration.")
		fmt.Fprintln(os.Stderr, "Run with -s/--show to see the configuration.")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(0)
	}

	return gs, nil
}

// -----------------------------------------------------------------------------
// Keep the default configuration at the bottom of the file so it is easy to
// see what the default configuration is.
// -----------------------------------------------------------------------------

var defaultConfig = Config{
	Queue: QueueConfig{
		BufferSize:              50,
		VisibilityTimeout:       30 * time.Second,
		MaxCandidatesToEvaluate: 20,
		MinScoreThreshold:       0.1,
	},
	Prefetch: PrefetchConfig{
		Enabled:  false,
		Interval: 5 * time.Second,
		RetryPolicy: retry.Config{
			Interval:    time.Second,
			Multiplier:  2.0,
			Jitter:      1.0 / 3.0,
			MaxInterval: 30 * time.Second,
		},
	},
	Scoring: ScoringConfig{
		Preset: "default",
	},
	RateLimit: RateLimitConfig{
		RPM: 60,
		TPM: 100_000,
	},
	HTTP: HTTPConfig{
		ListenAddress: ":8080",
	},
	Logger: sallust.Config{
		EncoderConfig: sallust.EncoderConfig{
			TimeKey:        "T",
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      "C",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    "capital",
			EncodeTime:     "RFC3339Nano",
			EncodeDuration: "string",
			EncodeCaller:   "short",
		},
	},
}
