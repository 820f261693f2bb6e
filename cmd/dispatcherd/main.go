// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/alecthomas/kong"
	"github.com/goschtalt/goschtalt"
	_ "github.com/goschtalt/yaml-decoder"
	_ "github.com/goschtalt/yaml-encoder"
	"github.com/xmidt-org/sallust"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Aid-On/llm-queue-dispatcher/internal/dispatcher"
	"github.com/Aid-On/llm-queue-dispatcher/internal/ratelimiter"
	"github.com/Aid-On/llm-queue-dispatcher/internal/storage"
	"github.com/Aid-On/llm-queue-dispatcher/presets"
)

const applicationName = "dispatcherd"

// These match what goreleaser provides.
var (
	commit  = "undefined"
	version = "undefined"
	date    = "undefined"
	builtBy = "undefined"
)

// CLI is the structure used to capture the command line arguments.
type CLI struct {
	Dev   bool     `optional:"" short:"d" help:"Run in development mode."`
	Show  bool     `optional:"" short:"s" help:"Show the configuration and exit."`
	Files []string `optional:"" short:"f" help:"Specific configuration files or directories."`
}

// provideCLI handles the CLI processing and returns the processed input.
func provideCLI(args []string) (*CLI, error) {
	var cli CLI

	parser, err := kong.New(&cli,
		kong.Name(applicationName),
		kong.Description("The LLM queue dispatcher daemon.\n"+
			fmt.Sprintf("\tVersion:  %s\n", version)+
			fmt.Sprintf("\tDate:     %s\n", date)+
			fmt.Sprintf("\tCommit:   %s\n", commit)+
			fmt.Sprintf("\tBuilt By: %s\n", builtBy),
		),
		kong.UsageOnError(),
	)
	if err != nil {
		return nil, err
	}

	if _, err := parser.Parse(args); err != nil {
		parser.FatalIfErrorf(err)
	}

	return &cli, nil
}

type loggerIn struct {
	fx.In
	CLI *CLI
	Cfg sallust.Config
}

// provideLogger creates the logger and configures it based on whether the
// program is in debug mode or normal mode.
func provideLogger(in loggerIn) (*zap.Logger, error) {
	if in.CLI.Dev {
		in.Cfg.EncoderConfig.EncodeLevel = "capitalColor"
		in.Cfg.EncoderConfig.EncodeTime = "RFC3339"
		in.Cfg.Level = "DEBUG"
		in.Cfg.Development = true
		in.Cfg.Encoding = "console"
		in.Cfg.OutputPaths = append(in.Cfg.OutputPaths, "stderr")
		in.Cfg.ErrorOutputPaths = append(in.Cfg.ErrorOutputPaths, "stderr")
	}

	return in.Cfg.Build()
}

// presetByName resolves the named scoring preset, falling back to the
// balanced default for an unrecognized name rather than failing startup.
func presetByName(name string) []dispatcher.Option {
	switch name {
	case "simple-priority":
		return presets.SimplePriority()
	case "throughput":
		return presets.Throughput()
	case "fair":
		return presets.Fair()
	default:
		return presets.Default()
	}
}

// provideDispatcher assembles a Dispatcher over an in-memory queue using
// the configured preset, buffer, visibility, and prefetch settings.
func provideDispatcher(cfg Config, log *zap.Logger) (*dispatcher.Dispatcher, error) {
	opts := append(presetByName(cfg.Scoring.Preset),
		dispatcher.WithBufferSize(cfg.Queue.BufferSize),
		dispatcher.WithVisibilityTimeout(cfg.Queue.VisibilityTimeout),
		dispatcher.WithMaxCandidatesToEvaluate(cfg.Queue.MaxCandidatesToEvaluate),
		dispatcher.WithMinScoreThreshold(cfg.Queue.MinScoreThreshold),
		dispatcher.WithReleaseUnpickedCandidates(cfg.Queue.ReleaseUnpickedCandidates),
		dispatcher.WithPrefetch(cfg.Prefetch.Enabled),
		dispatcher.WithPrefetchInterval(cfg.Prefetch.Interval),
		dispatcher.WithRetryPolicy(cfg.Prefetch.RetryPolicy),
		dispatcher.WithLogger(newZapAdapter(log.Named("dispatcher").Sugar())),
	)

	return dispatcher.New(storage.NewMemory(), opts...)
}

// provideRateLimiter wires the fixed-budget demo limiter. A real
// deployment supplies its own RateLimiter against its provider's actual
// account usage.
func provideRateLimiter(cfg Config) ratelimiter.RateLimiter {
	return ratelimiter.AlwaysAllow(cfg.RateLimit.RPM, cfg.RateLimit.TPM)
}

type lifecycleIn struct {
	fx.In
	LC      fx.Lifecycle
	Logger  *zap.Logger
	D       *dispatcher.Dispatcher
	Limiter ratelimiter.RateLimiter
	Cfg     Config
}

func registerLifecycle(in lifecycleIn) {
	logger := in.Logger.Named("lifecycle")
	var srv *http.Server
	consumeCtx, cancelConsume := context.WithCancel(context.Background())

	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			in.D.Start()
			go consumeLoop(consumeCtx, in.D, in.Limiter, logger.Named("consumer").Sugar())

			if !in.Cfg.HTTP.Disable {
				srv = newMetricsServer(in.Cfg.HTTP.ListenAddress, in.D)
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics server failed", zap.Error(err))
					}
				}()
			}

			logger.Info("dispatcherd started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelConsume()
			in.D.Stop()
			if srv != nil {
				return srv.Shutdown(ctx)
			}
			return nil
		},
	})
}

// dispatcherd is the main entry point for the program. It sets up the
// dependency injection framework and returns the app object.
func dispatcherd(args []string) (*fx.App, error) {
	var cli *CLI

	app := fx.New(
		fx.Supply(args),
		fx.Populate(&cli),

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		fx.Provide(
			provideCLI,
			provideConfig,
			provideLogger,
			provideDispatcher,
			provideRateLimiter,

			goschtalt.UnmarshalFunc[sallust.Config]("logger", goschtalt.Optional()),
			func(gs *goschtalt.Config) (Config, error) {
				var cfg Config
				err := gs.Unmarshal(goschtalt.Root, &cfg)
				return cfg, err
			},
		),

		fx.Invoke(registerLifecycle),
	)

	if err := app.Err(); err != nil {
		return nil, err
	}

	return app, nil
}

func main() {
	app, err := dispatcherd(os.Args[1:])
	if err == nil {
		app.Run()
		return
	}

	fmt.Fprintln(os.Stderr, err)
	os.Exit(-1)
}
