// Package bootstrap is the wiring shared by every node program's main:
// parse flags, load config, build the logger, log a resource snapshot,
// optionally start the metrics endpoint, and drive the actor runtime over
// stdin/stdout. Grounded on ws/main.go's startup sequence, adapted for
// three small binaries instead of one server.
package bootstrap

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/melgorithm/gossip-broadcast/internal/actor"
	"github.com/melgorithm/gossip-broadcast/internal/config"
	"github.com/melgorithm/gossip-broadcast/internal/ioline"
	"github.com/melgorithm/gossip-broadcast/internal/logging"
	"github.com/melgorithm/gossip-broadcast/internal/metrics"
	"github.com/melgorithm/gossip-broadcast/internal/resourceinfo"
	"github.com/rs/zerolog"
)

// Env bundles everything Init wires up, for binaries (like broadcast)
// that need the loaded Config and a Metrics collector to build their
// actor.Factory before calling Drive.
type Env struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Collector
	Bridge  *ioline.Bridge
}

// Init parses flags, loads config, builds the logger, logs a resource
// snapshot, and starts the metrics endpoint if configured. component
// names this binary in logs (e.g. "broadcast").
func Init(component string) *Env {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: failed to load configuration: %v\n", component, err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.New(logging.Config{
		Level:     logging.Level(cfg.LogLevel),
		Format:    logging.Format(cfg.LogFormat),
		Component: component,
	})
	cfg.LogConfig(logger)
	resourceinfo.Capture().Log(logger)

	collector := metrics.NewCollector()

	if cfg.MetricsAddr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			logger.Info().Msg("received shutdown signal")
			cancel()
		}()
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error().Err(err).Msg("metrics server exited")
			}
		}()
	}

	return &Env{
		Config:  cfg,
		Logger:  logger,
		Metrics: collector,
		Bridge:  ioline.New(os.Stdin, os.Stdout, cfg.InputQueueSize, logger, collector),
	}
}

// Drive runs newHandler's actor to completion over env's bridge. It
// blocks until stdin closes or a fatal protocol/handler/io error occurs,
// then exits the process with a non-zero status in the error case.
func Drive[K any](env *Env, newHandler actor.Factory[K]) {
	if err := actor.Run(env.Bridge, env.Logger, newHandler, env.Metrics); err != nil {
		env.Logger.Error().Err(err).Msg("node terminated with error")
		os.Exit(1)
	}
	env.Logger.Info().Msg("node shut down cleanly")
}

// Run is the common-case helper for node programs that need no
// config-derived actor options: load the environment and drive
// newHandler directly.
func Run[K any](component string, newHandler actor.Factory[K]) {
	env := Init(component)
	Drive(env, newHandler)
}
