// Package daemon owns the long-lived runtime: the config watcher and
// reload wiring, the broker session, the admission engine loop, and the
// HTTP API server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rgregg/frigate-event-processor/internal/api"
	"github.com/rgregg/frigate-event-processor/internal/config"
	"github.com/rgregg/frigate-event-processor/internal/engine"
	"github.com/rgregg/frigate-event-processor/internal/event"
	feplog "github.com/rgregg/frigate-event-processor/internal/log"
	"github.com/rgregg/frigate-event-processor/internal/metrics"
	"github.com/rgregg/frigate-event-processor/internal/mqtt"
)

// ErrMissingEngine guards against wiring mistakes in main.
var ErrMissingEngine = errors.New("daemon: no engine configured")

// Deps carries the subsystems the app orchestrates. Engine and Broker are
// required; the rest is optional.
type Deps struct {
	Holder *config.ConfigHolder
	Engine *engine.Engine
	Broker *mqtt.Client
	API    *api.Server
}

// App runs all background subsystems until the context is cancelled or a
// fatal error occurs.
type App struct {
	logger       zerolog.Logger
	deps         Deps
	reloadSignal os.Signal

	// malformed-frame logging is throttled so a misbehaving publisher
	// cannot flood the log sink
	malformedLog *rate.Limiter
}

// NewApp creates the orchestrator.
func NewApp(deps Deps) *App {
	return &App{
		logger:       feplog.WithComponent("daemon"),
		deps:         deps,
		reloadSignal: syscall.SIGHUP,
		malformedLog: rate.NewLimiter(rate.Limit(1), 5),
	}
}

// Run blocks until ctx is cancelled. Subsystem failures cancel the group.
func (a *App) Run(ctx context.Context) error {
	if a.deps.Engine == nil {
		return ErrMissingEngine
	}

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup must not fail on it.
	if a.deps.Holder != nil {
		if err := a.deps.Holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		a.wireReloads(ctx, g)
		a.wireReloadSignal(ctx, g)
	}

	g.Go(func() error {
		return a.deps.Engine.Run(ctx)
	})

	if a.deps.Broker != nil {
		if err := a.startIngress(ctx); err != nil {
			return fmt.Errorf("mqtt setup: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			a.deps.Broker.Close()
			return nil
		})
	}

	if a.deps.API != nil {
		g.Go(func() error {
			return a.deps.API.Run(ctx)
		})
	}

	return g.Wait()
}

// wireReloads applies every accepted config reload to the engine.
func (a *App) wireReloads(ctx context.Context, g *errgroup.Group) {
	applyCh := make(chan config.AppConfig, 1)
	a.deps.Holder.RegisterListener(applyCh)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg := <-applyCh:
				a.deps.Engine.ApplyConfig(cfg)
			}
		}
	})
}

// wireReloadSignal triggers a manual reload on SIGHUP.
func (a *App) wireReloadSignal(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		hupCh := make(chan os.Signal, 1)
		signal.Notify(hupCh, a.reloadSignal)
		defer signal.Stop(hupCh)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hupCh:
				a.logger.Info().
					Str("event", "config.reload_signal").
					Str("signal", a.reloadSignal.String()).
					Msg("received reload signal, reloading config")
				if err := a.deps.Holder.Reload(context.Background()); err != nil {
					a.logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("config reload failed")
				}
			}
		}
	})
}

// startIngress connects the broker session and routes the listen topic
// into the engine. An unreachable broker at startup is fatal.
func (a *App) startIngress(ctx context.Context) error {
	if err := a.deps.Broker.Connect(ctx); err != nil {
		return err
	}
	topic := a.deps.Holder.Get().MQTT.ListenTopic
	return a.deps.Broker.Subscribe(topic, a.ingest(ctx))
}

// ingest decodes one inbound message and submits it to the engine.
// Malformed payloads are dropped, never fatal.
func (a *App) ingest(ctx context.Context) mqtt.Handler {
	return func(topic string, payload []byte) {
		frame, err := event.Decode(payload)
		if err != nil {
			metrics.RecordMalformedFrame()
			if a.malformedLog.Allow() {
				a.logger.Warn().
					Err(err).
					Str(feplog.FieldTopic, topic).
					Str("event", "ingress.malformed_frame").
					Msg("dropping undecodable message")
			}
			return
		}
		a.deps.Engine.Submit(ctx, frame)
	}
}
