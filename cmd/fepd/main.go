// SPDX-License-Identifier: MIT

// Command fepd is the Frigate event processor daemon: it consumes Frigate
// detection events from MQTT, runs them through the admission engine, and
// republishes the surviving alerts.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rgregg/frigate-event-processor/internal/api"
	"github.com/rgregg/frigate-event-processor/internal/artifacts"
	"github.com/rgregg/frigate-event-processor/internal/config"
	"github.com/rgregg/frigate-event-processor/internal/daemon"
	"github.com/rgregg/frigate-event-processor/internal/engine"
	"github.com/rgregg/frigate-event-processor/internal/health"
	feplog "github.com/rgregg/frigate-event-processor/internal/log"
	"github.com/rgregg/frigate-event-processor/internal/mqtt"
	"github.com/rgregg/frigate-event-processor/internal/publish"
	"github.com/rgregg/frigate-event-processor/internal/telemetry"
	"github.com/rgregg/frigate-event-processor/internal/version"
)

// exitConfig is EX_CONFIG from sysexits: the configuration was unusable.
const exitConfig = 78

func main() {
	os.Exit(run())
}

func run() int {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "config.yaml", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fepd %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		return 0
	}

	// Safe defaults until the config file is parsed.
	feplog.Configure(feplog.Config{
		Level:   "info",
		Service: "fepd",
		Version: version.Version,
	})
	logger := feplog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := *configPath
	if _, err := os.Stat(path); err != nil && path == "config.yaml" {
		// Default path absent: ENV-only configuration.
		path = ""
	}

	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str(feplog.FieldPath, path).
			Msg("failed to load configuration")
		return exitConfig
	}

	logOutput, closeLog, err := logWriter(cfg.Logging)
	if err != nil {
		logger.Error().Err(err).Str("event", "log.open_failed").Msg("failed to open log file")
		return exitConfig
	}
	defer closeLog()
	feplog.Reconfigure(feplog.Config{
		Level:   cfg.Logging.Level,
		Output:  logOutput,
		Service: "fepd",
		Version: version.Version,
	})
	logger = feplog.WithComponent("main")
	logger.Info().
		Str("event", "config.loaded").
		Str(feplog.FieldPath, path).
		Str(feplog.FieldBroker, cfg.MQTT.BrokerURL()).
		Int("camera_rules", len(cfg.Alerts)).
		Msg("configuration loaded")

	tele, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "fepd",
		ServiceVersion: version.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Error().Err(err).Str("event", "telemetry.setup_failed").Msg("failed to initialize tracing")
		return exitConfig
	}
	defer func() {
		if err := tele.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Str("event", "telemetry.shutdown_failed").Msg("trace flush failed")
		}
	}()

	holder := config.NewConfigHolder(cfg, loader, path)
	defer holder.Stop()

	broker := mqtt.New(mqtt.Config{
		BrokerURL:   cfg.MQTT.BrokerURL(),
		ClientID:    mqtt.NewClientID(),
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		StatusTopic: cfg.MQTT.StatusTopic(),
	})

	var confirmer engine.Confirmer
	if cfg.Frigate.VerifyArtifacts && cfg.Frigate.BaseURL() != "" {
		confirmer = artifacts.NewClient(cfg.Frigate.BaseURL())
	}

	eng := engine.New(cfg, engine.Options{
		Publisher: publish.New(broker, cfg.MQTT.AlertTopic),
		Confirmer: confirmer,
	})

	var apiServer *api.Server
	if cfg.API.Enabled {
		hm := health.NewManager(version.Version)
		hm.RegisterChecker(health.NewBrokerChecker(broker))
		hm.RegisterChecker(health.NewEngineChecker(eng))
		apiServer = api.New(api.Options{
			Listen:  cfg.API.Listen,
			Engine:  eng,
			Health:  hm,
			Config:  holder.Get,
			Version: version.Version,
		})
	}

	app := daemon.NewApp(daemon.Deps{
		Holder: holder,
		Engine: eng,
		Broker: broker,
		API:    apiServer,
	})
	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
		return 1
	}

	logger.Info().Str("event", "daemon.stopped").Msg("clean shutdown")
	return 0
}

// logWriter builds the log destination: stdout, plus the configured file.
func logWriter(cfg config.LoggingConfig) (io.Writer, func(), error) {
	if cfg.Path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G304 -- operator-chosen path
	if err != nil {
		return nil, nil, err
	}
	return io.MultiWriter(os.Stdout, f), func() { _ = f.Close() }, nil
}
