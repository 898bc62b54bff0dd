// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	feplog "github.com/rgregg/frigate-event-processor/internal/log"
)

// ConfigHolder holds configuration with atomic reloading capability.
// It provides thread-safe access to configuration and supports hot reloading
// from a file watcher, SIGHUP or a manual trigger via the API.
type ConfigHolder struct {
	mu         sync.RWMutex
	current    AppConfig
	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	// Reload notifications
	reloadMu        sync.RWMutex
	reloadListeners []chan<- AppConfig
}

// NewConfigHolder creates a new configuration holder with initial config.
func NewConfigHolder(initial AppConfig, loader *Loader, configPath string) *ConfigHolder {
	return &ConfigHolder{
		current:         initial,
		loader:          loader,
		configPath:      configPath,
		logger:          feplog.WithComponent("config"),
		reloadListeners: make([]chan<- AppConfig, 0),
	}
}

// Get returns the current configuration (thread-safe read).
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload reloads configuration from file and validates it.
// If loading or validation fails, the old configuration is kept and an
// error is returned, so a broken edit can never take down a running
// processor.
func (h *ConfigHolder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", "config.reload_failed").
			Msg("failed to load new configuration, keeping current")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.notifyListeners(newCfg)
	h.logChanges(oldCfg, newCfg)

	h.logger.Info().
		Str("event", "config.reload_success").
		Msg("configuration reloaded successfully")

	return nil
}

// StartWatcher starts watching the config file for changes.
// If configPath is empty, this is a no-op (config comes from ENV only).
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str("event", "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	h.watcher = watcher

	if err := watcher.Add(h.configPath); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}

	h.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", h.configPath).
		Msg("watching config file for changes")

	go h.watchLoop(ctx)

	return nil
}

// watchLoop is the main file watcher loop.
func (h *ConfigHolder) watchLoop(ctx context.Context) {
	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			if h.watcher != nil {
				_ = h.watcher.Close()
			}
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// Watch for Write and Create events (covers vim, nano, echo)
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				h.logger.Debug().
					Str("event", "config.file_changed").
					Str("op", event.Op.String()).
					Msg("config file changed")

				// Debounce: reset timer on each event
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := h.Reload(ctx); err != nil {
						h.logger.Error().
							Err(err).
							Str("event", "config.auto_reload_failed").
							Msg("automatic config reload failed")
					}
				})
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str("event", "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the config watcher (if running).
func (h *ConfigHolder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener registers a channel to receive config reload notifications.
// The channel will receive the new config whenever a reload succeeds.
// The caller is responsible for closing the channel.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// notifyListeners sends the new config to all registered listeners (non-blocking).
func (h *ConfigHolder) notifyListeners(newCfg AppConfig) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			// Skip if channel is full (non-blocking send)
			h.logger.Warn().
				Str("event", "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

// logChanges logs the differences between old and new configuration.
func (h *ConfigHolder) logChanges(old, newCfg AppConfig) {
	if old.MQTT.BrokerURL() != newCfg.MQTT.BrokerURL() {
		h.logger.Info().
			Str("old", old.MQTT.BrokerURL()).
			Str("new", newCfg.MQTT.BrokerURL()).
			Msg("config changed: mqtt broker")
	}
	if old.MQTT.ListenTopic != newCfg.MQTT.ListenTopic {
		h.logger.Info().
			Str("old", old.MQTT.ListenTopic).
			Str("new", newCfg.MQTT.ListenTopic).
			Msg("config changed: listen topic")
	}
	if old.MQTT.AlertTopic != newCfg.MQTT.AlertTopic {
		h.logger.Info().
			Str("old", old.MQTT.AlertTopic).
			Str("new", newCfg.MQTT.AlertTopic).
			Msg("config changed: alert topic")
	}
	if len(old.Alerts) != len(newCfg.Alerts) {
		h.logger.Info().
			Int("old", len(old.Alerts)).
			Int("new", len(newCfg.Alerts)).
			Msg("config changed: camera rules")
	}
	if old.Rules.MinEventDuration != newCfg.Rules.MinEventDuration {
		h.logger.Info().
			Dur("old", old.Rules.MinEventDuration).
			Dur("new", newCfg.Rules.MinEventDuration).
			Msg("config changed: min_event_duration")
	}
	if old.Rules.MaxEventDuration != newCfg.Rules.MaxEventDuration {
		h.logger.Info().
			Dur("old", old.Rules.MaxEventDuration).
			Dur("new", newCfg.Rules.MaxEventDuration).
			Msg("config changed: max_event_duration")
	}
	if old.Rules.CameraCooldown != newCfg.Rules.CameraCooldown ||
		old.Rules.LabelCooldown != newCfg.Rules.LabelCooldown {
		h.logger.Info().
			Dur("old_camera", old.Rules.CameraCooldown).
			Dur("new_camera", newCfg.Rules.CameraCooldown).
			Dur("old_label", old.Rules.LabelCooldown).
			Dur("new_label", newCfg.Rules.LabelCooldown).
			Msg("config changed: cooldowns")
	}
	if old.Tracking.Enabled != newCfg.Tracking.Enabled {
		h.logger.Info().
			Bool("old", old.Tracking.Enabled).
			Bool("new", newCfg.Tracking.Enabled).
			Msg("config changed: object tracking")
	}
}
