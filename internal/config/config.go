// Package config loads, validates and hot-reloads the processor
// configuration with precedence ENV > file > defaults.
package config

import (
	"fmt"
	"time"
)

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	MQTT      MQTTConfig
	Frigate   FrigateConfig
	Alerts    []CameraAlert
	Rules     AlertRules
	Tracking  TrackingConfig
	Logging   LoggingConfig
	API       APIConfig
	Telemetry TelemetryConfig
}

// MQTTConfig describes the broker session for ingress and egress.
type MQTTConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	ListenTopic string
	AlertTopic  string
}

// BrokerURL returns the paho broker URL for this configuration.
func (m MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", m.Host, m.Port)
}

// StatusTopic returns the retained presence topic derived from the alert topic.
func (m MQTTConfig) StatusTopic() string {
	return m.AlertTopic + "/status"
}

// FrigateConfig describes the Frigate HTTP API used for artifact URLs
// and optional reachability confirmation before publishing.
type FrigateConfig struct {
	Host            string
	Port            int
	SSL             bool
	VerifyArtifacts bool
}

// BaseURL returns the Frigate HTTP base URL, or "" when no host is configured.
func (f FrigateConfig) BaseURL() string {
	if f.Host == "" {
		return ""
	}
	scheme := "http"
	if f.SSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, f.Host, f.Port)
}

// ZoneFilter scopes a zone condition to a set of labels. An empty or
// ["*"] label list matches every label.
type ZoneFilter struct {
	Zone   string
	Labels []string
}

// MatchesLabel reports whether the filter applies to the given label.
func (z ZoneFilter) MatchesLabel(label string) bool {
	if len(z.Labels) == 0 {
		return true
	}
	for _, l := range z.Labels {
		if l == "*" || l == label {
			return true
		}
	}
	return false
}

// CameraAlert is the per-camera rule entry.
type CameraAlert struct {
	Camera       string
	Enabled      bool
	Labels       []string
	RequireZones []ZoneFilter
	IgnoreZones  []ZoneFilter
}

// AlertRules holds the global admission thresholds.
type AlertRules struct {
	MinEventDuration time.Duration
	MaxEventDuration time.Duration
	SnapshotRequired bool
	ClipRequired     bool
	CameraCooldown   time.Duration
	LabelCooldown    time.Duration
}

// TrackingConfig controls the stationary object detector.
type TrackingConfig struct {
	Enabled               bool
	DisplacementThreshold float64
}

// LoggingConfig mirrors the logging block of the config file. Path adds a
// file sink next to stdout; MaxKeep is accepted for compatibility, rotation
// itself is left to the platform.
type LoggingConfig struct {
	Level   string
	Path    string
	MaxKeep int
}

// APIConfig controls the debug/observability HTTP server.
type APIConfig struct {
	Enabled bool
	Listen  string
}

// TelemetryConfig controls the OpenTelemetry trace exporter.
type TelemetryConfig struct {
	Enabled      bool
	Endpoint     string
	Exporter     string
	SamplingRate float64
}

// Defaults returns the baseline configuration before file and env merging.
func Defaults() AppConfig {
	return AppConfig{
		MQTT: MQTTConfig{
			Port:        1883,
			ListenTopic: "frigate/events",
			AlertTopic:  "frigate/alerts",
		},
		Frigate: FrigateConfig{
			Port: 5000,
		},
		Rules: AlertRules{
			MinEventDuration: 0,
			MaxEventDuration: 60 * time.Second,
			CameraCooldown:   0,
			LabelCooldown:    0,
		},
		Tracking: TrackingConfig{
			Enabled:               false,
			DisplacementThreshold: 0.02,
		},
		Logging: LoggingConfig{
			Level:   "info",
			MaxKeep: 5,
		},
		API: APIConfig{
			Enabled: true,
			Listen:  ":8080",
		},
		Telemetry: TelemetryConfig{
			Exporter:     "otlp-grpc",
			SamplingRate: 1.0,
		},
	}
}
