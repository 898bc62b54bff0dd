package config

import (
	"fmt"
	"strings"
)

// Validate checks a resolved configuration. It returns an error wrapping
// ErrInvalidConfig describing the first group of problems found.
func Validate(cfg AppConfig) error {
	var problems []string

	if strings.TrimSpace(cfg.MQTT.Host) == "" {
		problems = append(problems, "mqtt.host is required")
	}
	if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
		problems = append(problems, fmt.Sprintf("mqtt.port %d out of range 1-65535", cfg.MQTT.Port))
	}
	if strings.TrimSpace(cfg.MQTT.ListenTopic) == "" {
		problems = append(problems, "mqtt.listen_topic is required")
	}
	if strings.TrimSpace(cfg.MQTT.AlertTopic) == "" {
		problems = append(problems, "mqtt.alert_topic is required")
	}
	if cfg.MQTT.ListenTopic != "" && cfg.MQTT.ListenTopic == cfg.MQTT.AlertTopic {
		problems = append(problems, "mqtt.alert_topic must differ from mqtt.listen_topic")
	}

	if cfg.Frigate.Host != "" && (cfg.Frigate.Port < 1 || cfg.Frigate.Port > 65535) {
		problems = append(problems, fmt.Sprintf("frigate.port %d out of range 1-65535", cfg.Frigate.Port))
	}
	if cfg.Frigate.VerifyArtifacts && strings.TrimSpace(cfg.Frigate.Host) == "" {
		problems = append(problems, "frigate.verify_artifacts requires frigate.host")
	}

	if cfg.Rules.MinEventDuration < 0 {
		problems = append(problems, "alert_rules.min_event_duration must not be negative")
	}
	// Zero disables the upper bound; only negatives are invalid.
	if cfg.Rules.MaxEventDuration < 0 {
		problems = append(problems, "alert_rules.max_event_duration must not be negative")
	}
	if cfg.Rules.MaxEventDuration > 0 && cfg.Rules.MinEventDuration > cfg.Rules.MaxEventDuration {
		problems = append(problems, "alert_rules.min_event_duration exceeds max_event_duration")
	}
	if cfg.Rules.CameraCooldown < 0 {
		problems = append(problems, "alert_rules.cooldown.camera must not be negative")
	}
	if cfg.Rules.LabelCooldown < 0 {
		problems = append(problems, "alert_rules.cooldown.label must not be negative")
	}

	if cfg.Tracking.Enabled && cfg.Tracking.DisplacementThreshold <= 0 {
		problems = append(problems, "object_tracking.displacement_threshold must be positive")
	}

	seen := make(map[string]struct{}, len(cfg.Alerts))
	for i, a := range cfg.Alerts {
		if strings.TrimSpace(a.Camera) == "" {
			problems = append(problems, fmt.Sprintf("alerts[%d].camera is required", i))
			continue
		}
		if _, dup := seen[a.Camera]; dup {
			problems = append(problems, fmt.Sprintf("alerts[%d]: duplicate camera %q", i, a.Camera))
		}
		seen[a.Camera] = struct{}{}
		for _, z := range a.RequireZones {
			if strings.TrimSpace(z.Zone) == "" {
				problems = append(problems, fmt.Sprintf("alerts[%d]: empty require zone for camera %q", i, a.Camera))
			}
		}
		for _, z := range a.IgnoreZones {
			if strings.TrimSpace(z.Zone) == "" {
				problems = append(problems, fmt.Sprintf("alerts[%d]: empty ignore zone for camera %q", i, a.Camera))
			}
		}
	}

	if cfg.API.Enabled && strings.TrimSpace(cfg.API.Listen) == "" {
		problems = append(problems, "api.listen is required when the API is enabled")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "otlp-grpc", "otlp-http":
		default:
			problems = append(problems, fmt.Sprintf("telemetry.exporter %q must be otlp-grpc or otlp-http", cfg.Telemetry.Exporter))
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			problems = append(problems, "telemetry.sampling_rate must be within [0, 1]")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
