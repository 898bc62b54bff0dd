package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the YAML config file. Optional scalars are pointers so
// that merging can distinguish "absent" from zero values.
type FileConfig struct {
	MQTT      *MQTTFile      `yaml:"mqtt"`
	Frigate   *FrigateFile   `yaml:"frigate"`
	Alerts    []AlertFile    `yaml:"alerts"`
	Rules     *RulesFile     `yaml:"alert_rules"`
	Tracking  *TrackingFile  `yaml:"object_tracking"`
	Logging   *LoggingFile   `yaml:"logging"`
	API       *APIFile       `yaml:"api"`
	Telemetry *TelemetryFile `yaml:"telemetry"`
}

// MQTTFile is the mqtt block of the config file.
type MQTTFile struct {
	Host        *string `yaml:"host"`
	Port        *int    `yaml:"port"`
	Username    *string `yaml:"username"`
	Password    *string `yaml:"password"`
	ListenTopic *string `yaml:"listen_topic"`
	AlertTopic  *string `yaml:"alert_topic"`
}

// FrigateFile is the frigate block of the config file.
type FrigateFile struct {
	Host            *string `yaml:"host"`
	Port            *int    `yaml:"port"`
	SSL             *bool   `yaml:"ssl"`
	VerifyArtifacts *bool   `yaml:"verify_artifacts"`
}

// AlertFile is one entry of the alerts list.
type AlertFile struct {
	Camera  string     `yaml:"camera"`
	Enabled *bool      `yaml:"enabled"`
	Labels  []string   `yaml:"labels"`
	Zones   *ZonesFile `yaml:"zones"`
}

// ZonesFile groups required and ignored zone filters for a camera.
type ZonesFile struct {
	Require []ZoneFilterFile `yaml:"require"`
	Ignore  []ZoneFilterFile `yaml:"ignore"`
}

// ZoneFilterFile accepts either a bare zone name or a mapping with an
// optional label scope:
//
//	require:
//	  - porch
//	  - {zone: walkway, labels: [person]}
type ZoneFilterFile struct {
	Zone   string
	Labels []string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (z *ZoneFilterFile) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("zone filter: empty zone name")
		}
		z.Zone = name
		z.Labels = nil
		return nil
	case yaml.MappingNode:
		var raw struct {
			Zone   string   `yaml:"zone"`
			Labels []string `yaml:"labels"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		raw.Zone = strings.TrimSpace(raw.Zone)
		if raw.Zone == "" {
			return fmt.Errorf("zone filter: missing zone key")
		}
		z.Zone = raw.Zone
		z.Labels = raw.Labels
		return nil
	default:
		return fmt.Errorf("zone filter: expected string or mapping, got %s", value.Tag)
	}
}

// RulesFile is the alert_rules block of the config file.
type RulesFile struct {
	MinEventDuration *Duration     `yaml:"min_event_duration"`
	MaxEventDuration *Duration     `yaml:"max_event_duration"`
	Snapshot         *bool         `yaml:"snapshot"`
	Video            *bool         `yaml:"video"`
	Cooldown         *CooldownFile `yaml:"cooldown"`
}

// CooldownFile is the cooldown block nested under alert_rules.
type CooldownFile struct {
	Camera *Duration `yaml:"camera"`
	Label  *Duration `yaml:"label"`
}

// TrackingFile is the object_tracking block of the config file.
type TrackingFile struct {
	Enabled               *bool    `yaml:"enabled"`
	DisplacementThreshold *float64 `yaml:"displacement_threshold"`
}

// LoggingFile is the logging block of the config file.
type LoggingFile struct {
	Level   *string `yaml:"level"`
	Path    *string `yaml:"path"`
	MaxKeep *int    `yaml:"max_keep"`
}

// APIFile is the api block of the config file.
type APIFile struct {
	Enabled *bool   `yaml:"enabled"`
	Listen  *string `yaml:"listen"`
}

// TelemetryFile is the telemetry block of the config file.
type TelemetryFile struct {
	Enabled      *bool    `yaml:"enabled"`
	Endpoint     *string  `yaml:"endpoint"`
	Exporter     *string  `yaml:"exporter"`
	SamplingRate *float64 `yaml:"sampling_rate"`
}

// Duration is a YAML duration that requires an explicit unit suffix.
// "90s", "5m" and "1h" are valid; a bare number is rejected so that a
// stray "cooldown: 60" cannot silently mean nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar, got %s", value.Tag)
	}
	if value.Tag == "!!int" || value.Tag == "!!float" {
		return fmt.Errorf("duration %q requires a unit suffix (s, m or h)", value.Value)
	}
	parsed, err := ParseDurationString(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration value.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ParseDurationString parses a duration requiring a unit suffix.
func ParseDurationString(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("duration: empty value")
	}
	last := s[len(s)-1]
	if last >= '0' && last <= '9' {
		return 0, fmt.Errorf("duration %q requires a unit suffix (s, m or h)", raw)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration %q: %w", raw, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("duration %q: must not be negative", raw)
	}
	return parsed, nil
}
