package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
	}
}

// Load resolves the configuration. Order: defaults, then the config file
// (strict keys), then environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFile(&cfg, fileCfg)
	}

	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile parses the YAML file rejecting unknown keys.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			// Empty file: nothing to merge.
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &fileCfg, nil
}

func mergeFile(cfg *AppConfig, file *FileConfig) {
	if file == nil {
		return
	}
	if m := file.MQTT; m != nil {
		setString(&cfg.MQTT.Host, m.Host)
		setInt(&cfg.MQTT.Port, m.Port)
		setString(&cfg.MQTT.Username, m.Username)
		setString(&cfg.MQTT.Password, m.Password)
		setString(&cfg.MQTT.ListenTopic, m.ListenTopic)
		setString(&cfg.MQTT.AlertTopic, m.AlertTopic)
	}
	if f := file.Frigate; f != nil {
		setString(&cfg.Frigate.Host, f.Host)
		setInt(&cfg.Frigate.Port, f.Port)
		setBool(&cfg.Frigate.SSL, f.SSL)
		setBool(&cfg.Frigate.VerifyArtifacts, f.VerifyArtifacts)
	}
	if len(file.Alerts) > 0 {
		cfg.Alerts = make([]CameraAlert, 0, len(file.Alerts))
		for _, a := range file.Alerts {
			entry := CameraAlert{
				Camera:  strings.TrimSpace(a.Camera),
				Enabled: true,
				Labels:  a.Labels,
			}
			setBool(&entry.Enabled, a.Enabled)
			if a.Zones != nil {
				entry.RequireZones = toZoneFilters(a.Zones.Require)
				entry.IgnoreZones = toZoneFilters(a.Zones.Ignore)
			}
			cfg.Alerts = append(cfg.Alerts, entry)
		}
	}
	if r := file.Rules; r != nil {
		setDuration(&cfg.Rules.MinEventDuration, r.MinEventDuration)
		setDuration(&cfg.Rules.MaxEventDuration, r.MaxEventDuration)
		setBool(&cfg.Rules.SnapshotRequired, r.Snapshot)
		setBool(&cfg.Rules.ClipRequired, r.Video)
		if r.Cooldown != nil {
			setDuration(&cfg.Rules.CameraCooldown, r.Cooldown.Camera)
			setDuration(&cfg.Rules.LabelCooldown, r.Cooldown.Label)
		}
	}
	if t := file.Tracking; t != nil {
		setBool(&cfg.Tracking.Enabled, t.Enabled)
		setFloat(&cfg.Tracking.DisplacementThreshold, t.DisplacementThreshold)
	}
	if lg := file.Logging; lg != nil {
		setString(&cfg.Logging.Level, lg.Level)
		setString(&cfg.Logging.Path, lg.Path)
		setInt(&cfg.Logging.MaxKeep, lg.MaxKeep)
	}
	if a := file.API; a != nil {
		setBool(&cfg.API.Enabled, a.Enabled)
		setString(&cfg.API.Listen, a.Listen)
	}
	if t := file.Telemetry; t != nil {
		setBool(&cfg.Telemetry.Enabled, t.Enabled)
		setString(&cfg.Telemetry.Endpoint, t.Endpoint)
		setString(&cfg.Telemetry.Exporter, t.Exporter)
		setFloat(&cfg.Telemetry.SamplingRate, t.SamplingRate)
	}
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.MQTT.Host = ParseString("FEP_MQTT_HOST", cfg.MQTT.Host)
	cfg.MQTT.Port = ParseInt("FEP_MQTT_PORT", cfg.MQTT.Port)
	cfg.MQTT.Username = ParseString("FEP_MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = ParseString("FEP_MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.ListenTopic = ParseString("FEP_MQTT_LISTEN_TOPIC", cfg.MQTT.ListenTopic)
	cfg.MQTT.AlertTopic = ParseString("FEP_MQTT_ALERT_TOPIC", cfg.MQTT.AlertTopic)

	cfg.Frigate.Host = ParseString("FEP_FRIGATE_HOST", cfg.Frigate.Host)
	cfg.Frigate.Port = ParseInt("FEP_FRIGATE_PORT", cfg.Frigate.Port)
	cfg.Frigate.SSL = ParseBool("FEP_FRIGATE_SSL", cfg.Frigate.SSL)
	cfg.Frigate.VerifyArtifacts = ParseBool("FEP_FRIGATE_VERIFY_ARTIFACTS", cfg.Frigate.VerifyArtifacts)

	cfg.Rules.MinEventDuration = ParseEnvDuration("FEP_MIN_EVENT_DURATION", cfg.Rules.MinEventDuration)
	cfg.Rules.MaxEventDuration = ParseEnvDuration("FEP_MAX_EVENT_DURATION", cfg.Rules.MaxEventDuration)
	cfg.Rules.SnapshotRequired = ParseBool("FEP_SNAPSHOT_REQUIRED", cfg.Rules.SnapshotRequired)
	cfg.Rules.ClipRequired = ParseBool("FEP_CLIP_REQUIRED", cfg.Rules.ClipRequired)
	cfg.Rules.CameraCooldown = ParseEnvDuration("FEP_COOLDOWN_CAMERA", cfg.Rules.CameraCooldown)
	cfg.Rules.LabelCooldown = ParseEnvDuration("FEP_COOLDOWN_LABEL", cfg.Rules.LabelCooldown)

	cfg.Tracking.Enabled = ParseBool("FEP_TRACKING_ENABLED", cfg.Tracking.Enabled)
	cfg.Tracking.DisplacementThreshold = ParseFloat("FEP_TRACKING_THRESHOLD", cfg.Tracking.DisplacementThreshold)

	cfg.Logging.Level = ParseString("FEP_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Path = ParseString("FEP_LOG_PATH", cfg.Logging.Path)
	cfg.Logging.MaxKeep = ParseInt("FEP_LOG_MAX_KEEP", cfg.Logging.MaxKeep)

	cfg.API.Enabled = ParseBool("FEP_API_ENABLED", cfg.API.Enabled)
	cfg.API.Listen = ParseString("FEP_API_LISTEN", cfg.API.Listen)

	cfg.Telemetry.Enabled = ParseBool("FEP_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = ParseString("FEP_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Exporter = ParseString("FEP_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.SamplingRate = ParseFloat("FEP_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

func toZoneFilters(in []ZoneFilterFile) []ZoneFilter {
	if len(in) == 0 {
		return nil
	}
	out := make([]ZoneFilter, 0, len(in))
	for _, z := range in {
		out = append(out, ZoneFilter{Zone: z.Zone, Labels: z.Labels})
	}
	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = src.Std()
	}
}
