package rules

import (
	"strings"
	"time"

	"github.com/rgregg/frigate-event-processor/internal/config"
)

// Set is the compiled admission policy. A Set is immutable after Compile;
// hot reloads build a fresh Set and swap the pointer.
type Set struct {
	cameras map[string]compiledCamera

	minEventDuration time.Duration
	maxEventDuration time.Duration
	snapshotRequired bool
	clipRequired     bool

	cameraCooldown time.Duration
	labelCooldown  time.Duration

	trackingEnabled       bool
	displacementThreshold float64
}

type compiledCamera struct {
	enabled bool
	labels  []string
	require []config.ZoneFilter
	ignore  []config.ZoneFilter
}

// Compile builds the evaluation set from a resolved configuration.
func Compile(cfg config.AppConfig) *Set {
	set := &Set{
		cameras:               make(map[string]compiledCamera, len(cfg.Alerts)),
		minEventDuration:      cfg.Rules.MinEventDuration,
		maxEventDuration:      cfg.Rules.MaxEventDuration,
		snapshotRequired:      cfg.Rules.SnapshotRequired,
		clipRequired:          cfg.Rules.ClipRequired,
		cameraCooldown:        cfg.Rules.CameraCooldown,
		labelCooldown:         cfg.Rules.LabelCooldown,
		trackingEnabled:       cfg.Tracking.Enabled,
		displacementThreshold: cfg.Tracking.DisplacementThreshold,
	}
	for _, a := range cfg.Alerts {
		name := strings.TrimSpace(a.Camera)
		if name == "" {
			continue
		}
		set.cameras[name] = compiledCamera{
			enabled: a.Enabled,
			labels:  normalizeLabels(a.Labels),
			require: a.RequireZones,
			ignore:  a.IgnoreZones,
		}
	}
	return set
}

func normalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// MinEventDuration is the dwell time before an admitted event may publish.
func (s *Set) MinEventDuration() time.Duration { return s.minEventDuration }

// MaxEventDuration bounds the total time an event may wait for admission.
func (s *Set) MaxEventDuration() time.Duration { return s.maxEventDuration }

// SnapshotRequired reports whether events need a snapshot to publish.
func (s *Set) SnapshotRequired() bool { return s.snapshotRequired }

// ClipRequired reports whether events need a clip to publish.
func (s *Set) ClipRequired() bool { return s.clipRequired }

// CameraCooldown is the per-camera publish spacing; zero disables it.
func (s *Set) CameraCooldown() time.Duration { return s.cameraCooldown }

// LabelCooldown is the per-camera-and-label publish spacing; zero disables it.
func (s *Set) LabelCooldown() time.Duration { return s.labelCooldown }

// TrackingEnabled reports whether stationary suppression is active.
func (s *Set) TrackingEnabled() bool { return s.trackingEnabled }

// DisplacementThreshold is the stationary detector's movement bound.
func (s *Set) DisplacementThreshold() float64 { return s.displacementThreshold }
