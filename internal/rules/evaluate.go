package rules

import (
	"time"

	"github.com/rgregg/frigate-event-processor/internal/config"
)

// Evaluate runs the ordered admission checks for one event snapshot.
//
// Order: camera rule, label allow-list, ignore zones, require zones, max
// age, artifact prerequisites, stationary verdict. The first failing check
// wins. The minimum event duration is deliberately not checked here; dwell
// is the admission engine's deferral responsibility.
func Evaluate(in Input, set *Set, now time.Time) Output {
	if set == nil {
		return deny(ReasonRuleError)
	}

	cam, ok := set.cameras[in.Camera]
	if !ok || !cam.enabled {
		return deny(ReasonNoRule)
	}

	if !labelAllowed(cam.labels, in.Label) {
		return deny(ReasonLabel)
	}

	for _, zone := range in.Zones {
		for _, filter := range cam.ignore {
			if filter.Zone == zone && filter.MatchesLabel(in.Label) {
				return deny(ReasonIgnoredZone)
			}
		}
	}

	if len(cam.require) > 0 && !anyRequiredZone(cam.require, in.Zones, in.Label) {
		return deny(ReasonMissingRequiredZone)
	}

	if set.maxEventDuration > 0 && now.Sub(in.CreatedAt) > set.maxEventDuration {
		return deny(ReasonTooOld)
	}

	if set.snapshotRequired && !in.HasSnapshot {
		return deny(ReasonNoSnapshot)
	}
	if set.clipRequired && !in.HasClip {
		return deny(ReasonNoClip)
	}

	if set.trackingEnabled && in.Stationary {
		return deny(ReasonStationary)
	}

	return admit()
}

func labelAllowed(allowed []string, label string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, l := range allowed {
		if l == "*" || l == label {
			return true
		}
	}
	return false
}

func anyRequiredZone(require []config.ZoneFilter, zones []string, label string) bool {
	for _, zone := range zones {
		for _, filter := range require {
			if filter.Zone == zone && filter.MatchesLabel(label) {
				return true
			}
		}
	}
	return false
}
