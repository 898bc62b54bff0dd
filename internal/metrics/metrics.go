// Package metrics exposes the processor's Prometheus instrumentation.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fep_frames_total",
		Help: "Total number of ingress event frames by frame type",
	}, []string{"type"})

	framesMalformedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fep_frames_malformed_total",
		Help: "Total number of ingress messages dropped because they could not be decoded",
	})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fep_decisions_total",
		Help: "Total number of rule evaluations by verdict and reason",
	}, []string{"verdict", "reason"})

	suppressionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fep_suppressions_total",
		Help: "Total number of events suppressed by deny reason",
	}, []string{"reason"})

	deferralsScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fep_deferrals_scheduled_total",
		Help: "Total number of deferral timers scheduled",
	})

	deferralsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fep_deferrals_cancelled_total",
		Help: "Total number of deferral timers cancelled before firing",
	})

	alertsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fep_alerts_published_total",
		Help: "Total number of alerts published by camera",
	}, []string{"camera"})

	publishFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fep_publish_failures_total",
		Help: "Total number of alert publishes that failed after all attempts",
	}, []string{"camera"})

	publishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fep_publish_duration_seconds",
		Help:    "Duration of alert publish attempts including retries",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20},
	})

	cooldownBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fep_cooldown_blocked_total",
		Help: "Total number of admissions blocked by cooldown scope",
	}, []string{"scope"})

	artifactChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fep_artifact_checks_total",
		Help: "Total number of artifact confirmations by artifact and result",
	}, []string{"artifact", "result"})

	liveEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fep_live_events",
		Help: "Number of event records currently tracked",
	})

	mqttConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fep_mqtt_connected",
		Help: "Whether the MQTT session is currently connected (1) or not (0)",
	})

	mqttReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fep_mqtt_reconnects_total",
		Help: "Total number of MQTT reconnects after a lost session",
	})

	forcedAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fep_forced_alerts_total",
		Help: "Total number of alerts force-published via the API",
	})
)

// RecordFrame counts one decoded ingress frame.
func RecordFrame(frameType string) {
	framesTotal.WithLabelValues(normalizeFrameType(frameType)).Inc()
}

// RecordMalformedFrame counts one dropped ingress message.
func RecordMalformedFrame() {
	framesMalformedTotal.Inc()
}

// RecordDecision counts one rule evaluation outcome.
func RecordDecision(verdict, reason string) {
	decisionsTotal.WithLabelValues(
		normalizeVerdict(verdict),
		normalizeReason(reason),
	).Inc()
}

// RecordSuppression counts one event entering the suppressed state.
func RecordSuppression(reason string) {
	suppressionsTotal.WithLabelValues(normalizeReason(reason)).Inc()
}

// RecordDeferralScheduled counts one scheduled dwell timer.
func RecordDeferralScheduled() {
	deferralsScheduledTotal.Inc()
}

// RecordDeferralCancelled counts one dwell timer cancelled by an early end.
func RecordDeferralCancelled() {
	deferralsCancelledTotal.Inc()
}

// RecordPublish counts one successful alert publish and its duration.
func RecordPublish(camera string, duration time.Duration) {
	alertsPublishedTotal.WithLabelValues(normalizeCamera(camera)).Inc()
	publishDuration.Observe(duration.Seconds())
}

// RecordPublishFailure counts one alert dropped after exhausting retries.
func RecordPublishFailure(camera string) {
	publishFailuresTotal.WithLabelValues(normalizeCamera(camera)).Inc()
}

// RecordCooldownBlocked counts one admission stopped by the cooldown ledger.
func RecordCooldownBlocked(scope string) {
	cooldownBlockedTotal.WithLabelValues(normalizeScope(scope)).Inc()
}

// RecordArtifactCheck counts one artifact confirmation attempt.
func RecordArtifactCheck(artifact, result string) {
	artifactChecksTotal.WithLabelValues(
		normalizeArtifact(artifact),
		normalizeResult(result),
	).Inc()
}

// SetLiveEvents publishes the current event table size.
func SetLiveEvents(n int) {
	liveEvents.Set(float64(n))
}

// SetMQTTConnected flips the connection state gauge.
func SetMQTTConnected(connected bool) {
	if connected {
		mqttConnected.Set(1)
		return
	}
	mqttConnected.Set(0)
}

// RecordMQTTReconnect counts one re-established broker session.
func RecordMQTTReconnect() {
	mqttReconnectsTotal.Inc()
}

// RecordForcedAlert counts one alert force-published via the API.
func RecordForcedAlert() {
	forcedAlertsTotal.Inc()
}

func normalizeFrameType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "new", "update", "end":
		return strings.ToLower(strings.TrimSpace(t))
	default:
		return "unknown"
	}
}

func normalizeVerdict(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "admit", "deny":
		return strings.ToLower(strings.TrimSpace(v))
	default:
		return "unknown"
	}
}

func normalizeReason(r string) string {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case "admit", "no-rule", "label", "ignored-zone", "missing-required-zone",
		"too-old", "no-snapshot", "no-clip", "stationary", "cooldown",
		"rule-error", "forced":
		return strings.ToLower(strings.TrimSpace(r))
	default:
		return "unknown"
	}
}

func normalizeScope(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "camera", "label":
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return "unknown"
	}
}

func normalizeArtifact(a string) string {
	switch strings.ToLower(strings.TrimSpace(a)) {
	case "snapshot", "clip":
		return strings.ToLower(strings.TrimSpace(a))
	default:
		return "unknown"
	}
}

func normalizeResult(r string) string {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case "ok", "missing", "error", "timeout":
		return strings.ToLower(strings.TrimSpace(r))
	default:
		return "unknown"
	}
}

func normalizeCamera(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return "unknown"
	}
	return c
}
