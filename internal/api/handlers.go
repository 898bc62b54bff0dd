// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rgregg/frigate-event-processor/internal/engine"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleEvents(src EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := src.Events(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":  len(views),
			"events": views,
		})
	}
}

func (s *Server) handleEvent(src EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		view, err := src.Event(r.Context(), id)
		switch {
		case errors.Is(err, engine.ErrUnknownEvent):
			writeError(w, http.StatusNotFound, "unknown event id")
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeJSON(w, http.StatusOK, view)
		}
	}
}

func (s *Server) handleForceAlert(src EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := src.ForceAlert(r.Context(), id)
		switch {
		case errors.Is(err, engine.ErrUnknownEvent):
			writeError(w, http.StatusNotFound, "unknown event id")
		case errors.Is(err, engine.ErrAlreadyAlerted):
			writeError(w, http.StatusConflict, "event already alerted")
		case errors.Is(err, engine.ErrEventEnded):
			writeError(w, http.StatusConflict, "event already ended")
		case err != nil:
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeJSON(w, http.StatusAccepted, map[string]string{"event_id": id, "status": "publishing"})
		}
	}
}

// configSummary is the redacted config projection; credentials never leave
// the process.
type configSummary struct {
	MQTT struct {
		Broker      string `json:"broker"`
		ListenTopic string `json:"listen_topic"`
		AlertTopic  string `json:"alert_topic"`
	} `json:"mqtt"`
	Frigate struct {
		BaseURL         string `json:"base_url,omitempty"`
		VerifyArtifacts bool   `json:"verify_artifacts"`
	} `json:"frigate"`
	Cameras []string `json:"cameras"`
	Rules   struct {
		MinEventDuration string `json:"min_event_duration"`
		MaxEventDuration string `json:"max_event_duration"`
		SnapshotRequired bool   `json:"snapshot_required"`
		ClipRequired     bool   `json:"clip_required"`
		CameraCooldown   string `json:"cooldown_camera"`
		LabelCooldown    string `json:"cooldown_label"`
	} `json:"alert_rules"`
	Tracking struct {
		Enabled               bool    `json:"enabled"`
		DisplacementThreshold float64 `json:"displacement_threshold"`
	} `json:"object_tracking"`
	Version string `json:"version,omitempty"`
}

func (s *Server) handleConfig(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if opts.Config == nil {
			writeError(w, http.StatusNotFound, "config source not wired")
			return
		}
		cfg := opts.Config()

		var out configSummary
		out.MQTT.Broker = cfg.MQTT.BrokerURL()
		out.MQTT.ListenTopic = cfg.MQTT.ListenTopic
		out.MQTT.AlertTopic = cfg.MQTT.AlertTopic
		out.Frigate.BaseURL = cfg.Frigate.BaseURL()
		out.Frigate.VerifyArtifacts = cfg.Frigate.VerifyArtifacts
		for _, a := range cfg.Alerts {
			out.Cameras = append(out.Cameras, a.Camera)
		}
		out.Rules.MinEventDuration = formatDuration(cfg.Rules.MinEventDuration)
		out.Rules.MaxEventDuration = formatDuration(cfg.Rules.MaxEventDuration)
		out.Rules.SnapshotRequired = cfg.Rules.SnapshotRequired
		out.Rules.ClipRequired = cfg.Rules.ClipRequired
		out.Rules.CameraCooldown = formatDuration(cfg.Rules.CameraCooldown)
		out.Rules.LabelCooldown = formatDuration(cfg.Rules.LabelCooldown)
		out.Tracking.Enabled = cfg.Tracking.Enabled
		out.Tracking.DisplacementThreshold = cfg.Tracking.DisplacementThreshold
		out.Version = opts.Version

		writeJSON(w, http.StatusOK, out)
	}
}

func formatDuration(d time.Duration) string {
	return d.String()
}
