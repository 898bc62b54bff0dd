// Package publish serializes admitted events into alert payloads and
// submits them to the MQTT egress with bounded retries.
package publish

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Alert is one admitted event ready for egress.
type Alert struct {
	EventID     string
	Camera      string
	Label       string
	SubLabels   []string
	CreatedAt   time.Time
	Zones       []string
	SnapshotURL string
	ClipURL     string
	Reason      string
}

type wireAlert struct {
	EventID     string   `json:"event_id"`
	Camera      string   `json:"camera"`
	Label       string   `json:"label"`
	SubLabel    string   `json:"sub_label"`
	CreatedAt   string   `json:"created_at"`
	Zones       []string `json:"zones"`
	SnapshotURL string   `json:"snapshot_url,omitempty"`
	ClipURL     string   `json:"clip_url,omitempty"`
	Reason      string   `json:"reason"`
	Message     string   `json:"message"`
}

var titleCaser = cases.Title(language.English)

// Message renders the human-readable alert line, e.g.
// "Person (Delivery) was detected on Front Door".
func (a Alert) Message() string {
	var b strings.Builder
	b.WriteString(titleCaser.String(a.Label))
	if len(a.SubLabels) > 0 {
		b.WriteString(" (")
		b.WriteString(titleCaser.String(strings.Join(a.SubLabels, ", ")))
		b.WriteString(")")
	}
	b.WriteString(" was detected on ")
	b.WriteString(titleCaser.String(strings.ReplaceAll(a.Camera, "_", " ")))
	return b.String()
}

// Encode renders the egress JSON payload. Timestamps are RFC 3339 UTC.
func (a Alert) Encode() ([]byte, error) {
	w := wireAlert{
		EventID:     a.EventID,
		Camera:      a.Camera,
		Label:       a.Label,
		SubLabel:    strings.Join(a.SubLabels, ", "),
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
		Zones:       a.Zones,
		SnapshotURL: a.SnapshotURL,
		ClipURL:     a.ClipURL,
		Reason:      a.Reason,
		Message:     a.Message(),
	}
	if w.Zones == nil {
		w.Zones = []string{}
	}
	return json.Marshal(w)
}
