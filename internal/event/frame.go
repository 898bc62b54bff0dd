// Package event defines the normalized Frigate event frames consumed by
// the admission engine and the status model of live events.
package event

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Type is the closed set of frame variants emitted by Frigate.
type Type string

const (
	TypeNew    Type = "new"
	TypeUpdate Type = "update"
	TypeEnd    Type = "end"
)

// Point is a bounding box center.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Frame is one normalized ingress message. All timestamps are UTC.
type Frame struct {
	Type         Type
	ID           string
	Camera       string
	Label        string
	SubLabels    []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Zones        []string
	EnteredZones []string
	Center       *Point
	HasSnapshot  bool
	HasClip      bool
	Score        float64
	TopScore     float64
	Stationary   bool
}

// Age returns how long the event has existed at the given instant.
func (f Frame) Age(now time.Time) time.Duration {
	return now.Sub(f.CreatedAt)
}

// wireEnvelope mirrors the raw MQTT payload shape:
// {"type": "...", "before": {...}, "after": {...}}.
type wireEnvelope struct {
	Type   string     `json:"type"`
	Before *wireEvent `json:"before"`
	After  *wireEvent `json:"after"`
}

type wireEvent struct {
	ID           string    `json:"id"`
	Camera       string    `json:"camera"`
	Label        string    `json:"label"`
	SubLabel     subLabels `json:"sub_label"`
	StartTime    float64   `json:"start_time"`
	EndTime      float64   `json:"end_time"`
	FrameTime    float64   `json:"frame_time"`
	CurrentZones []string  `json:"current_zones"`
	EnteredZones []string  `json:"entered_zones"`
	Box          []float64 `json:"box"`
	HasSnapshot  bool      `json:"has_snapshot"`
	HasClip      bool      `json:"has_clip"`
	Score        float64   `json:"score"`
	TopScore     float64   `json:"top_score"`
	Stationary   bool      `json:"stationary"`
}

// Decode parses a raw Frigate event message into a Frame.
//
// New and update frames are taken from "after"; end frames prefer
// "before" (the last full state of the object) and fall back to "after".
// A frame missing its payload side, id, camera or label is malformed.
func Decode(payload []byte) (Frame, error) {
	var env wireEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var ft Type
	switch Type(env.Type) {
	case TypeNew, TypeUpdate, TypeEnd:
		ft = Type(env.Type)
	default:
		return Frame{}, fmt.Errorf("%w: unknown frame type %q", ErrMalformedFrame, env.Type)
	}

	var src *wireEvent
	if ft == TypeEnd {
		src = env.Before
		if src == nil {
			src = env.After
		}
	} else {
		src = env.After
	}
	if src == nil {
		return Frame{}, fmt.Errorf("%w: frame %q carries no event payload", ErrMalformedFrame, env.Type)
	}

	if strings.TrimSpace(src.ID) == "" {
		return Frame{}, fmt.Errorf("%w: missing event id", ErrMalformedFrame)
	}
	if strings.TrimSpace(src.Camera) == "" {
		return Frame{}, fmt.Errorf("%w: missing camera", ErrMalformedFrame)
	}
	if strings.TrimSpace(src.Label) == "" {
		return Frame{}, fmt.Errorf("%w: missing label", ErrMalformedFrame)
	}

	f := Frame{
		Type:         ft,
		ID:           src.ID,
		Camera:       src.Camera,
		Label:        src.Label,
		SubLabels:    src.SubLabel,
		CreatedAt:    epochToTime(src.StartTime),
		UpdatedAt:    resolveUpdatedAt(src),
		Zones:        src.CurrentZones,
		EnteredZones: src.EnteredZones,
		Center:       boxCenter(src.Box),
		HasSnapshot:  src.HasSnapshot,
		HasClip:      src.HasClip,
		Score:        src.Score,
		TopScore:     src.TopScore,
		Stationary:   src.Stationary,
	}
	if f.CreatedAt.IsZero() {
		return Frame{}, fmt.Errorf("%w: missing start_time", ErrMalformedFrame)
	}
	return f, nil
}

func resolveUpdatedAt(src *wireEvent) time.Time {
	switch {
	case src.FrameTime > 0:
		return epochToTime(src.FrameTime)
	case src.EndTime > 0:
		return epochToTime(src.EndTime)
	default:
		return epochToTime(src.StartTime)
	}
}

// epochToTime converts Frigate's fractional epoch seconds to UTC time.
func epochToTime(epoch float64) time.Time {
	if epoch <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}

// boxCenter derives the center of an [x1, y1, x2, y2] bounding box.
// Anything that is not a 4-element box yields no center.
func boxCenter(box []float64) *Point {
	if len(box) != 4 {
		return nil
	}
	return &Point{
		X: (box[0] + box[2]) / 2,
		Y: (box[1] + box[3]) / 2,
	}
}
