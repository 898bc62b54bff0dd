// SPDX-License-Identifier: MIT
package event

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeNewFrame(t *testing.T) {
	payload := []byte(`{
		"type": "new",
		"before": null,
		"after": {
			"id": "1718000000.123456-abc123",
			"camera": "front_door",
			"label": "person",
			"sub_label": null,
			"start_time": 1718000000.5,
			"frame_time": 1718000000.5,
			"current_zones": ["porch"],
			"entered_zones": ["porch"],
			"box": [120, 240, 220, 440],
			"has_snapshot": true,
			"has_clip": false,
			"score": 0.82,
			"top_score": 0.91,
			"stationary": false
		}
	}`)

	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Frame{
		Type:         TypeNew,
		ID:           "1718000000.123456-abc123",
		Camera:       "front_door",
		Label:        "person",
		CreatedAt:    time.Unix(1718000000, 500000000).UTC(),
		UpdatedAt:    time.Unix(1718000000, 500000000).UTC(),
		Zones:        []string{"porch"},
		EnteredZones: []string{"porch"},
		Center:       &Point{X: 170, Y: 340},
		HasSnapshot:  true,
		Score:        0.82,
		TopScore:     0.91,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEndPrefersBefore(t *testing.T) {
	payload := []byte(`{
		"type": "end",
		"before": {
			"id": "ev-1", "camera": "yard", "label": "dog",
			"start_time": 1718000000, "frame_time": 1718000042,
			"current_zones": ["lawn"]
		},
		"after": {
			"id": "ev-1", "camera": "yard", "label": "dog",
			"start_time": 1718000000, "end_time": 1718000050,
			"current_zones": []
		}
	}`)

	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Type != TypeEnd {
		t.Errorf("type = %q, want end", got.Type)
	}
	if len(got.Zones) != 1 || got.Zones[0] != "lawn" {
		t.Errorf("zones = %v, want [lawn] from before", got.Zones)
	}
}

func TestDecodeEndFallsBackToAfter(t *testing.T) {
	payload := []byte(`{
		"type": "end",
		"after": {
			"id": "ev-2", "camera": "yard", "label": "cat",
			"start_time": 1718000000, "end_time": 1718000010
		}
	}`)

	got, err := Decode(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "ev-2" {
		t.Errorf("id = %q, want ev-2", got.ID)
	}
	if got.UpdatedAt != time.Unix(1718000010, 0).UTC() {
		t.Errorf("updated_at = %v, want end_time fallback", got.UpdatedAt)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "bad json", payload: `{not json`},
		{name: "unknown type", payload: `{"type": "vanish", "after": {"id": "x", "camera": "c", "label": "l", "start_time": 1}}`},
		{name: "missing payload", payload: `{"type": "new"}`},
		{name: "missing id", payload: `{"type": "new", "after": {"camera": "c", "label": "l", "start_time": 1}}`},
		{name: "missing camera", payload: `{"type": "new", "after": {"id": "x", "label": "l", "start_time": 1}}`},
		{name: "missing label", payload: `{"type": "new", "after": {"id": "x", "camera": "c", "start_time": 1}}`},
		{name: "missing start_time", payload: `{"type": "new", "after": {"id": "x", "camera": "c", "label": "l"}}`},
		{name: "end without any payload", payload: `{"type": "end"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			if err == nil {
				t.Fatal("expected decode error")
			}
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("error %v is not ErrMalformedFrame", err)
			}
		})
	}
}

func TestDecodeSubLabelVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "null", raw: `null`, want: nil},
		{name: "bare string", raw: `"delivery"`, want: []string{"delivery"}},
		{name: "string array", raw: `["ups", "fedex"]`, want: []string{"ups", "fedex"}},
		{name: "object array", raw: `[{"subLabel": "amazon"}]`, want: []string{"amazon"}},
		{name: "name score pair", raw: `["mail carrier", 0.87]`, want: []string{"mail carrier"}},
		{name: "unexpected shape", raw: `{"weird": true}`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(`{"type": "new", "after": {"id": "x", "camera": "c", "label": "person", "start_time": 1718000000, "sub_label": ` + tt.raw + `}}`)
			got, err := Decode(payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, []string(got.SubLabels)); diff != "" {
				t.Errorf("sub labels mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBoxCenter(t *testing.T) {
	tests := []struct {
		name string
		box  []float64
		want *Point
	}{
		{name: "normal box", box: []float64{0.1, 0.2, 0.3, 0.4}, want: &Point{X: 0.2, Y: 0.3}},
		{name: "missing box", box: nil, want: nil},
		{name: "short box", box: []float64{1, 2, 3}, want: nil},
		{name: "long box", box: []float64{1, 2, 3, 4, 5}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := boxCenter(tt.box)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("center mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPointDistance(t *testing.T) {
	a := Point{X: 0, Y: 0}
	b := Point{X: 3, Y: 4}
	if d := a.Distance(b); d != 5 {
		t.Errorf("distance = %v, want 5", d)
	}
}

func TestFrameAge(t *testing.T) {
	created := time.Unix(1718000000, 0).UTC()
	f := Frame{CreatedAt: created}
	if age := f.Age(created.Add(42 * time.Second)); age != 42*time.Second {
		t.Errorf("age = %v, want 42s", age)
	}
}
