package publish

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name  string
		alert Alert
		want  string
	}{
		{
			name:  "plain label",
			alert: Alert{Camera: "front_door", Label: "person"},
			want:  "Person was detected on Front Door",
		},
		{
			name:  "sub label",
			alert: Alert{Camera: "front_door", Label: "person", SubLabels: []string{"delivery"}},
			want:  "Person (Delivery) was detected on Front Door",
		},
		{
			name:  "multiple sub labels",
			alert: Alert{Camera: "yard", Label: "dog", SubLabels: []string{"fido", "rex"}},
			want:  "Dog (Fido, Rex) was detected on Yard",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.alert.Message())
		})
	}
}

func TestEncode(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	a := Alert{
		EventID:     "1718-abc",
		Camera:      "front_door",
		Label:       "person",
		SubLabels:   []string{"delivery"},
		CreatedAt:   created,
		Zones:       []string{"steps", "porch"},
		SnapshotURL: "http://frigate:5000/api/events/1718-abc/snapshot.jpg",
		Reason:      "admit",
	}

	payload, err := a.Encode()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(payload, &got))

	assert.Equal(t, "1718-abc", got["event_id"])
	assert.Equal(t, "front_door", got["camera"])
	assert.Equal(t, "person", got["label"])
	assert.Equal(t, "delivery", got["sub_label"])
	// Timestamps are normalized to UTC.
	assert.Equal(t, "2026-03-14T08:30:00Z", got["created_at"])
	assert.Equal(t, []any{"steps", "porch"}, got["zones"])
	assert.Equal(t, "http://frigate:5000/api/events/1718-abc/snapshot.jpg", got["snapshot_url"])
	assert.Equal(t, "Person (Delivery) was detected on Front Door", got["message"])
	_, hasClip := got["clip_url"]
	assert.False(t, hasClip, "empty clip_url must be omitted")
}

func TestEncodeEmptyZones(t *testing.T) {
	a := Alert{EventID: "x", Camera: "yard", Label: "cat", CreatedAt: time.Unix(0, 0)}
	payload, err := a.Encode()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(payload, &got))
	// zones is always an array, never null.
	assert.Equal(t, []any{}, got["zones"])
}
