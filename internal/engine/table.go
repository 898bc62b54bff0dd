package engine

import (
	"time"

	"github.com/juju/clock"

	"github.com/rgregg/frigate-event-processor/internal/event"
	"github.com/rgregg/frigate-event-processor/internal/rules"
	"github.com/rgregg/frigate-event-processor/internal/track"
)

// record is one live event. Records are owned by the engine goroutine;
// nothing outside the loop may touch them.
type record struct {
	id        string
	camera    string
	label     string
	subLabels []string
	createdAt time.Time

	// latest projection, merged monotonically by frame time
	updatedAt   time.Time
	zones       []string
	center      *event.Point
	hasSnapshot bool
	hasClip     bool

	status event.Status
	reason rules.Reason

	history *track.History

	// deferral timer; timerGen invalidates fires from cancelled timers
	timer      clock.Timer
	timerGen   uint64
	timerLive  bool
	deferralAt time.Time

	confirming bool
	publishing bool
	alerted    bool
}

func newRecord(f event.Frame) *record {
	r := &record{
		id:          f.ID,
		camera:      f.Camera,
		label:       f.Label,
		subLabels:   f.SubLabels,
		createdAt:   f.CreatedAt,
		updatedAt:   f.UpdatedAt,
		zones:       f.Zones,
		center:      f.Center,
		hasSnapshot: f.HasSnapshot,
		hasClip:     f.HasClip,
		status:      event.StatusPending,
		history:     track.NewHistory(),
	}
	if f.Center != nil {
		r.history.Observe(*f.Center, f.UpdatedAt)
	}
	return r
}

// merge folds a later frame into the latest projection. Stale frames
// (older last-updated) are discarded so they cannot revert zones; the
// tracker still never sees them because Observe drops backwards samples.
func (r *record) merge(f event.Frame) {
	if f.Center != nil {
		r.history.Observe(*f.Center, f.UpdatedAt)
	}
	if f.UpdatedAt.Before(r.updatedAt) {
		return
	}
	r.updatedAt = f.UpdatedAt
	r.zones = f.Zones
	if f.Center != nil {
		r.center = f.Center
	}
	r.hasSnapshot = f.HasSnapshot
	r.hasClip = f.HasClip
	if len(f.SubLabels) > 0 {
		r.subLabels = f.SubLabels
	}
}

// artifactPresent reports whether the artifact a suppression reason was
// waiting for has arrived since.
func (r *record) artifactPresent() bool {
	switch r.reason {
	case rules.ReasonNoSnapshot:
		return r.hasSnapshot
	case rules.ReasonNoClip:
		return r.hasClip
	default:
		return false
	}
}

// View is a read-only projection of a live event for the HTTP API.
type View struct {
	ID          string       `json:"event_id"`
	Camera      string       `json:"camera"`
	Label       string       `json:"label"`
	SubLabels   []string     `json:"sub_labels,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Zones       []string     `json:"zones,omitempty"`
	Status      event.Status `json:"status"`
	Reason      rules.Reason `json:"reason,omitempty"`
	Alerted     bool         `json:"alerted"`
	DeferralAt  *time.Time   `json:"deferral_at,omitempty"`
	HasSnapshot bool         `json:"has_snapshot"`
	HasClip     bool         `json:"has_clip"`
}

func (r *record) view() View {
	v := View{
		ID:          r.id,
		Camera:      r.camera,
		Label:       r.label,
		SubLabels:   append([]string(nil), r.subLabels...),
		CreatedAt:   r.createdAt,
		UpdatedAt:   r.updatedAt,
		Zones:       append([]string(nil), r.zones...),
		Status:      r.status,
		Alerted:     r.alerted,
		HasSnapshot: r.hasSnapshot,
		HasClip:     r.hasClip,
	}
	if r.status == event.StatusSuppressed {
		v.Reason = r.reason
	}
	if r.timerLive {
		at := r.deferralAt
		v.DeferralAt = &at
	}
	return v
}
