// SPDX-License-Identifier: MIT
package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rgregg/frigate-event-processor/internal/artifacts"
	"github.com/rgregg/frigate-event-processor/internal/config"
	"github.com/rgregg/frigate-event-processor/internal/engine"
	"github.com/rgregg/frigate-event-processor/internal/event"
	"github.com/rgregg/frigate-event-processor/internal/publish"
	"github.com/rgregg/frigate-event-processor/internal/rules"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

const waitTimeout = 5 * time.Second

type capturePublisher struct {
	mu     sync.Mutex
	alerts []publish.Alert
	ch     chan publish.Alert
	err    error
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{ch: make(chan publish.Alert, 16)}
}

func (p *capturePublisher) Publish(_ context.Context, a publish.Alert) error {
	p.mu.Lock()
	p.alerts = append(p.alerts, a)
	p.mu.Unlock()
	p.ch <- a
	return p.err
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

type harness struct {
	t   *testing.T
	clk *testclock.Clock
	eng *engine.Engine
	pub *capturePublisher
	ctx context.Context
}

func newHarness(t *testing.T, cfg config.AppConfig) *harness {
	t.Helper()
	return newHarnessWithConfirmer(t, cfg, nil)
}

func newHarnessWithConfirmer(t *testing.T, cfg config.AppConfig, conf engine.Confirmer) *harness {
	t.Helper()
	clk := testclock.NewClock(t0)
	pub := newCapturePublisher()
	eng := engine.New(cfg, engine.Options{Clock: clk, Publisher: pub, Confirmer: conf})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = eng.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitTimeout):
			t.Error("engine did not stop")
		}
	})

	h := &harness{t: t, clk: clk, eng: eng, pub: pub, ctx: ctx}
	h.sync()
	return h
}

// sync round-trips the loop, guaranteeing earlier submissions were handled.
func (h *harness) sync() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, waitTimeout)
	defer cancel()
	require.NoError(h.t, h.eng.Ping(ctx))
}

func (h *harness) submit(f event.Frame) {
	h.t.Helper()
	h.eng.Submit(h.ctx, f)
	h.sync()
}

func (h *harness) waitAlert() publish.Alert {
	h.t.Helper()
	select {
	case a := <-h.pub.ch:
		return a
	case <-time.After(waitTimeout):
		h.t.Fatal("timed out waiting for an alert")
		return publish.Alert{}
	}
}

func (h *harness) waitAlerted(id string) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		view, err := h.eng.Event(context.Background(), id)
		if err != nil {
			return false
		}
		return view.Alerted
	}, waitTimeout, 5*time.Millisecond)
}

func (h *harness) view(id string) engine.View {
	h.t.Helper()
	view, err := h.eng.Event(context.Background(), id)
	require.NoError(h.t, err)
	return view
}

// advance moves the fake clock after the expected deferral timer is armed.
func (h *harness) advance(d time.Duration, timers int) {
	h.t.Helper()
	require.NoError(h.t, h.clk.WaitAdvance(d, waitTimeout, timers))
	h.sync()
}

func yardConfig(mut ...func(*config.AppConfig)) config.AppConfig {
	cfg := config.Defaults()
	cfg.MQTT.Host = "broker"
	cfg.Rules.MinEventDuration = 0
	cfg.Rules.MaxEventDuration = time.Minute
	cfg.Alerts = []config.CameraAlert{
		{Camera: "yard", Enabled: true, Labels: []string{"person"}},
	}
	for _, m := range mut {
		m(&cfg)
	}
	return cfg
}

func newFrame(id string, created time.Time) event.Frame {
	return event.Frame{
		Type:      event.TypeNew,
		ID:        id,
		Camera:    "yard",
		Label:     "person",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func updateFrame(id string, created, updated time.Time, zones []string) event.Frame {
	return event.Frame{
		Type:      event.TypeUpdate,
		ID:        id,
		Camera:    "yard",
		Label:     "person",
		CreatedAt: created,
		UpdatedAt: updated,
		Zones:     zones,
	}
}

func endFrame(id string, created, updated time.Time) event.Frame {
	return event.Frame{
		Type:      event.TypeEnd,
		ID:        id,
		Camera:    "yard",
		Label:     "person",
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

func TestBasicAdmitPublishesImmediately(t *testing.T) {
	h := newHarness(t, yardConfig())

	h.submit(newFrame("A", t0))
	alert := h.waitAlert()
	require.Equal(t, "A", alert.EventID)
	require.Equal(t, "yard", alert.Camera)
	require.Equal(t, "person", alert.Label)
	require.Equal(t, "admit", alert.Reason)

	h.waitAlerted("A")
	h.submit(endFrame("A", t0, t0.Add(3*time.Second)))

	_, err := h.eng.Event(context.Background(), "A")
	require.ErrorIs(t, err, engine.ErrUnknownEvent)
	require.Equal(t, 1, h.pub.count())
}

func TestDeferralCancelledByEarlyEnd(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Rules.MinEventDuration = 2 * time.Second
	}))

	h.submit(newFrame("B", t0))
	view := h.view("B")
	require.Equal(t, event.StatusPending, view.Status)
	require.NotNil(t, view.DeferralAt)

	h.advance(time.Second, 1)
	h.submit(endFrame("B", t0, t0.Add(time.Second)))

	// Past the would-be fire time: nothing may publish.
	h.clk.Advance(2 * time.Second)
	h.sync()
	require.Zero(t, h.pub.count())
}

func TestLabelCooldownBlocksSecondEvent(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Rules.LabelCooldown = time.Minute
	}))

	h.submit(newFrame("A", t0))
	h.waitAlert()
	h.waitAlerted("A")
	h.submit(endFrame("A", t0, t0.Add(5*time.Second)))

	h.clk.Advance(10 * time.Second)
	h.submit(newFrame("C", t0.Add(10*time.Second)))

	view := h.view("C")
	require.Equal(t, event.StatusSuppressed, view.Status)
	require.Equal(t, rules.ReasonCooldown, view.Reason)

	h.submit(endFrame("C", t0.Add(10*time.Second), t0.Add(15*time.Second)))
	require.Equal(t, 1, h.pub.count())
}

func TestIgnoredZoneSuppresses(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Alerts = []config.CameraAlert{{
			Camera:  "front_door",
			Enabled: true,
			Labels:  []string{"car"},
			IgnoreZones: []config.ZoneFilter{
				{Zone: "street", Labels: []string{"car"}},
			},
		}}
	}))

	h.submit(event.Frame{
		Type:      event.TypeNew,
		ID:        "D",
		Camera:    "front_door",
		Label:     "car",
		CreatedAt: t0,
		UpdatedAt: t0,
		Zones:     []string{"street", "driveway"},
	})

	view := h.view("D")
	require.Equal(t, event.StatusSuppressed, view.Status)
	require.Equal(t, rules.ReasonIgnoredZone, view.Reason)
	require.Zero(t, h.pub.count())
}

func TestRequiredZoneGainedOnUpdate(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Rules.MinEventDuration = time.Second
		c.Alerts[0].RequireZones = []config.ZoneFilter{
			{Zone: "steps", Labels: []string{"person"}},
		}
	}))

	f := newFrame("E", t0)
	f.Zones = []string{"yard"}
	h.submit(f)

	// Deferral fires without the required zone: stays pending.
	h.advance(time.Second, 1)
	view := h.view("E")
	require.Equal(t, event.StatusPending, view.Status)
	require.Zero(t, h.pub.count())

	h.submit(updateFrame("E", t0, t0.Add(1200*time.Millisecond), []string{"yard", "steps"}))
	alert := h.waitAlert()
	require.Equal(t, "E", alert.EventID)
	require.Contains(t, alert.Zones, "steps")
}

func TestStationarySuppression(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Rules.MinEventDuration = time.Second
		c.Tracking.Enabled = true
		c.Tracking.DisplacementThreshold = 0.02
	}))

	f := newFrame("F", t0)
	f.Center = &event.Point{X: 0.5, Y: 0.5}
	h.submit(f)

	u1 := updateFrame("F", t0, t0.Add(500*time.Millisecond), nil)
	u1.Center = &event.Point{X: 0.505, Y: 0.5}
	h.submit(u1)

	u2 := updateFrame("F", t0, t0.Add(time.Second), nil)
	u2.Center = &event.Point{X: 0.5, Y: 0.505}
	h.submit(u2)

	h.advance(time.Second, 1)
	require.Eventually(t, func() bool {
		return h.view("F").Status == event.StatusSuppressed
	}, waitTimeout, 5*time.Millisecond)
	require.Equal(t, rules.ReasonStationary, h.view("F").Reason)
	require.Zero(t, h.pub.count())
}

func TestArtifactArrivalResurrectsSuppressedEvent(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Rules.SnapshotRequired = true
		c.Frigate.Host = "frigate.local"
	}))

	h.submit(newFrame("G", t0))
	view := h.view("G")
	require.Equal(t, event.StatusSuppressed, view.Status)
	require.Equal(t, rules.ReasonNoSnapshot, view.Reason)

	u := updateFrame("G", t0, t0.Add(2*time.Second), nil)
	u.HasSnapshot = true
	h.submit(u)

	alert := h.waitAlert()
	require.Equal(t, "G", alert.EventID)
	require.Equal(t, "http://frigate.local:5000/api/events/G/snapshot.jpg", alert.SnapshotURL)
}

// gateConfirmer blocks confirmation until the test releases it, so the
// engine can be observed mid-gate.
type gateConfirmer struct {
	started chan struct{}
	release chan error
}

func newGateConfirmer() *gateConfirmer {
	return &gateConfirmer{
		started: make(chan struct{}, 1),
		release: make(chan error),
	}
}

func (g *gateConfirmer) Confirm(ctx context.Context, _ string, _, _ bool) error {
	g.started <- struct{}{}
	select {
	case err := <-g.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gateConfirmer) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for confirmation to start")
	}
}

func gateConfig(mut ...func(*config.AppConfig)) config.AppConfig {
	return yardConfig(append([]func(*config.AppConfig){func(c *config.AppConfig) {
		c.Rules.SnapshotRequired = true
		c.Frigate.Host = "frigate.local"
		c.Frigate.VerifyArtifacts = true
	}}, mut...)...)
}

func TestEndDuringConfirmationWins(t *testing.T) {
	conf := newGateConfirmer()
	h := newHarnessWithConfirmer(t, gateConfig(), conf)

	f := newFrame("P", t0)
	f.HasSnapshot = true
	h.submit(f)
	conf.waitStarted(t)

	end := endFrame("P", t0, t0.Add(time.Second))
	end.HasSnapshot = true
	h.submit(end)

	// The record survives the end while the gate is in flight.
	require.Equal(t, event.StatusTerminal, h.view("P").Status)

	conf.release <- nil
	require.Eventually(t, func() bool {
		_, err := h.eng.Event(context.Background(), "P")
		return errors.Is(err, engine.ErrUnknownEvent)
	}, waitTimeout, 5*time.Millisecond)
	require.Zero(t, h.pub.count())
}

func TestConfirmationFailureSuppresses(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*config.AppConfig)
		has  func(*event.Frame)
		err  error
		want rules.Reason
	}{
		{
			name: "snapshot unreachable",
			mut:  func(*config.AppConfig) {},
			has:  func(f *event.Frame) { f.HasSnapshot = true },
			err:  fmt.Errorf("event Q: %w", artifacts.ErrSnapshotUnavailable),
			want: rules.ReasonNoSnapshot,
		},
		{
			name: "clip unreachable",
			mut: func(c *config.AppConfig) {
				c.Rules.SnapshotRequired = false
				c.Rules.ClipRequired = true
			},
			has:  func(f *event.Frame) { f.HasClip = true },
			err:  fmt.Errorf("event Q: %w", artifacts.ErrClipUnavailable),
			want: rules.ReasonNoClip,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := newGateConfirmer()
			h := newHarnessWithConfirmer(t, gateConfig(tt.mut), conf)

			f := newFrame("Q", t0)
			tt.has(&f)
			h.submit(f)
			conf.waitStarted(t)

			conf.release <- tt.err
			require.Eventually(t, func() bool {
				return h.view("Q").Status == event.StatusSuppressed
			}, waitTimeout, 5*time.Millisecond)
			require.Equal(t, tt.want, h.view("Q").Reason)
			require.Zero(t, h.pub.count())
		})
	}
}

func TestConfirmationSuccessPublishes(t *testing.T) {
	conf := newGateConfirmer()
	h := newHarnessWithConfirmer(t, gateConfig(), conf)

	f := newFrame("R", t0)
	f.HasSnapshot = true
	h.submit(f)
	conf.waitStarted(t)
	require.Zero(t, h.pub.count(), "nothing may publish before the gate settles")

	conf.release <- nil
	alert := h.waitAlert()
	require.Equal(t, "R", alert.EventID)
	require.Equal(t, "http://frigate.local:5000/api/events/R/snapshot.jpg", alert.SnapshotURL)
}

func TestStickySuppressionIgnoresLaterUpdates(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Alerts[0].Labels = []string{"dog"}
	}))

	h.submit(newFrame("H", t0)) // label "person" not allowed
	view := h.view("H")
	require.Equal(t, event.StatusSuppressed, view.Status)
	require.Equal(t, rules.ReasonLabel, view.Reason)

	// A flapping update must not resurrect a non-artifact suppression.
	h.submit(updateFrame("H", t0, t0.Add(time.Second), []string{"yard"}))
	view = h.view("H")
	require.Equal(t, event.StatusSuppressed, view.Status)
	require.Zero(t, h.pub.count())
}

func TestStaleUpdateCannotRevertZones(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Rules.MinEventDuration = 5 * time.Second
	}))

	h.submit(newFrame("I", t0))
	h.submit(updateFrame("I", t0, t0.Add(2*time.Second), []string{"steps"}))
	// Older frame arrives late; its zones must not win.
	h.submit(updateFrame("I", t0, t0.Add(time.Second), []string{"yard"}))

	view := h.view("I")
	require.Equal(t, []string{"steps"}, view.Zones)
}

func TestEndAsFirstFrameCreatesNothing(t *testing.T) {
	h := newHarness(t, yardConfig())

	h.submit(endFrame("J", t0, t0))
	_, err := h.eng.Event(context.Background(), "J")
	require.ErrorIs(t, err, engine.ErrUnknownEvent)
	require.Zero(t, h.pub.count())
}

func TestAtMostOnePublishPerID(t *testing.T) {
	h := newHarness(t, yardConfig())

	h.submit(newFrame("K", t0))
	h.waitAlert()
	h.waitAlerted("K")

	// A burst of further updates must not re-publish an admitted event.
	for i := 1; i <= 5; i++ {
		h.submit(updateFrame("K", t0, t0.Add(time.Duration(i)*time.Second), []string{"yard"}))
	}
	require.Equal(t, 1, h.pub.count())
}

func TestForceAlertBypassesRulesOnce(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Alerts[0].Labels = []string{"dog"}
	}))

	h.submit(newFrame("L", t0))
	require.Equal(t, event.StatusSuppressed, h.view("L").Status)

	require.NoError(t, h.eng.ForceAlert(context.Background(), "L"))
	alert := h.waitAlert()
	require.Equal(t, "forced", alert.Reason)
	h.waitAlerted("L")

	err := h.eng.ForceAlert(context.Background(), "L")
	require.ErrorIs(t, err, engine.ErrAlreadyAlerted)

	err = h.eng.ForceAlert(context.Background(), "nope")
	require.ErrorIs(t, err, engine.ErrUnknownEvent)
}

func TestReloadSwapsRules(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Alerts[0].Labels = []string{"dog"}
	}))

	h.submit(newFrame("M", t0))
	require.Equal(t, event.StatusSuppressed, h.view("M").Status)

	// Allow person from now on; existing suppression stays sticky, a new
	// event admits.
	h.eng.ApplyConfig(yardConfig())
	h.sync()

	h.submit(newFrame("N", t0))
	alert := h.waitAlert()
	require.Equal(t, "N", alert.EventID)
	require.Equal(t, event.StatusSuppressed, h.view("M").Status)
}

func TestEventsSnapshotSortsOldestFirst(t *testing.T) {
	h := newHarness(t, yardConfig(func(c *config.AppConfig) {
		c.Rules.MinEventDuration = time.Minute
	}))

	h.submit(newFrame("older", t0))
	h.submit(newFrame("newer", t0.Add(time.Second)))

	views, err := h.eng.Events(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "older", views[0].ID)
	require.Equal(t, "newer", views[1].ID)

	n, err := h.eng.Len(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
