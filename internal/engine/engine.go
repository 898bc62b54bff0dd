// Package engine implements the event admission state machine. One
// goroutine owns the live-event table, the cooldown ledger and all
// deferral timers; MQTT handlers, timer callbacks and API requests post
// operations into its loop instead of locking shared state.
package engine

import (
	"context"
	"sort"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"github.com/rgregg/frigate-event-processor/internal/config"
	"github.com/rgregg/frigate-event-processor/internal/cooldown"
	"github.com/rgregg/frigate-event-processor/internal/event"
	feplog "github.com/rgregg/frigate-event-processor/internal/log"
	"github.com/rgregg/frigate-event-processor/internal/metrics"
	"github.com/rgregg/frigate-event-processor/internal/publish"
	"github.com/rgregg/frigate-event-processor/internal/rules"
)

// Publisher submits one alert to the egress, blocking through its own
// retries. It is called off the engine loop.
type Publisher interface {
	Publish(ctx context.Context, alert publish.Alert) error
}

// Confirmer verifies artifact reachability against the Frigate HTTP API
// before an event commits to publishing. A nil Confirmer disables the
// check; the has_snapshot/has_clip flags on frames are then trusted as-is.
type Confirmer interface {
	Confirm(ctx context.Context, eventID string, needSnapshot, needClip bool) error
}

// confirmDeadline caps how long a single artifact confirmation may run
// when the remaining max-event-duration allows more.
const confirmDeadline = 15 * time.Second

// Options wires the engine's collaborators.
type Options struct {
	Clock     clock.Clock // defaults to clock.WallClock
	Publisher Publisher
	Confirmer Confirmer
	Buffer    int // ops channel capacity, defaults to 256
}

// Engine consumes event frames and publishes at most one alert per event id.
type Engine struct {
	clk    clock.Clock
	pub    Publisher
	conf   Confirmer
	logger zerolog.Logger

	ops     chan func()
	stopped chan struct{}
	runCtx  context.Context

	// loop-owned state
	set     *rules.Set
	frigate config.FrigateConfig
	ledger  *cooldown.Ledger
	table   map[string]*record
}

// New creates an engine for the given configuration. Run must be called
// before frames are submitted.
func New(cfg config.AppConfig, opts Options) *Engine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = 256
	}
	return &Engine{
		clk:     clk,
		pub:     opts.Publisher,
		conf:    opts.Confirmer,
		logger:  feplog.WithComponent("engine"),
		ops:     make(chan func(), buf),
		stopped: make(chan struct{}),
		set:     rules.Compile(cfg),
		frigate: cfg.Frigate,
		ledger:  cooldown.NewLedger(),
		table:   make(map[string]*record),
	}
}

// Run processes frames and posted operations until ctx is cancelled.
// It always returns nil on cancellation so an errgroup shutdown stays clean.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	e.logger.Info().
		Str("event", "engine.started").
		Dur("min_event_duration", e.set.MinEventDuration()).
		Dur("max_event_duration", e.set.MaxEventDuration()).
		Msg("admission engine running; live state is in-memory only")
	defer close(e.stopped)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Str("event", "engine.stopped").Int("live_events", len(e.table)).Msg("admission engine stopped")
			return nil
		case op := <-e.ops:
			op()
		}
	}
}

// post hands an operation to the loop; it gives up when the engine stopped.
func (e *Engine) post(op func()) bool {
	select {
	case e.ops <- op:
		return true
	case <-e.stopped:
		return false
	}
}

// Submit queues one decoded frame for processing. Frames for the same id
// are processed in submission order.
func (e *Engine) Submit(ctx context.Context, f event.Frame) {
	select {
	case e.ops <- func() { e.handleFrame(f) }:
	case <-e.stopped:
	case <-ctx.Done():
	}
}

// ApplyConfig swaps the compiled rule set and Frigate endpoint for all
// subsequent evaluations. Already scheduled deferrals keep their targets;
// live records and the cooldown ledger survive the swap.
func (e *Engine) ApplyConfig(cfg config.AppConfig) {
	set := rules.Compile(cfg)
	e.post(func() {
		e.set = set
		e.frigate = cfg.Frigate
		e.logger.Info().Str("event", "engine.rules_swapped").Msg("rule set updated from reloaded config")
	})
}

// Ping round-trips the loop, proving it is alive.
func (e *Engine) Ping(ctx context.Context) error {
	done := make(chan struct{})
	if !e.post(func() { close(done) }) {
		return ErrEngineStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrEngineStopped
	}
}

// Events returns a snapshot of the live-event table, oldest first.
func (e *Engine) Events(ctx context.Context) ([]View, error) {
	reply := make(chan []View, 1)
	if !e.post(func() {
		out := make([]View, 0, len(e.table))
		for _, r := range e.table {
			out = append(out, r.view())
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		reply <- out
	}) {
		return nil, ErrEngineStopped
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.stopped:
		return nil, ErrEngineStopped
	}
}

// Event returns the live record for one id.
func (e *Engine) Event(ctx context.Context, id string) (View, error) {
	type result struct {
		view View
		err  error
	}
	reply := make(chan result, 1)
	if !e.post(func() {
		r, ok := e.table[id]
		if !ok {
			reply <- result{err: ErrUnknownEvent}
			return
		}
		reply <- result{view: r.view()}
	}) {
		return View{}, ErrEngineStopped
	}
	select {
	case res := <-reply:
		return res.view, res.err
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-e.stopped:
		return View{}, ErrEngineStopped
	}
}

// ForceAlert publishes an event immediately, bypassing rules and the
// cooldown check. The one-publish-per-id guarantee still holds. This is
// the operator override behind POST /api/v1/events/{id}/alert and the only
// path that may move a suppressed record straight to admitted.
func (e *Engine) ForceAlert(ctx context.Context, id string) error {
	reply := make(chan error, 1)
	if !e.post(func() {
		r, ok := e.table[id]
		switch {
		case !ok:
			reply <- ErrUnknownEvent
		case r.status == event.StatusTerminal:
			reply <- ErrEventEnded
		case r.alerted || r.publishing || r.status == event.StatusAdmitted:
			reply <- ErrAlreadyAlerted
		default:
			e.cancelDeferral(r)
			metrics.RecordForcedAlert()
			e.logger.Warn().
				Str(feplog.FieldEventID, r.id).
				Str(feplog.FieldCamera, r.camera).
				Str("event", "engine.force_alert").
				Msg("publishing event on operator request, bypassing rules and cooldown")
			e.commitPublish(r, rules.ReasonForced)
			reply <- nil
		}
	}) {
		return ErrEngineStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrEngineStopped
	}
}

// Len reports the live-event count; the health checker surfaces it.
func (e *Engine) Len(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if !e.post(func() { reply <- len(e.table) }) {
		return 0, ErrEngineStopped
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-e.stopped:
		return 0, ErrEngineStopped
	}
}
