package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rgregg/frigate-event-processor/internal/artifacts"
	"github.com/rgregg/frigate-event-processor/internal/event"
	feplog "github.com/rgregg/frigate-event-processor/internal/log"
	"github.com/rgregg/frigate-event-processor/internal/metrics"
	"github.com/rgregg/frigate-event-processor/internal/publish"
	"github.com/rgregg/frigate-event-processor/internal/rules"
)

// handleFrame runs on the engine loop.
func (e *Engine) handleFrame(f event.Frame) {
	metrics.RecordFrame(string(f.Type))
	now := e.clk.Now()

	r, known := e.table[f.ID]
	switch {
	case !known && f.Type == event.TypeEnd:
		// An id whose first frame is already terminal: nothing to track.
		e.logger.Debug().
			Str(feplog.FieldEventID, f.ID).
			Str(feplog.FieldCamera, f.Camera).
			Str("event", "engine.end_without_record").
			Msg("dropping end frame for unknown event")
	case !known:
		e.onCreate(f, now)
	case f.Type == event.TypeEnd:
		e.onEnd(r, f, now)
	default:
		e.onUpdate(r, f, now)
	}
	metrics.SetLiveEvents(len(e.table))
}

func (e *Engine) onCreate(f event.Frame, now time.Time) {
	r := newRecord(f)
	e.table[r.id] = r
	e.logger.Debug().
		Str(feplog.FieldEventID, r.id).
		Str(feplog.FieldCamera, r.camera).
		Str(feplog.FieldLabel, r.label).
		Strs(feplog.FieldZones, r.zones).
		Str("event", "engine.event_created").
		Msg("tracking new event")

	out := e.evaluate(r, now)
	if !out.Allowed() {
		switch out.Reason.Kind() {
		case rules.KindWait:
			// Not qualified yet; the deferral fire or a later update retries.
		default:
			e.suppress(r, out.Reason)
			return
		}
	}
	e.scheduleDeferral(r, now)
}

func (e *Engine) onUpdate(r *record, f event.Frame, now time.Time) {
	r.merge(f)

	switch r.status {
	case event.StatusTerminal, event.StatusAdmitted:
		return
	case event.StatusSuppressed:
		if r.reason.Kind() != rules.KindArtifact || !r.artifactPresent() {
			return
		}
		if max := e.set.MaxEventDuration(); max > 0 && now.Sub(r.createdAt) > max {
			return
		}
		// The one sanctioned backwards transition: the artifact the
		// suppression was waiting for arrived in time.
		e.logger.Debug().
			Str(feplog.FieldEventID, r.id).
			Str(feplog.FieldReason, string(r.reason)).
			Str("event", "engine.event_resurrected").
			Msg("artifact arrived, event back to pending")
		r.status = event.StatusPending
		r.reason = ""
		e.scheduleDeferral(r, now)
	case event.StatusPending:
		if r.timerLive || r.confirming || r.publishing {
			// A scheduled fire or in-flight work will see the fresh state.
			return
		}
		e.firePipeline(r, now)
	}
}

func (e *Engine) onEnd(r *record, f event.Frame, now time.Time) {
	r.merge(f)
	e.cancelDeferral(r)
	old := r.status
	r.status = event.StatusTerminal
	e.logger.Debug().
		Str(feplog.FieldEventID, r.id).
		Str(feplog.FieldCamera, r.camera).
		Str(feplog.FieldOldStatus, string(old)).
		Bool("alerted", r.alerted).
		Str("event", "engine.event_ended").
		Msg("event ended")
	if r.publishing || r.confirming {
		// In-flight work settles the record from its completion op.
		return
	}
	e.remove(r)
}

// scheduleDeferral arms the dwell timer at created+min_event_duration.
// A target already in the past runs the fire pipeline inline so cooldown,
// stationary and artifact checks still happen at fire time.
func (e *Engine) scheduleDeferral(r *record, now time.Time) {
	target := r.createdAt.Add(e.set.MinEventDuration())
	if !target.After(now) {
		e.firePipeline(r, now)
		return
	}

	r.timerGen++
	gen := r.timerGen
	id := r.id
	r.timerLive = true
	r.deferralAt = target
	r.timer = e.clk.AfterFunc(target.Sub(now), func() {
		e.post(func() { e.onDeferralFire(id, gen) })
	})
	metrics.RecordDeferralScheduled()
	e.logger.Debug().
		Str(feplog.FieldEventID, r.id).
		Time("fire_at", target).
		Str("event", "engine.deferral_scheduled").
		Msg("holding event until minimum duration elapses")
}

func (e *Engine) cancelDeferral(r *record) {
	if !r.timerLive {
		return
	}
	r.timer.Stop()
	r.timerLive = false
	r.timerGen++
	metrics.RecordDeferralCancelled()
}

func (e *Engine) onDeferralFire(id string, gen uint64) {
	r, ok := e.table[id]
	if !ok || r.timerGen != gen {
		// Cancelled or superseded after the timer goroutine fired.
		return
	}
	r.timerLive = false
	if r.status != event.StatusPending {
		return
	}
	e.firePipeline(r, e.clk.Now())
	metrics.SetLiveEvents(len(e.table))
}

// firePipeline re-evaluates a pending record with its current snapshot and
// drives it to commit, suppression, or back to waiting.
func (e *Engine) firePipeline(r *record, now time.Time) {
	out := e.evaluate(r, now)
	if !out.Allowed() {
		switch out.Reason.Kind() {
		case rules.KindWait:
			// Still pending; retried when the next update arrives.
		default:
			e.suppress(r, out.Reason)
		}
		return
	}

	dec := e.ledger.Check(r.camera, r.label, now, e.set.CameraCooldown(), e.set.LabelCooldown())
	if !dec.Allowed {
		metrics.RecordCooldownBlocked(dec.Scope)
		e.logger.Info().
			Str(feplog.FieldEventID, r.id).
			Str(feplog.FieldCamera, r.camera).
			Str("scope", dec.Scope).
			Time("until", dec.Until).
			Str("event", "engine.cooldown_blocked").
			Msg("alert suppressed by cooldown")
		e.suppress(r, rules.ReasonCooldown)
		return
	}

	needSnapshot := e.set.SnapshotRequired()
	needClip := e.set.ClipRequired()
	if e.conf != nil && e.frigate.VerifyArtifacts && (needSnapshot || needClip) {
		e.startConfirmation(r, now, needSnapshot, needClip)
		return
	}
	e.commitPublish(r, rules.ReasonAdmit)
}

// startConfirmation verifies artifact reachability off the loop; the
// outcome is posted back as an op. The record stays pending meanwhile, so
// an end frame can still abort cleanly.
func (e *Engine) startConfirmation(r *record, now time.Time, needSnapshot, needClip bool) {
	deadline := confirmDeadline
	if max := e.set.MaxEventDuration(); max > 0 {
		if remaining := r.createdAt.Add(max).Sub(now); remaining < deadline {
			deadline = remaining
		}
	}
	if deadline <= 0 {
		e.suppress(r, rules.ReasonTooOld)
		return
	}

	r.confirming = true
	id := r.id
	ctx := e.runCtx
	go func() {
		cctx, cancel := context.WithTimeout(ctx, deadline)
		err := e.conf.Confirm(cctx, id, needSnapshot, needClip)
		cancel()
		e.post(func() { e.onConfirmDone(id, err) })
	}()
}

func (e *Engine) onConfirmDone(id string, err error) {
	r, ok := e.table[id]
	if !ok {
		return
	}
	r.confirming = false
	if r.status == event.StatusTerminal {
		if !r.publishing {
			e.remove(r)
		}
		return
	}
	if r.status != event.StatusPending {
		return
	}
	if err != nil {
		reason := rules.ReasonNoSnapshot
		if errors.Is(err, artifacts.ErrClipUnavailable) {
			reason = rules.ReasonNoClip
		}
		e.logger.Info().
			Err(err).
			Str(feplog.FieldEventID, r.id).
			Str("event", "engine.artifact_unconfirmed").
			Msg("artifact confirmation failed")
		e.suppress(r, reason)
		return
	}
	e.commitPublish(r, rules.ReasonAdmit)
}

// commitPublish is the commit point: after this, an end frame no longer
// cancels the alert and no second publish can happen for this id.
func (e *Engine) commitPublish(r *record, reason rules.Reason) {
	old := r.status
	r.status = event.StatusAdmitted
	r.reason = ""
	r.publishing = true
	e.ledger.Reserve(r.camera, r.label)
	e.logger.Info().
		Str(feplog.FieldEventID, r.id).
		Str(feplog.FieldCamera, r.camera).
		Str(feplog.FieldLabel, r.label).
		Str(feplog.FieldOldStatus, string(old)).
		Str(feplog.FieldNewStatus, string(r.status)).
		Str("event", "engine.event_admitted").
		Msg("event admitted, publishing alert")

	alert := e.buildAlert(r, reason)
	id := r.id
	started := e.clk.Now()
	ctx := e.runCtx
	go func() {
		err := e.pub.Publish(ctx, alert)
		e.post(func() { e.onPublishDone(id, started, err) })
	}()
}

func (e *Engine) onPublishDone(id string, started time.Time, err error) {
	r, ok := e.table[id]
	if !ok {
		return
	}
	now := e.clk.Now()
	r.publishing = false
	r.alerted = true
	e.ledger.Release(r.camera, r.label)
	if err != nil {
		// The alert is dropped; alerted stays true so a retry burst can
		// never double-publish this id.
		metrics.RecordPublishFailure(r.camera)
		e.logger.Error().
			Err(err).
			Str(feplog.FieldEventID, r.id).
			Str(feplog.FieldCamera, r.camera).
			Str("event", "engine.publish_failed").
			Msg("alert publish failed after all attempts")
	} else {
		e.ledger.Record(r.camera, r.label, now, e.set.CameraCooldown(), e.set.LabelCooldown())
		metrics.RecordPublish(r.camera, now.Sub(started))
		e.logger.Info().
			Str(feplog.FieldEventID, r.id).
			Str(feplog.FieldCamera, r.camera).
			Str(feplog.FieldLabel, r.label).
			Str("event", "engine.alert_published").
			Msg("alert published")
	}
	if r.status == event.StatusTerminal {
		e.remove(r)
	}
	metrics.SetLiveEvents(len(e.table))
}

func (e *Engine) evaluate(r *record, now time.Time) rules.Output {
	in := rules.Input{
		Camera:      r.camera,
		Label:       r.label,
		Zones:       r.zones,
		HasSnapshot: r.hasSnapshot,
		HasClip:     r.hasClip,
		CreatedAt:   r.createdAt,
		Stationary:  r.history.Stationary(e.set.MinEventDuration(), e.set.DisplacementThreshold()),
	}
	out := rules.Evaluate(in, e.set, now)
	metrics.RecordDecision(string(out.Verdict), string(out.Reason))
	return out
}

func (e *Engine) suppress(r *record, reason rules.Reason) {
	old := r.status
	r.status = event.StatusSuppressed
	r.reason = reason
	metrics.RecordSuppression(string(reason))
	e.logger.Info().
		Str(feplog.FieldEventID, r.id).
		Str(feplog.FieldCamera, r.camera).
		Str(feplog.FieldLabel, r.label).
		Str(feplog.FieldOldStatus, string(old)).
		Str(feplog.FieldNewStatus, string(r.status)).
		Str(feplog.FieldReason, string(reason)).
		Str("event", "engine.event_suppressed").
		Msg("event suppressed")
}

func (e *Engine) remove(r *record) {
	delete(e.table, r.id)
}

func (e *Engine) buildAlert(r *record, reason rules.Reason) publish.Alert {
	a := publish.Alert{
		EventID:   r.id,
		Camera:    r.camera,
		Label:     r.label,
		SubLabels: append([]string(nil), r.subLabels...),
		CreatedAt: r.createdAt,
		Zones:     append([]string(nil), r.zones...),
		Reason:    string(reason),
	}
	if base := e.frigate.BaseURL(); base != "" {
		if r.hasSnapshot {
			a.SnapshotURL = base + "/api/events/" + r.id + "/snapshot.jpg"
		}
		if r.hasClip {
			a.ClipURL = base + "/api/events/" + r.id + "/clip.mp4"
		}
	}
	return a
}
