// Package rules implements the pure admission decision for event frames.
// Evaluation never mutates its inputs and never blocks; everything the
// decision needs is passed in.
package rules

import "time"

// Verdict is the overall outcome of an evaluation.
type Verdict string

const (
	VerdictAdmit Verdict = "admit"
	VerdictDeny  Verdict = "deny"
)

// Reason explains a verdict. Admit carries ReasonAdmit; every deny names
// the first check that failed, in evaluation order.
type Reason string

const (
	ReasonAdmit               Reason = "admit"
	ReasonNoRule              Reason = "no-rule"
	ReasonLabel               Reason = "label"
	ReasonIgnoredZone         Reason = "ignored-zone"
	ReasonMissingRequiredZone Reason = "missing-required-zone"
	ReasonTooOld              Reason = "too-old"
	ReasonNoSnapshot          Reason = "no-snapshot"
	ReasonNoClip              Reason = "no-clip"
	ReasonStationary          Reason = "stationary"
	ReasonCooldown            Reason = "cooldown"
	ReasonRuleError           Reason = "rule-error"
	ReasonForced              Reason = "forced"
)

// Kind classifies deny reasons for the admission engine.
//
//   - KindFatal denials suppress the event for its remaining lifetime.
//   - KindWait denials mean "not yet qualified": the record stays pending
//     and is re-evaluated on later frames.
//   - KindArtifact denials suppress but may be lifted once the missing
//     snapshot or clip arrives within the max event duration.
type Kind int

const (
	KindNone Kind = iota
	KindFatal
	KindWait
	KindArtifact
)

// Kind returns the classification of a reason.
func (r Reason) Kind() Kind {
	switch r {
	case ReasonAdmit, ReasonForced:
		return KindNone
	case ReasonMissingRequiredZone:
		return KindWait
	case ReasonNoSnapshot, ReasonNoClip:
		return KindArtifact
	default:
		return KindFatal
	}
}

// Input is a point-in-time snapshot of one live event.
type Input struct {
	Camera      string
	Label       string
	Zones       []string
	HasSnapshot bool
	HasClip     bool
	CreatedAt   time.Time
	Stationary  bool
}

// Output is the evaluation result.
type Output struct {
	Verdict Verdict
	Reason  Reason
}

// Allowed reports whether the verdict admits the event.
func (o Output) Allowed() bool {
	return o.Verdict == VerdictAdmit
}

func admit() Output {
	return Output{Verdict: VerdictAdmit, Reason: ReasonAdmit}
}

func deny(reason Reason) Output {
	return Output{Verdict: VerdictDeny, Reason: reason}
}
