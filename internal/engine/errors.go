package engine

import "errors"

var (
	// ErrUnknownEvent is returned for lookups and force-alerts of ids the
	// table does not hold.
	ErrUnknownEvent = errors.New("unknown event id")

	// ErrAlreadyAlerted guards the one-publish-per-id invariant against
	// repeated force-alert requests.
	ErrAlreadyAlerted = errors.New("event already alerted")

	// ErrEventEnded rejects force-alerts for events that already ended.
	ErrEventEnded = errors.New("event already ended")

	// ErrEngineStopped is returned when an operation is posted to an
	// engine whose loop has exited.
	ErrEngineStopped = errors.New("engine stopped")
)
