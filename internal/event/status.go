package event

// Status is the lifecycle state of a live event record.
//
// Transitions are monotone: pending may move to admitted, suppressed or
// terminal; admitted and suppressed only to terminal. The single exception
// is suppressed back to pending when a previously missing snapshot or clip
// arrives within the max event duration.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAdmitted   Status = "admitted"
	StatusSuppressed Status = "suppressed"
	StatusTerminal   Status = "terminal"
)
