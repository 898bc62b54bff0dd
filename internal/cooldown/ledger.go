// Package cooldown tracks recent publishes per camera and per camera+label
// so repeated alerts keep their configured spacing. The ledger lives in
// memory only; a process restart deliberately starts with a clean slate.
package cooldown

import "time"

type labelKey struct {
	camera string
	label  string
}

// Decision is the outcome of a cooldown check.
type Decision struct {
	Allowed bool
	Scope   string    // "camera" or "label" when blocked
	Until   time.Time // earliest instant a publish becomes allowed again
}

// Ledger records last successful publish times. It is owned by the engine
// goroutine; writes only happen after a publish succeeded. Reservations
// cover the in-flight window between the admission decision and the
// publish result so overlapping events cannot both pass the gate.
type Ledger struct {
	byCamera map[string]time.Time
	byLabel  map[labelKey]time.Time

	reservedCamera map[string]int
	reservedLabel  map[labelKey]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		byCamera:       make(map[string]time.Time),
		byLabel:        make(map[labelKey]time.Time),
		reservedCamera: make(map[string]int),
		reservedLabel:  make(map[labelKey]int),
	}
}

// Check reports whether a publish for camera+label is allowed at now.
// A zero window disables that dimension entirely.
func (l *Ledger) Check(camera, label string, now time.Time, cameraWindow, labelWindow time.Duration) Decision {
	if cameraWindow > 0 {
		if l.reservedCamera[camera] > 0 {
			return Decision{Scope: "camera", Until: now.Add(cameraWindow)}
		}
		if last, ok := l.byCamera[camera]; ok {
			if elapsed := now.Sub(last); elapsed < cameraWindow {
				return Decision{Scope: "camera", Until: last.Add(cameraWindow)}
			}
		}
	}
	if labelWindow > 0 {
		key := labelKey{camera: camera, label: label}
		if l.reservedLabel[key] > 0 {
			return Decision{Scope: "label", Until: now.Add(labelWindow)}
		}
		if last, ok := l.byLabel[key]; ok {
			if elapsed := now.Sub(last); elapsed < labelWindow {
				return Decision{Scope: "label", Until: last.Add(labelWindow)}
			}
		}
	}
	return Decision{Allowed: true}
}

// Reserve marks a publish as in flight for camera+label.
func (l *Ledger) Reserve(camera, label string) {
	l.reservedCamera[camera]++
	l.reservedLabel[labelKey{camera: camera, label: label}]++
}

// Release drops an in-flight reservation taken with Reserve.
func (l *Ledger) Release(camera, label string) {
	if l.reservedCamera[camera] > 0 {
		l.reservedCamera[camera]--
		if l.reservedCamera[camera] == 0 {
			delete(l.reservedCamera, camera)
		}
	}
	key := labelKey{camera: camera, label: label}
	if l.reservedLabel[key] > 0 {
		l.reservedLabel[key]--
		if l.reservedLabel[key] == 0 {
			delete(l.reservedLabel, key)
		}
	}
}

// Record stores a successful publish at now and prunes entries that no
// window can still see.
func (l *Ledger) Record(camera, label string, now time.Time, cameraWindow, labelWindow time.Duration) {
	l.byCamera[camera] = now
	l.byLabel[labelKey{camera: camera, label: label}] = now
	l.prune(now, cameraWindow, labelWindow)
}

// Len returns the number of retained camera entries, for diagnostics.
func (l *Ledger) Len() int {
	return len(l.byCamera)
}

func (l *Ledger) prune(now time.Time, cameraWindow, labelWindow time.Duration) {
	horizon := cameraWindow
	if labelWindow > horizon {
		horizon = labelWindow
	}
	if horizon <= 0 {
		// Both dimensions disabled: nothing can ever block, drop everything.
		clear(l.byCamera)
		clear(l.byLabel)
		return
	}
	for camera, at := range l.byCamera {
		if now.Sub(at) >= horizon {
			delete(l.byCamera, camera)
		}
	}
	for key, at := range l.byLabel {
		if now.Sub(at) >= horizon {
			delete(l.byLabel, key)
		}
	}
}
