package wizard

import "fmt"

// ControlState says which controls carry the active marker.
type ControlState struct {
	Back   bool
	Next   bool
	Submit bool
}

// ControlsFor derives control activity from the step position.
//
// The rules are evaluated in order and a later match overrides an earlier
// one, so a single-step wizard (active 0, total 1) ends with back and submit
// active and next inactive.
func ControlsFor(active, total int) ControlState {
	var s ControlState
	if active == 0 {
		s = ControlState{Back: false, Next: true, Submit: false}
	}
	if active > 0 && active < total-1 {
		s = ControlState{Back: true, Next: true, Submit: false}
	}
	if active >= total-1 {
		s = ControlState{Back: true, Next: false, Submit: true}
	}
	return s
}

// Progress returns the progress readout, e.g. "2/5".
func Progress(active, total int) string {
	return fmt.Sprintf("%d/%d", active+1, total)
}
