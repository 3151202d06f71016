package report

import (
	"momox-agent/services/scan"
)

// Change classifies an isbn's day-over-day availability transition.
type Change int

const (
	ChangeNone Change = iota
	ChangeNew
	ChangeNowAvailable
	ChangeNoLongerAvailable
)

func (c Change) String() string {
	switch c {
	case ChangeNew:
		return "NEW"
	case ChangeNowAvailable:
		return "NOW AVAILABLE"
	case ChangeNoLongerAvailable:
		return "NO LONGER AVAILABLE"
	}
	return ""
}

// Detect compares today's outcome with the persisted baseline.
// errored outcomes carry no availability information and never
// produce a transition, they are reported in their own section.
func Detect(outcome scan.Outcome, history scan.History) Change {
	if outcome.Errored() {
		return ChangeNone
	}
	previous, ok := history[outcome.Isbn]
	if !ok {
		return ChangeNew
	}
	if !previous.Available && outcome.Buyable() {
		return ChangeNowAvailable
	}
	if previous.Available && !outcome.Buyable() {
		return ChangeNoLongerAvailable
	}
	return ChangeNone
}
