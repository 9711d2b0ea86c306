// Package availability decides whether a proposed booking interval is legal for a trainer.
// Everything here is pure and safe for concurrent use.
package availability

import (
	"time"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/schedule"
)

// Reason classifies a rejection. The values are stable and shown to users verbatim.
type Reason string

const (
	NotAvailableThisDay   Reason = "NOT_AVAILABLE_THIS_DAY"
	OutsideAvailableHours Reason = "OUTSIDE_AVAILABLE_HOURS"
	SlotAlreadyBooked     Reason = "SLOT_ALREADY_BOOKED"
	InvalidInterval       Reason = "INVALID_INTERVAL"
)

// Verdict is the outcome of Resolve. Reason is empty when Available is true.
type Verdict struct {
	Available bool   `json:"available"`
	Reason    Reason `json:"reason,omitempty"`
}

// Accept is the verdict for an interval that can be booked.
func Accept() Verdict { return Verdict{Available: true} }

// Reject is the verdict for an interval refused for reason r.
func Reject(r Reason) Verdict { return Verdict{Reason: r} }

// Interval is a half-open range of instants [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether a and b share at least one instant. Touching ends do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Resolve checks [start, end) against the weekly availability and the trainer's confirmed
// bookings. Checks run in order and stop at the first failure:
//
//  1. the weekday of start, in the trainer's zone, must have at least one window
//  2. one single window, anchored on start's local date, must contain the whole interval
//  3. the interval must not overlap any existing booking
//
// An interval with end <= start is rejected as INVALID_INTERVAL before any of these.
func Resolve(start, end time.Time, weekly schedule.Weekly, existing []Interval) Verdict {
	if !end.After(start) {
		return Reject(InvalidInterval)
	}

	loc := weekly.Location()
	local := start.In(loc)
	windows := weekly.Windows(local.Weekday())
	if len(windows) == 0 {
		return Reject(NotAvailableThisDay)
	}

	contained := false
	for _, w := range windows {
		ws, we := w.On(local, loc)
		if !start.Before(ws) && !end.After(we) {
			contained = true
			break
		}
	}
	if !contained {
		return Reject(OutsideAvailableHours)
	}

	req := Interval{Start: start, End: end}
	for _, b := range existing {
		if Overlaps(req, b) {
			return Reject(SlotAlreadyBooked)
		}
	}
	return Accept()
}

// WindowsOn returns the trainer's windows for the calendar date of day (in the trainer's
// zone) as absolute intervals.
func WindowsOn(weekly schedule.Weekly, day time.Time) []Interval {
	loc := weekly.Location()
	local := day.In(loc)
	windows := weekly.Windows(local.Weekday())
	out := make([]Interval, 0, len(windows))
	for _, w := range windows {
		s, e := w.On(local, loc)
		out = append(out, Interval{Start: s, End: e})
	}
	return out
}
