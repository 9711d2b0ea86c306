// Package schedule holds a trainer's recurring weekly availability in parsed form.
//
// Windows are stored as minute-of-day pairs and stay in the trainer's wall clock; they
// become absolute instants only when anchored on a concrete date in the trainer's zone.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

var (
	ErrUnknownDay     = errors.New("unknown day code")
	ErrInvalidWindow  = errors.New("invalid time window")
	ErrOverlapWindows = errors.New("overlapping time windows")
	ErrUnknownZone    = errors.New("unknown time zone")
)

var dayCodes = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// ParseDay maps a three-letter lowercase code to its weekday. Matching is exact so the
// result never depends on the server locale.
func ParseDay(code string) (time.Weekday, error) {
	for i, c := range dayCodes {
		if c == code {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDay, code)
}

func DayCode(d time.Weekday) string {
	if d < time.Sunday || d > time.Saturday {
		return ""
	}
	return dayCodes[d]
}

// Window is a half-open wall-clock range [StartMinute, EndMinute) within one day.
type Window struct {
	StartMinute int
	EndMinute   int
}

// ParseWindow parses "HH:MM-HH:MM". "24:00" is accepted as an end of day marker only.
func ParseWindow(raw string) (Window, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidWindow, raw)
	}
	start, err := parseClock(from, false)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, raw, err)
	}
	end, err := parseClock(to, true)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q: %v", ErrInvalidWindow, raw, err)
	}
	if start >= end {
		return Window{}, fmt.Errorf("%w: %q: start must be before end", ErrInvalidWindow, raw)
	}
	return Window{StartMinute: start, EndMinute: end}, nil
}

func parseClock(s string, allowEndOfDay bool) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, errors.New("want HH:MM")
	}
	h, ok := twoDigits(s[:2])
	if !ok {
		return 0, errors.New("bad hour")
	}
	m, ok := twoDigits(s[3:])
	if !ok {
		return 0, errors.New("bad minute")
	}
	if h == 24 && m == 0 && allowEndOfDay {
		return minutesPerDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errors.New("clock out of range")
	}
	return h*60 + m, nil
}

// twoDigits accepts exactly two ASCII digits; signs and spaces are rejected.
func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func (w Window) String() string {
	return formatClock(w.StartMinute) + "-" + formatClock(w.EndMinute)
}

func formatClock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// On anchors the window on date's calendar day in loc. time.Date resolves the wall clock
// in loc, so a window keeps its local hours across DST changes.
func (w Window) On(date time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, 0, w.StartMinute, 0, 0, loc), time.Date(y, m, d, 0, w.EndMinute, 0, 0, loc)
}

// Weekly is a validated weekly availability. The zero value has no windows and uses UTC.
type Weekly struct {
	loc  *time.Location
	days [7][]Window
}

// ParseWeekly validates raw availability as stored on the wire. An empty tz means UTC.
// Windows within a day are sorted; touching windows are kept apart, overlapping ones are
// rejected.
func ParseWeekly(raw map[string][]string, tz string) (Weekly, error) {
	var w Weekly
	loc, err := LoadZone(tz)
	if err != nil {
		return Weekly{}, err
	}
	w.loc = loc

	for code, ranges := range raw {
		day, err := ParseDay(code)
		if err != nil {
			return Weekly{}, err
		}
		windows := make([]Window, 0, len(ranges))
		for _, r := range ranges {
			win, err := ParseWindow(r)
			if err != nil {
				return Weekly{}, fmt.Errorf("%s: %w", code, err)
			}
			windows = append(windows, win)
		}
		sort.Slice(windows, func(i, j int) bool { return windows[i].StartMinute < windows[j].StartMinute })
		for i := 1; i < len(windows); i++ {
			if windows[i].StartMinute < windows[i-1].EndMinute {
				return Weekly{}, fmt.Errorf("%w: %s %s and %s", ErrOverlapWindows, code, windows[i-1], windows[i])
			}
		}
		if len(windows) > 0 {
			w.days[day] = windows
		}
	}
	return w, nil
}

// LoadZone resolves an IANA zone name, defaulting to UTC.
func LoadZone(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, tz)
	}
	return loc, nil
}

func (w Weekly) Location() *time.Location {
	if w.loc == nil {
		return time.UTC
	}
	return w.loc
}

func (w Weekly) TimeZone() string {
	return w.Location().String()
}

// Windows returns the windows declared for d, ordered by start.
func (w Weekly) Windows(d time.Weekday) []Window {
	if d < time.Sunday || d > time.Saturday {
		return nil
	}
	return w.days[d]
}

// IsEmpty reports whether the trainer accepts bookings on no day at all.
func (w Weekly) IsEmpty() bool {
	for _, d := range w.days {
		if len(d) > 0 {
			return false
		}
	}
	return true
}

// Format renders the canonical wire form. Days without windows are omitted.
func (w Weekly) Format() map[string][]string {
	out := make(map[string][]string)
	for i, windows := range w.days {
		if len(windows) == 0 {
			continue
		}
		ranges := make([]string, 0, len(windows))
		for _, win := range windows {
			ranges = append(ranges, win.String())
		}
		out[dayCodes[i]] = ranges
	}
	return out
}
