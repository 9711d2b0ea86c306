package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/schedule"
)

func mustWeekly(t *testing.T, raw map[string][]string, tz string) schedule.Weekly {
	t.Helper()
	w, err := schedule.ParseWeekly(raw, tz)
	if err != nil {
		t.Fatalf("ParseWeekly: %v", err)
	}
	return w
}

// 2025-01-03 is a Friday.
func friday(hour, min int) time.Time {
	return time.Date(2025, 1, 3, hour, min, 0, 0, time.UTC)
}

func TestResolveScenarios(t *testing.T) {
	nineToFive := map[string][]string{"fri": {"09:00-17:00"}}
	lunchGap := map[string][]string{"fri": {"09:00-12:00", "13:00-17:00"}}

	cases := []struct {
		name     string
		raw      map[string][]string
		start    time.Time
		end      time.Time
		bookings []Interval
		want     Verdict
	}{
		{
			name:  "free slot inside hours",
			raw:   nineToFive,
			start: friday(14, 0),
			end:   friday(15, 0),
			want:  Verdict{Available: true},
		},
		{
			name:     "exact match with existing booking",
			raw:      nineToFive,
			start:    friday(10, 0),
			end:      friday(11, 0),
			bookings: []Interval{{Start: friday(10, 0), End: friday(11, 0)}},
			want:     Reject(SlotAlreadyBooked),
		},
		{
			name:  "after hours",
			raw:   nineToFive,
			start: friday(18, 0),
			end:   friday(19, 0),
			want:  Reject(OutsideAvailableHours),
		},
		{
			name:  "saturday has no key",
			raw:   nineToFive,
			start: time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 1, 4, 11, 0, 0, 0, time.UTC),
			want:  Reject(NotAvailableThisDay),
		},
		{
			name:  "straddles lunch gap",
			raw:   lunchGap,
			start: friday(11, 30),
			end:   friday(13, 30),
			want:  Reject(OutsideAvailableHours),
		},
		{
			name:  "inverted interval",
			raw:   nineToFive,
			start: friday(11, 0),
			end:   friday(10, 0),
			want:  Reject(InvalidInterval),
		},
		{
			name:  "empty interval",
			raw:   nineToFive,
			start: friday(11, 0),
			end:   friday(11, 0),
			want:  Reject(InvalidInterval),
		},
		{
			name:  "window edges are inclusive",
			raw:   nineToFive,
			start: friday(9, 0),
			end:   friday(17, 0),
			want:  Verdict{Available: true},
		},
	}
	for _, tc := range cases {
		weekly := mustWeekly(t, tc.raw, "")
		if got := Resolve(tc.start, tc.end, weekly, tc.bookings); got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestResolveDayCheckWinsOverEverything(t *testing.T) {
	cases := []map[string][]string{
		{"fri": {"09:00-17:00"}},
		{"fri": {"09:00-17:00"}, "sat": {}},
		{},
	}
	sat := time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC)
	busy := []Interval{{Start: sat, End: sat.Add(time.Hour)}}
	for _, raw := range cases {
		weekly := mustWeekly(t, raw, "")
		for _, dur := range []time.Duration{time.Minute, time.Hour, 20 * time.Hour} {
			if got := Resolve(sat, sat.Add(dur), weekly, busy); got.Reason != NotAvailableThisDay {
				t.Fatalf("raw=%v dur=%s: expected NOT_AVAILABLE_THIS_DAY, got %+v", raw, dur, got)
			}
		}
	}
}

func TestResolveHoursCheckPrecedesOverlap(t *testing.T) {
	weekly := mustWeekly(t, map[string][]string{"fri": {"09:00-17:00"}}, "")
	busy := []Interval{{Start: friday(16, 0), End: friday(18, 0)}}
	if got := Resolve(friday(16, 30), friday(17, 30), weekly, busy); got.Reason != OutsideAvailableHours {
		t.Fatalf("expected OUTSIDE_AVAILABLE_HOURS, got %+v", got)
	}
}

func TestResolveAdjacentWindowsAreNotMerged(t *testing.T) {
	weekly := mustWeekly(t, map[string][]string{"fri": {"09:00-09:30", "09:30-17:00"}}, "")
	if got := Resolve(friday(9, 0), friday(10, 0), weekly, nil); got.Reason != OutsideAvailableHours {
		t.Fatalf("expected OUTSIDE_AVAILABLE_HOURS, got %+v", got)
	}
	if got := Resolve(friday(9, 30), friday(10, 30), weekly, nil); !got.Available {
		t.Fatalf("expected available inside the second window, got %+v", got)
	}
}

// Every placement of a one hour booking relative to a 10:00-11:00 request, in five minute
// steps, must be reported as booked exactly when the two share an instant.
func TestResolveOverlapIsHalfOpen(t *testing.T) {
	weekly := mustWeekly(t, map[string][]string{"fri": {"00:00-24:00"}}, "")
	reqStart, reqEnd := friday(10, 0), friday(11, 0)

	for offset := -90; offset <= 90; offset += 5 {
		bStart := reqStart.Add(time.Duration(offset) * time.Minute)
		for _, length := range []time.Duration{5 * time.Minute, time.Hour, 3 * time.Hour} {
			b := Interval{Start: bStart, End: bStart.Add(length)}
			shares := bStart.Before(reqEnd) && b.End.After(reqStart)

			got := Resolve(reqStart, reqEnd, weekly, []Interval{b})
			if shares && got.Reason != SlotAlreadyBooked {
				t.Fatalf("booking %s-%s: expected SLOT_ALREADY_BOOKED, got %+v", b.Start.Format("15:04"), b.End.Format("15:04"), got)
			}
			if !shares && !got.Available {
				t.Fatalf("booking %s-%s: expected available, got %+v", b.Start.Format("15:04"), b.End.Format("15:04"), got)
			}
			if Overlaps(Interval{Start: reqStart, End: reqEnd}, b) != Overlaps(b, Interval{Start: reqStart, End: reqEnd}) {
				t.Fatal("Overlaps must be symmetric")
			}
		}
	}
}

func TestResolveTouchingBookingsAreFree(t *testing.T) {
	weekly := mustWeekly(t, map[string][]string{"fri": {"09:00-17:00"}}, "")
	busy := []Interval{
		{Start: friday(9, 0), End: friday(10, 0)},
		{Start: friday(11, 0), End: friday(12, 0)},
	}
	if got := Resolve(friday(10, 0), friday(11, 0), weekly, busy); !got.Available {
		t.Fatalf("expected available between touching bookings, got %+v", got)
	}
}

func TestResolveUsesTrainerZone(t *testing.T) {
	weekly := mustWeekly(t, map[string][]string{"fri": {"09:00-17:00"}}, "Asia/Tokyo")

	// 00:30 UTC on Friday is 09:30 Friday in Tokyo.
	start := time.Date(2025, 1, 3, 0, 30, 0, 0, time.UTC)
	if got := Resolve(start, start.Add(time.Hour), weekly, nil); !got.Available {
		t.Fatalf("expected available in trainer zone, got %+v", got)
	}

	// 20:00 UTC Friday is already Saturday 05:00 in Tokyo.
	late := time.Date(2025, 1, 3, 20, 0, 0, 0, time.UTC)
	if got := Resolve(late, late.Add(time.Hour), weekly, nil); got.Reason != NotAvailableThisDay {
		t.Fatalf("expected NOT_AVAILABLE_THIS_DAY in trainer zone, got %+v", got)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	weekly := mustWeekly(t, map[string][]string{"fri": {"09:00-12:00", "13:00-17:00"}}, "")
	busy := []Interval{{Start: friday(10, 0), End: friday(11, 0)}}
	inputs := [][2]time.Time{
		{friday(9, 0), friday(10, 0)},
		{friday(10, 30), friday(11, 30)},
		{friday(11, 30), friday(13, 30)},
	}
	for _, in := range inputs {
		first := Resolve(in[0], in[1], weekly, busy)
		for i := 0; i < 5; i++ {
			if got := Resolve(in[0], in[1], weekly, busy); got != first {
				t.Fatalf("call %d returned %+v, first call returned %+v", i, got, first)
			}
		}
	}
}

func TestWindowsOn(t *testing.T) {
	weekly := mustWeekly(t, map[string][]string{"fri": {"09:00-12:00", "13:00-17:00"}}, "")
	got := WindowsOn(weekly, friday(0, 0))
	if len(got) != 2 || !got[0].Start.Equal(friday(9, 0)) || !got[1].End.Equal(friday(17, 0)) {
		t.Fatalf("unexpected windows %+v", got)
	}
	if len(WindowsOn(weekly, friday(0, 0).AddDate(0, 0, 1))) != 0 {
		t.Fatal("expected no windows on saturday")
	}
}
