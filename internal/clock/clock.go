// Package clock derives the market phase of an instant from the Korea
// Standard Time exchange calendar. It is L0 in the fabric: a pure
// function of (now, location), no mutable state, no I/O.
package clock

import (
	"time"

	"github.com/peter0524/service-fabric/internal/domain"
)

// KST is the exchange time zone. Falls back to a fixed +9h offset if the
// tzdata database is unavailable in the runtime image.
var KST = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}()

// MarketClock is the default domain.Clock implementation: regular trading
// hours are 09:00-15:30 KST on weekdays.
type MarketClock struct {
	Location                      *time.Location
	OpenHour, OpenMinute           int
	CloseHour, CloseMinute         int
}

// NewMarketClock returns a MarketClock configured for the standard KRX
// trading session (09:00-15:30 KST).
func NewMarketClock() MarketClock {
	return MarketClock{
		Location:    KST,
		OpenHour:    9,
		OpenMinute:  0,
		CloseHour:   15,
		CloseMinute: 30,
	}
}

// Phase implements domain.Clock.
func (c MarketClock) Phase(now time.Time) domain.MarketPhase {
	loc := c.Location
	if loc == nil {
		loc = KST
	}
	local := now.In(loc)

	if weekday := local.Weekday(); weekday == time.Saturday || weekday == time.Sunday {
		return domain.PhaseWeekend
	}

	openMinutes := c.OpenHour*60 + c.OpenMinute
	closeMinutes := c.CloseHour*60 + c.CloseMinute
	nowMinutes := local.Hour()*60 + local.Minute()

	switch {
	case nowMinutes < openMinutes:
		return domain.PhasePreMarket
	case nowMinutes < closeMinutes:
		return domain.PhaseMarketHours
	default:
		return domain.PhaseAfterMarket
	}
}

// InPeakWindow reports whether now falls within the 07:30-09:30 or
// 14:30-16:30 KST news peak windows (spec's News interval is 10 minutes
// during these windows, 60 minutes otherwise). The windows are passed in
// by the caller; the scheduler's DefaultTable passes
// DefaultNewsPeakWindows.
func InPeakWindow(now time.Time, windows []PeakWindow) bool {
	local := now.In(KST)
	minutes := local.Hour()*60 + local.Minute()
	for _, w := range windows {
		if minutes >= w.StartMinute && minutes < w.EndMinute {
			return true
		}
	}
	return false
}

// PeakWindow is an inclusive-start/exclusive-end minute-of-day range.
type PeakWindow struct {
	StartMinute int
	EndMinute   int
}

// DefaultNewsPeakWindows returns the documented default: 07:30-09:30 and
// 14:30-16:30 KST.
func DefaultNewsPeakWindows() []PeakWindow {
	return []PeakWindow{
		{StartMinute: 7*60 + 30, EndMinute: 9*60 + 30},
		{StartMinute: 14*60 + 30, EndMinute: 16*60 + 30},
	}
}

// InAnchorWindow reports whether now's wall-clock hour (and, for weekly
// anchors, weekday) matches the given anchor, with minute-granularity
// inclusive-start/exclusive-end semantics matching the 18:00-18:59 /
// Sunday-20:00 examples in the interval table.
func InAnchorWindow(now time.Time, a Anchor) bool {
	local := now.In(KST)
	if a.Weekday != nil && local.Weekday() != *a.Weekday {
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= a.StartMinute && minutes < a.EndMinute
}

// SameKSTDate reports whether a and b fall on the same calendar date in
// the exchange time zone, used to scope "already ran this session"
// checks (e.g. Chart's post-close IdleAfter) to a single AfterMarket
// session rather than comparing raw elapsed duration across days.
func SameKSTDate(a, b time.Time) bool {
	la, lb := a.In(KST), b.In(KST)
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}

// Anchor is a wall-clock constraint additional to interval gating.
type Anchor struct {
	Weekday     *time.Weekday
	StartMinute int
	EndMinute   int
}

// FlowAnchor is the Flow worker's daily 18:00-18:59 KST anchor.
func FlowAnchor() Anchor {
	return Anchor{StartMinute: 18 * 60, EndMinute: 19 * 60}
}

// ReportAnchor is the Report worker's weekly Sunday 20:00 KST anchor. The
// spec requires at least a 6-day gap since the last run in addition to
// the window match; that gap check lives in the scheduler package since
// it needs last_execution_at, not just now.
func ReportAnchor() Anchor {
	sunday := time.Sunday
	return Anchor{Weekday: &sunday, StartMinute: 20 * 60, EndMinute: 21 * 60}
}
