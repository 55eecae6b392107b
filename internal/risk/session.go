package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session is the NY-calendar trading window detected by the optional
// session-aware size damper. It never affects the base scaling math — it
// only scales the result down further when a copier opts in via
// Copier.SessionAware.
type Session string

const (
	SessionClosed  Session = "closed"
	SessionAsia    Session = "asia"
	SessionLondon  Session = "london"
	SessionNewYork Session = "new_york"
	SessionLull    Session = "lull"
)

// window is one entry of the session clock: NY hours [start, end) map to
// a named session. start > end wraps past midnight (the Asia session
// spans 20:00 through 03:00). Hours not covered by any entry fall through
// to SessionLull.
type window struct {
	session    Session
	start, end int
}

var sessionClock = []window{
	{SessionLondon, 3, 9},
	{SessionNewYork, 9, 17},
	{SessionAsia, 20, 3},
}

// Damping is the per-session multiplier table DampForSession applies on
// top of the scaling-strategy result.
type Damping map[Session]decimal.Decimal

// DefaultDamping matches the factors the desk has used in practice: full
// size through the London/New York day, three quarters in the Asia
// session, and a hard cut during the post-close lull and across the
// weekend/holiday close.
func DefaultDamping() Damping {
	return Damping{
		SessionLondon:  decimal.NewFromInt(1),
		SessionNewYork: decimal.NewFromInt(1),
		SessionAsia:    decimal.NewFromFloat(0.75),
		SessionLull:    decimal.NewFromFloat(0.15),
		SessionClosed:  decimal.NewFromFloat(0.15),
	}
}

// DampForSession applies the session-aware size damper to an already
// scaled contract count. A copier only reaches this function when its
// SessionAware flag is set; callers pass the output of the FIXED /
// PERCENTAGE / BALANCE_BASED strategy as baseContracts. The returned
// session is informational, for the execution log. A damped size is never
// floored to zero while the market is open — the floor is 1 contract —
// but the weekly close and federal holidays damp all the way to flat.
func DampForSession(baseContracts int, now time.Time, damping Damping) (int, Session) {
	if baseContracts <= 0 {
		return 0, SessionClosed
	}

	et := newYorkTime(now)
	if marketClosed(et) {
		return 0, SessionClosed
	}

	sess := sessionAt(et.Hour())
	factor, ok := damping[sess]
	if !ok {
		factor = damping[SessionLull]
	}

	scaled := decimal.NewFromInt(int64(baseContracts)).Mul(factor).Floor().IntPart()
	if scaled < 1 {
		scaled = 1
	}
	return int(scaled), sess
}

func newYorkTime(t time.Time) time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}

// marketClosed reports whether et falls in the weekly futures close
// (Friday 17:00 NY through Sunday 18:00 NY, the Globex reopen) or on a
// full-day holiday from the federal market calendar.
func marketClosed(et time.Time) bool {
	if isMarketHoliday(et) {
		return true
	}
	switch et.Weekday() {
	case time.Friday:
		return et.Hour() >= 17
	case time.Saturday:
		return true
	case time.Sunday:
		return et.Hour() < 18
	default:
		return false
	}
}

func sessionAt(hour int) Session {
	for _, w := range sessionClock {
		if w.start <= w.end {
			if hour >= w.start && hour < w.end {
				return w.session
			}
			continue
		}
		if hour >= w.start || hour < w.end {
			return w.session
		}
	}
	return SessionLull
}

// holidayFunc computes the date one federal market holiday falls on for a
// given year.
type holidayFunc func(year int) time.Time

var marketHolidays = []holidayFunc{
	observedNewYearsDay,
	nthWeekday(time.January, time.Monday, 3),    // MLK Day
	nthWeekday(time.February, time.Monday, 3),   // Presidents' Day
	lastMondayOfMay,                             // Memorial Day
	observedIndependenceDay,
	nthWeekday(time.September, time.Monday, 1),  // Labor Day
	nthWeekday(time.November, time.Thursday, 4), // Thanksgiving
	observedChristmas,
}

func isMarketHoliday(et time.Time) bool {
	for _, h := range marketHolidays {
		if sameDate(h(et.Year()), et) {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func observedNewYearsDay(year int) time.Time {
	return rollSundayForward(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC))
}

func observedIndependenceDay(year int) time.Time {
	return rollSundayForward(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC))
}

func observedChristmas(year int) time.Time {
	return rollSundayForward(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC))
}

// rollSundayForward observes a fixed holiday that falls on a Sunday on the
// following Monday, matching the federal holiday convention.
func rollSundayForward(d time.Time) time.Time {
	if d.Weekday() == time.Sunday {
		return d.AddDate(0, 0, 1)
	}
	return d
}

func lastMondayOfMay(year int) time.Time {
	d := time.Date(year, time.May, 31, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// nthWeekday returns a holidayFunc for the n-th (1-indexed) occurrence of
// weekday in month, for whatever year it is called with.
func nthWeekday(month time.Month, weekday time.Weekday, n int) holidayFunc {
	return func(year int) time.Time {
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		delta := (int(weekday-first.Weekday()) + 7) % 7
		return first.AddDate(0, 0, delta+(n-1)*7)
	}
}
