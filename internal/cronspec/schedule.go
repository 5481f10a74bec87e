package cronspec

import "time"

// maxYearsAhead bounds the search for a next-fire instant so a pathological
// expression (e.g. Feb 30, which never matches) cannot loop forever.
const maxYearsAhead = 5

// Next returns the smallest instant strictly after from that satisfies the
// expression, decomposed in loc. A matching hour that a spring-forward gap
// removes fires once, at the first wall clock after the gap, and a wall
// clock that a fall-back transition repeats fires only at its first
// occurrence.
//
// Returns the zero time if no match is found within maxYearsAhead years,
// which happens only for a self-contradictory expression (e.g. February
// 30th); Parse does not reject such an expression.
func (e *Expression) Next(from time.Time, loc *time.Location) time.Time {
	t := from.In(loc)
	// Smallest minute-aligned instant strictly after "from".
	t = t.Add(time.Minute).Truncate(time.Minute)

	yearLimit := t.Year() + maxYearsAhead

WRAP:
	if t.Year() > yearLimit {
		return time.Time{}
	}

	for e.month&(1<<uint(t.Month())) == 0 {
		t = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
		if t.Month() == time.January {
			goto WRAP
		}
	}

	for !e.dayMatches(t) {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		if t.Day() == 1 {
			goto WRAP
		}
	}

	for e.hour&(1<<uint(t.Hour())) == 0 {
		// A spring-forward gap just before t that skipped a matching hour
		// fires at t, the first wall clock after the gap.
		if prev := t.Add(-time.Minute); prev.Day() == t.Day() &&
			e.hour&((1<<uint(t.Hour())-1)&^(2<<uint(prev.Hour())-1)) != 0 {
			return t
		}
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc).Add(time.Hour)
		if t.Hour() == 0 {
			goto WRAP
		}
	}

	for e.minute&(1<<uint(t.Minute())) == 0 {
		t = t.Add(time.Minute)
		if t.Minute() == 0 {
			goto WRAP
		}
	}

	// A wall clock repeated by a fall-back transition fires only at its
	// first occurrence: t is the repeat if shifting it back by the offset
	// change lands on the same wall clock.
	_, off := t.Zone()
	if _, offBefore := t.Add(-2 * time.Hour).Zone(); offBefore > off {
		if u := t.Add(-time.Duration(offBefore-off) * time.Second); u.Day() == t.Day() && u.Hour() == t.Hour() && u.Minute() == t.Minute() {
			t = t.Add(time.Minute)
			goto WRAP
		}
	}

	return t
}

// dayMatches applies the standard cron union rule: if both day-of-month
// and day-of-week are restricted (neither "*"), a day matches if EITHER
// condition holds; if only one is restricted, that one alone governs.
func (e *Expression) dayMatches(t time.Time) bool {
	domMatch := e.dom&(1<<uint(t.Day())) != 0
	dowMatch := e.dow&(1<<uint(t.Weekday())) != 0

	switch {
	case e.domStar && e.dowStar:
		return true
	case e.domStar:
		return dowMatch
	case e.dowStar:
		return domMatch
	default:
		return domMatch || dowMatch
	}
}

// Satisfies reports whether t's wall-clock decomposition in loc matches the
// expression exactly at minute granularity. Used by property tests to
// verify Next's round-trip invariant: no instant strictly between from
// and Next(from) also satisfies the expression.
func (e *Expression) Satisfies(t time.Time, loc *time.Location) bool {
	t = t.In(loc)
	if e.month&(1<<uint(t.Month())) == 0 {
		return false
	}
	if !e.dayMatches(t) {
		return false
	}
	if e.hour&(1<<uint(t.Hour())) == 0 {
		return false
	}
	if e.minute&(1<<uint(t.Minute())) == 0 {
		return false
	}
	return true
}
