package cronspec

import (
	"fmt"
	"math/bits"
	"strings"
)

var commonDescriptions = map[string]string{
	"* * * * *":     "Every minute",
	"*/5 * * * *":    "Every 5 minutes",
	"*/10 * * * *":   "Every 10 minutes",
	"*/15 * * * *":   "Every 15 minutes",
	"*/30 * * * *":   "Every 30 minutes",
	"0 * * * *":      "Every hour",
	"0 0 * * *":      "Every day at midnight",
	"0 9 * * *":      "Every day at 9:00 AM",
	"0 0 * * 0":      "Every Sunday at midnight",
	"0 9 * * 1-5":    "Weekdays at 9:00 AM",
	"0 0 1 * *":      "On the 1st of every month at midnight",
	"0 0 1 1 *":      "Once a year on January 1st at midnight",
}

var monthNames = []string{"", "January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December"}

var dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Describe renders a short, informational English phrase for the
// expression. It has no bearing on scheduling; Next is always the source
// of truth for firing instants.
func (e *Expression) Describe() string {
	if d, ok := commonDescriptions[e.raw]; ok {
		return d
	}
	return e.generate()
}

// generate builds "At minute M [of every N hours] [on day D] [in MONTH] [on
// DAYNAMES]" deterministically from the compiled bitmasks.
func (e *Expression) generate() string {
	var parts []string

	parts = append(parts, minutePhrase(e.minute, e.hour))

	if everyNHours, ok := stepOf(e.hour, hourMin, hourMax); ok && everyNHours > 1 {
		parts = append(parts, fmt.Sprintf("of every %d hours", everyNHours))
	} else if !isFullMask(e.hour, hourMin, hourMax) {
		parts = append(parts, "past "+hourListPhrase(e.hour))
	}

	if !e.domStar {
		parts = append(parts, "on day "+listPhrase(e.dom, domMin, domMax, nil))
	}

	if !isFullMask(e.month, monthMin, monthMax) {
		parts = append(parts, "in "+listPhrase(e.month, monthMin, monthMax, monthNames))
	}

	if !e.dowStar {
		parts = append(parts, "on "+listPhrase(e.dow, dowMin, dowMax, dayNames))
	}

	return strings.Join(parts, " ")
}

func minutePhrase(minuteMask, hourMask uint64) string {
	if everyN, ok := stepOf(minuteMask, minuteMin, minuteMax); ok && everyN > 1 {
		return fmt.Sprintf("Every %d minutes", everyN)
	}
	if isFullMask(minuteMask, minuteMin, minuteMax) {
		return "Every minute"
	}
	return "At minute " + listPhrase(minuteMask, minuteMin, minuteMax, nil)
}

func hourListPhrase(mask uint64) string {
	return listPhrase(mask, hourMin, hourMax, nil) + ":00"
}

// stepOf detects a mask that is exactly {min, min+n, min+2n, ...} up to max,
// returning n. Used to recognize "*/n"-shaped fields for a terser phrase.
func stepOf(mask uint64, min, max int) (int, bool) {
	count := bits.OnesCount64(mask)
	if count < 2 {
		return 0, false
	}
	first := -1
	second := -1
	for v := min; v <= max; v++ {
		if mask&(1<<uint(v)) != 0 {
			if first < 0 {
				first = v
			} else if second < 0 {
				second = v
				break
			}
		}
	}
	if first != min || second < 0 {
		return 0, false
	}
	step := second - first
	var want uint64
	for v := min; v <= max; v += step {
		want |= 1 << uint(v)
	}
	if want == mask {
		return step, true
	}
	return 0, false
}

func isFullMask(mask uint64, min, max int) bool {
	var full uint64
	for v := min; v <= max; v++ {
		full |= 1 << uint(v)
	}
	return mask == full
}

// listPhrase renders the set bits of mask as a comma-joined list, using
// names if provided (indexed by value), else the bare integer.
func listPhrase(mask uint64, min, max int, names []string) string {
	var items []string
	for v := min; v <= max; v++ {
		if mask&(1<<uint(v)) == 0 {
			continue
		}
		if names != nil && v < len(names) {
			items = append(items, names[v])
		} else {
			items = append(items, fmt.Sprintf("%d", v))
		}
	}
	return strings.Join(items, ", ")
}
