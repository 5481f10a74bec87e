// Package cronspec is the cron evaluator: it parses the 5-field cron
// grammar, computes next-fire instants honoring IANA timezone DST
// transitions, and renders a short human description. Its Next algorithm
// uses the bitmask field-advance technique common to cron implementations,
// narrowed to a 5-field grammar with no name aliases (no SUN/MON, no
// @daily/@every), no seconds field, and union semantics when both
// day-of-month and day-of-week are restricted.
package cronspec

import (
	"fmt"
	"strconv"
	"strings"
)

// field bounds, inclusive.
const (
	minuteMin, minuteMax = 0, 59
	hourMin, hourMax     = 0, 23
	domMin, domMax       = 1, 31
	monthMin, monthMax   = 1, 12
	dowMin, dowMax       = 0, 6
)

// Expression is a parsed, validated 5-field cron expression ready for
// Next/Describe. Construct with Parse; the zero value is not usable.
type Expression struct {
	raw string

	minute uint64
	hour   uint64
	dom    uint64
	month  uint64
	dow    uint64

	domStar bool // day-of-month field was "*" (no restriction)
	dowStar bool // day-of-week field was "*" (no restriction)
}

// String returns the original expression text as accepted by Parse.
func (e *Expression) String() string { return e.raw }

// Parse validates and compiles a 5-field cron expression. It never applies
// a fallback: on any grammar violation it returns a non-nil error.
func Parse(expr string) (*Expression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cronspec: expected 5 whitespace-separated fields, got %d", len(fields))
	}

	minute, err := parseField(fields[0], minuteMin, minuteMax)
	if err != nil {
		return nil, fmt.Errorf("cronspec: minute field: %w", err)
	}
	hour, err := parseField(fields[1], hourMin, hourMax)
	if err != nil {
		return nil, fmt.Errorf("cronspec: hour field: %w", err)
	}
	dom, err := parseField(fields[2], domMin, domMax)
	if err != nil {
		return nil, fmt.Errorf("cronspec: day-of-month field: %w", err)
	}
	month, err := parseField(fields[3], monthMin, monthMax)
	if err != nil {
		return nil, fmt.Errorf("cronspec: month field: %w", err)
	}
	dow, err := parseField(fields[4], dowMin, dowMax)
	if err != nil {
		return nil, fmt.Errorf("cronspec: day-of-week field: %w", err)
	}

	return &Expression{
		raw:     expr,
		minute:  minute.mask,
		hour:    hour.mask,
		dom:     dom.mask,
		month:   month.mask,
		dow:     dow.mask,
		domStar: dom.isStar,
		dowStar: dow.isStar,
	}, nil
}

type parsedField struct {
	mask   uint64
	isStar bool
}

// parseField parses one comma-separated list of *, a, a-b, */n, or a-b/n
// items into a bitmask over [min,max].
func parseField(spec string, min, max int) (parsedField, error) {
	if spec == "" {
		return parsedField{}, fmt.Errorf("empty field")
	}

	var mask uint64
	isStar := spec == "*"

	for _, item := range strings.Split(spec, ",") {
		m, err := parseRangeItem(item, min, max)
		if err != nil {
			return parsedField{}, err
		}
		mask |= m
	}
	return parsedField{mask: mask, isStar: isStar}, nil
}

// parseRangeItem parses a single *, a, a-b, */n, or a-b/n item.
func parseRangeItem(item string, min, max int) (uint64, error) {
	rangePart, step, hasStep, err := splitStep(item)
	if err != nil {
		return 0, err
	}
	if hasStep && (step < 1 || step > max) {
		return 0, fmt.Errorf("invalid step %d in %q", step, item)
	}
	if hasStep && rangePart != "*" && !strings.Contains(rangePart, "-") {
		return 0, fmt.Errorf("step in %q must follow * or a range a-b", item)
	}
	if !hasStep {
		step = 1
	}

	lo, hi, err := parseRangeBounds(rangePart, min, max)
	if err != nil {
		return 0, err
	}

	var mask uint64
	for v := lo; v <= hi; v += step {
		mask |= 1 << uint(v)
	}
	return mask, nil
}

// splitStep splits "a-b/n" or "*/n" into the range part and the step, if any.
func splitStep(item string) (rangePart string, step int, hasStep bool, err error) {
	idx := strings.IndexByte(item, '/')
	if idx < 0 {
		return item, 0, false, nil
	}
	rangePart = item[:idx]
	stepStr := item[idx+1:]
	step, convErr := strconv.Atoi(stepStr)
	if convErr != nil {
		return "", 0, false, fmt.Errorf("invalid step %q", stepStr)
	}
	return rangePart, step, true, nil
}

// parseRangeBounds parses "*", "a", or "a-b" into an inclusive [lo,hi].
func parseRangeBounds(part string, min, max int) (lo, hi int, err error) {
	if part == "*" {
		return min, max, nil
	}

	if idx := strings.IndexByte(part, '-'); idx >= 0 {
		loStr, hiStr := part[:idx], part[idx+1:]
		lo, err = strconv.Atoi(loStr)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range start %q", loStr)
		}
		hi, err = strconv.Atoi(hiStr)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range end %q", hiStr)
		}
		if lo >= hi {
			return 0, 0, fmt.Errorf("range %q must have start < end", part)
		}
		if lo < min || hi > max {
			return 0, 0, fmt.Errorf("range %q out of bounds [%d,%d]", part, min, max)
		}
		return lo, hi, nil
	}

	v, err := strconv.Atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid value %q", part)
	}
	if v < min || v > max {
		return 0, 0, fmt.Errorf("value %d out of bounds [%d,%d]", v, min, max)
	}
	return v, v, nil
}
