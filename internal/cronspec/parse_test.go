package cronspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	cases := []string{
		"* * * * *",
		"0 9 * * 1-5",
		"*/15 * * * *",
		"0 0 1 1 *",
		"30 2,14 * * *",
		"0 0 */2 * *",
		"0 0 * * 0",
	}
	for _, expr := range cases {
		_, err := Parse(expr)
		assert.NoErrorf(t, err, "expected %q to parse", expr)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := []string{
		"",
		"* * * *",       // 4 fields
		"* * * * * *",   // 6 fields
		"60 * * * *",    // minute out of range
		"* 24 * * *",    // hour out of range
		"* * 0 * *",     // dom out of range (1..31)
		"* * * 13 *",    // month out of range
		"* * * * 7",     // dow out of range (0..6)
		"* * * * SUN",   // no name aliases
		"@daily",        // no descriptors
		"@every 5m",     // no descriptors
		"5-2 * * * *",   // range start >= end
		"*/0 * * * *",   // step must be >= 1
		"*/100 * * * *", // step too large
	}
	for _, expr := range cases {
		_, err := Parse(expr)
		assert.Errorf(t, err, "expected %q to be rejected", expr)
	}
}

func TestParse_SundayOnlyAsZero(t *testing.T) {
	e, err := Parse("0 0 * * 0")
	require.NoError(t, err)
	assert.False(t, e.dowStar)
	assert.NotZero(t, e.dow&(1<<0))
}
