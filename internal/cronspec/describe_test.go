package cronspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe_CommonPatterns(t *testing.T) {
	cases := map[string]string{
		"0 9 * * 1-5": "Weekdays at 9:00 AM",
		"* * * * *":   "Every minute",
		"0 0 * * *":   "Every day at midnight",
	}
	for expr, want := range cases {
		e, err := Parse(expr)
		require.NoError(t, err)
		assert.Equal(t, want, e.Describe())
	}
}

func TestDescribe_GeneratedIsNonEmpty(t *testing.T) {
	e, err := Parse("12 3 4 5 *")
	require.NoError(t, err)
	desc := e.Describe()
	assert.NotEmpty(t, desc)
	assert.Contains(t, desc, "minute 12")
}
