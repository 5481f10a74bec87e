package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cronmasterd/core/internal/model"
)

func TestMissedFirings_CountsElapsedInstantsExcludingTheOneAboutToFire(t *testing.T) {
	job := &model.Job{CronExpr: "* * * * *", Timezone: "UTC"}

	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 1, 10, 3, 30, 0, time.UTC)

	require.Equal(t, 3, missedFirings(job, from, now))
}

func TestMissedFirings_ZeroWhenNotLate(t *testing.T) {
	job := &model.Job{CronExpr: "* * * * *", Timezone: "UTC"}

	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 1, 10, 0, 30, 0, time.UTC)

	require.Equal(t, 0, missedFirings(job, from, now))
}

func TestMissedFirings_InvalidCronExprReturnsZero(t *testing.T) {
	job := &model.Job{CronExpr: "not a cron expr", Timezone: "UTC"}
	require.Equal(t, 0, missedFirings(job, time.Now(), time.Now().Add(time.Hour)))
}
