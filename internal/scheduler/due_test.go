package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDue(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2026-03-10 11:50 UTC = 07:50 in New York (EDT) = 20:50 in Tokyo
	now := time.Date(2026, 3, 10, 11, 50, 0, 0, time.UTC)
	yesterday := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	earlyToday := time.Date(2026, 3, 10, 11, 1, 0, 0, time.UTC)
	lateYesterdayNY := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC) // 23:00 Mar 9 in NY
	window := 15 * time.Minute

	cases := []struct {
		name     string
		delivery string
		loc      *time.Location
		lastSent *time.Time
		want     bool
	}{
		{"inside next window", "08:00", ny, nil, true},
		{"beyond window", "08:05", ny, nil, false},
		{"passed earlier today", "07:00", ny, &yesterday, true},
		{"already sent today", "07:00", ny, &earlyToday, false},
		{"sent late yesterday local", "07:00", ny, &lateYesterdayNY, true},
		{"other zone not yet", "21:30", tokyo, nil, false},
		{"other zone due", "21:00", tokyo, nil, true},
		{"bad clock", "7am", ny, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDue(now, tc.delivery, tc.loc, tc.lastSent, window))
		})
	}
}
