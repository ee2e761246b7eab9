package scheduler

import (
	"time"

	"github.com/dhirajc963/timebrew.news/internal/models"
)

// IsDue reports whether a brew should get a briefing on a sweep at now.
// Today's delivery instant is taken in loc; the brew is due once that
// instant is earlier than now+window (a missed sweep catches up later the
// same day) unless it was already sent on today's local date.
func IsDue(now time.Time, deliveryTime string, loc *time.Location, lastSent *time.Time, window time.Duration) bool {
	h, m, err := models.ParseClock(deliveryTime)
	if err != nil {
		return false
	}
	local := now.In(loc)
	y, mo, d := local.Date()
	deliverAt := time.Date(y, mo, d, h, m, 0, 0, loc)
	if !deliverAt.Before(now.Add(window)) {
		return false
	}
	if lastSent == nil {
		return true
	}
	ly, lmo, ld := lastSent.In(loc).Date()
	return time.Date(ly, lmo, ld, 0, 0, 0, 0, loc).Before(time.Date(y, mo, d, 0, 0, 0, 0, loc))
}
