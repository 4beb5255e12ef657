package entity

import (
	"fmt"
	"time"
)

// Window reports whether the quiet window covers now, and when it next ends.
// Start > End means the window wraps past local midnight. The returned end is
// only meaningful while the window is active.
func (q QuietHours) Window(now time.Time) (bool, time.Time, error) {
	if !q.Configured() {
		return false, time.Time{}, nil
	}

	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("unknown timezone %q: %w", q.Timezone, err)
	}

	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()

	active := false
	if q.StartMinute < q.EndMinute {
		active = minute >= q.StartMinute && minute < q.EndMinute
	} else {
		active = minute >= q.StartMinute || minute < q.EndMinute
	}

	if !active {
		return false, time.Time{}, nil
	}

	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := midnight.Add(time.Duration(q.EndMinute) * time.Minute)

	if !end.After(local) {
		end = end.Add(24 * time.Hour)
	}

	return true, end, nil
}
