package scheduler

import (
	"fmt"
	"time"

	"campaign-dialer/internal/campaigns"
)

// withinWindow reports whether a campaign may dial at the given instant.
// Evaluation happens in the campaign's own timezone; an empty timezone
// means UTC. A campaign with no window configured may dial at any time.
func withinWindow(c campaigns.Campaign, now time.Time) (bool, error) {
	loc := time.UTC
	if c.Timezone != "" {
		l, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return false, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
		}
		loc = l
	}
	local := now.In(loc)

	if c.ScheduleType == campaigns.ScheduleTypeRecurring && len(c.RecurringDays) > 0 {
		today := false
		for _, d := range c.RecurringDays {
			if d == local.Weekday() {
				today = true
				break
			}
		}
		if !today {
			return false, nil
		}
	}

	if c.TimeWindowStart == "" || c.TimeWindowEnd == "" {
		return true, nil
	}
	start, err := parseClock(c.TimeWindowStart)
	if err != nil {
		return false, err
	}
	end, err := parseClock(c.TimeWindowEnd)
	if err != nil {
		return false, err
	}
	cur := local.Hour()*60 + local.Minute()
	switch {
	case start == end:
		return true, nil
	case start < end:
		return cur >= start && cur < end, nil
	default:
		// Overnight window, e.g. 20:00 to 06:00.
		return cur >= start || cur < end, nil
	}
}

// parseClock converts an "HH:MM" wall-clock string to minutes since
// midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse time window %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
