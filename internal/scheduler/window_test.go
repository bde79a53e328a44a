package scheduler

import (
	"testing"
	"time"

	"campaign-dialer/internal/campaigns"
)

func TestWithinWindow_NoWindowAlwaysOpen(t *testing.T) {
	open, err := withinWindow(campaigns.Campaign{}, time.Now())
	if err != nil || !open {
		t.Fatalf("no configured window means always open, got open=%v err=%v", open, err)
	}
}

func TestWithinWindow_DaytimeWindow(t *testing.T) {
	c := campaigns.Campaign{
		TimeWindowStart: "09:00",
		TimeWindowEnd:   "17:00",
		Timezone:        "America/New_York",
	}
	// 14:00 UTC in June is 10:00 in New York.
	open, err := withinWindow(c, time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !open {
		t.Fatalf("10:00 local should be inside 09:00-17:00")
	}
	// 22:00 UTC is 18:00 in New York.
	open, err = withinWindow(c, time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if open {
		t.Fatalf("18:00 local should be outside 09:00-17:00")
	}
}

func TestWithinWindow_OvernightWindow(t *testing.T) {
	c := campaigns.Campaign{TimeWindowStart: "20:00", TimeWindowEnd: "06:00"}
	cases := []struct {
		hour int
		want bool
	}{
		{21, true},
		{2, true},
		{12, false},
		{19, false},
	}
	for _, tc := range cases {
		open, err := withinWindow(c, time.Date(2025, 6, 2, tc.hour, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("hour %d: unexpected error: %v", tc.hour, err)
		}
		if open != tc.want {
			t.Fatalf("hour %d: expected open=%v", tc.hour, tc.want)
		}
	}
}

func TestWithinWindow_RecurringDays(t *testing.T) {
	c := campaigns.Campaign{
		ScheduleType:  campaigns.ScheduleTypeRecurring,
		RecurringDays: []time.Weekday{time.Monday, time.Wednesday},
	}
	monday := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	tuesday := monday.Add(24 * time.Hour)

	if open, _ := withinWindow(c, monday); !open {
		t.Fatalf("monday is a recurring day")
	}
	if open, _ := withinWindow(c, tuesday); open {
		t.Fatalf("tuesday is not a recurring day")
	}
}

func TestWithinWindow_RecurringDayCrossesTimezone(t *testing.T) {
	// Sunday 23:00 in Auckland is already Monday there while UTC still
	// reads Sunday. The campaign timezone decides.
	c := campaigns.Campaign{
		ScheduleType:  campaigns.ScheduleTypeRecurring,
		RecurringDays: []time.Weekday{time.Monday},
		Timezone:      "Pacific/Auckland",
	}
	// 2025-06-01 13:00 UTC = 2025-06-02 01:00 NZST (Monday).
	open, err := withinWindow(c, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !open {
		t.Fatalf("local Monday should count even while UTC is Sunday")
	}
}

func TestWithinWindow_BadInputs(t *testing.T) {
	if _, err := withinWindow(campaigns.Campaign{Timezone: "Mars/Olympus"}, time.Now()); err == nil {
		t.Fatalf("unknown timezone must error")
	}
	if _, err := withinWindow(campaigns.Campaign{TimeWindowStart: "9am", TimeWindowEnd: "17:00"}, time.Now()); err == nil {
		t.Fatalf("malformed window must error")
	}
}
