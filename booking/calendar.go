package booking

import (
	"context"
	"time"
)

// HolidayCalendar is the set of blacked-out days. No booking is ever
// admitted on a holiday.
type HolidayCalendar struct {
	store Store
}

func NewHolidayCalendar(store Store) *HolidayCalendar {
	return &HolidayCalendar{store: store}
}

// Add marks day as a holiday. The day must start strictly after now.
func (c *HolidayCalendar) Add(ctx context.Context, day Day, now time.Time) error {
	if day.IsZero() {
		return invalidf("holiday day is required")
	}
	if !day.Time().After(now) {
		return invalidf("holiday %s is not in the future", day)
	}
	return c.store.InsertHoliday(ctx, day)
}

func (c *HolidayCalendar) Remove(ctx context.Context, day Day) error {
	return c.store.DeleteHoliday(ctx, day)
}

func (c *HolidayCalendar) IsHoliday(ctx context.Context, day Day) (bool, error) {
	return c.store.IsHoliday(ctx, day)
}

func (c *HolidayCalendar) List(ctx context.Context) ([]Day, error) {
	return c.store.ListHolidays(ctx)
}
