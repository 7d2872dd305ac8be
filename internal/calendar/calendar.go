// Package calendar provides business-day arithmetic over a jurisdictional
// holiday set. Everything here is pure: callers pass dates in, no clock or
// configuration is read implicitly.
package calendar

import (
	"errors"
	"time"
)

// ErrInvalidDateRange is returned when a negative business-day span is
// requested.
var ErrInvalidDateRange = errors.New("calendar: invalid date range")

// HolidaySet answers whether a given date is a holiday.
type HolidaySet interface {
	IsHoliday(t time.Time) bool
}

// Calendar combines weekend and holiday checks for one jurisdiction.
type Calendar struct {
	holidays HolidaySet
}

// New builds a calendar over the given holiday set. A nil set means
// weekends only.
func New(holidays HolidaySet) *Calendar {
	return &Calendar{holidays: holidays}
}

// IsBusinessDay reports whether t is neither a weekend day nor a holiday.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if c.holidays != nil && c.holidays.IsHoliday(t) {
		return false
	}
	return true
}

// AddBusinessDays returns the date n full business days after t, skipping
// weekends and holidays. The clock time of t is preserved. n must be
// non-negative.
func (c *Calendar) AddBusinessDays(t time.Time, n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, ErrInvalidDateRange
	}
	cur := t
	for remaining := n; remaining > 0; {
		cur = cur.AddDate(0, 0, 1)
		if c.IsBusinessDay(cur) {
			remaining--
		}
	}
	return cur, nil
}

// NextBusinessDay returns the first business day strictly after t.
func (c *Calendar) NextBusinessDay(t time.Time) time.Time {
	next, _ := c.AddBusinessDays(t, 1)
	return next
}

// BusinessDaysBetween counts business days in (from, to]. Returns an error
// when to precedes from.
func (c *Calendar) BusinessDaysBetween(from, to time.Time) (int, error) {
	if to.Before(from) {
		return 0, ErrInvalidDateRange
	}
	count := 0
	for cur := from.AddDate(0, 0, 1); !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		if c.IsBusinessDay(cur) {
			count++
		}
	}
	return count, nil
}
