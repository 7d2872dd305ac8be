package calendar

import (
	"sync"
	"time"
)

// Jurisdiction selects which statutory holiday table applies.
type Jurisdiction string

const (
	JurisdictionUS Jurisdiction = "US"
	JurisdictionWV Jurisdiction = "WV"
)

// StatutoryHolidays computes the observed holiday set for a jurisdiction.
// Dates are derived per year rather than maintained as a table, with the
// federal Saturday→Friday / Sunday→Monday observation shift applied.
// Extra dates from configuration are merged in as-is.
// One instance is shared between the request handlers, the scanner, and
// the expire loop, so the year cache is guarded.
type StatutoryHolidays struct {
	jurisdiction Jurisdiction
	extra        map[string]struct{}

	mu    sync.RWMutex
	cache map[int]map[string]struct{}
}

// NewStatutoryHolidays builds a holiday set. extra entries use "2006-01-02".
func NewStatutoryHolidays(j Jurisdiction, extra []string) *StatutoryHolidays {
	extraSet := make(map[string]struct{}, len(extra))
	for _, d := range extra {
		extraSet[d] = struct{}{}
	}
	return &StatutoryHolidays{
		jurisdiction: j,
		extra:        extraSet,
		cache:        make(map[int]map[string]struct{}),
	}
}

// IsHoliday implements HolidaySet.
func (h *StatutoryHolidays) IsHoliday(t time.Time) bool {
	key := t.Format("2006-01-02")
	if _, ok := h.extra[key]; ok {
		return true
	}
	set := h.yearSet(t.Year())
	_, ok := set[key]
	return ok
}

func (h *StatutoryHolidays) yearSet(year int) map[string]struct{} {
	h.mu.RLock()
	set, ok := h.cache[year]
	h.mu.RUnlock()
	if ok {
		return set
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok = h.cache[year]; ok {
		return set
	}
	set = h.computeYear(year)
	h.cache[year] = set
	return set
}

func (h *StatutoryHolidays) computeYear(year int) map[string]struct{} {
	days := []time.Time{
		observed(date(year, time.January, 1)),              // New Year's Day
		nthWeekday(year, time.January, time.Monday, 3),     // MLK Day
		nthWeekday(year, time.February, time.Monday, 3),    // Presidents Day
		lastWeekday(year, time.May, time.Monday),           // Memorial Day
		observed(date(year, time.June, 19)),                // Juneteenth
		observed(date(year, time.July, 4)),                 // Independence Day
		nthWeekday(year, time.September, time.Monday, 1),   // Labor Day
		observed(date(year, time.November, 11)),            // Veterans Day
		nthWeekday(year, time.November, time.Thursday, 4),  // Thanksgiving
		observed(date(year, time.December, 25)),            // Christmas
	}
	if h.jurisdiction == JurisdictionWV {
		days = append(days, observed(date(year, time.June, 20))) // West Virginia Day
	}
	// Next year's New Year's Day observed on Dec 31 of this year.
	if shifted := observed(date(year+1, time.January, 1)); shifted.Year() == year {
		days = append(days, shifted)
	}
	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		set[d.Format("2006-01-02")] = struct{}{}
	}
	return set
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func observed(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	t := date(year, month, 1)
	for t.Weekday() != weekday {
		t = t.AddDate(0, 0, 1)
	}
	return t.AddDate(0, 0, 7*(n-1))
}

func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	t := date(year, month+1, 1).AddDate(0, 0, -1)
	for t.Weekday() != weekday {
		t = t.AddDate(0, 0, -1)
	}
	return t
}
