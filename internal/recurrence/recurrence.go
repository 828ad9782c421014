// Package recurrence computes the next occurrence of a repeating task.
// All arithmetic is anchored on the task's current due timestamp, not on
// completion time, so late completions never drift the schedule.
package recurrence

import (
	"time"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
)

// Next returns the due timestamp of the occurrence following due, or nil
// when the rule has ended (computed date past EndDate) or is malformed.
func Next(rule *models.RecurrenceRule, due time.Time) *time.Time {
	if !rule.Valid() {
		return nil
	}

	var next time.Time
	switch rule.Type {
	case models.RecurrenceDaily:
		next = due.AddDate(0, 0, rule.Interval)
	case models.RecurrenceWeekly:
		if len(rule.Days) > 0 {
			next = nextWeekday(due, rule.Days, rule.Interval)
		} else {
			next = due.AddDate(0, 0, 7*rule.Interval)
		}
	case models.RecurrenceMonthly:
		next = addMonthsClamped(due, rule.Interval)
	}

	if rule.EndDate != nil && next.After(*rule.EndDate) {
		return nil
	}
	return &next
}

// weekdayIndex maps time.Weekday to the rule convention 0=Monday..6=Sunday.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// weekStart truncates t to the Monday of its week.
func weekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return d.AddDate(0, 0, -weekdayIndex(d))
}

// nextWeekday finds the first date at least one day after due whose weekday
// is in days. When that scan wraps past the week boundary, interval−1 full
// weeks are inserted so every Nth week carries the qualifying days.
func nextWeekday(due time.Time, days []int, interval int) time.Time {
	set := make(map[int]bool, len(days))
	for _, d := range days {
		set[d] = true
	}

	for offset := 1; offset <= 7; offset++ {
		candidate := due.AddDate(0, 0, offset)
		if !set[weekdayIndex(candidate)] {
			continue
		}
		if interval > 1 && weekStart(candidate).After(weekStart(due)) {
			candidate = candidate.AddDate(0, 0, 7*(interval-1))
		}
		return candidate
	}
	// Unreachable for a non-empty valid day set, but keep a sane result.
	return due.AddDate(0, 0, 7*interval)
}

// addMonthsClamped adds months keeping the day-of-month, clamped to the last
// valid day of the target month (31st → 28/29/30 where needed). Plain
// AddDate would normalize Jan 31 + 1 month into March.
func addMonthsClamped(due time.Time, months int) time.Time {
	y, m, d := due.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, due.Location())
	if last := daysInMonth(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		due.Hour(), due.Minute(), due.Second(), due.Nanosecond(), due.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
