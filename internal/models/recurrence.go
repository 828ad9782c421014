package models

import "time"

type RecurrenceType string

const (
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

// RecurrenceRule describes how a task repeats. Days is only meaningful for
// weekly rules and uses 0=Monday .. 6=Sunday.
type RecurrenceRule struct {
	Type     RecurrenceType `json:"type"`
	Interval int            `json:"interval"`
	Days     []int          `json:"days,omitempty"`
	EndDate  *time.Time     `json:"end_date,omitempty"`
}

// Valid reports whether the rule is well-formed: a known type, interval ≥ 1,
// and weekday indices within 0..6.
func (r *RecurrenceRule) Valid() bool {
	if r == nil {
		return false
	}
	switch r.Type {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
	default:
		return false
	}
	if r.Interval < 1 {
		return false
	}
	for _, d := range r.Days {
		if d < 0 || d > 6 {
			return false
		}
	}
	return true
}
