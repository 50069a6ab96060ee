package util

import (
	"time"
)

const layout = "2006-01-02"

func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func DateLte(t1, t2 time.Time) bool {
	return t1.Before(t2) || t1.Format(layout) == t2.Format(layout)
}

// Fridays lists every Friday within [start, end], the weekly investment
// cadence.
func Fridays(start, end time.Time) []time.Time {
	d := start
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}

	out := []time.Time{}
	for DateLte(d, end) {
		out = append(out, d)
		d = d.AddDate(0, 0, 7)
	}
	return out
}
