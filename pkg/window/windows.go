// Package window retrieves date-keyed time series from endpoints that only
// accept bounded date spans per request.
//
// A requested range is split into windows of at most MaxSpan, newest first.
// Each window is fetched through the paginator with startDate/endDate
// parameters and its items are folded into a Series keyed by calendar day.
package window

import (
	"iter"
	"sort"
	"time"
)

// MaxSpan is the widest date span the API accepts in one request.
const MaxSpan = 90 * 24 * time.Hour

// Window is an inclusive date span sent as startDate/endDate.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows yields the windows covering [start, end], newest first. Each window
// spans at most span and shares its start date with the next window's end.
// A range with start == end yields nothing.
func Windows(start, end time.Time, span time.Duration) iter.Seq[Window] {
	if span <= 0 {
		span = MaxSpan
	}
	return func(yield func(Window) bool) {
		windowEnd := end
		current := latest(start, windowEnd.Add(-span))
		for !current.Before(start) && current.Before(windowEnd) {
			if !yield(Window{Start: current, End: windowEnd}) {
				return
			}
			windowEnd = current
			current = latest(start, windowEnd.Add(-span))
		}
	}
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Series maps a date to the value reported for it.
type Series map[string]any

// Dates returns the keys in ascending order.
func (s Series) Dates() []string {
	dates := make([]string, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Point is a single dated value.
type Point struct {
	Date  string `json:"date"`
	Value any    `json:"value"`
}
