package calendar

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"
)

// NoUpcomingEvent is returned when neither the current nor the next month has an event.
const NoUpcomingEvent = "No upcoming event"

// Table maps month (1-12) to day-of-month to a raw event name.
// Missing months or days mean there is no event.
type Table map[int]map[int]string

// Labels maps raw event names to their short display label.
type Labels map[string]string

// Event is the outcome of a lookup.
type Event struct {
	Raw   string `json:"rawEvent"`
	Label string `json:"event"`
	Month int    `json:"month,omitempty"`
	Day   int    `json:"day,omitempty"`
	Found bool   `json:"found"`
}

//go:embed farmer.json
var farmerData []byte

type calendarFile struct {
	Events Table  `json:"events"`
	Labels Labels `json:"labels"`
}

// Resolver finds the soonest upcoming event in a static calendar.
// It holds private copies of its table and labels and is safe for concurrent use.
type Resolver struct {
	table  Table
	labels Labels
}

// NewResolver builds a Resolver over copies of table and labels.
func NewResolver(table Table, labels Labels) *Resolver {
	t := make(Table, len(table))
	for month, days := range table {
		if len(days) == 0 {
			continue
		}
		d := make(map[int]string, len(days))
		for day, name := range days {
			d[day] = name
		}
		t[month] = d
	}
	l := make(Labels, len(labels))
	for raw, label := range labels {
		l[raw] = label
	}
	return &Resolver{table: t, labels: l}
}

// Farmer returns a Resolver over the bundled agricultural calendar.
func Farmer() (*Resolver, error) {
	return Load(farmerData)
}

// Load parses a calendar document of the form {"events": {...}, "labels": {...}}.
func Load(data []byte) (*Resolver, error) {
	var f calendarFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode calendar: %w", err)
	}
	for month, days := range f.Events {
		if month < 1 || month > 12 {
			return nil, fmt.Errorf("decode calendar: month %d out of range", month)
		}
		for day := range days {
			if day < 1 || day > 31 {
				return nil, fmt.Errorf("decode calendar: day %d of month %d out of range", day, month)
			}
		}
	}
	return NewResolver(f.Events, f.Labels), nil
}

// Resolve returns the display label of the soonest event on or after (day, month).
func (r *Resolver) Resolve(day, month int) string {
	return r.Next(day, month).Label
}

// ResolveDate is Resolve for the calendar date of t in t's location.
func (r *Resolver) ResolveDate(t time.Time) Event {
	return r.Next(t.Day(), int(t.Month()))
}

// Next looks in the current month for the smallest day >= day, then falls back to the
// earliest event of the following month. It only looks one month ahead.
func (r *Resolver) Next(day, month int) Event {
	if d, ok := minDay(r.table[month], day); ok {
		return r.event(month, d)
	}

	next := month + 1
	if month == 12 {
		next = 1
	}
	if d, ok := minDay(r.table[next], 0); ok {
		return r.event(next, d)
	}

	return Event{Raw: NoUpcomingEvent, Label: NoUpcomingEvent}
}

// Label maps a raw event name to its display label, or returns it unchanged.
func (r *Resolver) Label(raw string) string {
	if label, ok := r.labels[raw]; ok {
		return label
	}
	return raw
}

func (r *Resolver) event(month, day int) Event {
	raw := r.table[month][day]
	return Event{
		Raw:   raw,
		Label: r.Label(raw),
		Month: month,
		Day:   day,
		Found: true,
	}
}

func minDay(days map[int]string, from int) (int, bool) {
	best, found := 0, false
	for d := range days {
		if d < from {
			continue
		}
		if !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}

// FormatToday renders t as a long en-GB date, e.g. "Monday, 19 October 2026".
func FormatToday(t time.Time) string {
	return t.Format("Monday, 2 January 2006")
}
