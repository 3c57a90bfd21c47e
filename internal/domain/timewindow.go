package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func NewWindow(start time.Time, d time.Duration) Window {
	return Window{Start: start, End: start.Add(d)}
}

// Overlaps reports whether w and o share at least one instant. Windows that
// only touch (one ends exactly when the other starts) do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

func Overlaps(a, b Window) bool {
	return a.Overlaps(b)
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) Valid() bool {
	return w.End.After(w.Start)
}

func (w Window) In(loc *time.Location) Window {
	return Window{Start: w.Start.In(loc), End: w.End.In(loc)}
}

func (w Window) String() string {
	return w.Start.Format(time.RFC3339) + "/" + w.End.Format(time.RFC3339)
}

// ClockTime is a wall-clock time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return ClockTime{}, fmt.Errorf("clock time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("clock time %q: hour out of range", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q: minute out of range", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func MustParseClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) sinceMidnight() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute
}

// On returns the instant at which the clock reads c on day's calendar date,
// in day's location.
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
}

// BusinessHours is the daily opening interval of a clinic. Opening and
// closing fall on the same calendar day.
type BusinessHours struct {
	Open  ClockTime
	Close ClockTime
}

func DefaultBusinessHours() BusinessHours {
	return BusinessHours{Open: ClockTime{Hour: 8}, Close: ClockTime{Hour: 18}}
}

func (h BusinessHours) Valid() bool {
	return h.Open.sinceMidnight() < h.Close.sinceMidnight()
}

// On returns the opening window for day's calendar date in day's location.
func (h BusinessHours) On(day time.Time) Window {
	return Window{Start: h.Open.On(day), End: h.Close.On(day)}
}

func (h BusinessHours) String() string {
	return h.Open.String() + "-" + h.Close.String()
}

// WithinBusinessHours reports whether [start, end) lies inside the opening
// hours of start's calendar day. Intervals crossing midnight never qualify.
func WithinBusinessHours(start, end time.Time, hours BusinessHours) bool {
	if !end.After(start) || !hours.Valid() {
		return false
	}
	end = end.In(start.Location())
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	if sy != ey || sm != em || sd != ed {
		return false
	}
	open := hours.On(start)
	return !start.Before(open.Start) && !end.After(open.End)
}
