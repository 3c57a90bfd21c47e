package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// SlotQuery selects the free windows of one clinic day. Without a doctor the
// whole clinic is treated as a single resource.
type SlotQuery struct {
	ClinicID        uuid.UUID
	DoctorID        *uuid.UUID
	Date            string
	DurationMinutes int
}

// FreeSlots walks day from its start in steps of d and returns every window
// of length d that overlaps none of busy. A blocked candidate moves the walk
// to the end of the booking that blocks it, so gaps between bookings are
// used even when they do not line up with the opening time. Slots starting
// before notBefore are skipped.
func FreeSlots(day Window, d time.Duration, busy []Window, notBefore time.Time) []Window {
	if d <= 0 || !day.Valid() {
		return nil
	}
	sorted := make([]Window, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	var out []Window
	cursor := day.Start
	for !cursor.Add(d).After(day.End) {
		cand := NewWindow(cursor, d)
		if end, blocked := blockedUntil(cand, sorted); blocked {
			cursor = end
			continue
		}
		if !cand.Start.Before(notBefore) {
			out = append(out, cand)
		}
		cursor = cand.End
	}
	return out
}

func blockedUntil(cand Window, busy []Window) (time.Time, bool) {
	var end time.Time
	blocked := false
	for _, b := range busy {
		if !b.Start.Before(cand.End) {
			break
		}
		if cand.Overlaps(b) && b.End.After(end) {
			end = b.End
			blocked = true
		}
	}
	return end, blocked
}

// NearestSlot picks the slot whose start is closest to target. Ties go to
// the later slot.
func NearestSlot(slots []Window, target time.Time) (Window, bool) {
	if len(slots) == 0 {
		return Window{}, false
	}
	best := slots[0]
	bestDist := absDuration(best.Start.Sub(target))
	for _, s := range slots[1:] {
		dist := absDuration(s.Start.Sub(target))
		if dist < bestDist || (dist == bestDist && s.Start.After(best.Start)) {
			best = s
			bestDist = dist
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func Windows(appts []Appointment) []Window {
	out := make([]Window, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.Window())
	}
	return out
}
