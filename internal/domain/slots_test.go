package domain

import (
	"testing"
	"time"
)

func TestFreeSlots_ExcludesBookedWindows(t *testing.T) {
	day := DefaultBusinessHours().On(at(0, 0))
	busy := []Window{
		{at(10, 0), at(10, 30)},
		{at(9, 0), at(9, 30)},
	}

	slots := FreeSlots(day, 30*time.Minute, busy, time.Time{})

	if len(slots) != 18 {
		t.Fatalf("len(slots) = %d, want 18", len(slots))
	}
	found := false
	for i, s := range slots {
		for _, b := range busy {
			if s.Overlaps(b) {
				t.Fatalf("slot %s overlaps booking %s", s, b)
			}
		}
		if s.Start.Equal(at(9, 30)) && s.End.Equal(at(10, 0)) {
			found = true
		}
		if i > 0 && !slots[i-1].Start.Before(s.Start) {
			t.Fatalf("slots not ordered at %d", i)
		}
	}
	if !found {
		t.Fatalf("09:30-10:00 missing from %v", slots)
	}
	if !slots[0].Start.Equal(at(8, 0)) || !slots[len(slots)-1].End.Equal(at(18, 0)) {
		t.Fatalf("slots should span opening hours, got %s .. %s", slots[0], slots[len(slots)-1])
	}
}

func TestFreeSlots_RealignsAfterOffGridBooking(t *testing.T) {
	day := Window{at(8, 0), at(10, 0)}
	busy := []Window{{at(8, 10), at(8, 40)}}

	slots := FreeSlots(day, 30*time.Minute, busy, time.Time{})

	want := []Window{{at(8, 40), at(9, 10)}, {at(9, 10), at(9, 40)}}
	if len(slots) != len(want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
	for i := range want {
		if !slots[i].Start.Equal(want[i].Start) || !slots[i].End.Equal(want[i].End) {
			t.Fatalf("slot[%d] = %s, want %s", i, slots[i], want[i])
		}
	}
}

func TestFreeSlots_SkipsPast(t *testing.T) {
	day := Window{at(8, 0), at(10, 0)}
	slots := FreeSlots(day, 30*time.Minute, nil, at(9, 5))
	if len(slots) != 1 || !slots[0].Start.Equal(at(9, 30)) {
		t.Fatalf("slots = %v, want only 09:30", slots)
	}
}

func TestNearestSlot(t *testing.T) {
	slots := []Window{
		{at(8, 0), at(8, 30)},
		{at(9, 30), at(10, 0)},
		{at(10, 30), at(11, 0)},
	}
	got, ok := NearestSlot(slots, at(10, 0))
	if !ok {
		t.Fatalf("expected a slot")
	}
	if !got.Start.Equal(at(10, 30)) {
		t.Fatalf("nearest = %s, want 10:30 (tie goes later)", got)
	}
	if _, ok := NearestSlot(nil, at(10, 0)); ok {
		t.Fatalf("expected no slot for empty input")
	}
}
