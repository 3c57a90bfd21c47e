package store

import (
	"testing"

	"github.com/google/uuid"
)

func TestCalendarKeys_SortedAndDeduplicated(t *testing.T) {
	patient := uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	doctor := uuid.MustParse("00000000-0000-0000-0000-0000000000d1")

	keys := CalendarKeys(patient, &doctor, "2024-01-16", "2024-01-15", "2024-01-16")
	want := []LockKey{
		DoctorDayKey(doctor, "2024-01-15"),
		DoctorDayKey(doctor, "2024-01-16"),
		PatientDayKey(patient, "2024-01-15"),
		PatientDayKey(patient, "2024-01-16"),
	}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}

	if got := CalendarKeys(patient, nil, "2024-01-15"); len(got) != 1 || got[0] != PatientDayKey(patient, "2024-01-15") {
		t.Fatalf("keys without doctor = %v", got)
	}
}
