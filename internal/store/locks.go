package store

import (
	"sort"

	"github.com/google/uuid"
)

// LockKey identifies one party's calendar for one clinic-local day.
type LockKey string

func PatientDayKey(patientID uuid.UUID, date string) LockKey {
	return LockKey("patient:" + patientID.String() + ":" + date)
}

func DoctorDayKey(doctorID uuid.UUID, date string) LockKey {
	return LockKey("doctor:" + doctorID.String() + ":" + date)
}

// CalendarKeys returns the day locks a booking for patientID and doctorID on
// the given dates must hold. Keys come back sorted and deduplicated so
// concurrent callers always lock in the same order.
func CalendarKeys(patientID uuid.UUID, doctorID *uuid.UUID, dates ...string) []LockKey {
	keys := make([]LockKey, 0, 2*len(dates))
	for _, d := range dates {
		keys = append(keys, PatientDayKey(patientID, d))
		if doctorID != nil {
			keys = append(keys, DoctorDayKey(*doctorID, d))
		}
	}
	return SortKeys(keys)
}

func SortKeys(keys []LockKey) []LockKey {
	out := make([]LockKey, 0, len(keys))
	seen := make(map[LockKey]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
