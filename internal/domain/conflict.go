package domain

import "github.com/google/uuid"

type ConflictKind string

const (
	ConflictNone             ConflictKind = ""
	ConflictPatient          ConflictKind = "patient"
	ConflictDoctor           ConflictKind = "doctor"
	ConflictPatientAndDoctor ConflictKind = "patient_and_doctor"
)

// ConflictResult lists the existing bookings that collide with a proposed
// one, split by which party they share with it. One booking can appear in
// both lists.
type ConflictResult struct {
	Patient []Appointment
	Doctor  []Appointment
}

func (r ConflictResult) HasPatientConflict() bool { return len(r.Patient) > 0 }
func (r ConflictResult) HasDoctorConflict() bool  { return len(r.Doctor) > 0 }
func (r ConflictResult) HasConflict() bool        { return r.HasPatientConflict() || r.HasDoctorConflict() }

func (r ConflictResult) Kind() ConflictKind {
	switch {
	case r.HasPatientConflict() && r.HasDoctorConflict():
		return ConflictPatientAndDoctor
	case r.HasPatientConflict():
		return ConflictPatient
	case r.HasDoctorConflict():
		return ConflictDoctor
	}
	return ConflictNone
}

// IDs returns the distinct ids of every conflicting booking.
func (r ConflictResult) IDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(r.Patient)+len(r.Doctor))
	out := make([]uuid.UUID, 0, len(r.Patient)+len(r.Doctor))
	for _, list := range [][]Appointment{r.Patient, r.Doctor} {
		for _, a := range list {
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			out = append(out, a.ID)
		}
	}
	return out
}

// CheckConflicts compares proposed against existing bookings. Candidates are
// active bookings of the same patient, or of the same doctor when proposed
// has one. A booking never conflicts with itself, so an update can be
// validated against a candidate set that still contains its old row.
func CheckConflicts(proposed Appointment, existing []Appointment) ConflictResult {
	var res ConflictResult
	w := proposed.Window()
	for _, c := range existing {
		if proposed.ID != uuid.Nil && c.ID == proposed.ID {
			continue
		}
		if !c.Status.Active() {
			continue
		}
		samePatient := c.PatientID == proposed.PatientID
		sameDoctor := proposed.DoctorID != nil && c.HasDoctor(*proposed.DoctorID)
		if !samePatient && !sameDoctor {
			continue
		}
		if !w.Overlaps(c.Window()) {
			continue
		}
		if samePatient {
			res.Patient = append(res.Patient, c)
		}
		if sameDoctor {
			res.Doctor = append(res.Doctor, c)
		}
	}
	return res
}
