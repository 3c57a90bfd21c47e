package appointments

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store"
)

type CreateInput struct {
	PatientID       uuid.UUID
	ClinicID        uuid.UUID
	DoctorID        *uuid.UUID
	Date            string
	StartTime       string
	DurationMinutes int
	Type            domain.AppointmentType
	Priority        domain.Priority
	Notes           string
	IdempotencyKey  string
}

// Create books a new appointment. Checks run in a fixed order: input shape
// and referenced profiles, then idempotent replay, then past date, then
// business hours, then conflicts. The conflict check and the insert share one transaction
// holding the patient's and doctor's day locks.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	if in.PatientID == uuid.Nil {
		return domain.Appointment{}, validationError("patientId is required")
	}
	if in.ClinicID == uuid.Nil {
		return domain.Appointment{}, validationError("clinicId is required")
	}
	if in.DoctorID != nil && *in.DoctorID == uuid.Nil {
		in.DoctorID = nil
	}
	req, err := s.parseSlotRequest(in.Date, in.StartTime, in.DurationMinutes, 0)
	if err != nil {
		return domain.Appointment{}, err
	}
	if in.Type == "" {
		return domain.Appointment{}, validationError("type is required")
	}
	if !in.Type.Valid() {
		return domain.Appointment{}, validationErrorf("type %q is not supported", in.Type)
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.Valid() {
		return domain.Appointment{}, validationErrorf("priority %q is not supported", priority)
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKey {
		return domain.Appointment{}, validationError("idempotency key too long")
	}

	cal, err := s.calendarFor(ctx, in.ClinicID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := s.checkPatient(ctx, in.PatientID); err != nil {
		return domain.Appointment{}, err
	}
	if in.DoctorID != nil {
		if err := s.checkDoctor(ctx, *in.DoctorID, in.ClinicID); err != nil {
			return domain.Appointment{}, err
		}
	}

	w, err := cal.window(req.date, req.start, req.minutes)
	if err != nil {
		return domain.Appointment{}, err
	}

	appt := domain.Appointment{
		PatientID:       in.PatientID,
		ClinicID:        in.ClinicID,
		DoctorID:        in.DoctorID,
		Date:            req.date,
		StartTime:       req.start.String(),
		DurationMinutes: req.minutes,
		StartAt:         w.Start.UTC(),
		EndAt:           w.End.UTC(),
		Type:            in.Type,
		Status:          domain.StatusScheduled,
		Priority:        priority,
		PatientNotes:    strings.TrimSpace(in.Notes),
	}
	if key != "" {
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("carebook:create_appointment:"+in.PatientID.String()+":"+key))

		// A retry of a stored booking succeeds even once its start has passed.
		existing, err := s.repo.Get(ctx, appt.ID)
		switch {
		case err == nil:
			if !sameBooking(existing, appt) {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		case !errors.Is(err, store.ErrNotFound):
			return domain.Appointment{}, err
		}
	}
	if err := s.checkTiming(w, cal.hours); err != nil {
		return domain.Appointment{}, err
	}

	var (
		created  domain.Appointment
		replayed bool
	)
	keys := store.CalendarKeys(appt.PatientID, appt.DoctorID, appt.Date)
	err = s.repo.InCalendarTransaction(ctx, keys, func(ctx context.Context, tx store.CalendarTx) error {
		if appt.ID != uuid.Nil {
			existing, err := tx.GetAppointmentForUpdate(ctx, appt.ID)
			switch {
			case err == nil:
				if !sameBooking(existing, appt) {
					return store.ErrIdempotencyConflict
				}
				created, replayed = existing, true
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		candidates, err := tx.ListActiveForParties(ctx, appt.PatientID, appt.DoctorID, w)
		if err != nil {
			return err
		}
		if res := domain.CheckConflicts(appt, candidates); res.HasConflict() {
			return &ConflictError{Kind: res.Kind(), ConflictingIDs: res.IDs()}
		}

		created, err = tx.CreateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, domain.NewEvent(created.ID, domain.EventCreated, "", created.Status, map[string]any{
			"date":      created.Date,
			"startTime": created.StartTime,
			"duration":  created.DurationMinutes,
		}))
	})
	if err != nil {
		return domain.Appointment{}, s.explainConflict(ctx, err, appt, cal)
	}

	if !replayed {
		s.invalidateSlots(ctx, created.ClinicID, created.Date)
	}
	return created, nil
}

// sameBooking reports whether a replayed create asks for the booking that
// the first request stored.
func sameBooking(stored, requested domain.Appointment) bool {
	return stored.PatientID == requested.PatientID &&
		stored.ClinicID == requested.ClinicID &&
		sameDoctor(stored.DoctorID, requested.DoctorID) &&
		stored.Date == requested.Date &&
		stored.StartTime == requested.StartTime &&
		stored.DurationMinutes == requested.DurationMinutes &&
		stored.Type == requested.Type
}
