package appointments

import (
	"context"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/notify"
	"carebook/backend/internal/store"
)

type RescheduleInput struct {
	ID        uuid.UUID
	Date      string
	StartTime string
	// DurationMinutes of zero keeps the current duration.
	DurationMinutes int
}

// Reschedule moves a scheduled or confirmed appointment to a new window in
// place. The appointment keeps its id, returns to scheduled and owes fresh
// reminder and confirmation messages. Its own previous window never counts
// as a conflict.
func (s *Service) Reschedule(ctx context.Context, in RescheduleInput) (domain.Appointment, error) {
	if in.ID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment id is required")
	}

	var (
		previous domain.Appointment
		updated  domain.Appointment
	)
	err := withRetryOnConcurrentUpdate("reschedule appointment", func() error {
		current, err := s.repo.Get(ctx, in.ID)
		if err != nil {
			return notFoundOr(err, in.ID)
		}
		if err := current.CheckReschedulable(); err != nil {
			return err
		}

		req, err := s.parseSlotRequest(in.Date, in.StartTime, in.DurationMinutes, current.DurationMinutes)
		if err != nil {
			return err
		}
		cal, err := s.calendarFor(ctx, current.ClinicID)
		if err != nil {
			return err
		}
		w, err := cal.window(req.date, req.start, req.minutes)
		if err != nil {
			return err
		}
		if err := s.checkTiming(w, cal.hours); err != nil {
			return err
		}

		keys := store.CalendarKeys(current.PatientID, current.DoctorID, current.Date, req.date)
		err = s.repo.InCalendarTransaction(ctx, keys, func(ctx context.Context, tx store.CalendarTx) error {
			locked, err := tx.GetAppointmentForUpdate(ctx, in.ID)
			if err != nil {
				return err
			}
			if locked.PatientID != current.PatientID || !sameDoctor(locked.DoctorID, current.DoctorID) || locked.Date != current.Date {
				return store.ErrConcurrentUpdate
			}

			previous = locked
			moved := locked
			if err := moved.Reschedule(req.date, req.start.String(), req.minutes, w); err != nil {
				return err
			}

			candidates, err := tx.ListActiveForParties(ctx, moved.PatientID, moved.DoctorID, w)
			if err != nil {
				return err
			}
			if res := domain.CheckConflicts(moved, candidates); res.HasConflict() {
				return &ConflictError{Kind: res.Kind(), ConflictingIDs: res.IDs()}
			}

			updated, err = tx.UpdateAppointment(ctx, moved)
			if err != nil {
				return err
			}
			return tx.AppendEvent(ctx, domain.NewEvent(updated.ID, domain.EventRescheduled, previous.Status, updated.Status, map[string]any{
				"previousDate":      previous.Date,
				"previousStartTime": previous.StartTime,
				"previousDuration":  previous.DurationMinutes,
				"date":              updated.Date,
				"startTime":         updated.StartTime,
				"duration":          updated.DurationMinutes,
			}))
		})
		if err != nil {
			proposed := current
			proposed.Date = req.date
			proposed.StartTime = req.start.String()
			proposed.DurationMinutes = req.minutes
			proposed.StartAt, proposed.EndAt = w.Start.UTC(), w.End.UTC()
			return s.explainConflict(ctx, notFoundOr(err, in.ID), proposed, cal)
		}
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.invalidateSlots(ctx, updated.ClinicID, previous.Date, updated.Date)
	s.notifyParties(ctx, updated, notify.KindRescheduled, map[string]string{
		"previousDate":      previous.Date,
		"previousStartTime": previous.StartTime,
	})
	return updated, nil
}
