package appointments

import (
	"context"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/notify"
	"carebook/backend/internal/store"
)

// AssignDoctor puts doctorID on a non-terminal appointment after checking
// the doctor's calendar for that window.
func (s *Service) AssignDoctor(ctx context.Context, id, doctorID uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment id is required")
	}
	if doctorID == uuid.Nil {
		return domain.Appointment{}, validationError("doctorId is required")
	}

	var (
		previous *uuid.UUID
		updated  domain.Appointment
	)
	err := withRetryOnConcurrentUpdate("assign doctor", func() error {
		current, err := s.repo.Get(ctx, id)
		if err != nil {
			return notFoundOr(err, id)
		}
		if current.Status.Terminal() {
			return &domain.AlreadyTerminalError{ID: current.ID, Status: current.Status}
		}
		if err := s.checkDoctor(ctx, doctorID, current.ClinicID); err != nil {
			return err
		}

		keys := store.CalendarKeys(current.PatientID, &doctorID, current.Date)
		err = s.repo.InCalendarTransaction(ctx, keys, func(ctx context.Context, tx store.CalendarTx) error {
			locked, err := tx.GetAppointmentForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if locked.PatientID != current.PatientID || locked.Date != current.Date {
				return store.ErrConcurrentUpdate
			}
			if locked.Status.Terminal() {
				return &domain.AlreadyTerminalError{ID: locked.ID, Status: locked.Status}
			}

			previous = locked.DoctorID
			assigned := locked
			assigned.DoctorID = &doctorID

			candidates, err := tx.ListActiveForParties(ctx, assigned.PatientID, assigned.DoctorID, assigned.Window())
			if err != nil {
				return err
			}
			if res := domain.CheckConflicts(assigned, candidates); res.HasDoctorConflict() {
				return &ConflictError{Kind: domain.ConflictDoctor, ConflictingIDs: domain.ConflictResult{Doctor: res.Doctor}.IDs()}
			}

			updated, err = tx.UpdateAppointment(ctx, assigned)
			if err != nil {
				return err
			}
			payload := map[string]any{"doctorId": doctorID.String()}
			if previous != nil {
				payload["previousDoctorId"] = previous.String()
			}
			return tx.AppendEvent(ctx, domain.NewEvent(updated.ID, domain.EventDoctorAssigned, updated.Status, updated.Status, payload))
		})
		if err != nil {
			cal, calErr := s.calendarFor(ctx, current.ClinicID)
			if calErr != nil {
				return notFoundOr(err, id)
			}
			proposed := current
			proposed.DoctorID = &doctorID
			return s.explainConflict(ctx, notFoundOr(err, id), proposed, cal)
		}
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.invalidateSlots(ctx, updated.ClinicID, updated.Date)
	s.notifyParties(ctx, updated, notify.KindDoctorAssigned, nil)
	return updated, nil
}
