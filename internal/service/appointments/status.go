package appointments

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/notify"
	"carebook/backend/internal/store"
)

// Cancel cancels any non-terminal appointment. No conflict check runs since
// cancelling only frees time.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason, cancelledBy string) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Appointment{}, validationError("cancellation reason is required")
	}
	cancelledBy = strings.TrimSpace(cancelledBy)
	if cancelledBy == "" {
		return domain.Appointment{}, validationError("cancelledBy is required")
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Appointment{}, notFoundOr(err, id)
	}
	if current.Status.Terminal() {
		return domain.Appointment{}, &domain.AlreadyTerminalError{ID: current.ID, Status: current.Status}
	}

	var updated domain.Appointment
	err = s.repo.InCalendarTransaction(ctx, nil, func(ctx context.Context, tx store.CalendarTx) error {
		locked, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from := locked.Status
		if err := locked.Cancel(reason, cancelledBy, s.now()); err != nil {
			return err
		}
		updated, err = tx.UpdateAppointment(ctx, locked)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, domain.NewEvent(updated.ID, domain.EventCancelled, from, updated.Status, map[string]any{
			"reason":      reason,
			"cancelledBy": cancelledBy,
		}))
	})
	if err != nil {
		return domain.Appointment{}, notFoundOr(err, id)
	}

	s.invalidateSlots(ctx, updated.ClinicID, updated.Date)
	s.notifyParties(ctx, updated, notify.KindCancelled, map[string]string{"reason": reason})
	return updated, nil
}

// TransitionStatus applies one transition of the appointment lifecycle
// (confirm, start, complete, no-show, ...). A rejected transition leaves the
// stored appointment untouched.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, to domain.Status) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment id is required")
	}
	if !to.Valid() {
		return domain.Appointment{}, validationErrorf("status %q is not supported", to)
	}
	if to == domain.StatusCancelled {
		return domain.Appointment{}, validationError("use cancel to cancel an appointment")
	}

	var updated domain.Appointment
	err := s.repo.InCalendarTransaction(ctx, nil, func(ctx context.Context, tx store.CalendarTx) error {
		locked, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from := locked.Status
		if err := locked.Transition(to); err != nil {
			return err
		}
		updated, err = tx.UpdateAppointment(ctx, locked)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, domain.NewEvent(updated.ID, domain.EventStatusChanged, from, to, nil))
	})
	if err != nil {
		if errors.Is(err, domain.ErrCancellationReasonRequired) {
			return domain.Appointment{}, validationError(err.Error())
		}
		return domain.Appointment{}, notFoundOr(err, id)
	}

	if !to.Active() {
		s.invalidateSlots(ctx, updated.ClinicID, updated.Date)
	}
	return updated, nil
}
