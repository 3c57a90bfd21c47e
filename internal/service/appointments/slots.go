package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store"
)

// ListConflictFreeSlots returns the open windows of the requested length on
// one clinic day, ordered by start and expressed in the clinic's zone. The
// answer is advisory: only Create reserves a slot.
func (s *Service) ListConflictFreeSlots(ctx context.Context, q domain.SlotQuery) ([]domain.Window, error) {
	if q.ClinicID == uuid.Nil {
		return nil, validationError("clinicId is required")
	}
	if q.DoctorID != nil && *q.DoctorID == uuid.Nil {
		q.DoctorID = nil
	}
	q.Date = strings.TrimSpace(q.Date)
	if q.Date == "" {
		return nil, validationError("date is required")
	}
	minutes, err := s.duration(q.DurationMinutes, 0)
	if err != nil {
		return nil, err
	}
	q.DurationMinutes = minutes

	cal, err := s.calendarFor(ctx, q.ClinicID)
	if err != nil {
		return nil, err
	}
	if q.DoctorID != nil {
		if err := s.checkDoctor(ctx, *q.DoctorID, q.ClinicID); err != nil {
			return nil, err
		}
	}
	day, err := cal.day(q.Date)
	if err != nil {
		return nil, err
	}

	slots, err := s.daySlots(ctx, q, cal, day)
	if err != nil {
		return nil, err
	}
	return upcoming(slots, s.now(), cal.loc), nil
}

// daySlots computes every free slot of the day regardless of the current
// time, going through the cache when one is configured.
func (s *Service) daySlots(ctx context.Context, q domain.SlotQuery, cal clinicCalendar, day time.Time) ([]domain.Window, error) {
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		cached, g, ok, err := s.cache.Get(ctx, q)
		switch {
		case err != nil:
			s.log.Warn("slot cache read failed", zap.Stringer("clinic_id", q.ClinicID), zap.String("date", q.Date), zap.Error(err))
		case ok:
			return cached, nil
		default:
			gen, cacheable = g, true
		}
	}

	open := cal.hours.On(day)
	busy, err := s.repo.ListActive(ctx, store.BusyScope{ClinicID: q.ClinicID, DoctorID: q.DoctorID}, open)
	if err != nil {
		return nil, err
	}
	slots := domain.FreeSlots(open, time.Duration(q.DurationMinutes)*time.Minute, domain.Windows(busy), time.Time{})

	if cacheable {
		if err := s.cache.Set(ctx, q, gen, slots); err != nil {
			s.log.Warn("slot cache write failed", zap.Stringer("clinic_id", q.ClinicID), zap.String("date", q.Date), zap.Error(err))
		}
	}
	return slots, nil
}

func upcoming(slots []domain.Window, now time.Time, loc *time.Location) []domain.Window {
	out := make([]domain.Window, 0, len(slots))
	for _, w := range slots {
		if w.Start.Before(now) {
			continue
		}
		out = append(out, w.In(loc))
	}
	return out
}

// explainConflict turns store overlap errors into ConflictError and attaches
// the nearest free slot to any conflict. Other errors pass through.
func (s *Service) explainConflict(ctx context.Context, err error, proposed domain.Appointment, cal clinicCalendar) error {
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
	case errors.Is(err, store.ErrPatientOverlap):
		conflict = &ConflictError{Kind: domain.ConflictPatient}
	case errors.Is(err, store.ErrDoctorOverlap):
		conflict = &ConflictError{Kind: domain.ConflictDoctor}
	default:
		return err
	}

	if suggested, ok := s.suggestSlot(ctx, proposed, cal); ok {
		conflict.Suggested = &suggested
	}
	return conflict
}

// suggestSlot finds the free slot nearest to proposed's start on the same
// day, avoiding the doctor's (or clinic's) and the patient's bookings.
func (s *Service) suggestSlot(ctx context.Context, proposed domain.Appointment, cal clinicCalendar) (domain.Window, bool) {
	day, err := cal.day(proposed.Date)
	if err != nil {
		return domain.Window{}, false
	}
	open := cal.hours.On(day)
	patientID := proposed.PatientID
	busy, err := s.repo.ListActive(ctx, store.BusyScope{
		ClinicID:  proposed.ClinicID,
		DoctorID:  proposed.DoctorID,
		PatientID: &patientID,
	}, open)
	if err != nil {
		s.log.Warn("slot suggestion skipped", zap.Stringer("clinic_id", proposed.ClinicID), zap.Error(err))
		return domain.Window{}, false
	}

	others := make([]domain.Appointment, 0, len(busy))
	for _, b := range busy {
		if proposed.ID != uuid.Nil && b.ID == proposed.ID {
			continue
		}
		others = append(others, b)
	}
	slots := domain.FreeSlots(open, proposed.Window().Duration(), domain.Windows(others), s.now())
	best, ok := domain.NearestSlot(slots, proposed.StartAt)
	if !ok {
		return domain.Window{}, false
	}
	return best.In(cal.loc), true
}
