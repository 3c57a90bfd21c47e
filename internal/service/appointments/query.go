package appointments

import (
	"context"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store"
)

func (s *Service) List(ctx context.Context, filter store.ListFilter) ([]domain.Appointment, error) {
	if filter.PatientID == nil && filter.DoctorID == nil && filter.ClinicID == nil {
		return nil, validationError("one of patientId, doctorId or clinicId is required")
	}
	if filter.From.IsZero() || filter.To.IsZero() {
		return nil, validationError("from and to are required")
	}
	filter.From = filter.From.UTC()
	filter.To = filter.To.UTC()
	if !filter.To.After(filter.From) {
		return nil, validationError("to must be after from")
	}
	if filter.To.Sub(filter.From) > store.MaxListWindow {
		return nil, validationErrorf("window must not exceed %d days", int(store.MaxListWindow.Hours()/24))
	}
	return s.repo.List(ctx, filter)
}
