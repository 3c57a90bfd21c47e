package store

import (
	"context"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
)

type CalendarTx interface {
	GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListActiveForParties(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID, window domain.Window) ([]domain.Appointment, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	AppendEvent(ctx context.Context, ev domain.Event) error
}
