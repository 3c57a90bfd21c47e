package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
)

// MaxListWindow bounds range queries over appointments.
const MaxListWindow = 93 * 24 * time.Hour

type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	ClinicID  *uuid.UUID
	From      time.Time
	To        time.Time
}

// BusyScope names the resource whose bookings block a slot: a doctor when
// DoctorID is set, otherwise the whole clinic. PatientID adds that
// patient's own bookings.
type BusyScope struct {
	ClinicID  uuid.UUID
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
}

type AppointmentRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Appointment, error)
	ListActive(ctx context.Context, scope BusyScope, window domain.Window) ([]domain.Appointment, error)

	// InCalendarTransaction runs fn in one transaction after locking every
	// key. Reads and writes made through tx commit or roll back together.
	InCalendarTransaction(ctx context.Context, keys []LockKey, fn func(ctx context.Context, tx CalendarTx) error) error
}
