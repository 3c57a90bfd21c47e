package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const DefaultDurationMinutes = 30

type AppointmentType string

const (
	TypeConsultation    AppointmentType = "consultation"
	TypeFollowUp        AppointmentType = "follow-up"
	TypeEmergency       AppointmentType = "emergency"
	TypeRoutineCheckup  AppointmentType = "routine-checkup"
	TypeSpecialistVisit AppointmentType = "specialist-visit"
	TypeProcedure       AppointmentType = "procedure"
	TypeSurgery         AppointmentType = "surgery"
	TypeLabTest         AppointmentType = "lab-test"
	TypeImaging         AppointmentType = "imaging"
	TypeVaccination     AppointmentType = "vaccination"
	TypePhysicalTherapy AppointmentType = "physical-therapy"
	TypeMentalHealth    AppointmentType = "mental-health"
	TypeDental          AppointmentType = "dental"
	TypeVision          AppointmentType = "vision"
	TypeOther           AppointmentType = "other"
)

var AppointmentTypes = []AppointmentType{
	TypeConsultation, TypeFollowUp, TypeEmergency, TypeRoutineCheckup, TypeSpecialistVisit,
	TypeProcedure, TypeSurgery, TypeLabTest, TypeImaging, TypeVaccination,
	TypePhysicalTherapy, TypeMentalHealth, TypeDental, TypeVision, TypeOther,
}

func (t AppointmentType) Valid() bool {
	for _, v := range AppointmentTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Cancellation is present on an appointment exactly when it is cancelled.
type Cancellation struct {
	At     time.Time
	By     string
	Reason string
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid"`
	PatientID uuid.UUID  `bun:"patient_id,notnull,type:uuid"`
	ClinicID  uuid.UUID  `bun:"clinic_id,notnull,type:uuid"`
	DoctorID  *uuid.UUID `bun:"doctor_id,type:uuid"`

	// Date and StartTime are clinic-local; StartAt/EndAt are the UTC instants.
	Date            string    `bun:"appointment_date,notnull"`
	StartTime       string    `bun:"start_time,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	StartAt         time.Time `bun:"start_at,notnull"`
	EndAt           time.Time `bun:"end_at,notnull"`

	Type     AppointmentType `bun:"type,notnull"`
	Status   Status          `bun:"status,notnull"`
	Priority Priority        `bun:"priority,notnull"`

	PatientNotes string `bun:"patient_notes,nullzero"`
	DoctorNotes  string `bun:"doctor_notes,nullzero"`
	AdminNotes   string `bun:"admin_notes,nullzero"`

	CancelledAt        *time.Time `bun:"cancelled_at"`
	CancelledBy        string     `bun:"cancelled_by,nullzero"`
	CancellationReason string     `bun:"cancellation_reason,nullzero"`

	ReminderSent       bool       `bun:"reminder_sent,notnull"`
	ReminderSentAt     *time.Time `bun:"reminder_sent_at"`
	ConfirmationSent   bool       `bun:"confirmation_sent,notnull"`
	ConfirmationSentAt *time.Time `bun:"confirmation_sent_at"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) Window() Window {
	return Window{Start: a.StartAt, End: a.EndAt}
}

func (a Appointment) HasDoctor(id uuid.UUID) bool {
	return a.DoctorID != nil && *a.DoctorID == id
}

func (a Appointment) Cancellation() *Cancellation {
	if a.Status != StatusCancelled || a.CancelledAt == nil {
		return nil
	}
	return &Cancellation{At: *a.CancelledAt, By: a.CancelledBy, Reason: a.CancellationReason}
}

// CheckInvariants verifies the at-rest rules that hold for any stored
// appointment regardless of when it was created.
func (a Appointment) CheckInvariants() error {
	if !a.EndAt.After(a.StartAt) {
		return fmt.Errorf("appointment %s: end must be after start", a.ID)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("appointment %s: unknown status %q", a.ID, a.Status)
	}
	hasCancellation := a.CancelledAt != nil || a.CancellationReason != ""
	if hasCancellation != (a.Status == StatusCancelled) {
		return fmt.Errorf("appointment %s: cancellation present with status %s", a.ID, a.Status)
	}
	return nil
}

// Transition moves the appointment to status to. Cancellation goes through
// Cancel because it needs a reason.
func (a *Appointment) Transition(to Status) error {
	if to == StatusCancelled {
		return ErrCancellationReasonRequired
	}
	if !CanTransition(a.Status, to) {
		return &InvalidTransitionError{From: a.Status, To: to}
	}
	a.Status = to
	return nil
}

func (a *Appointment) Cancel(reason, by string, at time.Time) error {
	if a.Status.Terminal() {
		return &AlreadyTerminalError{ID: a.ID, Status: a.Status}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrCancellationReasonRequired
	}
	by = strings.TrimSpace(by)
	if by == "" {
		return ErrCancelledByRequired
	}
	if !CanTransition(a.Status, StatusCancelled) {
		return &InvalidTransitionError{From: a.Status, To: StatusCancelled}
	}
	at = at.UTC()
	a.Status = StatusCancelled
	a.CancelledAt = &at
	a.CancelledBy = by
	a.CancellationReason = reason
	return nil
}

// CheckReschedulable reports whether the appointment may be moved to a new
// window. Only scheduled and confirmed appointments can be.
func (a Appointment) CheckReschedulable() error {
	if a.Status.Terminal() {
		return &AlreadyTerminalError{ID: a.ID, Status: a.Status}
	}
	if !CanTransition(a.Status, StatusRescheduled) {
		return &InvalidTransitionError{From: a.Status, To: StatusRescheduled}
	}
	return nil
}

// Reschedule moves the appointment in place: it passes through rescheduled
// and lands back on scheduled with fresh notification flags.
func (a *Appointment) Reschedule(date, startTime string, durationMinutes int, w Window) error {
	if err := a.CheckReschedulable(); err != nil {
		return err
	}
	if !w.Valid() {
		return fmt.Errorf("appointment %s: empty window", a.ID)
	}
	a.Status = StatusRescheduled
	if err := a.Transition(StatusScheduled); err != nil {
		return err
	}
	a.Date = date
	a.StartTime = startTime
	a.DurationMinutes = durationMinutes
	a.StartAt = w.Start.UTC()
	a.EndAt = w.End.UTC()
	a.ReminderSent = false
	a.ReminderSentAt = nil
	a.ConfirmationSent = false
	a.ConfirmationSentAt = nil
	return nil
}
