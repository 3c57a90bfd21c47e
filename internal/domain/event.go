package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type EventKind string

const (
	EventCreated                EventKind = "appointment_created"
	EventStatusChanged          EventKind = "status_changed"
	EventRescheduled            EventKind = "appointment_rescheduled"
	EventCancelled              EventKind = "appointment_cancelled"
	EventDoctorAssigned         EventKind = "doctor_assigned"
	EventReminderSent           EventKind = "reminder_sent"
	EventConfirmationSent       EventKind = "confirmation_sent"
	EventReminderDispatchFailed EventKind = "reminder_dispatch_failed"
	EventReminderReset          EventKind = "reminder_reset"
)

// Event is one row of an appointment's audit trail. Events are written in
// the same transaction as the change they describe.
type Event struct {
	bun.BaseModel `bun:"table:appointment_events"`

	ID            uuid.UUID      `bun:"id,pk,type:uuid"`
	AppointmentID uuid.UUID      `bun:"appointment_id,notnull,type:uuid"`
	Kind          EventKind      `bun:"kind,notnull"`
	FromStatus    Status         `bun:"from_status,nullzero"`
	ToStatus      Status         `bun:"to_status,nullzero"`
	Payload       map[string]any `bun:"payload,type:jsonb,nullzero"`
	CreatedAt     time.Time      `bun:"created_at,notnull"`
}

func (e *Event) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		return assignIdentity(&e.ID, &e.CreatedAt)
	}
	return nil
}

func NewEvent(appointmentID uuid.UUID, kind EventKind, from, to Status, payload map[string]any) Event {
	return Event{
		AppointmentID: appointmentID,
		Kind:          kind,
		FromStatus:    from,
		ToStatus:      to,
		Payload:       payload,
	}
}
