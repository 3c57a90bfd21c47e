package notify

import (
	"context"

	"github.com/google/uuid"
)

type Kind string

const (
	KindReminder            Kind = "appointment_reminder"
	KindConfirmationRequest Kind = "confirmation_request"
	KindCancelled           Kind = "appointment_cancelled"
	KindRescheduled         Kind = "appointment_rescheduled"
	KindDoctorAssigned      Kind = "doctor_assigned"
)

// Notification is a fire-and-forget request to tell one user something
// about one appointment. Payload values feed the message template.
type Notification struct {
	UserID        uuid.UUID         `json:"userId"`
	AppointmentID uuid.UUID         `json:"appointmentId"`
	Kind          Kind              `json:"kind"`
	Payload       map[string]string `json:"payload,omitempty"`
}

// Dispatcher hands notifications to whatever delivers them. A nil error
// means the request was accepted, not that it reached the user.
type Dispatcher interface {
	Enqueue(ctx context.Context, n Notification) error
}
