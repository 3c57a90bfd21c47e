package appointments

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/notify"
)

func appointmentPayload(a domain.Appointment) map[string]string {
	return map[string]string{
		"date":            a.Date,
		"startTime":       a.StartTime,
		"durationMinutes": strconv.Itoa(a.DurationMinutes),
		"type":            string(a.Type),
		"status":          string(a.Status),
	}
}

// notifyParties tells the patient, and the doctor when there is one, about
// a change. Delivery failures are logged and otherwise ignored.
func (s *Service) notifyParties(ctx context.Context, a domain.Appointment, kind notify.Kind, extra map[string]string) {
	if s.dispatcher == nil {
		return
	}
	payload := appointmentPayload(a)
	for k, v := range extra {
		payload[k] = v
	}

	recipients := []uuid.UUID{a.PatientID}
	if a.DoctorID != nil {
		recipients = append(recipients, *a.DoctorID)
	}
	for _, userID := range recipients {
		err := s.dispatcher.Enqueue(ctx, notify.Notification{
			UserID:        userID,
			AppointmentID: a.ID,
			Kind:          kind,
			Payload:       payload,
		})
		if err != nil {
			s.log.Warn("notification not enqueued",
				zap.String("kind", string(kind)),
				zap.Stringer("appointment_id", a.ID),
				zap.Stringer("user_id", userID),
				zap.Error(err),
			)
		}
	}
}
