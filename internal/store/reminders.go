package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
)

// ReminderStore claims appointments that are owed a notification. A claim
// sets the matching sent flag in the same statement that selects the row,
// so a row is handed out at most once.
type ReminderStore interface {
	// ClaimDueReminders claims scheduled or confirmed appointments starting
	// in (now, horizon] whose reminder has not been sent.
	ClaimDueReminders(ctx context.Context, now, horizon time.Time, limit int) ([]domain.Appointment, error)
	// ClaimPendingConfirmations claims scheduled appointments starting after
	// now whose confirmation request has not been sent.
	ClaimPendingConfirmations(ctx context.Context, now time.Time, limit int) ([]domain.Appointment, error)
	RecordDispatchFailure(ctx context.Context, appointmentID uuid.UUID, kind string, cause error) error
	// ResetReminder clears the reminder flag so the next run sends again.
	ResetReminder(ctx context.Context, appointmentID uuid.UUID) error
}
