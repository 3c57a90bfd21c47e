package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store"
)

const claimRemindersSQL = `
UPDATE appointments
SET reminder_sent = TRUE, reminder_sent_at = ?, updated_at = ?
WHERE id IN (
	SELECT id FROM appointments
	WHERE status IN (?)
	  AND reminder_sent = FALSE
	  AND start_at > ?
	  AND start_at <= ?
	ORDER BY start_at
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
RETURNING *`

const claimConfirmationsSQL = `
UPDATE appointments
SET confirmation_sent = TRUE, confirmation_sent_at = ?, updated_at = ?
WHERE id IN (
	SELECT id FROM appointments
	WHERE status = ?
	  AND confirmation_sent = FALSE
	  AND start_at > ?
	ORDER BY start_at
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
RETURNING *`

var remindableStatuses = []domain.Status{domain.StatusScheduled, domain.StatusConfirmed}

type ReminderRepo struct {
	db    *bun.DB
	retry RetryPolicy
}

func NewReminderRepo(db *bun.DB, retry RetryPolicy) *ReminderRepo {
	return &ReminderRepo{db: db, retry: retry}
}

func (r *ReminderRepo) ClaimDueReminders(ctx context.Context, now, horizon time.Time, limit int) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.retry.Do(ctx, "claim reminders", func(ctx context.Context) error {
		rows = nil
		return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			err := tx.NewRaw(claimRemindersSQL, now, now, bun.In(remindableStatuses), now, horizon, limit).Scan(ctx, &rows)
			if err != nil {
				return err
			}
			return appendClaimEvents(ctx, tx, rows, domain.EventReminderSent)
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ReminderRepo) ClaimPendingConfirmations(ctx context.Context, now time.Time, limit int) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.retry.Do(ctx, "claim confirmations", func(ctx context.Context) error {
		rows = nil
		return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			err := tx.NewRaw(claimConfirmationsSQL, now, now, domain.StatusScheduled, now, limit).Scan(ctx, &rows)
			if err != nil {
				return err
			}
			return appendClaimEvents(ctx, tx, rows, domain.EventConfirmationSent)
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ReminderRepo) RecordDispatchFailure(ctx context.Context, appointmentID uuid.UUID, kind string, cause error) error {
	payload := map[string]any{"notification": kind}
	if cause != nil {
		payload["error"] = cause.Error()
	}
	ev := domain.NewEvent(appointmentID, domain.EventReminderDispatchFailed, "", "", payload)
	return r.retry.Do(ctx, "record dispatch failure", func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(&ev).Exec(ctx)
		return err
	})
}

func (r *ReminderRepo) ResetReminder(ctx context.Context, appointmentID uuid.UUID) error {
	return r.retry.Do(ctx, "reset reminder", func(ctx context.Context) error {
		return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			res, err := tx.NewRaw(
				"UPDATE appointments SET reminder_sent = FALSE, reminder_sent_at = NULL, updated_at = ? WHERE id = ?",
				time.Now().UTC(), appointmentID,
			).Exec(ctx)
			if err != nil {
				return err
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return store.ErrNotFound
			}
			ev := domain.NewEvent(appointmentID, domain.EventReminderReset, "", "", nil)
			_, err = tx.NewInsert().Model(&ev).Exec(ctx)
			return err
		})
	})
}

func appendClaimEvents(ctx context.Context, tx bun.Tx, rows []domain.Appointment, kind domain.EventKind) error {
	if len(rows) == 0 {
		return nil
	}
	events := make([]domain.Event, 0, len(rows))
	for _, a := range rows {
		events = append(events, domain.NewEvent(a.ID, kind, a.Status, a.Status, nil))
	}
	_, err := tx.NewInsert().Model(&events).Exec(ctx)
	return err
}
