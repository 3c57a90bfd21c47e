package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/notify"
	"carebook/backend/internal/store"
)

const (
	DefaultWindow    = 24 * time.Hour
	DefaultBatchSize = 100
	// maxBatches caps one run so a backlog cannot keep it going forever;
	// the next run picks up the rest.
	maxBatches = 50
)

type Config struct {
	Window    time.Duration
	BatchSize int
}

// Trigger sends reminders for appointments starting within the window and
// confirmation requests for newly scheduled ones. Rows are claimed and
// flagged before anything is sent, so a row is never sent twice; a crash
// between claim and send loses that message until Reconcile clears the flag.
type Trigger struct {
	store      store.ReminderStore
	dispatcher notify.Dispatcher
	log        *zap.Logger
	window     time.Duration
	batchSize  int
	now        func() time.Time
}

func NewTrigger(st store.ReminderStore, dispatcher notify.Dispatcher, log *zap.Logger, cfg Config) *Trigger {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Trigger{
		store:      st,
		dispatcher: dispatcher,
		log:        log.With(zap.String("component", "reminders")),
		window:     cfg.Window,
		batchSize:  cfg.BatchSize,
		now:        time.Now,
	}
}

type Result struct {
	Reminders     int
	Confirmations int
	Failures      int
}

func (t *Trigger) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	now := t.now().UTC()

	for batch := 0; batch < maxBatches; batch++ {
		rows, err := t.store.ClaimDueReminders(ctx, now, now.Add(t.window), t.batchSize)
		if err != nil {
			return res, fmt.Errorf("claim reminders: %w", err)
		}
		for _, a := range rows {
			if t.send(ctx, a, notify.KindReminder) {
				res.Reminders++
			} else {
				res.Failures++
			}
		}
		if len(rows) < t.batchSize {
			break
		}
	}

	for batch := 0; batch < maxBatches; batch++ {
		rows, err := t.store.ClaimPendingConfirmations(ctx, now, t.batchSize)
		if err != nil {
			return res, fmt.Errorf("claim confirmations: %w", err)
		}
		for _, a := range rows {
			if t.send(ctx, a, notify.KindConfirmationRequest) {
				res.Confirmations++
			} else {
				res.Failures++
			}
		}
		if len(rows) < t.batchSize {
			break
		}
	}

	return res, nil
}

// Reconcile makes the appointment eligible for another reminder.
func (t *Trigger) Reconcile(ctx context.Context, appointmentID uuid.UUID) error {
	if err := t.store.ResetReminder(ctx, appointmentID); err != nil {
		return fmt.Errorf("reset reminder %s: %w", appointmentID, err)
	}
	t.log.Info("reminder reset", zap.Stringer("appointment_id", appointmentID))
	return nil
}

func (t *Trigger) send(ctx context.Context, a domain.Appointment, kind notify.Kind) bool {
	err := t.dispatcher.Enqueue(ctx, notify.Notification{
		UserID:        a.PatientID,
		AppointmentID: a.ID,
		Kind:          kind,
		Payload: map[string]string{
			"date":      a.Date,
			"startTime": a.StartTime,
			"type":      string(a.Type),
		},
	})
	if err == nil {
		return true
	}

	t.log.Warn("notification dispatch failed",
		zap.String("kind", string(kind)),
		zap.Stringer("appointment_id", a.ID),
		zap.Error(err),
	)
	if recErr := t.store.RecordDispatchFailure(ctx, a.ID, string(kind), err); recErr != nil {
		t.log.Error("dispatch failure not recorded", zap.Stringer("appointment_id", a.ID), zap.Error(recErr))
	}
	return false
}
