package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher writes notifications to the log instead of delivering them.
type LogDispatcher struct {
	log       *zap.Logger
	templates *Templates
}

func NewLogDispatcher(log *zap.Logger, templates *Templates) *LogDispatcher {
	if templates == nil {
		templates = NewTemplates()
	}
	return &LogDispatcher{log: log.With(zap.String("component", "notify")), templates: templates}
}

func (d *LogDispatcher) Enqueue(ctx context.Context, n Notification) error {
	subject, body, err := d.templates.Render(n.Kind, n.Payload)
	if err != nil {
		return err
	}
	d.log.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.Stringer("user_id", n.UserID),
		zap.Stringer("appointment_id", n.AppointmentID),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
