package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const DefaultHealthInterval = 10 * time.Second

// StatusSetter is satisfied by *health.Server.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// HealthReporter polls ping and mirrors the result into the overall
// serving status.
type HealthReporter struct {
	setter   StatusSetter
	ping     func(ctx context.Context) error
	interval time.Duration
	log      *zap.Logger

	last healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthReporter(setter StatusSetter, ping func(ctx context.Context) error, interval time.Duration, log *zap.Logger) *HealthReporter {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthReporter{
		setter:   setter,
		ping:     ping,
		interval: interval,
		log:      log.With(zap.String("component", "grpc.health")),
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
}

// Run reports once immediately and then every interval until ctx ends.
func (r *HealthReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.Check(ctx)
		select {
		case <-ctx.Done():
			r.setter.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			return
		case <-ticker.C:
		}
	}
}

func (r *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	pingCtx, cancel := context.WithTimeout(ctx, r.interval/2)
	err := r.ping(pingCtx)
	cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if st != r.last {
		if err != nil {
			r.log.Warn("database ping failed", zap.Error(err))
		} else {
			r.log.Info("database reachable")
		}
		r.last = st
	}
	r.setter.SetServingStatus("", st)
	return st
}
