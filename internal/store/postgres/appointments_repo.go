package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store"
)

const (
	constraintPatientOverlap = "appointments_patient_no_overlap"
	constraintDoctorOverlap  = "appointments_doctor_no_overlap"
	constraintPrimaryKey     = "appointments_pkey"
)

var inactiveStatuses = []domain.Status{domain.StatusCancelled, domain.StatusNoShow}

type AppointmentRepo struct {
	db    *bun.DB
	retry RetryPolicy
}

func NewAppointmentRepo(db *bun.DB, retry RetryPolicy) *AppointmentRepo {
	return &AppointmentRepo{db: db, retry: retry}
}

type calendarTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.retry.Do(ctx, "get appointment", func(ctx context.Context) error {
		return r.db.NewSelect().
			Model(&out).
			Where("id = ?", id).
			Limit(1).
			Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) List(ctx context.Context, filter store.ListFilter) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.retry.Do(ctx, "list appointments", func(ctx context.Context) error {
		rows = nil
		q := r.db.NewSelect().
			Model(&rows).
			Where("start_at < ?", filter.To).
			Where("end_at > ?", filter.From)
		if filter.PatientID != nil {
			q = q.Where("patient_id = ?", *filter.PatientID)
		}
		if filter.DoctorID != nil {
			q = q.Where("doctor_id = ?", *filter.DoctorID)
		}
		if filter.ClinicID != nil {
			q = q.Where("clinic_id = ?", *filter.ClinicID)
		}
		return q.OrderExpr("start_at ASC").Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListActive(ctx context.Context, scope store.BusyScope, window domain.Window) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.retry.Do(ctx, "list active appointments", func(ctx context.Context) error {
		rows = nil
		return r.db.NewSelect().
			Model(&rows).
			Where("status NOT IN (?)", bun.In(inactiveStatuses)).
			Where("start_at < ?", window.End).
			Where("end_at > ?", window.Start).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				if scope.DoctorID != nil {
					q = q.Where("doctor_id = ?", *scope.DoctorID)
				} else {
					q = q.Where("clinic_id = ?", scope.ClinicID)
				}
				if scope.PatientID != nil {
					q = q.WhereOr("patient_id = ?", *scope.PatientID)
				}
				return q
			}).
			OrderExpr("start_at ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) InCalendarTransaction(ctx context.Context, keys []store.LockKey, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	return r.retry.Do(ctx, "calendar transaction", func(ctx context.Context) error {
		return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := lockCalendars(ctx, tx, keys); err != nil {
				return err
			}
			return fn(ctx, calendarTx{tx: tx})
		})
	})
}

// lockCalendars takes a transaction-scoped advisory lock per key. Keys are
// sorted first so two transactions never wait on each other in a cycle.
func lockCalendars(ctx context.Context, tx bun.Tx, keys []store.LockKey) error {
	for _, k := range store.SortKeys(keys) {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", string(k)).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r calendarTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.tx.NewSelect().
		Model(&out).
		Where("id = ?", id).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r calendarTx) ListActiveForParties(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID, window domain.Window) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.tx.NewSelect().
		Model(&rows).
		Where("status NOT IN (?)", bun.In(inactiveStatuses)).
		Where("start_at < ?", window.End).
		Where("end_at > ?", window.Start).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("patient_id = ?", patientID)
			if doctorID != nil {
				q = q.WhereOr("doctor_id = ?", *doctorID)
			}
			return q
		}).
		OrderExpr("start_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r calendarTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	return m, nil
}

func (r calendarTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := r.tx.NewUpdate().
		Model(&m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

func (r calendarTx) AppendEvent(ctx context.Context, ev domain.Event) error {
	_, err := r.tx.NewInsert().Model(&ev).Exec(ctx)
	return err
}

// mapWriteError turns constraint violations into store sentinels. The
// exclusion constraints back up the advisory locks for writers that bypass
// them.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == "23P01" && pgErr.ConstraintName == constraintPatientOverlap:
		return store.ErrPatientOverlap
	case pgErr.Code == "23P01" && pgErr.ConstraintName == constraintDoctorOverlap:
		return store.ErrDoctorOverlap
	case pgErr.Code == "23505" && pgErr.ConstraintName == constraintPrimaryKey:
		return store.ErrIdempotencyConflict
	}
	return err
}
