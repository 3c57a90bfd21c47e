package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/store"
)

type ProfileRepo struct {
	db *bun.DB
}

func NewProfileRepo(db *bun.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) GetPatient(ctx context.Context, id uuid.UUID) (domain.Patient, error) {
	return getByID[domain.Patient](ctx, r.db, id)
}

func (r *ProfileRepo) GetDoctor(ctx context.Context, id uuid.UUID) (domain.Doctor, error) {
	return getByID[domain.Doctor](ctx, r.db, id)
}

func (r *ProfileRepo) GetClinic(ctx context.Context, id uuid.UUID) (domain.Clinic, error) {
	return getByID[domain.Clinic](ctx, r.db, id)
}

func (r *ProfileRepo) CreateClinic(ctx context.Context, c domain.Clinic) (domain.Clinic, error) {
	_, err := r.db.NewInsert().Model(&c).Exec(ctx)
	return c, err
}

func (r *ProfileRepo) CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	_, err := r.db.NewInsert().Model(&p).Exec(ctx)
	return p, err
}

func (r *ProfileRepo) CreateDoctor(ctx context.Context, d domain.Doctor) (domain.Doctor, error) {
	_, err := r.db.NewInsert().Model(&d).Exec(ctx)
	return d, err
}

func getByID[T any](ctx context.Context, db bun.IDB, id uuid.UUID) (T, error) {
	var out T
	err := db.NewSelect().
		Model(&out).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, store.ErrNotFound
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
