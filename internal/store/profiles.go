package store

import (
	"context"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
)

// ProfileStore resolves the people and places an appointment refers to.
// Missing records return ErrNotFound.
type ProfileStore interface {
	GetPatient(ctx context.Context, id uuid.UUID) (domain.Patient, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (domain.Doctor, error)
	GetClinic(ctx context.Context, id uuid.UUID) (domain.Clinic, error)
}
