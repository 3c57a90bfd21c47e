package appointments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

type PastDateError struct {
	Start time.Time
	Now   time.Time
}

func (e *PastDateError) Error() string {
	return fmt.Sprintf("appointment start %s is in the past", e.Start.Format(time.RFC3339))
}

type OutsideBusinessHoursError struct {
	Window domain.Window
	Hours  domain.BusinessHours
}

func (e *OutsideBusinessHoursError) Error() string {
	return fmt.Sprintf("appointment %s is outside business hours %s", e.Window, e.Hours)
}

var (
	ErrPatientConflict = errors.New("patient has an overlapping appointment")
	ErrDoctorConflict  = errors.New("doctor has an overlapping appointment")
)

// ConflictError rejects a booking that overlaps an active booking of the
// same patient or doctor. It matches ErrPatientConflict and ErrDoctorConflict
// according to Kind. Suggested, when set, is the nearest free slot that day.
type ConflictError struct {
	Kind           domain.ConflictKind
	ConflictingIDs []uuid.UUID
	Suggested      *domain.Window
}

func (e *ConflictError) Error() string {
	var parts []string
	if e.Is(ErrPatientConflict) {
		parts = append(parts, ErrPatientConflict.Error())
	}
	if e.Is(ErrDoctorConflict) {
		parts = append(parts, ErrDoctorConflict.Error())
	}
	msg := strings.Join(parts, "; ")
	if msg == "" {
		msg = "appointment conflict"
	}
	if e.Suggested != nil {
		msg += " (nearest free slot " + e.Suggested.String() + ")"
	}
	return msg
}

func (e *ConflictError) Is(target error) bool {
	switch target {
	case ErrPatientConflict:
		return e.Kind == domain.ConflictPatient || e.Kind == domain.ConflictPatientAndDoctor
	case ErrDoctorConflict:
		return e.Kind == domain.ConflictDoctor || e.Kind == domain.ConflictPatientAndDoctor
	}
	return false
}
