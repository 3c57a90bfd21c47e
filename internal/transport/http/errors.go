package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/service/appointments"
	"carebook/backend/internal/store"
)

const (
	codeValidation           = "validation_failed"
	codePastDate             = "past_date"
	codeOutsideBusinessHours = "outside_business_hours"
	codeConflict             = "conflict"
	codeInvalidTransition    = "invalid_transition"
	codeAlreadyTerminal      = "already_terminal"
	codeIdempotencyConflict  = "idempotency_conflict"
	codeNotFound             = "not_found"
	codePersistence          = "persistence_unavailable"
	codeInternal             = "internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

// writeServiceError maps a service error onto its status code and machine
// readable error code. Unknown errors are logged and hidden.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		vErr        *appointments.ValidationError
		pastErr     *appointments.PastDateError
		hoursErr    *appointments.OutsideBusinessHoursError
		conflictErr *appointments.ConflictError
		transErr    *domain.InvalidTransitionError
		termErr     *domain.AlreadyTerminalError
		persistErr  *store.PersistenceError
	)

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusUnprocessableEntity, codeValidation, vErr.Error(), nil)
	case errors.As(err, &pastErr):
		writeError(w, http.StatusUnprocessableEntity, codePastDate, pastErr.Error(), nil)
	case errors.As(err, &hoursErr):
		writeError(w, http.StatusUnprocessableEntity, codeOutsideBusinessHours, hoursErr.Error(), map[string]any{
			"open":  hoursErr.Hours.Open.String(),
			"close": hoursErr.Hours.Close.String(),
		})
	case errors.As(err, &conflictErr):
		details := map[string]any{
			"conflict":       string(conflictErr.Kind),
			"conflictingIds": conflictErr.ConflictingIDs,
		}
		if conflictErr.Suggested != nil {
			details["suggestedSlot"] = toSlotResponse(*conflictErr.Suggested)
		}
		writeError(w, http.StatusConflict, codeConflict, conflictErr.Error(), details)
	case errors.As(err, &transErr):
		writeError(w, http.StatusConflict, codeInvalidTransition, transErr.Error(), map[string]any{
			"from": string(transErr.From),
			"to":   string(transErr.To),
		})
	case errors.As(err, &termErr):
		writeError(w, http.StatusConflict, codeAlreadyTerminal, termErr.Error(), map[string]any{
			"status": string(termErr.Status),
		})
	case errors.Is(err, store.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, codeIdempotencyConflict, "idempotency key was already used for a different appointment", nil)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "appointment not found", nil)
	case errors.As(err, &persistErr):
		log.Warn("persistence unavailable", zap.Error(err))
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, codePersistence, "storage temporarily unavailable, retry later", nil)
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error", nil)
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, err.Error(), nil)
		return
	}

	fields := make(map[string]any, len(fieldErrs))
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := validationMessage(fe)
		fields[fe.Field()] = msg
		msgs = append(msgs, fe.Field()+" "+msg)
	}
	writeError(w, http.StatusUnprocessableEntity, codeValidation, strings.Join(msgs, ", "), map[string]any{"fields": fields})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "datetime":
		return "must match " + fe.Param()
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}
