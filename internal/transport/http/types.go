package http

import (
	"time"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
)

type CreateAppointmentRequest struct {
	PatientID       string `json:"patientId" validate:"required,uuid"`
	ClinicID        string `json:"clinicId" validate:"required,uuid"`
	DoctorID        string `json:"doctorId,omitempty" validate:"omitempty,uuid"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"startTime" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"durationMinutes,omitempty" validate:"omitempty,min=1,max=1440"`
	Type            string `json:"type" validate:"required"`
	Priority        string `json:"priority,omitempty" validate:"max=32"`
	Notes           string `json:"notes,omitempty" validate:"max=4000"`
}

type UpdateStatusRequest struct {
	NewStatus string `json:"newStatus" validate:"required"`
}

type RescheduleRequest struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string `json:"startTime" validate:"required,datetime=15:04"`
	DurationMinutes int    `json:"durationMinutes,omitempty" validate:"omitempty,min=1,max=1440"`
}

type CancelRequest struct {
	Reason      string `json:"reason" validate:"required,max=1000"`
	CancelledBy string `json:"cancelledBy,omitempty" validate:"max=200"`
}

type AssignDoctorRequest struct {
	DoctorID string `json:"doctorId" validate:"required,uuid"`
}

type CancellationResponse struct {
	At     time.Time `json:"at"`
	By     string    `json:"by"`
	Reason string    `json:"reason"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID             `json:"id"`
	PatientID          uuid.UUID             `json:"patientId"`
	ClinicID           uuid.UUID             `json:"clinicId"`
	DoctorID           *uuid.UUID            `json:"doctorId,omitempty"`
	Date               string                `json:"date"`
	StartTime          string                `json:"startTime"`
	DurationMinutes    int                   `json:"durationMinutes"`
	StartAt            time.Time             `json:"startAt"`
	EndAt              time.Time             `json:"endAt"`
	Type               string                `json:"type"`
	Status             string                `json:"status"`
	Priority           string                `json:"priority"`
	Notes              string                `json:"notes,omitempty"`
	Cancellation       *CancellationResponse `json:"cancellation,omitempty"`
	ReminderSent       bool                  `json:"reminderSent"`
	ReminderSentAt     *time.Time            `json:"reminderSentAt,omitempty"`
	ConfirmationSent   bool                  `json:"confirmationSent"`
	ConfirmationSentAt *time.Time            `json:"confirmationSentAt,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

func toAppointmentResponse(a domain.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		ClinicID:           a.ClinicID,
		DoctorID:           a.DoctorID,
		Date:               a.Date,
		StartTime:          a.StartTime,
		DurationMinutes:    a.DurationMinutes,
		StartAt:            a.StartAt,
		EndAt:              a.EndAt,
		Type:               string(a.Type),
		Status:             string(a.Status),
		Priority:           string(a.Priority),
		Notes:              a.PatientNotes,
		ReminderSent:       a.ReminderSent,
		ReminderSentAt:     a.ReminderSentAt,
		ConfirmationSent:   a.ConfirmationSent,
		ConfirmationSentAt: a.ConfirmationSentAt,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if c := a.Cancellation(); c != nil {
		resp.Cancellation = &CancellationResponse{At: c.At, By: c.By, Reason: c.Reason}
	}
	return resp
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

// SlotResponse is a free window; StartTime and EndTime are clinic-local.
type SlotResponse struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
}

func toSlotResponse(w domain.Window) SlotResponse {
	return SlotResponse{
		Start:     w.Start,
		End:       w.End,
		StartTime: w.Start.Format(domain.ClockLayout),
		EndTime:   w.End.Format(domain.ClockLayout),
	}
}

type AvailableSlotsResponse struct {
	Date            string         `json:"date"`
	DurationMinutes int            `json:"durationMinutes"`
	Slots           []SlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
