package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/service/appointments"
	"carebook/backend/internal/store"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ActorHeader          = "X-Actor-ID"

	maxBodyBytes = 1 << 20
)

// AppointmentService is the part of the appointments service exposed over
// HTTP.
type AppointmentService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, filter store.ListFilter) ([]domain.Appointment, error)
	Reschedule(ctx context.Context, in appointments.RescheduleInput) (domain.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason, cancelledBy string) (domain.Appointment, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, to domain.Status) (domain.Appointment, error)
	AssignDoctor(ctx context.Context, id, doctorID uuid.UUID) (domain.Appointment, error)
	ListConflictFreeSlots(ctx context.Context, q domain.SlotQuery) ([]domain.Window, error)
	DefaultDurationMinutes() int
}

type AppointmentHandler struct {
	svc      AppointmentService
	validate *validator.Validate
	log      *zap.Logger
}

func NewAppointmentHandler(svc AppointmentService, log *zap.Logger) *AppointmentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &AppointmentHandler{svc: svc, validate: v, log: log}
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := appointments.CreateInput{
		PatientID:       uuid.MustParse(req.PatientID),
		ClinicID:        uuid.MustParse(req.ClinicID),
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Type:            domain.AppointmentType(req.Type),
		Priority:        domain.Priority(req.Priority),
		Notes:           req.Notes,
		IdempotencyKey:  r.Header.Get(IdempotencyKeyHeader),
	}
	if req.DoctorID != "" {
		id := uuid.MustParse(req.DoctorID)
		in.DoctorID = &id
	}

	a, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(a))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(a))
}

// List serves GET /appointments?patientId=&doctorId=&clinicId=&from=&to=.
// from and to accept RFC 3339 instants or plain dates; a plain to date is
// inclusive.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.ListFilter
	var err error
	if filter.PatientID, err = optionalUUID(q.Get("patientId")); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "patientId must be a UUID", nil)
		return
	}
	if filter.DoctorID, err = optionalUUID(q.Get("doctorId")); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "doctorId must be a UUID", nil)
		return
	}
	if filter.ClinicID, err = optionalUUID(q.Get("clinicId")); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "clinicId must be a UUID", nil)
		return
	}
	if filter.From, err = parseBound(q.Get("from"), false); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "from: "+err.Error(), nil)
		return
	}
	if filter.To, err = parseBound(q.Get("to"), true); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "to: "+err.Error(), nil)
		return
	}

	list, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	resp := ListAppointmentsResponse{Appointments: make([]AppointmentResponse, 0, len(list))}
	for _, a := range list {
		resp.Appointments = append(resp.Appointments, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AvailableSlots serves GET /appointments/available-slots?clinicId=&date=
// with optional doctorId and durationMinutes.
func (h *AppointmentHandler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clinicID, err := uuid.Parse(q.Get("clinicId"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "clinicId must be a UUID", nil)
		return
	}
	doctorID, err := optionalUUID(q.Get("doctorId"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "doctorId must be a UUID", nil)
		return
	}
	date := strings.TrimSpace(q.Get("date"))
	if date == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "date is required", nil)
		return
	}
	minutes := 0
	if raw := q.Get("durationMinutes"); raw != "" {
		if minutes, err = strconv.Atoi(raw); err != nil {
			writeError(w, http.StatusUnprocessableEntity, codeValidation, "durationMinutes must be an integer", nil)
			return
		}
	}
	if minutes == 0 {
		minutes = h.svc.DefaultDurationMinutes()
	}

	slots, err := h.svc.ListConflictFreeSlots(r.Context(), domain.SlotQuery{
		ClinicID:        clinicID,
		DoctorID:        doctorID,
		Date:            date,
		DurationMinutes: minutes,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	resp := AvailableSlotsResponse{Date: date, DurationMinutes: minutes, Slots: make([]SlotResponse, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, toSlotResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.svc.TransitionStatus(r.Context(), id, domain.Status(req.NewStatus))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(a))
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req RescheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.svc.Reschedule(r.Context(), appointments.RescheduleInput{
		ID:              id,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(a))
}

// Cancel takes the actor from X-Actor-ID, falling back to the body.
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	by := strings.TrimSpace(r.Header.Get(ActorHeader))
	if by == "" {
		by = req.CancelledBy
	}
	a, err := h.svc.Cancel(r.Context(), id, req.Reason, by)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(a))
}

func (h *AppointmentHandler) AssignDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req AssignDoctorRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.svc.AssignDoctor(r.Context(), id, uuid.MustParse(req.DoctorID))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(a))
}

// decode reads a JSON body into dst and validates it. On failure it has
// already written the response.
func (h *AppointmentHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "malformed JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		writeError(w, http.StatusUnprocessableEntity, codeValidation, msg, nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "id must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseBound(raw string, end bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, errors.New("must be an RFC 3339 time or a YYYY-MM-DD date")
	}
	if end {
		d = d.AddDate(0, 0, 1)
	}
	return d, nil
}
