package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/service/appointments"
	"carebook/backend/internal/store"
)

type fakeService struct {
	createFn     func(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	getFn        func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	listFn       func(ctx context.Context, filter store.ListFilter) ([]domain.Appointment, error)
	rescheduleFn func(ctx context.Context, in appointments.RescheduleInput) (domain.Appointment, error)
	cancelFn     func(ctx context.Context, id uuid.UUID, reason, cancelledBy string) (domain.Appointment, error)
	transitionFn func(ctx context.Context, id uuid.UUID, to domain.Status) (domain.Appointment, error)
	assignFn     func(ctx context.Context, id, doctorID uuid.UUID) (domain.Appointment, error)
	slotsFn      func(ctx context.Context, q domain.SlotQuery) ([]domain.Window, error)
	durationFn   func() int
}

func (f *fakeService) Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, in)
}

func (f *fakeService) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeService) List(ctx context.Context, filter store.ListFilter) ([]domain.Appointment, error) {
	if f.listFn == nil {
		panic("List not configured")
	}
	return f.listFn(ctx, filter)
}

func (f *fakeService) Reschedule(ctx context.Context, in appointments.RescheduleInput) (domain.Appointment, error) {
	if f.rescheduleFn == nil {
		panic("Reschedule not configured")
	}
	return f.rescheduleFn(ctx, in)
}

func (f *fakeService) Cancel(ctx context.Context, id uuid.UUID, reason, cancelledBy string) (domain.Appointment, error) {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, id, reason, cancelledBy)
}

func (f *fakeService) TransitionStatus(ctx context.Context, id uuid.UUID, to domain.Status) (domain.Appointment, error) {
	if f.transitionFn == nil {
		panic("TransitionStatus not configured")
	}
	return f.transitionFn(ctx, id, to)
}

func (f *fakeService) AssignDoctor(ctx context.Context, id, doctorID uuid.UUID) (domain.Appointment, error) {
	if f.assignFn == nil {
		panic("AssignDoctor not configured")
	}
	return f.assignFn(ctx, id, doctorID)
}

func (f *fakeService) ListConflictFreeSlots(ctx context.Context, q domain.SlotQuery) ([]domain.Window, error) {
	if f.slotsFn == nil {
		panic("ListConflictFreeSlots not configured")
	}
	return f.slotsFn(ctx, q)
}

func (f *fakeService) DefaultDurationMinutes() int {
	if f.durationFn == nil {
		panic("DefaultDurationMinutes not configured")
	}
	return f.durationFn()
}

var (
	apptID    = uuid.MustParse("00000000-0000-0000-0000-00000000aa01")
	patientID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	clinicID  = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	doctorID  = uuid.MustParse("00000000-0000-0000-0000-0000000000d1")
	slotStart = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
)

func sampleAppointment() domain.Appointment {
	return domain.Appointment{
		ID:              apptID,
		PatientID:       patientID,
		ClinicID:        clinicID,
		DoctorID:        &doctorID,
		Date:            "2024-01-15",
		StartTime:       "09:00",
		DurationMinutes: 30,
		StartAt:         slotStart,
		EndAt:           slotStart.Add(30 * time.Minute),
		Type:            domain.TypeConsultation,
		Status:          domain.StatusScheduled,
		Priority:        domain.PriorityNormal,
	}
}

func do(t *testing.T, svc AppointmentService, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	NewRouter(RouterConfig{Service: svc}).ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

const createBody = `{
	"patientId": "00000000-0000-0000-0000-0000000000a1",
	"clinicId": "00000000-0000-0000-0000-0000000000c1",
	"doctorId": "00000000-0000-0000-0000-0000000000d1",
	"date": "2024-01-15",
	"startTime": "09:00",
	"durationMinutes": 30,
	"type": "consultation"
}`

func TestCreate_Created(t *testing.T) {
	var got appointments.CreateInput
	svc := &fakeService{createFn: func(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error) {
		got = in
		return sampleAppointment(), nil
	}}

	rec := do(t, svc, http.MethodPost, "/appointments", createBody, map[string]string{IdempotencyKeyHeader: "key-1"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, patientID, got.PatientID)
	require.NotNil(t, got.DoctorID)
	assert.Equal(t, doctorID, *got.DoctorID)
	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.Equal(t, domain.TypeConsultation, got.Type)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, apptID, resp.ID)
	assert.Equal(t, "scheduled", resp.Status)
	assert.Equal(t, "09:00", resp.StartTime)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestCreate_RequestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"patientId":`},
		{name: "empty body", body: ""},
		{name: "unknown field", body: `{"patientId":"00000000-0000-0000-0000-0000000000a1","bogus":1}`},
		{name: "bad uuid", body: `{"patientId":"nope","clinicId":"00000000-0000-0000-0000-0000000000c1","date":"2024-01-15","startTime":"09:00","type":"consultation"}`},
		{name: "bad clock", body: `{"patientId":"00000000-0000-0000-0000-0000000000a1","clinicId":"00000000-0000-0000-0000-0000000000c1","date":"2024-01-15","startTime":"9am","type":"consultation"}`},
		{name: "duration too long", body: `{"patientId":"00000000-0000-0000-0000-0000000000a1","clinicId":"00000000-0000-0000-0000-0000000000c1","date":"2024-01-15","startTime":"09:00","durationMinutes":5000,"type":"consultation"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, &fakeService{}, http.MethodPost, "/appointments", tt.body, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, codeValidation, decodeError(t, rec).Error)
		})
	}
}

func TestCreate_FieldErrorsUseJSONNames(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodPost, "/appointments", `{"clinicId":"00000000-0000-0000-0000-0000000000c1","date":"2024-01-15","startTime":"09:00","type":"consultation"}`, nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	fields, ok := resp.Details["fields"].(map[string]any)
	require.True(t, ok, "details = %v", resp.Details)
	assert.Equal(t, "is required", fields["patientId"])
}

func TestServiceErrorMapping(t *testing.T) {
	suggested := domain.Window{Start: slotStart.Add(30 * time.Minute), End: slotStart.Add(time.Hour)}
	other := uuid.MustParse("00000000-0000-0000-0000-00000000aa02")

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "validation", err: &appointments.ValidationError{}, status: http.StatusUnprocessableEntity, code: codeValidation},
		{name: "past date", err: &appointments.PastDateError{Start: slotStart}, status: http.StatusUnprocessableEntity, code: codePastDate},
		{name: "outside hours", err: &appointments.OutsideBusinessHoursError{Hours: domain.DefaultBusinessHours()}, status: http.StatusUnprocessableEntity, code: codeOutsideBusinessHours},
		{name: "conflict", err: &appointments.ConflictError{Kind: domain.ConflictDoctor, ConflictingIDs: []uuid.UUID{other}, Suggested: &suggested}, status: http.StatusConflict, code: codeConflict},
		{name: "invalid transition", err: &domain.InvalidTransitionError{From: domain.StatusScheduled, To: domain.StatusCompleted}, status: http.StatusConflict, code: codeInvalidTransition},
		{name: "already terminal", err: &domain.AlreadyTerminalError{ID: apptID, Status: domain.StatusCancelled}, status: http.StatusConflict, code: codeAlreadyTerminal},
		{name: "idempotency", err: store.ErrIdempotencyConflict, status: http.StatusConflict, code: codeIdempotencyConflict},
		{name: "not found", err: store.ErrNotFound, status: http.StatusNotFound, code: codeNotFound},
		{name: "persistence", err: &store.PersistenceError{Op: "create", Attempts: 3, Err: errors.New("conn refused")}, status: http.StatusServiceUnavailable, code: codePersistence},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, code: codeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{getFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
				return domain.Appointment{}, tt.err
			}}
			rec := do(t, svc, http.MethodGet, "/appointments/"+apptID.String(), "", nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}

func TestConflictDetails(t *testing.T) {
	other := uuid.MustParse("00000000-0000-0000-0000-00000000aa02")
	suggested := domain.Window{Start: slotStart.Add(30 * time.Minute), End: slotStart.Add(time.Hour)}
	svc := &fakeService{createFn: func(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error) {
		return domain.Appointment{}, &appointments.ConflictError{Kind: domain.ConflictPatientAndDoctor, ConflictingIDs: []uuid.UUID{other}, Suggested: &suggested}
	}}

	rec := do(t, svc, http.MethodPost, "/appointments", createBody, nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, string(domain.ConflictPatientAndDoctor), resp.Details["conflict"])
	assert.Equal(t, []any{other.String()}, resp.Details["conflictingIds"])
	slot, ok := resp.Details["suggestedSlot"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "09:30", slot["startTime"])
}

func TestGet_InvalidID(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/appointments/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestList_ParsesFilter(t *testing.T) {
	var got store.ListFilter
	svc := &fakeService{listFn: func(ctx context.Context, filter store.ListFilter) ([]domain.Appointment, error) {
		got = filter
		return []domain.Appointment{sampleAppointment()}, nil
	}}

	rec := do(t, svc, http.MethodGet, "/appointments?doctorId="+doctorID.String()+"&from=2024-01-15&to=2024-01-15", "", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, got.DoctorID)
	assert.Equal(t, doctorID, *got.DoctorID)
	assert.Nil(t, got.PatientID)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got.From)
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), got.To)

	var resp ListAppointmentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Appointments, 1)
}

func TestList_RejectsBadBounds(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/appointments?clinicId="+clinicID.String()+"&from=yesterday", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAvailableSlots(t *testing.T) {
	var got domain.SlotQuery
	svc := &fakeService{slotsFn: func(ctx context.Context, q domain.SlotQuery) ([]domain.Window, error) {
		got = q
		return []domain.Window{
			{Start: slotStart, End: slotStart.Add(30 * time.Minute)},
			{Start: slotStart.Add(time.Hour), End: slotStart.Add(90 * time.Minute)},
		}, nil
	}}

	rec := do(t, svc, http.MethodGet, "/appointments/available-slots?clinicId="+clinicID.String()+"&date=2024-01-15&durationMinutes=30", "", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, clinicID, got.ClinicID)
	assert.Nil(t, got.DoctorID)
	assert.Equal(t, 30, got.DurationMinutes)

	var resp AvailableSlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Slots, 2)
	assert.Equal(t, "09:00", resp.Slots[0].StartTime)
	assert.Equal(t, "10:30", resp.Slots[1].EndTime)
}

func TestAvailableSlots_EmptyDayReportsResolvedDuration(t *testing.T) {
	var got domain.SlotQuery
	svc := &fakeService{
		slotsFn: func(ctx context.Context, q domain.SlotQuery) ([]domain.Window, error) {
			got = q
			return nil, nil
		},
		durationFn: func() int { return 45 },
	}

	rec := do(t, svc, http.MethodGet, "/appointments/available-slots?clinicId="+clinicID.String()+"&date=%202024-01-15%20", "", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2024-01-15", got.Date)
	assert.Equal(t, 45, got.DurationMinutes)

	var resp AvailableSlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-01-15", resp.Date)
	assert.Equal(t, 45, resp.DurationMinutes)
	assert.Empty(t, resp.Slots)
}

func TestAvailableSlots_RequiresClinicAndDate(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/appointments/available-slots?date=2024-01-15", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, &fakeService{}, http.MethodGet, "/appointments/available-slots?clinicId="+clinicID.String(), "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	var got domain.Status
	svc := &fakeService{transitionFn: func(ctx context.Context, id uuid.UUID, to domain.Status) (domain.Appointment, error) {
		got = to
		a := sampleAppointment()
		a.Status = to
		return a, nil
	}}

	rec := do(t, svc, http.MethodPatch, "/appointments/"+apptID.String()+"/status", `{"newStatus":"confirmed"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusConfirmed, got)
}

func TestReschedule(t *testing.T) {
	var got appointments.RescheduleInput
	svc := &fakeService{rescheduleFn: func(ctx context.Context, in appointments.RescheduleInput) (domain.Appointment, error) {
		got = in
		return sampleAppointment(), nil
	}}

	rec := do(t, svc, http.MethodPatch, "/appointments/"+apptID.String()+"/reschedule", `{"date":"2024-01-16","startTime":"10:00"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appointments.RescheduleInput{ID: apptID, Date: "2024-01-16", StartTime: "10:00"}, got)
}

func TestCancel_ActorHeaderWins(t *testing.T) {
	var reason, by string
	svc := &fakeService{cancelFn: func(ctx context.Context, id uuid.UUID, r, b string) (domain.Appointment, error) {
		reason, by = r, b
		return sampleAppointment(), nil
	}}

	rec := do(t, svc, http.MethodPost, "/appointments/"+apptID.String()+"/cancel", `{"reason":"sick","cancelledBy":"body-user"}`, map[string]string{ActorHeader: "header-user"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sick", reason)
	assert.Equal(t, "header-user", by)

	rec = do(t, svc, http.MethodPost, "/appointments/"+apptID.String()+"/cancel", `{"reason":"sick","cancelledBy":"body-user"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body-user", by)
}

func TestCancel_ReasonRequired(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodPost, "/appointments/"+apptID.String()+"/cancel", `{"cancelledBy":"u"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAssignDoctor(t *testing.T) {
	var got uuid.UUID
	svc := &fakeService{assignFn: func(ctx context.Context, id, d uuid.UUID) (domain.Appointment, error) {
		got = d
		return sampleAppointment(), nil
	}}

	rec := do(t, svc, http.MethodPatch, "/appointments/"+apptID.String()+"/doctor", `{"doctorId":"`+doctorID.String()+`"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, doctorID, got)
}

func TestRecover_PanicBecomes500(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/appointments/"+apptID.String(), "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, codeInternal, decodeError(t, rec).Error)
}

func TestRouter_RateLimit(t *testing.T) {
	svc := &fakeService{getFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
		return sampleAppointment(), nil
	}}
	router := NewRouter(RouterConfig{Service: svc, RateLimit: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/appointments/"+apptID.String(), nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRouter_HealthRoutes(t *testing.T) {
	router := NewRouter(RouterConfig{Service: &fakeService{}, Health: NewHealthHandler("test")})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
