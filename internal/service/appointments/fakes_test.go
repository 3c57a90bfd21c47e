package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/notify"
	"carebook/backend/internal/store"
)

// memRepo keeps appointments in a map. A calendar transaction works on a
// copy that replaces the map only when fn succeeds.
type memRepo struct {
	mu        sync.Mutex
	appts     map[uuid.UUID]domain.Appointment
	events    []domain.Event
	locked    [][]store.LockKey
	createErr error
}

func newMemRepo(appts ...domain.Appointment) *memRepo {
	r := &memRepo{appts: make(map[uuid.UUID]domain.Appointment)}
	for _, a := range appts {
		r.appts[a.ID] = a
	}
	return r
}

func (r *memRepo) stored(id uuid.UUID) domain.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appts[id]
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appts)
}

func (r *memRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (r *memRepo) List(ctx context.Context, f store.ListFilter) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := domain.Window{Start: f.From, End: f.To}
	var out []domain.Appointment
	for _, a := range r.appts {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && !a.HasDoctor(*f.DoctorID) {
			continue
		}
		if f.ClinicID != nil && a.ClinicID != *f.ClinicID {
			continue
		}
		if a.Window().Overlaps(w) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *memRepo) ListActive(ctx context.Context, scope store.BusyScope, w domain.Window) ([]domain.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Appointment
	for _, a := range r.appts {
		if !a.Status.Active() || !a.Window().Overlaps(w) {
			continue
		}
		resource := a.ClinicID == scope.ClinicID
		if scope.DoctorID != nil {
			resource = a.HasDoctor(*scope.DoctorID)
		}
		own := scope.PatientID != nil && a.PatientID == *scope.PatientID
		if resource || own {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *memRepo) InCalendarTransaction(ctx context.Context, keys []store.LockKey, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = append(r.locked, keys)

	tx := &memTx{createErr: r.createErr, appts: make(map[uuid.UUID]domain.Appointment, len(r.appts))}
	for id, a := range r.appts {
		tx.appts[id] = a
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.appts = tx.appts
	r.events = append(r.events, tx.events...)
	return nil
}

type memTx struct {
	createErr error
	appts     map[uuid.UUID]domain.Appointment
	events    []domain.Event
}

func (t *memTx) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	a, ok := t.appts[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t *memTx) ListActiveForParties(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID, w domain.Window) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for _, a := range t.appts {
		if !a.Status.Active() || !a.Window().Overlaps(w) {
			continue
		}
		if a.PatientID == patientID || (doctorID != nil && a.HasDoctor(*doctorID)) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (t *memTx) CreateAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	if t.createErr != nil {
		return domain.Appointment{}, t.createErr
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, ok := t.appts[a.ID]; ok {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	a.CreatedAt = testNow
	a.UpdatedAt = testNow
	t.appts[a.ID] = a
	return a, nil
}

func (t *memTx) UpdateAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	if _, ok := t.appts[a.ID]; !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	a.UpdatedAt = testNow
	t.appts[a.ID] = a
	return a, nil
}

func (t *memTx) AppendEvent(ctx context.Context, ev domain.Event) error {
	t.events = append(t.events, ev)
	return nil
}

func sortByStart(appts []domain.Appointment) {
	sort.Slice(appts, func(i, j int) bool { return appts[i].StartAt.Before(appts[j].StartAt) })
}

type fakeProfiles struct {
	patients map[uuid.UUID]domain.Patient
	doctors  map[uuid.UUID]domain.Doctor
	clinics  map[uuid.UUID]domain.Clinic
}

func (f *fakeProfiles) GetPatient(ctx context.Context, id uuid.UUID) (domain.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return domain.Patient{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfiles) GetDoctor(ctx context.Context, id uuid.UUID) (domain.Doctor, error) {
	d, ok := f.doctors[id]
	if !ok {
		return domain.Doctor{}, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeProfiles) GetClinic(ctx context.Context, id uuid.UUID) (domain.Clinic, error) {
	c, ok := f.clinics[id]
	if !ok {
		return domain.Clinic{}, store.ErrNotFound
	}
	return c, nil
}

type fakeCache struct {
	getFn        func(ctx context.Context, q domain.SlotQuery) ([]domain.Window, int64, bool, error)
	setFn        func(ctx context.Context, q domain.SlotQuery, gen int64, slots []domain.Window) error
	invalidateFn func(ctx context.Context, clinicID uuid.UUID, dates ...string) error
}

func (f *fakeCache) Get(ctx context.Context, q domain.SlotQuery) ([]domain.Window, int64, bool, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, q)
}

func (f *fakeCache) Set(ctx context.Context, q domain.SlotQuery, gen int64, slots []domain.Window) error {
	if f.setFn == nil {
		panic("Set not configured")
	}
	return f.setFn(ctx, q, gen, slots)
}

func (f *fakeCache) Invalidate(ctx context.Context, clinicID uuid.UUID, dates ...string) error {
	if f.invalidateFn == nil {
		panic("Invalidate not configured")
	}
	return f.invalidateFn(ctx, clinicID, dates...)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (d *recordingDispatcher) Enqueue(ctx context.Context, n notify.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

var (
	testNow  = time.Date(2024, 1, 14, 12, 0, 0, 0, time.UTC)
	testDay  = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	testDate = "2024-01-15"

	clinicC  = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	clinicC2 = uuid.MustParse("00000000-0000-0000-0000-0000000000c2")
	doctorD  = uuid.MustParse("00000000-0000-0000-0000-0000000000d1")
	doctorE  = uuid.MustParse("00000000-0000-0000-0000-0000000000d2")
	doctorF  = uuid.MustParse("00000000-0000-0000-0000-0000000000d3")
	patientP = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	patientQ = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
)

func testProfiles() *fakeProfiles {
	return &fakeProfiles{
		patients: map[uuid.UUID]domain.Patient{
			patientP: {ID: patientP, FullName: "P"},
			patientQ: {ID: patientQ, FullName: "Q"},
		},
		doctors: map[uuid.UUID]domain.Doctor{
			doctorD: {ID: doctorD, ClinicID: clinicC, FullName: "D"},
			doctorE: {ID: doctorE, ClinicID: clinicC, FullName: "E"},
			doctorF: {ID: doctorF, ClinicID: clinicC2, FullName: "F"},
		},
		clinics: map[uuid.UUID]domain.Clinic{
			clinicC:  {ID: clinicC, Name: "C", TimeZone: "UTC"},
			clinicC2: {ID: clinicC2, Name: "C2", TimeZone: "UTC"},
		},
	}
}

func newTestService(repo *memRepo, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(repo, testProfiles(), opts...)
}

func doctorRef(id uuid.UUID) *uuid.UUID {
	return &id
}

// booking builds a stored appointment on testDay starting at clock.
func booking(patient uuid.UUID, doctor *uuid.UUID, clock string, minutes int, status domain.Status) domain.Appointment {
	start := domain.MustParseClock(clock).On(testDay)
	return domain.Appointment{
		ID:              uuid.New(),
		PatientID:       patient,
		ClinicID:        clinicC,
		DoctorID:        doctor,
		Date:            testDate,
		StartTime:       clock,
		DurationMinutes: minutes,
		StartAt:         start,
		EndAt:           start.Add(time.Duration(minutes) * time.Minute),
		Type:            domain.TypeConsultation,
		Status:          status,
		Priority:        domain.PriorityNormal,
	}
}

func createInput(patient uuid.UUID, doctor *uuid.UUID, clock string) CreateInput {
	return CreateInput{
		PatientID:       patient,
		ClinicID:        clinicC,
		DoctorID:        doctor,
		Date:            testDate,
		StartTime:       clock,
		DurationMinutes: 30,
		Type:            domain.TypeConsultation,
	}
}
