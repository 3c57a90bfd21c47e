package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carebook/backend/internal/domain"
	"carebook/backend/internal/notify"
	"carebook/backend/internal/store"
)

const (
	maxDurationMinutes = 24 * 60
	maxIdempotencyKey  = 256
	// maxConcurrentRetries bounds how often an operation restarts after the
	// appointment's parties changed between its read and its lock.
	maxConcurrentRetries = 3
)

// SlotCache memoises free-slot lists per clinic day. A miss or an error
// falls back to computing the list from the store. Get reports the cache
// generation it read and Set writes under that generation, so a list
// computed across an Invalidate is never served.
type SlotCache interface {
	Get(ctx context.Context, q domain.SlotQuery) (slots []domain.Window, gen int64, ok bool, err error)
	Set(ctx context.Context, q domain.SlotQuery, gen int64, slots []domain.Window) error
	Invalidate(ctx context.Context, clinicID uuid.UUID, dates ...string) error
}

type Service struct {
	repo            store.AppointmentRepository
	profiles        store.ProfileStore
	dispatcher      notify.Dispatcher
	cache           SlotCache
	log             *zap.Logger
	now             func() time.Time
	hours           domain.BusinessHours
	defaultDuration int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithDispatcher(d notify.Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

func WithSlotCache(c SlotCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithDefaultHours sets the opening hours used for clinics that do not
// define their own.
func WithDefaultHours(h domain.BusinessHours) Option {
	return func(s *Service) { s.hours = h }
}

func WithDefaultDuration(minutes int) Option {
	return func(s *Service) { s.defaultDuration = minutes }
}

func NewService(repo store.AppointmentRepository, profiles store.ProfileStore, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		profiles:        profiles,
		log:             zap.NewNop(),
		now:             time.Now,
		hours:           domain.DefaultBusinessHours(),
		defaultDuration: domain.DefaultDurationMinutes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("component", "appointments"))
	return s
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment id is required")
	}
	return s.repo.Get(ctx, id)
}

// clinicCalendar is a clinic with its zone and hours resolved.
type clinicCalendar struct {
	clinic domain.Clinic
	loc    *time.Location
	hours  domain.BusinessHours
}

func (c clinicCalendar) day(date string) (time.Time, error) {
	day, err := domain.ParseDate(date, c.loc)
	if err != nil {
		return time.Time{}, validationError("date must be formatted YYYY-MM-DD")
	}
	return day, nil
}

func (c clinicCalendar) window(date string, start domain.ClockTime, minutes int) (domain.Window, error) {
	day, err := c.day(date)
	if err != nil {
		return domain.Window{}, err
	}
	return domain.NewWindow(start.On(day), time.Duration(minutes)*time.Minute), nil
}

func (s *Service) calendarFor(ctx context.Context, clinicID uuid.UUID) (clinicCalendar, error) {
	clinic, err := s.profiles.GetClinic(ctx, clinicID)
	if errors.Is(err, store.ErrNotFound) {
		return clinicCalendar{}, validationErrorf("clinic %s does not exist", clinicID)
	}
	if err != nil {
		return clinicCalendar{}, err
	}
	loc, err := clinic.Location()
	if err != nil {
		return clinicCalendar{}, err
	}
	hours, err := clinic.Hours(s.hours)
	if err != nil {
		return clinicCalendar{}, err
	}
	return clinicCalendar{clinic: clinic, loc: loc, hours: hours}, nil
}

func (s *Service) checkPatient(ctx context.Context, patientID uuid.UUID) error {
	_, err := s.profiles.GetPatient(ctx, patientID)
	if errors.Is(err, store.ErrNotFound) {
		return validationErrorf("patient %s does not exist", patientID)
	}
	return err
}

// checkDoctor verifies the doctor exists and practises at clinicID.
func (s *Service) checkDoctor(ctx context.Context, doctorID, clinicID uuid.UUID) error {
	doctor, err := s.profiles.GetDoctor(ctx, doctorID)
	if errors.Is(err, store.ErrNotFound) {
		return validationErrorf("doctor %s does not exist", doctorID)
	}
	if err != nil {
		return err
	}
	if doctor.ClinicID != clinicID {
		return validationErrorf("doctor %s does not practise at clinic %s", doctorID, clinicID)
	}
	return nil
}

// checkTiming applies the past-date rule and then the business-hours rule.
func (s *Service) checkTiming(w domain.Window, hours domain.BusinessHours) error {
	now := s.now()
	if w.Start.Before(now) {
		return &PastDateError{Start: w.Start, Now: now}
	}
	if !domain.WithinBusinessHours(w.Start, w.End, hours) {
		return &OutsideBusinessHoursError{Window: w, Hours: hours}
	}
	return nil
}

type slotRequest struct {
	date    string
	start   domain.ClockTime
	minutes int
}

func (s *Service) parseSlotRequest(date, startTime string, minutes, fallback int) (slotRequest, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return slotRequest{}, validationError("date is required")
	}
	if _, err := domain.ParseDate(date, time.UTC); err != nil {
		return slotRequest{}, validationError("date must be formatted YYYY-MM-DD")
	}
	startTime = strings.TrimSpace(startTime)
	if startTime == "" {
		return slotRequest{}, validationError("startTime is required")
	}
	start, err := domain.ParseClock(startTime)
	if err != nil {
		return slotRequest{}, validationError("startTime must be formatted HH:MM")
	}
	minutes, err = s.duration(minutes, fallback)
	if err != nil {
		return slotRequest{}, err
	}
	return slotRequest{date: date, start: start, minutes: minutes}, nil
}

// DefaultDurationMinutes is the length used when a request leaves it unset.
func (s *Service) DefaultDurationMinutes() int {
	return s.defaultDuration
}

func (s *Service) duration(minutes, fallback int) (int, error) {
	if minutes == 0 {
		minutes = fallback
	}
	if minutes == 0 {
		minutes = s.defaultDuration
	}
	if minutes < 1 || minutes > maxDurationMinutes {
		return 0, validationErrorf("durationMinutes must be between 1 and %d", maxDurationMinutes)
	}
	return minutes, nil
}

// withRetryOnConcurrentUpdate reruns fn while it reports that the
// appointment's parties moved under it.
func withRetryOnConcurrentUpdate(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxConcurrentRetries; attempt++ {
		err = fn()
		if !errors.Is(err, store.ErrConcurrentUpdate) {
			return err
		}
	}
	return &store.PersistenceError{Op: op, Attempts: maxConcurrentRetries, Err: err}
}

func (s *Service) invalidateSlots(ctx context.Context, clinicID uuid.UUID, dates ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, clinicID, dates...); err != nil {
		s.log.Warn("slot cache invalidation failed", zap.Stringer("clinic_id", clinicID), zap.Strings("dates", dates), zap.Error(err))
	}
}

func sameDoctor(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func notFoundOr(err error, id uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("appointment %s: %w", id, store.ErrNotFound)
	}
	return err
}
