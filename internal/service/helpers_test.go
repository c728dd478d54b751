package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	tutorA   int64 = 1
	studentX int64 = 2
	tutorB   int64 = 3
	studentY int64 = 4
	stranger int64 = 99
)

var (
	// понедельники
	monday     = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	nextMonday = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	// воскресенье накануне
	startNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.LifecycleEvent
	err    error
}

func (n *recordingNotifier) Dispatch(_ context.Context, ev model.LifecycleEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *recordingNotifier) types() []model.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.EventType, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

// mapCache SlotCache в памяти со счётчиком инвалидаций
type mapCache struct {
	mu          sync.Mutex
	versions    map[int64]int64
	entries     map[string][]model.Slot
	invalidated map[int64]int
}

func newMapCache() *mapCache {
	return &mapCache{
		versions:    make(map[int64]int64),
		entries:     make(map[string][]model.Slot),
		invalidated: make(map[int64]int),
	}
}

func cacheKey(tutorID, version int64, from, to time.Time) string {
	return fmt.Sprintf("%d:%d:%s:%s", tutorID, version, from.Format(time.DateOnly), to.Format(time.DateOnly))
}

func (c *mapCache) Version(_ context.Context, tutorID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[tutorID], nil
}

func (c *mapCache) Get(_ context.Context, tutorID, version int64, from, to time.Time) ([]model.Slot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slots, ok := c.entries[cacheKey(tutorID, version, from, to)]
	return slots, ok, nil
}

func (c *mapCache) Put(_ context.Context, tutorID, version int64, from, to time.Time, slots []model.Slot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(tutorID, version, from, to)] = slots
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, tutorID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[tutorID]++
	c.invalidated[tutorID]++
	return nil
}

func (c *mapCache) invalidations(tutorID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated[tutorID]
}

type harness struct {
	store        *memory.Store
	clock        *fakeClock
	notifier     *recordingNotifier
	cache        *mapCache
	publisher    *service.Publisher
	generator    *service.SlotGenerator
	reservations *service.ReservationService
	lifecycle    *service.LifecycleService
	availability *service.AvailabilityService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:    memory.NewStore(),
		clock:    &fakeClock{now: startNow},
		notifier: &recordingNotifier{},
		cache:    newMapCache(),
	}
	cfg := service.EngineConfig{
		DefaultSlotMinutes: 60,
		MaxRangeDays:       90,
		Location:           time.UTC,
		Clock:              h.clock.Now,
	}
	logger := zap.NewNop()

	h.publisher = service.NewPublisher(h.notifier, h.store, cfg, logger)
	h.generator = service.NewSlotGenerator(h.store, h.cache, cfg, logger)
	h.reservations = service.NewReservationService(h.store, h.cache, h.publisher, cfg, logger)
	h.lifecycle = service.NewLifecycleService(h.store, h.reservations, h.cache, h.publisher, cfg, logger)
	h.availability = service.NewAvailabilityService(h.store, h.cache, cfg, logger)
	return h
}

// addRule создаёт активное правило напрямую в хранилище
func (h *harness) addRule(t *testing.T, tutorID int64, weekday time.Weekday, start, end string) model.AvailabilityRule {
	t.Helper()
	rule := model.AvailabilityRule{
		TutorID:   tutorID,
		Weekday:   int(weekday),
		StartTime: mustTime(t, start),
		EndTime:   mustTime(t, end),
		IsActive:  true,
	}
	require.NoError(t, h.store.CreateRule(context.Background(), &rule))
	return rule
}

func (h *harness) reserve(t *testing.T, tutorID, studentID int64, date time.Time, start, end string) (*model.Appointment, error) {
	t.Helper()
	return h.reservations.Reserve(context.Background(), service.ReserveRequest{
		TutorID:   tutorID,
		StudentID: studentID,
		Date:      date,
		StartTime: mustTime(t, start),
		EndTime:   mustTime(t, end),
		Subject:   "Математика",
	})
}

func (h *harness) mustReserve(t *testing.T, tutorID, studentID int64, date time.Time, start, end string) *model.Appointment {
	t.Helper()
	appt, err := h.reserve(t, tutorID, studentID, date, start, end)
	require.NoError(t, err)
	return appt
}

func mustTime(t *testing.T, s string) model.TimeOfDay {
	t.Helper()
	v, err := model.ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func tutorActor(id int64) model.Actor   { return model.Actor{ID: id, Role: model.RoleTutor} }
func studentActor(id int64) model.Actor { return model.Actor{ID: id, Role: model.RoleStudent} }

var admin = model.Actor{ID: 500, Role: model.RoleAdmin}
