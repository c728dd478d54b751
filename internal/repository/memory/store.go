// Package memory хранилище в памяти процесса с той же семантикой, что и PostgreSQL.
// Подходит для тестов и локального запуска с одним инстансом.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
	"github.com/google/uuid"
)

var _ service.Store = (*Store)(nil)

type exceptionKey struct {
	tutorID int64
	date    time.Time
}

type state struct {
	rules        map[int64]model.AvailabilityRule
	exceptions   map[exceptionKey]model.AvailabilityException
	appointments map[int64]model.Appointment
	events       []model.LifecycleEvent

	nextRuleID        int64
	nextExceptionID   int64
	nextAppointmentID int64
}

func newState() *state {
	return &state{
		rules:        make(map[int64]model.AvailabilityRule),
		exceptions:   make(map[exceptionKey]model.AvailabilityException),
		appointments: make(map[int64]model.Appointment),
	}
}

func (s *state) clone() *state {
	c := &state{
		rules:             make(map[int64]model.AvailabilityRule, len(s.rules)),
		exceptions:        make(map[exceptionKey]model.AvailabilityException, len(s.exceptions)),
		appointments:      make(map[int64]model.Appointment, len(s.appointments)),
		events:            append([]model.LifecycleEvent(nil), s.events...),
		nextRuleID:        s.nextRuleID,
		nextExceptionID:   s.nextExceptionID,
		nextAppointmentID: s.nextAppointmentID,
	}
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.exceptions {
		c.exceptions[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	return c
}

// Store сериализует все операции одним мьютексом; транзакция работает на копии состояния
// и подменяет его только при успехе, так что ошибка внутри fn откатывает всё.
type Store struct {
	mu   sync.Mutex
	st   *state
	fail error
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// FailWith заставляет все последующие операции возвращать err; nil снимает отказ
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// InTx ключи блокировок не нужны: мьютекс уже сериализует всё хранилище
func (s *Store) InTx(ctx context.Context, _ []string, fn func(tx service.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.st.clone()
	if err := fn(&tx{st: staged}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

func (s *Store) read(fn func(st *state)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	fn(s.st)
	return nil
}

func (s *Store) write(fn func(st *state) error) error {
	return s.InTx(context.Background(), nil, func(t service.Tx) error {
		return fn(t.(*tx).st)
	})
}

// ListRules правила репетитора по дню недели и началу окна
func (s *Store) ListRules(_ context.Context, tutorID int64, activeOnly bool) ([]model.AvailabilityRule, error) {
	var rules []model.AvailabilityRule
	err := s.read(func(st *state) {
		rules = st.tutorRules(tutorID, activeOnly)
	})
	return rules, err
}

func (s *Store) GetRule(_ context.Context, id int64) (*model.AvailabilityRule, error) {
	var rule *model.AvailabilityRule
	err := s.read(func(st *state) {
		if r, ok := st.rules[id]; ok {
			rule = &r
		}
	})
	return rule, err
}

func (s *Store) CreateRule(_ context.Context, rule *model.AvailabilityRule) error {
	return s.write(func(st *state) error {
		st.nextRuleID++
		rule.ID = st.nextRuleID
		st.rules[rule.ID] = *rule
		return nil
	})
}

func (s *Store) DeactivateRule(_ context.Context, id int64) error {
	return s.write(func(st *state) error {
		r, ok := st.rules[id]
		if !ok {
			return nil
		}
		r.IsActive = false
		r.UpdatedAt = time.Now()
		st.rules[id] = r
		return nil
	})
}

// ListExceptions исключения в диапазоне дат включительно
func (s *Store) ListExceptions(_ context.Context, tutorID int64, from, to time.Time) ([]model.AvailabilityException, error) {
	from, to = model.Date(from), model.Date(to)
	var list []model.AvailabilityException
	err := s.read(func(st *state) {
		for k, ex := range st.exceptions {
			if k.tutorID == tutorID && !k.date.Before(from) && !k.date.After(to) {
				list = append(list, ex)
			}
		}
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
	return list, err
}

// UpsertException последняя запись для пары (репетитор, дата) побеждает
func (s *Store) UpsertException(_ context.Context, ex *model.AvailabilityException) error {
	return s.write(func(st *state) error {
		key := exceptionKey{tutorID: ex.TutorID, date: model.Date(ex.Date)}
		if prev, ok := st.exceptions[key]; ok {
			ex.ID = prev.ID
			ex.CreatedAt = prev.CreatedAt
		} else {
			st.nextExceptionID++
			ex.ID = st.nextExceptionID
		}
		ex.Date = key.date
		st.exceptions[key] = *ex
		return nil
	})
}

func (s *Store) DeleteException(_ context.Context, tutorID int64, date time.Time) (bool, error) {
	var deleted bool
	err := s.write(func(st *state) error {
		key := exceptionKey{tutorID: tutorID, date: model.Date(date)}
		_, deleted = st.exceptions[key]
		delete(st.exceptions, key)
		return nil
	})
	return deleted, err
}

// ListTutorAppointments неотменённые записи репетитора, пересекающие [from, to)
func (s *Store) ListTutorAppointments(_ context.Context, tutorID int64, from, to time.Time) ([]model.Appointment, error) {
	var list []model.Appointment
	err := s.read(func(st *state) {
		list = st.filterAppointments(func(a *model.Appointment) bool {
			return a.TutorID == tutorID && a.IsActive() && model.Overlaps(a.StartAt, a.EndAt, from, to)
		})
	})
	return list, err
}

// GetAppointment возвращает nil, nil если записи нет
func (s *Store) GetAppointment(_ context.Context, id int64) (*model.Appointment, error) {
	var appt *model.Appointment
	err := s.read(func(st *state) {
		appt = st.appointment(id)
	})
	return appt, err
}

// ListParticipantAppointments все записи пользователя, включая отменённые, пересекающие [from, to)
func (s *Store) ListParticipantAppointments(_ context.Context, userID int64, from, to time.Time) ([]model.Appointment, error) {
	var list []model.Appointment
	err := s.read(func(st *state) {
		list = st.filterAppointments(func(a *model.Appointment) bool {
			return a.Involves(userID) && model.Overlaps(a.StartAt, a.EndAt, from, to)
		})
	})
	return list, err
}

// PendingEvents недоставленные события, случившиеся не позже occurredBefore, в порядке записи
func (s *Store) PendingEvents(_ context.Context, occurredBefore time.Time, limit int) ([]model.LifecycleEvent, error) {
	var list []model.LifecycleEvent
	err := s.read(func(st *state) {
		for _, ev := range st.events {
			if ev.DispatchedAt != nil || ev.OccursAt.After(occurredBefore) {
				continue
			}
			list = append(list, ev)
			if limit > 0 && len(list) == limit {
				return
			}
		}
	})
	return list, err
}

func (s *Store) MarkDispatched(_ context.Context, eventID uuid.UUID, at time.Time) error {
	return s.write(func(st *state) error {
		for i := range st.events {
			if st.events[i].ID == eventID {
				st.events[i].DispatchedAt = &at
				return nil
			}
		}
		return nil
	})
}

// Events история событий записи в порядке записи
func (s *Store) Events(appointmentID int64) []model.LifecycleEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []model.LifecycleEvent
	for _, ev := range s.st.events {
		if ev.AppointmentID == appointmentID {
			list = append(list, ev)
		}
	}
	return list
}

func (st *state) tutorRules(tutorID int64, activeOnly bool) []model.AvailabilityRule {
	var rules []model.AvailabilityRule
	for _, r := range st.rules {
		if r.TutorID != tutorID || (activeOnly && !r.IsActive) {
			continue
		}
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Weekday != rules[j].Weekday {
			return rules[i].Weekday < rules[j].Weekday
		}
		if rules[i].StartTime != rules[j].StartTime {
			return rules[i].StartTime < rules[j].StartTime
		}
		return rules[i].ID < rules[j].ID
	})
	return rules
}

func (st *state) appointment(id int64) *model.Appointment {
	a, ok := st.appointments[id]
	if !ok {
		return nil
	}
	return &a
}

func (st *state) filterAppointments(match func(a *model.Appointment) bool) []model.Appointment {
	var list []model.Appointment
	for _, a := range st.appointments {
		if match(&a) {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartAt.Equal(list[j].StartAt) {
			return list[i].StartAt.Before(list[j].StartAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (st *state) hasOverlap(match func(a *model.Appointment) bool, start, end time.Time) bool {
	for _, a := range st.appointments {
		if a.IsActive() && match(&a) && model.Overlaps(a.StartAt, a.EndAt, start, end) {
			return true
		}
	}
	return false
}
