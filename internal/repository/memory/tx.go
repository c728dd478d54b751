package memory

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

// tx работает на копии состояния, которую Store подменяет при коммите
type tx struct {
	st *state
}

func (t *tx) ActiveRules(_ context.Context, tutorID int64) ([]model.AvailabilityRule, error) {
	return t.st.tutorRules(tutorID, true), nil
}

func (t *tx) ExceptionOn(_ context.Context, tutorID int64, date time.Time) (*model.AvailabilityException, error) {
	ex, ok := t.st.exceptions[exceptionKey{tutorID: tutorID, date: model.Date(date)}]
	if !ok {
		return nil, nil
	}
	return &ex, nil
}

func (t *tx) TutorHasOverlap(_ context.Context, tutorID int64, start, end time.Time) (bool, error) {
	return t.st.hasOverlap(func(a *model.Appointment) bool { return a.TutorID == tutorID }, start, end), nil
}

func (t *tx) StudentHasOverlap(_ context.Context, studentID int64, start, end time.Time) (bool, error) {
	return t.st.hasOverlap(func(a *model.Appointment) bool { return a.StudentID == studentID }, start, end), nil
}

func (t *tx) InsertAppointment(_ context.Context, a *model.Appointment) error {
	t.st.nextAppointmentID++
	a.ID = t.st.nextAppointmentID
	t.st.appointments[a.ID] = *a
	return nil
}

func (t *tx) GetAppointment(_ context.Context, id int64) (*model.Appointment, error) {
	return t.st.appointment(id), nil
}

// UpdateAppointment сохраняет запись только при совпадении версии
func (t *tx) UpdateAppointment(_ context.Context, a *model.Appointment, expectedVersion int64) (bool, error) {
	cur, ok := t.st.appointments[a.ID]
	if !ok || cur.Version != expectedVersion {
		return false, nil
	}
	t.st.appointments[a.ID] = *a
	return true, nil
}

func (t *tx) InsertEvent(_ context.Context, ev *model.LifecycleEvent) error {
	t.st.events = append(t.st.events, *ev)
	return nil
}
