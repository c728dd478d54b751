package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/google/uuid"
)

// SlotSource данные, из которых генератор вычисляет слоты
type SlotSource interface {
	ListRules(ctx context.Context, tutorID int64, activeOnly bool) ([]model.AvailabilityRule, error)
	ListExceptions(ctx context.Context, tutorID int64, from, to time.Time) ([]model.AvailabilityException, error)
	// ListTutorAppointments возвращает неотменённые записи, пересекающие [from, to)
	ListTutorAppointments(ctx context.Context, tutorID int64, from, to time.Time) ([]model.Appointment, error)
}

// TxRunner выполняет fn атомарно, удерживая блокировки lockKeys до конца транзакции.
// Блокировки живут в хранилище, а не в памяти процесса, поэтому работают между инстансами.
type TxRunner interface {
	InTx(ctx context.Context, lockKeys []string, fn func(tx Tx) error) error
}

// Tx операции внутри одной транзакции хранилища
type Tx interface {
	ActiveRules(ctx context.Context, tutorID int64) ([]model.AvailabilityRule, error)
	ExceptionOn(ctx context.Context, tutorID int64, date time.Time) (*model.AvailabilityException, error)
	TutorHasOverlap(ctx context.Context, tutorID int64, start, end time.Time) (bool, error)
	StudentHasOverlap(ctx context.Context, studentID int64, start, end time.Time) (bool, error)
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, id int64) (*model.Appointment, error)
	// UpdateAppointment сохраняет запись только если её версия всё ещё expectedVersion
	UpdateAppointment(ctx context.Context, a *model.Appointment, expectedVersion int64) (bool, error)
	InsertEvent(ctx context.Context, ev *model.LifecycleEvent) error
}

// AppointmentReader чтение записей вне транзакции
type AppointmentReader interface {
	GetAppointment(ctx context.Context, id int64) (*model.Appointment, error)
	ListParticipantAppointments(ctx context.Context, userID int64, from, to time.Time) ([]model.Appointment, error)
}

// EventStore исходящие события жизненного цикла (transactional outbox)
type EventStore interface {
	PendingEvents(ctx context.Context, occurredBefore time.Time, limit int) ([]model.LifecycleEvent, error)
	MarkDispatched(ctx context.Context, eventID uuid.UUID, at time.Time) error
}

// AvailabilityStore записи правил и исключений, принадлежащих репетитору
type AvailabilityStore interface {
	ListRules(ctx context.Context, tutorID int64, activeOnly bool) ([]model.AvailabilityRule, error)
	GetRule(ctx context.Context, id int64) (*model.AvailabilityRule, error)
	CreateRule(ctx context.Context, rule *model.AvailabilityRule) error
	DeactivateRule(ctx context.Context, id int64) error
	ListExceptions(ctx context.Context, tutorID int64, from, to time.Time) ([]model.AvailabilityException, error)
	UpsertException(ctx context.Context, ex *model.AvailabilityException) error
	DeleteException(ctx context.Context, tutorID int64, date time.Time) (bool, error)
}

// Store полная граница хранения
type Store interface {
	SlotSource
	TxRunner
	AppointmentReader
	EventStore
	AvailabilityStore
}

// Notifier граница доставки уведомлений; движок только отдаёт события
type Notifier interface {
	Dispatch(ctx context.Context, ev model.LifecycleEvent) error
}

// SlotCache кэш вычисленных слотов с явной инвалидацией по версии репетитора
type SlotCache interface {
	Version(ctx context.Context, tutorID int64) (int64, error)
	Get(ctx context.Context, tutorID, version int64, from, to time.Time) ([]model.Slot, bool, error)
	Put(ctx context.Context, tutorID, version int64, from, to time.Time, slots []model.Slot) error
	Invalidate(ctx context.Context, tutorID int64) error
}

func tutorLockKey(id int64) string   { return fmt.Sprintf("tutor:%d", id) }
func studentLockKey(id int64) string { return fmt.Sprintf("student:%d", id) }

// lockKeys упорядочивает ключи, чтобы параллельные транзакции не брали их крест-накрест
func lockKeys(tutorID, studentID int64) []string {
	keys := []string{tutorLockKey(tutorID), studentLockKey(studentID)}
	sort.Strings(keys)
	return keys
}
