package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleTutor   Role = "tutor"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
	RoleSystem  Role = "system"
)

// Actor уже аутентифицированный инициатор действия
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// IsPrivileged администратор или система
func (a Actor) IsPrivileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// SystemActor используется для автоматических переходов
var SystemActor = Actor{Role: RoleSystem}

type EventType string

const (
	EventTypeBooked    EventType = "booked"
	EventTypeConfirmed EventType = "confirmed"
	EventTypeCancelled EventType = "cancelled"
	EventTypeCompleted EventType = "completed"
)

// EventTypeFor возвращает тип события для нового статуса
func EventTypeFor(status AppointmentStatus) EventType {
	switch status {
	case StatusConfirmed:
		return EventTypeConfirmed
	case StatusCancelled:
		return EventTypeCancelled
	case StatusCompleted:
		return EventTypeCompleted
	default:
		return EventTypeBooked
	}
}

// LifecycleEvent событие для границы уведомлений, пишется в той же транзакции что и переход
type LifecycleEvent struct {
	ID            uuid.UUID         `json:"id"`
	AppointmentID int64             `json:"appointment_id"`
	Type          EventType         `json:"event_type"`
	OldStatus     AppointmentStatus `json:"old_status,omitempty"` // пусто для booked
	NewStatus     AppointmentStatus `json:"new_status"`
	TutorID       int64             `json:"tutor_id"`
	StudentID     int64             `json:"student_id"`
	Actor         Actor             `json:"actor"`
	Reason        CancelReason      `json:"reason,omitempty"`
	StartAt       time.Time         `json:"start_at"`
	OccursAt      time.Time         `json:"occurs_at"`
	DispatchedAt  *time.Time        `json:"dispatched_at,omitempty"`
}

// NewLifecycleEvent собирает событие перехода записи из old в текущий статус
func NewLifecycleEvent(a *Appointment, old AppointmentStatus, actor Actor, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		ID:            uuid.New(),
		AppointmentID: a.ID,
		Type:          EventTypeFor(a.Status),
		OldStatus:     old,
		NewStatus:     a.Status,
		TutorID:       a.TutorID,
		StudentID:     a.StudentID,
		Actor:         actor,
		Reason:        a.CancelReason,
		StartAt:       a.StartAt,
		OccursAt:      at,
	}
}
