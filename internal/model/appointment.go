package model

import "time"

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED" // Только что забронировано
	StatusConfirmed AppointmentStatus = "CONFIRMED" // Подтверждено репетитором
	StatusCompleted AppointmentStatus = "COMPLETED" // Занятие состоялось
	StatusCancelled AppointmentStatus = "CANCELLED" // Отменено
)

// Valid проверяет что статус входит в закрытое множество
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal терминальные статусы никогда не переоткрываются
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Event событие жизненного цикла записи
type Event string

const (
	EventConfirm    Event = "confirm"
	EventComplete   Event = "complete"
	EventCancel     Event = "cancel"
	EventReschedule Event = "reschedule"
)

type transitionKey struct {
	from  AppointmentStatus
	event Event
}

// transitions таблица (статус, событие) -> статус; всё, чего нет в таблице, запрещено.
// reschedule переводит старую запись в CANCELLED, новая создаётся через бронирование.
var transitions = map[transitionKey]AppointmentStatus{
	{StatusScheduled, EventConfirm}:    StatusConfirmed,
	{StatusConfirmed, EventComplete}:   StatusCompleted,
	{StatusScheduled, EventCancel}:     StatusCancelled,
	{StatusConfirmed, EventCancel}:     StatusCancelled,
	{StatusScheduled, EventReschedule}: StatusCancelled,
	{StatusConfirmed, EventReschedule}: StatusCancelled,
}

// NextStatus возвращает целевой статус для события или false если переход запрещён
func NextStatus(from AppointmentStatus, event Event) (AppointmentStatus, bool) {
	to, ok := transitions[transitionKey{from: from, event: event}]
	return to, ok
}

// CancelReason код причины отмены
type CancelReason string

const (
	ReasonStudentCancelled CancelReason = "student_cancelled"
	ReasonTutorCancelled   CancelReason = "tutor_cancelled"
	ReasonAdminCancelled   CancelReason = "admin_cancelled"
	ReasonRescheduled      CancelReason = "rescheduled"
	ReasonNoShow           CancelReason = "no_show"
	ReasonOther            CancelReason = "other"
)

func (r CancelReason) Valid() bool {
	switch r {
	case ReasonStudentCancelled, ReasonTutorCancelled, ReasonAdminCancelled,
		ReasonRescheduled, ReasonNoShow, ReasonOther:
		return true
	}
	return false
}

type Appointment struct {
	ID              int64             `json:"id"`
	TutorID         int64             `json:"tutor_id"`
	StudentID       int64             `json:"student_id"`
	Subject         string            `json:"subject"`
	Notes           string            `json:"notes"`
	StartAt         time.Time         `json:"start_at"`
	EndAt           time.Time         `json:"end_at"`
	Status          AppointmentStatus `json:"status"`
	Version         int64             `json:"version"` // для оптимистичной блокировки
	CreatedAt       time.Time         `json:"created_at"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CancelReason    CancelReason      `json:"cancel_reason,omitempty"`
	CancelledBy     *int64            `json:"cancelled_by,omitempty"`
	RescheduledFrom *int64            `json:"rescheduled_from,omitempty"`
}

// IsActive незавершённая и неотменённая запись, занимает интервал
func (a *Appointment) IsActive() bool {
	return a.Status != StatusCancelled
}

// Involves проверяет что пользователь участник записи
func (a *Appointment) Involves(userID int64) bool {
	return a.TutorID == userID || a.StudentID == userID
}
