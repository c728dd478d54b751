// Package apperr описывает таксономию ошибок движка бронирования.
package apperr

import (
	"errors"
	"net/http"
)

// Kind машиночитаемый вид ошибки
type Kind string

const (
	KindInvalidInterval       Kind = "INVALID_INTERVAL"
	KindSlotAlreadyBooked     Kind = "SLOT_ALREADY_BOOKED"
	KindStudentDoubleBooked   Kind = "STUDENT_DOUBLE_BOOKED"
	KindSlotNoLongerAvailable Kind = "SLOT_NO_LONGER_AVAILABLE"
	KindNotFound              Kind = "NOT_FOUND"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindInvalidTransition     Kind = "INVALID_TRANSITION"
	KindConflict              Kind = "CONFLICT"
	KindStoreUnavailable      Kind = "STORE_UNAVAILABLE"
)

var (
	ErrInvalidInterval       = &Error{Kind: KindInvalidInterval, Message: "invalid interval"}
	ErrSlotAlreadyBooked     = &Error{Kind: KindSlotAlreadyBooked, Message: "slot already booked"}
	ErrStudentDoubleBooked   = &Error{Kind: KindStudentDoubleBooked, Message: "student already has an appointment at this time"}
	ErrSlotNoLongerAvailable = &Error{Kind: KindSlotNoLongerAvailable, Message: "slot no longer available"}
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrInvalidTransition     = &Error{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrConflict              = &Error{Kind: KindConflict, Message: "concurrent modification"}
	ErrStoreUnavailable      = &Error{Kind: KindStoreUnavailable, Message: "store unavailable"}
)

// Error ошибка с видом из таксономии
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает по виду, чтобы errors.Is(err, ErrSlotAlreadyBooked) работал для любых сообщений
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New создаёт ошибку указанного вида
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap классифицирует причину err видом kind
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf возвращает вид ошибки; неклассифицированные ошибки считаются отказом хранилища
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

// Classify гарантирует что ошибка принадлежит таксономии, не теряя исходную причину
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(KindStoreUnavailable, err, msg)
}

// IsRetryable только Conflict сигнализирует о безобидной гонке
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

func (k Kind) Retryable() bool {
	return k == KindConflict
}

// HTTPStatus отображает вид ошибки на HTTP статус.
// NotFound и Unauthorized неразличимы снаружи, чтобы не раскрывать чужие записи.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInterval:
		return http.StatusBadRequest
	case KindSlotAlreadyBooked, KindSlotNoLongerAvailable, KindStudentDoubleBooked,
		KindInvalidTransition, KindConflict:
		return http.StatusConflict
	case KindNotFound, KindUnauthorized:
		return http.StatusNotFound
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicCode код ошибки, видимый клиенту
func (k Kind) PublicCode() string {
	if k == KindUnauthorized {
		return string(KindNotFound)
	}
	return string(k)
}

// UserMessage сообщение для клиента
func (k Kind) UserMessage() string {
	switch k {
	case KindSlotAlreadyBooked, KindSlotNoLongerAvailable:
		return "this time is no longer available, please pick another"
	case KindStudentDoubleBooked:
		return "you already have a session at this time"
	case KindNotFound, KindUnauthorized:
		return "not found"
	case KindInvalidInterval:
		return "invalid time interval"
	case KindInvalidTransition:
		return "this action is not allowed for the appointment in its current state"
	case KindConflict:
		return "the appointment was modified concurrently, please retry"
	default:
		return "service temporarily unavailable"
	}
}
