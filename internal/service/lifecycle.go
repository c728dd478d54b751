package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AppointmentStore то, что нужно менеджеру жизненного цикла от хранилища
type AppointmentStore interface {
	TxRunner
	AppointmentReader
}

// LifecycleService единственный писатель статуса записи
type LifecycleService struct {
	store        AppointmentStore
	reservations *ReservationService
	cache        SlotCache
	publisher    *Publisher
	clock        func() time.Time
	logger       *zap.Logger
}

func NewLifecycleService(
	store AppointmentStore,
	reservations *ReservationService,
	cache SlotCache,
	publisher *Publisher,
	cfg EngineConfig,
	logger *zap.Logger,
) *LifecycleService {
	cfg = cfg.withDefaults()
	return &LifecycleService{
		store:        store,
		reservations: reservations,
		cache:        cache,
		publisher:    publisher,
		clock:        cfg.Clock,
		logger:       logger,
	}
}

// Transition применяет событие к записи по таблице переходов.
// Отмена через Transition записывает причину по роли инициатора.
func (s *LifecycleService) Transition(ctx context.Context, id int64, event model.Event, actor model.Actor) (*model.Appointment, error) {
	if event == model.EventReschedule {
		return nil, apperr.New(apperr.KindInvalidTransition, "reschedule requires a new interval")
	}
	return s.transition(ctx, id, event, actor, "")
}

// Cancel отменяет запись с указанной причиной; пустая причина выбирается по роли инициатора
func (s *LifecycleService) Cancel(ctx context.Context, id int64, actor model.Actor, reason model.CancelReason) (*model.Appointment, error) {
	if reason != "" && (!reason.Valid() || reason == model.ReasonRescheduled) {
		return nil, apperr.New(apperr.KindInvalidTransition, "unknown cancel reason")
	}
	return s.transition(ctx, id, model.EventCancel, actor, reason)
}

func (s *LifecycleService) transition(
	ctx context.Context,
	id int64,
	event model.Event,
	actor model.Actor,
	reason model.CancelReason,
) (appt *model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "LifecycleService.Transition", trace.WithAttributes(
		attribute.Int64("appointment_id", id),
		attribute.String("event", string(event)),
		attribute.String("actor_role", string(actor.Role)),
	))
	defer func() { endSpan(span, err) }()

	ctx = context.WithoutCancel(ctx)
	now := s.clock()
	var (
		ev  model.LifecycleEvent
		old model.AppointmentStatus
	)
	err = s.store.InTx(ctx, nil, func(tx Tx) error {
		a, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return apperr.Classify(err, "get appointment")
		}
		if err := authorize(a, event, actor); err != nil {
			return err
		}

		next, ok := model.NextStatus(a.Status, event)
		if !ok {
			return apperr.New(apperr.KindInvalidTransition, "cannot "+string(event)+" appointment in status "+string(a.Status))
		}
		if event == model.EventComplete && now.Before(a.StartAt) {
			return apperr.New(apperr.KindInvalidTransition, "appointment has not started yet")
		}

		old = a.Status
		if err := s.apply(ctx, tx, a, next, actor, cancelReason(a, actor, reason), now); err != nil {
			return err
		}

		ev = model.NewLifecycleEvent(a, old, actor, now)
		if err := tx.InsertEvent(ctx, &ev); err != nil {
			return apperr.Classify(err, "insert lifecycle event")
		}
		appt = a
		return nil
	})
	if err != nil {
		err = apperr.Classify(err, "transition appointment")
		s.logger.Info("Transition rejected",
			zap.Int64("appointment_id", id),
			zap.String("event", string(event)),
			zap.Int64("actor_id", actor.ID),
			zap.String("reason", string(apperr.KindOf(err))),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Appointment status changed",
		zap.Int64("appointment_id", appt.ID),
		zap.String("event", string(event)),
		zap.String("old_status", string(old)),
		zap.String("status", string(appt.Status)),
		zap.Int64("actor_id", actor.ID),
	)

	if appt.Status == model.StatusCancelled {
		invalidateSlots(ctx, s.cache, s.logger, appt.TutorID)
	}
	s.publisher.Publish(ctx, ev)

	return appt, nil
}

// Reschedule отменяет запись с причиной rescheduled и бронирует новый интервал в одной транзакции.
// Если новое бронирование отклонено, исходная запись остаётся нетронутой.
func (s *LifecycleService) Reschedule(
	ctx context.Context,
	id int64,
	actor model.Actor,
	date time.Time,
	start, end model.TimeOfDay,
) (old, created *model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "LifecycleService.Reschedule", trace.WithAttributes(
		attribute.Int64("appointment_id", id),
		attribute.String("actor_role", string(actor.Role)),
	))
	defer func() { endSpan(span, err) }()

	current, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, nil, apperr.Classify(err, "get appointment")
	}
	if err := authorize(current, model.EventReschedule, actor); err != nil {
		return nil, nil, err
	}

	now := s.clock()
	req := ReserveRequest{
		TutorID:   current.TutorID,
		StudentID: current.StudentID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Subject:   current.Subject,
		Notes:     current.Notes,
	}
	startAt, endAt, err := s.reservations.interval(req, now)
	if err != nil {
		return nil, nil, err
	}

	ctx = context.WithoutCancel(ctx)

	var cancelled, booked model.LifecycleEvent
	err = s.store.InTx(ctx, lockKeys(current.TutorID, current.StudentID), func(tx Tx) error {
		a, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return apperr.Classify(err, "get appointment")
		}
		if a == nil {
			return apperr.New(apperr.KindNotFound, "appointment not found")
		}

		prev := a.Status
		next, ok := model.NextStatus(prev, model.EventReschedule)
		if !ok {
			return apperr.New(apperr.KindInvalidTransition, "cannot reschedule appointment in status "+string(prev))
		}
		if err := s.apply(ctx, tx, a, next, actor, model.ReasonRescheduled, now); err != nil {
			return err
		}
		cancelled = model.NewLifecycleEvent(a, prev, actor, now)
		if err := tx.InsertEvent(ctx, &cancelled); err != nil {
			return apperr.Classify(err, "insert cancelled event")
		}

		created, booked, err = s.reservations.reserveTx(ctx, tx, req, startAt, endAt, &a.ID, actor, now)
		if err != nil {
			return err
		}
		old = a
		return nil
	})
	if err != nil {
		err = apperr.Classify(err, "reschedule appointment")
		s.logger.Info("Reschedule rejected",
			zap.Int64("appointment_id", id),
			zap.Int64("actor_id", actor.ID),
			zap.String("reason", string(apperr.KindOf(err))),
			zap.Error(err))
		return nil, nil, err
	}

	s.logger.Info("Appointment rescheduled",
		zap.Int64("appointment_id", old.ID),
		zap.Int64("new_appointment_id", created.ID),
		zap.Int64("tutor_id", created.TutorID),
		zap.Int64("student_id", created.StudentID),
		zap.Time("start_at", created.StartAt),
	)

	invalidateSlots(ctx, s.cache, s.logger, created.TutorID)
	s.publisher.Publish(ctx, cancelled, booked)

	return old, created, nil
}

// GetAppointment возвращает запись участнику или администратору
func (s *LifecycleService) GetAppointment(ctx context.Context, id int64, actor model.Actor) (*model.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, apperr.Classify(err, "get appointment")
	}
	if a == nil {
		return nil, apperr.New(apperr.KindNotFound, "appointment not found")
	}
	if !actor.IsPrivileged() && !a.Involves(actor.ID) {
		return nil, apperr.New(apperr.KindUnauthorized, "actor is not a participant")
	}
	return a, nil
}

// ListAppointments записи инициатора, пересекающие [from, to)
func (s *LifecycleService) ListAppointments(ctx context.Context, actor model.Actor, from, to time.Time) ([]model.Appointment, error) {
	if !from.Before(to) {
		return nil, apperr.New(apperr.KindInvalidInterval, "from must be before to")
	}
	list, err := s.store.ListParticipantAppointments(ctx, actor.ID, from, to)
	if err != nil {
		return nil, apperr.Classify(err, "list appointments")
	}
	return list, nil
}

// apply переводит запись в статус next с оптимистичной проверкой версии
func (s *LifecycleService) apply(
	ctx context.Context,
	tx Tx,
	a *model.Appointment,
	next model.AppointmentStatus,
	actor model.Actor,
	reason model.CancelReason,
	now time.Time,
) error {
	expected := a.Version
	a.Status = next
	a.Version++

	switch next {
	case model.StatusConfirmed:
		a.ConfirmedAt = &now
	case model.StatusCompleted:
		a.CompletedAt = &now
	case model.StatusCancelled:
		a.CancelledAt = &now
		a.CancelReason = reason
		if actor.ID > 0 {
			by := actor.ID
			a.CancelledBy = &by
		}
	}

	updated, err := tx.UpdateAppointment(ctx, a, expected)
	if err != nil {
		return apperr.Classify(err, "update appointment")
	}
	if !updated {
		return apperr.New(apperr.KindConflict, "appointment was modified concurrently")
	}
	return nil
}

// authorize NotFound важнее Unauthorized; студент может только отменить или перенести
func authorize(a *model.Appointment, event model.Event, actor model.Actor) error {
	if a == nil {
		return apperr.New(apperr.KindNotFound, "appointment not found")
	}
	if actor.IsPrivileged() {
		return nil
	}
	if !a.Involves(actor.ID) {
		return apperr.New(apperr.KindUnauthorized, "actor is not a participant")
	}

	switch event {
	case model.EventConfirm, model.EventComplete:
		if actor.ID != a.TutorID {
			return apperr.New(apperr.KindInvalidTransition, "only the tutor can "+string(event)+" an appointment")
		}
	}
	return nil
}

func cancelReason(a *model.Appointment, actor model.Actor, reason model.CancelReason) model.CancelReason {
	if reason != "" {
		return reason
	}
	switch {
	case actor.IsPrivileged():
		return model.ReasonAdminCancelled
	case actor.ID == a.TutorID:
		return model.ReasonTutorCancelled
	default:
		return model.ReasonStudentCancelled
	}
}
