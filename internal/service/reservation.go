package service

import (
	"context"
	"strings"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ReserveRequest запрос на бронирование интервала у репетитора
type ReserveRequest struct {
	TutorID   int64
	StudentID int64
	Date      time.Time
	StartTime model.TimeOfDay
	EndTime   model.TimeOfDay
	Subject   string
	Notes     string
}

// ReservationService единственная точка сериализации бронирований
type ReservationService struct {
	store     TxRunner
	cache     SlotCache
	publisher *Publisher
	location  *time.Location
	clock     func() time.Time
	logger    *zap.Logger
}

func NewReservationService(store TxRunner, cache SlotCache, publisher *Publisher, cfg EngineConfig, logger *zap.Logger) *ReservationService {
	cfg = cfg.withDefaults()
	return &ReservationService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		location:  cfg.Location,
		clock:     cfg.Clock,
		logger:    logger,
	}
}

// Reserve атомарно проверяет что интервал свободен у репетитора и у студента и создаёт запись.
// Возвращает ровно одну ошибку из таксономии apperr или созданную запись в статусе SCHEDULED.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (appt *model.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "ReservationService.Reserve", trace.WithAttributes(
		attribute.Int64("tutor_id", req.TutorID),
		attribute.Int64("student_id", req.StudentID),
	))
	defer func() { endSpan(span, err) }()

	now := s.clock()
	startAt, endAt, err := s.interval(req, now)
	if err != nil {
		return nil, err
	}

	// отказ вызывающего не прерывает начатое бронирование
	ctx = context.WithoutCancel(ctx)

	var booked model.LifecycleEvent
	err = s.store.InTx(ctx, lockKeys(req.TutorID, req.StudentID), func(tx Tx) error {
		var txErr error
		appt, booked, txErr = s.reserveTx(ctx, tx, req, startAt, endAt, nil, model.Actor{ID: req.StudentID, Role: model.RoleStudent}, now)
		return txErr
	})
	if err != nil {
		err = apperr.Classify(err, "reserve")
		s.logger.Info("Reservation rejected",
			zap.Int64("tutor_id", req.TutorID),
			zap.Int64("student_id", req.StudentID),
			zap.Time("start_at", startAt),
			zap.String("reason", string(apperr.KindOf(err))),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Appointment booked",
		zap.Int64("appointment_id", appt.ID),
		zap.Int64("tutor_id", appt.TutorID),
		zap.Int64("student_id", appt.StudentID),
		zap.Time("start_at", appt.StartAt),
		zap.Time("end_at", appt.EndAt),
	)

	invalidateSlots(ctx, s.cache, s.logger, appt.TutorID)
	s.publisher.Publish(ctx, booked)

	return appt, nil
}

// interval проверяет запрос и переводит дату и настенное время в моменты
func (s *ReservationService) interval(req ReserveRequest, now time.Time) (time.Time, time.Time, error) {
	switch {
	case req.TutorID <= 0 || req.StudentID <= 0:
		return time.Time{}, time.Time{}, apperr.New(apperr.KindInvalidInterval, "tutor and student are required")
	case req.TutorID == req.StudentID:
		return time.Time{}, time.Time{}, apperr.New(apperr.KindInvalidInterval, "tutor cannot book themselves")
	case req.Date.IsZero():
		return time.Time{}, time.Time{}, apperr.New(apperr.KindInvalidInterval, "date is required")
	case !req.StartTime.Valid() || !req.EndTime.Valid() || req.StartTime >= req.EndTime:
		return time.Time{}, time.Time{}, apperr.New(apperr.KindInvalidInterval, "start time must be before end time")
	}

	startAt := req.StartTime.On(req.Date, s.location)
	endAt := req.EndTime.On(req.Date, s.location)
	if !startAt.After(now) {
		return time.Time{}, time.Time{}, apperr.New(apperr.KindInvalidInterval, "interval is in the past")
	}
	return startAt, endAt, nil
}

// reserveTx проверки и вставка внутри транзакции, которая уже держит блокировки репетитора и студента
func (s *ReservationService) reserveTx(
	ctx context.Context,
	tx Tx,
	req ReserveRequest,
	startAt, endAt time.Time,
	rescheduledFrom *int64,
	actor model.Actor,
	now time.Time,
) (*model.Appointment, model.LifecycleEvent, error) {
	date := model.Date(req.Date)

	exception, err := tx.ExceptionOn(ctx, req.TutorID, date)
	if err != nil {
		return nil, model.LifecycleEvent{}, apperr.Classify(err, "get exception")
	}
	if exception.Blocks() {
		return nil, model.LifecycleEvent{}, apperr.New(apperr.KindSlotNoLongerAvailable, "tutor is unavailable on this date")
	}

	rules, err := tx.ActiveRules(ctx, req.TutorID)
	if err != nil {
		return nil, model.LifecycleEvent{}, apperr.Classify(err, "get active rules")
	}
	if !coveredByRules(rules, date, req.StartTime, req.EndTime) {
		return nil, model.LifecycleEvent{}, apperr.New(apperr.KindSlotNoLongerAvailable, "interval is outside tutor availability")
	}

	busy, err := tx.TutorHasOverlap(ctx, req.TutorID, startAt, endAt)
	if err != nil {
		return nil, model.LifecycleEvent{}, apperr.Classify(err, "check tutor overlap")
	}
	if busy {
		return nil, model.LifecycleEvent{}, apperr.New(apperr.KindSlotAlreadyBooked, "tutor already has an appointment in this interval")
	}

	busy, err = tx.StudentHasOverlap(ctx, req.StudentID, startAt, endAt)
	if err != nil {
		return nil, model.LifecycleEvent{}, apperr.Classify(err, "check student overlap")
	}
	if busy {
		return nil, model.LifecycleEvent{}, apperr.New(apperr.KindStudentDoubleBooked, "student already has an appointment in this interval")
	}

	appt := &model.Appointment{
		TutorID:         req.TutorID,
		StudentID:       req.StudentID,
		Subject:         strings.TrimSpace(req.Subject),
		Notes:           req.Notes,
		StartAt:         startAt,
		EndAt:           endAt,
		Status:          model.StatusScheduled,
		Version:         1,
		CreatedAt:       now,
		RescheduledFrom: rescheduledFrom,
	}
	if err := tx.InsertAppointment(ctx, appt); err != nil {
		return nil, model.LifecycleEvent{}, apperr.Classify(err, "insert appointment")
	}

	ev := model.NewLifecycleEvent(appt, "", actor, now)
	if err := tx.InsertEvent(ctx, &ev); err != nil {
		return nil, model.LifecycleEvent{}, apperr.Classify(err, "insert booked event")
	}

	return appt, ev, nil
}

// coveredByRules интервал должен целиком лежать в окне хотя бы одного действующего правила
func coveredByRules(rules []model.AvailabilityRule, date time.Time, start, end model.TimeOfDay) bool {
	for i := range rules {
		if rules[i].AppliesOn(date) && rules[i].Covers(start, end) {
			return true
		}
	}
	return false
}

func invalidateSlots(ctx context.Context, cache SlotCache, logger *zap.Logger, tutorID int64) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(context.WithoutCancel(ctx), tutorID); err != nil {
		logger.Warn("Failed to invalidate slot cache",
			zap.Int64("tutor_id", tutorID),
			zap.Error(err))
	}
}
