package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"go.uber.org/zap"
)

// AvailabilityService записи правил и исключений; писать может только сам репетитор или администратор
type AvailabilityService struct {
	store  AvailabilityStore
	cache  SlotCache
	clock  func() time.Time
	logger *zap.Logger
}

func NewAvailabilityService(store AvailabilityStore, cache SlotCache, cfg EngineConfig, logger *zap.Logger) *AvailabilityService {
	cfg = cfg.withDefaults()
	return &AvailabilityService{
		store:  store,
		cache:  cache,
		clock:  cfg.Clock,
		logger: logger,
	}
}

// CreateRule создаёт активное еженедельное правило
func (s *AvailabilityService) CreateRule(ctx context.Context, actor model.Actor, rule model.AvailabilityRule) (*model.AvailabilityRule, error) {
	if err := canManage(actor, rule.TutorID); err != nil {
		return nil, err
	}
	if err := validateRule(&rule); err != nil {
		return nil, err
	}

	now := s.clock()
	rule.ID = 0
	rule.IsActive = true
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if rule.ValidFrom != nil {
		d := model.Date(*rule.ValidFrom)
		rule.ValidFrom = &d
	}
	if rule.ValidUntil != nil {
		d := model.Date(*rule.ValidUntil)
		rule.ValidUntil = &d
	}

	if err := s.store.CreateRule(ctx, &rule); err != nil {
		return nil, apperr.Classify(err, "create rule")
	}

	s.logger.Info("Availability rule created",
		zap.Int64("rule_id", rule.ID),
		zap.Int64("tutor_id", rule.TutorID),
		zap.Int("weekday", rule.Weekday),
		zap.Stringer("start_time", rule.StartTime),
		zap.Stringer("end_time", rule.EndTime),
	)
	invalidateSlots(ctx, s.cache, s.logger, rule.TutorID)

	return &rule, nil
}

// DeactivateRule мягко выключает правило, уже созданные записи не затрагиваются
func (s *AvailabilityService) DeactivateRule(ctx context.Context, actor model.Actor, tutorID, ruleID int64) error {
	if err := canManage(actor, tutorID); err != nil {
		return err
	}

	rule, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		return apperr.Classify(err, "get rule")
	}
	if rule == nil || rule.TutorID != tutorID {
		return apperr.New(apperr.KindNotFound, "rule not found")
	}
	if !rule.IsActive {
		return nil
	}

	if err := s.store.DeactivateRule(ctx, ruleID); err != nil {
		return apperr.Classify(err, "deactivate rule")
	}

	s.logger.Info("Availability rule deactivated",
		zap.Int64("rule_id", ruleID),
		zap.Int64("tutor_id", tutorID))
	invalidateSlots(ctx, s.cache, s.logger, tutorID)

	return nil
}

// ListRules правила репетитора, видны всем аутентифицированным пользователям
func (s *AvailabilityService) ListRules(ctx context.Context, tutorID int64, activeOnly bool) ([]model.AvailabilityRule, error) {
	rules, err := s.store.ListRules(ctx, tutorID, activeOnly)
	if err != nil {
		return nil, apperr.Classify(err, "list rules")
	}
	return rules, nil
}

// PutException записывает исключение на дату; повторная запись на ту же дату заменяет предыдущую
func (s *AvailabilityService) PutException(ctx context.Context, actor model.Actor, ex model.AvailabilityException) (*model.AvailabilityException, error) {
	if err := canManage(actor, ex.TutorID); err != nil {
		return nil, err
	}
	if ex.Date.IsZero() {
		return nil, apperr.New(apperr.KindInvalidInterval, "date is required")
	}

	now := s.clock()
	ex.Date = model.Date(ex.Date)
	ex.CreatedAt = now
	ex.UpdatedAt = now

	if err := s.store.UpsertException(ctx, &ex); err != nil {
		return nil, apperr.Classify(err, "upsert exception")
	}

	s.logger.Info("Availability exception saved",
		zap.Int64("tutor_id", ex.TutorID),
		zap.String("date", ex.Date.Format(time.DateOnly)),
		zap.Bool("available", ex.Available))
	invalidateSlots(ctx, s.cache, s.logger, ex.TutorID)

	return &ex, nil
}

// DeleteException удаляет исключение на дату
func (s *AvailabilityService) DeleteException(ctx context.Context, actor model.Actor, tutorID int64, date time.Time) error {
	if err := canManage(actor, tutorID); err != nil {
		return err
	}

	deleted, err := s.store.DeleteException(ctx, tutorID, model.Date(date))
	if err != nil {
		return apperr.Classify(err, "delete exception")
	}
	if !deleted {
		return apperr.New(apperr.KindNotFound, "exception not found")
	}

	s.logger.Info("Availability exception deleted",
		zap.Int64("tutor_id", tutorID),
		zap.String("date", date.Format(time.DateOnly)))
	invalidateSlots(ctx, s.cache, s.logger, tutorID)

	return nil
}

// ListExceptions исключения в диапазоне дат включительно; заметки видит только владелец
func (s *AvailabilityService) ListExceptions(ctx context.Context, actor model.Actor, tutorID int64, from, to time.Time) ([]model.AvailabilityException, error) {
	if err := canManage(actor, tutorID); err != nil {
		return nil, err
	}
	from, to = model.Date(from), model.Date(to)
	if to.Before(from) {
		return nil, apperr.New(apperr.KindInvalidInterval, "range end is before range start")
	}

	list, err := s.store.ListExceptions(ctx, tutorID, from, to)
	if err != nil {
		return nil, apperr.Classify(err, "list exceptions")
	}
	return list, nil
}

func canManage(actor model.Actor, tutorID int64) error {
	if tutorID <= 0 {
		return apperr.New(apperr.KindInvalidInterval, "tutor id is required")
	}
	if actor.IsPrivileged() || (actor.Role == model.RoleTutor && actor.ID == tutorID) {
		return nil
	}
	return apperr.New(apperr.KindUnauthorized, "only the tutor can change availability")
}

func validateRule(rule *model.AvailabilityRule) error {
	if !rule.HasValidRange() {
		return apperr.New(apperr.KindInvalidInterval, "rule needs weekday 0-6 and start before end")
	}
	if rule.SlotMinutes < 0 || rule.SlotMinutes > model.MinutesPerDay {
		return apperr.New(apperr.KindInvalidInterval, "slot length out of range")
	}
	if rule.ValidFrom != nil && rule.ValidUntil != nil && model.Date(*rule.ValidUntil).Before(model.Date(*rule.ValidFrom)) {
		return apperr.New(apperr.KindInvalidInterval, "valid_until is before valid_from")
	}
	return nil
}
