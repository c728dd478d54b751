package service

import (
	"context"
	"iter"
	"slices"
	"sort"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/teambition/rrule-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ExpandOptions параметры развёртки правил в слоты
type ExpandOptions struct {
	DefaultMinutes int
	Location       *time.Location
}

// ExpandSlots чистая функция от правил, исключений и занятых записей.
// Даты from и to включительно. Последовательность можно обходить повторно,
// каждый обход заново строит один и тот же результат.
func ExpandSlots(
	tutorID int64,
	rules []model.AvailabilityRule,
	exceptions []model.AvailabilityException,
	booked []model.Appointment,
	from, to time.Time,
	opts ExpandOptions,
) iter.Seq[model.Slot] {
	from, to = model.Date(from), model.Date(to)
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var blocked []time.Time
	for _, ex := range exceptions {
		if ex.Blocks() {
			blocked = append(blocked, model.Date(ex.Date))
		}
	}

	byDate := make(map[time.Time][]model.AvailabilityRule)
	for _, rule := range rules {
		if !rule.IsActive || !rule.HasValidRange() {
			continue
		}
		for _, d := range ruleDates(rule, from, to, blocked) {
			byDate[d] = append(byDate[d], rule)
		}
	}

	dates := make([]time.Time, 0, len(byDate))
	for d, dayRules := range byDate {
		sort.Slice(dayRules, func(i, j int) bool {
			if dayRules[i].StartTime != dayRules[j].StartTime {
				return dayRules[i].StartTime < dayRules[j].StartTime
			}
			return dayRules[i].ID < dayRules[j].ID
		})
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	return func(yield func(model.Slot) bool) {
		for _, date := range dates {
			for _, slot := range daySlots(tutorID, date, byDate[date], opts.DefaultMinutes, loc) {
				if isBooked(slot, booked) {
					continue
				}
				if !yield(slot) {
					return
				}
			}
		}
	}
}

// ruleDates даты вхождений правила в диапазоне с учётом окна действия и закрытых дней
func ruleDates(rule model.AvailabilityRule, from, to time.Time, blocked []time.Time) []time.Time {
	start, until := from, to
	if rule.ValidFrom != nil && model.Date(*rule.ValidFrom).After(start) {
		start = model.Date(*rule.ValidFrom)
	}
	if rule.ValidUntil != nil && model.Date(*rule.ValidUntil).Before(until) {
		until = model.Date(*rule.ValidUntil)
	}
	if start.After(until) {
		return nil
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Until:     until,
		Byweekday: []rrule.Weekday{rruleWeekdays[rule.Weekday]},
	})
	if err != nil {
		return nil
	}

	var set rrule.Set
	set.RRule(r)
	for _, d := range blocked {
		set.ExDate(d)
	}

	dates := set.All()
	for i := range dates {
		dates[i] = model.Date(dates[i])
	}
	return dates
}

// daySlots нарезает окна правил на слоты фиксированной длины;
// неполный хвост отбрасывается, совпадающие начала схлопываются.
// rules должны быть отсортированы по началу окна.
func daySlots(tutorID int64, date time.Time, rules []model.AvailabilityRule, defaultMinutes int, loc *time.Location) []model.Slot {
	seen := make(map[model.TimeOfDay]bool)
	var slots []model.Slot
	for _, rule := range rules {
		minutes := rule.SlotMinutes
		if minutes <= 0 {
			minutes = defaultMinutes
		}
		if minutes <= 0 {
			continue
		}
		step := model.TimeOfDay(minutes)
		for cur := rule.StartTime; cur+step <= rule.EndTime; cur += step {
			if seen[cur] {
				continue
			}
			seen[cur] = true
			slots = append(slots, model.Slot{
				TutorID:   tutorID,
				Date:      date,
				StartTime: cur,
				EndTime:   cur + step,
				Minutes:   minutes,
				StartAt:   cur.On(date, loc),
				EndAt:     (cur + step).On(date, loc),
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
	return slots
}

func isBooked(slot model.Slot, booked []model.Appointment) bool {
	for i := range booked {
		if booked[i].IsActive() && model.Overlaps(slot.StartAt, slot.EndAt, booked[i].StartAt, booked[i].EndAt) {
			return true
		}
	}
	return false
}

// SlotGenerator материализует слоты при чтении; результат рекомендательный,
// окончательную проверку делает бронирование.
type SlotGenerator struct {
	source         SlotSource
	cache          SlotCache
	defaultMinutes int
	maxRangeDays   int
	location       *time.Location
	clock          func() time.Time
	logger         *zap.Logger
}

// NewSlotGenerator создаёт генератор; cache может быть nil
func NewSlotGenerator(source SlotSource, cache SlotCache, cfg EngineConfig, logger *zap.Logger) *SlotGenerator {
	cfg = cfg.withDefaults()
	return &SlotGenerator{
		source:         source,
		cache:          cache,
		defaultMinutes: cfg.DefaultSlotMinutes,
		maxRangeDays:   cfg.MaxRangeDays,
		location:       cfg.Location,
		clock:          cfg.Clock,
		logger:         logger,
	}
}

// GenerateSlots возвращает свободные будущие слоты репетитора в диапазоне дат включительно
func (g *SlotGenerator) GenerateSlots(ctx context.Context, tutorID int64, rangeStart, rangeEnd time.Time) (seq iter.Seq[model.Slot], err error) {
	ctx, span := tracer.Start(ctx, "SlotGenerator.GenerateSlots", trace.WithAttributes(
		attribute.Int64("tutor_id", tutorID),
		attribute.String("range_start", rangeStart.Format(time.DateOnly)),
		attribute.String("range_end", rangeEnd.Format(time.DateOnly)),
	))
	defer func() { endSpan(span, err) }()

	from, to := model.Date(rangeStart), model.Date(rangeEnd)
	if tutorID <= 0 {
		return nil, apperr.New(apperr.KindInvalidInterval, "tutor id is required")
	}
	if to.Before(from) {
		return nil, apperr.New(apperr.KindInvalidInterval, "range end is before range start")
	}
	if days := int(to.Sub(from)/(24*time.Hour)) + 1; days > g.maxRangeDays {
		return nil, apperr.New(apperr.KindInvalidInterval, "range exceeds maximum span")
	}

	slots, err := g.cachedSlots(ctx, tutorID, from, to)
	if err != nil {
		return nil, err
	}

	now := g.clock()
	return func(yield func(model.Slot) bool) {
		for slot := range slots {
			if slot.StartAt.Before(now) {
				continue
			}
			if !yield(slot) {
				return
			}
		}
	}, nil
}

func (g *SlotGenerator) cachedSlots(ctx context.Context, tutorID int64, from, to time.Time) (iter.Seq[model.Slot], error) {
	if g.cache == nil {
		return g.expand(ctx, tutorID, from, to)
	}

	version, err := g.cache.Version(ctx, tutorID)
	if err != nil {
		g.logger.Warn("Slot cache unavailable, expanding directly",
			zap.Int64("tutor_id", tutorID),
			zap.Error(err))
		return g.expand(ctx, tutorID, from, to)
	}

	cached, hit, err := g.cache.Get(ctx, tutorID, version, from, to)
	if err != nil {
		g.logger.Warn("Failed to read slot cache", zap.Int64("tutor_id", tutorID), zap.Error(err))
	}
	if hit {
		return slices.Values(cached), nil
	}

	seq, err := g.expand(ctx, tutorID, from, to)
	if err != nil {
		return nil, err
	}
	slots := slices.Collect(seq)
	if err := g.cache.Put(ctx, tutorID, version, from, to, slots); err != nil {
		g.logger.Warn("Failed to write slot cache", zap.Int64("tutor_id", tutorID), zap.Error(err))
	}
	return slices.Values(slots), nil
}

func (g *SlotGenerator) expand(ctx context.Context, tutorID int64, from, to time.Time) (iter.Seq[model.Slot], error) {
	rules, err := g.source.ListRules(ctx, tutorID, true)
	if err != nil {
		return nil, apperr.Classify(err, "list rules")
	}
	exceptions, err := g.source.ListExceptions(ctx, tutorID, from, to)
	if err != nil {
		return nil, apperr.Classify(err, "list exceptions")
	}

	windowStart := model.TimeOfDay(0).On(from, g.location)
	windowEnd := model.TimeOfDay(0).On(to.AddDate(0, 0, 1), g.location)
	booked, err := g.source.ListTutorAppointments(ctx, tutorID, windowStart, windowEnd)
	if err != nil {
		return nil, apperr.Classify(err, "list tutor appointments")
	}

	return ExpandSlots(tutorID, rules, exceptions, booked, from, to, ExpandOptions{
		DefaultMinutes: g.defaultMinutes,
		Location:       g.location,
	}), nil
}
