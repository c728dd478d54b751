package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"go.uber.org/zap"
)

// Publisher передаёт закоммиченные события границе уведомлений.
// Ошибка доставки не откатывает переход: событие остаётся в outbox и будет доставлено релеем.
type Publisher struct {
	notifier Notifier
	events   EventStore
	timeout  time.Duration
	clock    func() time.Time
	logger   *zap.Logger
}

// NewPublisher создаёт издателя; notifier может быть nil
func NewPublisher(notifier Notifier, events EventStore, cfg EngineConfig, logger *zap.Logger) *Publisher {
	cfg = cfg.withDefaults()
	return &Publisher{
		notifier: notifier,
		events:   events,
		timeout:  cfg.DispatchTimeout,
		clock:    cfg.Clock,
		logger:   logger,
	}
}

// Publish отправляет события по порядку, не прерываясь на ошибках
func (p *Publisher) Publish(ctx context.Context, events ...model.LifecycleEvent) {
	if p == nil || p.notifier == nil {
		return
	}
	// запрос мог уже завершиться, а доставка должна дойти до конца
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	for _, ev := range events {
		p.deliver(ctx, ev)
	}
}

// Redeliver повторно отправляет события, не доставленные до occurredBefore
func (p *Publisher) Redeliver(ctx context.Context, occurredBefore time.Time, limit int) (int, error) {
	if p == nil || p.notifier == nil {
		return 0, nil
	}

	pending, err := p.events.PendingEvents(ctx, occurredBefore, limit)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, ev := range pending {
		if p.deliver(ctx, ev) {
			delivered++
		}
	}
	return delivered, nil
}

func (p *Publisher) deliver(ctx context.Context, ev model.LifecycleEvent) bool {
	if err := p.notifier.Dispatch(ctx, ev); err != nil {
		p.logger.Warn("Failed to dispatch lifecycle event",
			zap.String("event_id", ev.ID.String()),
			zap.Int64("appointment_id", ev.AppointmentID),
			zap.String("event", string(ev.Type)),
			zap.Error(err))
		return false
	}

	if err := p.events.MarkDispatched(ctx, ev.ID, p.clock()); err != nil {
		p.logger.Warn("Failed to mark lifecycle event dispatched",
			zap.String("event_id", ev.ID.String()),
			zap.Error(err))
	}
	return true
}
