package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Redeliverer повторная доставка недоставленных событий
type Redeliverer interface {
	Redeliver(ctx context.Context, occurredBefore time.Time, limit int) (int, error)
}

// Relay по расписанию cron досылает события, которые не ушли сразу после коммита
type Relay struct {
	publisher Redeliverer
	cron      *cron.Cron
	batch     int
	grace     time.Duration
	clock     func() time.Time
	logger    *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRelay создаёт релей; schedule в формате cron или "@every 1m".
// Проход, начавшийся пока предыдущий не закончился, пропускается.
// grace не даёт релею перехватить событие, которое прямо сейчас отправляется после коммита.
func NewRelay(publisher Redeliverer, schedule string, batch int, grace time.Duration, logger *zap.Logger) (*Relay, error) {
	skip := cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(logger)))
	r := &Relay{
		publisher: publisher,
		cron:      cron.New(cron.WithChain(skip)),
		batch:     batch,
		grace:     grace,
		clock:     time.Now,
		logger:    logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("parse relay schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start запускает расписание
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.logger.Info("Starting notification relay")
	r.cron.Start()
}

// Stop останавливает расписание и ждёт завершения текущего прохода
func (r *Relay) Stop() {
	r.logger.Info("Stopping notification relay")
	<-r.cron.Stop().Done()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Relay) tick() {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	r.RunOnce(ctx)
}

// RunOnce один проход релея
func (r *Relay) RunOnce(ctx context.Context) {
	delivered, err := r.publisher.Redeliver(ctx, r.clock().Add(-r.grace), r.batch)
	if err != nil {
		r.logger.Error("Failed to redeliver lifecycle events", zap.Error(err))
		return
	}
	if delivered > 0 {
		r.logger.Info("Redelivered lifecycle events", zap.Int("count", delivered))
	}
}
