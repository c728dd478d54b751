package notify

import (
	"context"
	"errors"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
	"golang.org/x/sync/errgroup"
)

// Multi рассылает событие во все каналы параллельно.
// Ошибка одного канала не мешает остальным; возвращаются все ошибки сразу.
type Multi struct {
	notifiers []service.Notifier
}

func NewMulti(notifiers ...service.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Dispatch(ctx context.Context, ev model.LifecycleEvent) error {
	var g errgroup.Group
	errs := make([]error, len(m.notifiers))
	for i, n := range m.notifiers {
		g.Go(func() error {
			errs[i] = n.Dispatch(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
