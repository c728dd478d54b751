package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*bot.SendMessageParams
	err  error
}

func (s *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, params)
	return &models.Message{ID: len(s.sent)}, nil
}

type funcNotifier func(ctx context.Context, ev model.LifecycleEvent) error

func (f funcNotifier) Dispatch(ctx context.Context, ev model.LifecycleEvent) error { return f(ctx, ev) }

func cancelledEvent() model.LifecycleEvent {
	appt := &model.Appointment{
		ID:           42,
		TutorID:      1,
		StudentID:    2,
		StartAt:      time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Status:       model.StatusCancelled,
		CancelReason: model.ReasonTutorCancelled,
	}
	return model.NewLifecycleEvent(appt, model.StatusScheduled, model.Actor{ID: 1, Role: model.RoleTutor}, appt.StartAt.Add(-time.Hour))
}

func TestFormatMessage(t *testing.T) {
	msg := FormatMessage(cancelledEvent(), time.UTC)

	assert.Contains(t, msg, "❌ Запись отменена #42")
	assert.Contains(t, msg, "Понедельник, 02.03.2026 10:00")
	assert.Contains(t, msg, "Причина: отменил репетитор")

	moscow := time.FixedZone("MSK", 3*60*60)
	assert.Contains(t, FormatMessage(cancelledEvent(), moscow), "02.03.2026 13:00")
}

func TestFormatMessageWithoutReason(t *testing.T) {
	ev := cancelledEvent()
	ev.Type = model.EventTypeBooked
	ev.Reason = ""
	assert.NotContains(t, FormatMessage(ev, nil), "Причина")
}

func TestTelegramNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := newTelegramNotifier(sender, -100500, time.UTC)

	require.NoError(t, n.Dispatch(context.Background(), cancelledEvent()))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-100500), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "#42")

	sender.err = errors.New("Too Many Requests")
	err := n.Dispatch(context.Background(), cancelledEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send telegram message")
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.Dispatch(context.Background(), cancelledEvent()))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Lifecycle event", entry.Message)
	assert.Equal(t, int64(42), entry.ContextMap()["appointment_id"])
	assert.Equal(t, "cancelled", entry.ContextMap()["event"])
}

func TestMultiDeliversToAllAndJoinsErrors(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	ok := funcNotifier(func(context.Context, model.LifecycleEvent) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})
	down := errors.New("smtp down")
	failing := funcNotifier(func(context.Context, model.LifecycleEvent) error { return down })

	m := NewMulti(ok, failing, ok)
	err := m.Dispatch(context.Background(), cancelledEvent())

	assert.ErrorIs(t, err, down)
	assert.Equal(t, 2, calls)

	assert.NoError(t, NewMulti(ok).Dispatch(context.Background(), cancelledEvent()))
	assert.NoError(t, NewMulti().Dispatch(context.Background(), cancelledEvent()))
}
