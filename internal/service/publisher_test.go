package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeliverPendingEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addRule(t, tutorA, time.Monday, "09:00", "17:00")

	h.notifier.fail(errors.New("telegram: 502"))
	appt := h.mustReserve(t, tutorA, studentX, monday, "10:00", "11:00")
	_, err := h.lifecycle.Transition(ctx, appt.ID, model.EventConfirm, tutorActor(tutorA))
	require.NoError(t, err)

	pending, err := h.store.PendingEvents(ctx, h.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	n, err := h.publisher.Redeliver(ctx, h.clock.Now(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.notifier.fail(nil)
	n, err = h.publisher.Redeliver(ctx, h.clock.Now(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []model.EventType{model.EventTypeBooked, model.EventTypeConfirmed}, h.notifier.types())

	pending, err = h.store.PendingEvents(ctx, h.clock.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRedeliverRespectsLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addRule(t, tutorA, time.Monday, "09:00", "17:00")

	h.notifier.fail(errors.New("down"))
	h.mustReserve(t, tutorA, studentX, monday, "10:00", "11:00")
	h.mustReserve(t, tutorA, studentY, monday, "11:00", "12:00")
	h.notifier.fail(nil)

	n, err := h.publisher.Redeliver(ctx, h.clock.Now(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := h.store.PendingEvents(ctx, h.clock.Now(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRedeliverStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.FailWith(errors.New("connection refused"))

	_, err := h.publisher.Redeliver(context.Background(), h.clock.Now(), 10)
	assert.Error(t, err)
}
