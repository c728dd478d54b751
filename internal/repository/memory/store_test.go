package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := store.InTx(ctx, nil, func(tx service.Tx) error {
		a := &model.Appointment{TutorID: 1, StudentID: 2, StartAt: start, EndAt: start.Add(time.Hour), Status: model.StatusScheduled, Version: 1}
		require.NoError(t, tx.InsertAppointment(ctx, a))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetAppointment(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := store.ListTutorAppointments(ctx, 1, start, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateAppointmentChecksVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	a := &model.Appointment{TutorID: 1, StudentID: 2, StartAt: start, EndAt: start.Add(time.Hour), Status: model.StatusScheduled, Version: 1}
	require.NoError(t, store.InTx(ctx, nil, func(tx service.Tx) error {
		return tx.InsertAppointment(ctx, a)
	}))

	require.NoError(t, store.InTx(ctx, nil, func(tx service.Tx) error {
		stale := *a
		stale.Status = model.StatusConfirmed
		stale.Version = 3
		ok, err := tx.UpdateAppointment(ctx, &stale, 2)
		require.NoError(t, err)
		assert.False(t, ok)

		fresh := *a
		fresh.Status = model.StatusConfirmed
		fresh.Version = 2
		ok, err = tx.UpdateAppointment(ctx, &fresh, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	}))

	got, err := store.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestOverlapIgnoresCancelled(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.InTx(ctx, nil, func(tx service.Tx) error {
		return tx.InsertAppointment(ctx, &model.Appointment{
			TutorID: 1, StudentID: 2, StartAt: start, EndAt: start.Add(time.Hour), Status: model.StatusCancelled, Version: 2,
		})
	}))

	require.NoError(t, store.InTx(ctx, nil, func(tx service.Tx) error {
		busy, err := tx.TutorHasOverlap(ctx, 1, start, start.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, busy)
		busy, err = tx.StudentHasOverlap(ctx, 2, start.Add(30*time.Minute), start.Add(90*time.Minute))
		require.NoError(t, err)
		assert.False(t, busy)
		return nil
	}))
}

func TestUpsertExceptionLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertException(ctx, &model.AvailabilityException{TutorID: 1, Date: date, Available: false, Note: "отпуск"}))
	require.NoError(t, store.UpsertException(ctx, &model.AvailabilityException{TutorID: 1, Date: date.Add(15 * time.Hour), Available: true}))

	list, err := store.ListExceptions(ctx, 1, date, date)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Available)
	assert.Equal(t, int64(1), list[0].ID)

	deleted, err := store.DeleteException(ctx, 1, date)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteException(ctx, 1, date)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPendingEventsAndMarkDispatched(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := &model.Appointment{ID: 7, TutorID: 1, StudentID: 2, Status: model.StatusScheduled}

	first := model.NewLifecycleEvent(a, "", model.Actor{ID: 2, Role: model.RoleStudent}, at)
	second := model.NewLifecycleEvent(a, "", model.Actor{ID: 2, Role: model.RoleStudent}, at.Add(time.Hour))
	require.NoError(t, store.InTx(ctx, nil, func(tx service.Tx) error {
		require.NoError(t, tx.InsertEvent(ctx, &first))
		return tx.InsertEvent(ctx, &second)
	}))

	pending, err := store.PendingEvents(ctx, at.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)

	require.NoError(t, store.MarkDispatched(ctx, first.ID, at.Add(time.Minute)))

	pending, err = store.PendingEvents(ctx, at.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestFailWith(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	down := errors.New("connection refused")

	store.FailWith(down)
	_, err := store.ListRules(ctx, 1, true)
	require.ErrorIs(t, err, down)

	store.FailWith(nil)
	_, err = store.ListRules(ctx, 1, true)
	require.NoError(t, err)
}
