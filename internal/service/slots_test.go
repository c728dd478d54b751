package service_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mondayRule(start, end model.TimeOfDay) model.AvailabilityRule {
	return model.AvailabilityRule{ID: 1, TutorID: tutorA, Weekday: int(time.Monday), StartTime: start, EndTime: end, IsActive: true}
}

func countByDate(slots []model.Slot) map[time.Time]int {
	out := make(map[time.Time]int)
	for _, s := range slots {
		out[s.Date]++
	}
	return out
}

var expandOpts = service.ExpandOptions{DefaultMinutes: 60, Location: time.UTC}

func TestExpandSlotsSkipsBlockedDate(t *testing.T) {
	rules := []model.AvailabilityRule{mondayRule(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(17, 0))}
	exceptions := []model.AvailabilityException{{TutorID: tutorA, Date: nextMonday, Available: false}}
	third := nextMonday.AddDate(0, 0, 7)

	slots := slices.Collect(service.ExpandSlots(tutorA, rules, exceptions, nil, monday, third, expandOpts))

	byDate := countByDate(slots)
	assert.Equal(t, 8, byDate[monday])
	assert.Zero(t, byDate[nextMonday])
	assert.Equal(t, 8, byDate[third])
	assert.Len(t, slots, 16)

	for _, s := range slots {
		assert.Equal(t, time.Monday, s.Date.Weekday())
		assert.Equal(t, time.Hour, s.Duration())
	}
}

func TestExpandSlotsIgnoresOpenException(t *testing.T) {
	rules := []model.AvailabilityRule{mondayRule(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(12, 0))}
	exceptions := []model.AvailabilityException{{TutorID: tutorA, Date: monday, Available: true}}

	slots := slices.Collect(service.ExpandSlots(tutorA, rules, exceptions, nil, monday, monday, expandOpts))
	assert.Len(t, slots, 3)
}

func TestExpandSlotsDeduplicatesOverlappingRules(t *testing.T) {
	first := mondayRule(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(12, 0))
	second := mondayRule(model.NewTimeOfDay(10, 0), model.NewTimeOfDay(13, 0))
	second.ID = 2

	slots := slices.Collect(service.ExpandSlots(tutorA, []model.AvailabilityRule{second, first}, nil, nil, monday, monday, expandOpts))

	var starts []string
	for _, s := range slots {
		starts = append(starts, s.StartTime.String())
	}
	assert.Equal(t, []string{"09:00", "10:00", "11:00", "12:00"}, starts)
}

func TestExpandSlotsDegenerateRules(t *testing.T) {
	cases := []struct {
		name       string
		start, end model.TimeOfDay
	}{
		{"empty window", model.NewTimeOfDay(10, 0), model.NewTimeOfDay(10, 0)},
		{"inverted window", model.NewTimeOfDay(12, 0), model.NewTimeOfDay(9, 0)},
		{"shorter than slot", model.NewTimeOfDay(9, 0), model.NewTimeOfDay(9, 45)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := []model.AvailabilityRule{mondayRule(tc.start, tc.end)}
			slots := slices.Collect(service.ExpandSlots(tutorA, rules, nil, nil, monday, monday, expandOpts))
			assert.Empty(t, slots)
		})
	}
}

func TestExpandSlotsDropsPartialTrailingIncrement(t *testing.T) {
	rule := mondayRule(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(11, 30))
	slots := slices.Collect(service.ExpandSlots(tutorA, []model.AvailabilityRule{rule}, nil, nil, monday, monday, expandOpts))
	require.Len(t, slots, 2)
	assert.Equal(t, model.NewTimeOfDay(11, 0), slots[1].EndTime)

	rule.SlotMinutes = 45
	slots = slices.Collect(service.ExpandSlots(tutorA, []model.AvailabilityRule{rule}, nil, nil, monday, monday, expandOpts))
	require.Len(t, slots, 3)
	assert.Equal(t, model.NewTimeOfDay(11, 15), slots[2].EndTime)
}

func TestExpandSlotsHidesBookedIntervals(t *testing.T) {
	rule := mondayRule(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(12, 0))
	booked := []model.Appointment{
		{TutorID: tutorA, StartAt: monday.Add(9*time.Hour + 30*time.Minute), EndAt: monday.Add(10*time.Hour + 30*time.Minute), Status: model.StatusScheduled},
		{TutorID: tutorA, StartAt: monday.Add(11 * time.Hour), EndAt: monday.Add(12 * time.Hour), Status: model.StatusCancelled},
	}

	slots := slices.Collect(service.ExpandSlots(tutorA, []model.AvailabilityRule{rule}, nil, booked, monday, monday, expandOpts))
	require.Len(t, slots, 1)
	assert.Equal(t, model.NewTimeOfDay(11, 0), slots[0].StartTime)
}

func TestExpandSlotsRespectsValidityWindow(t *testing.T) {
	rule := mondayRule(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(10, 0))
	rule.ValidFrom = &nextMonday
	until := nextMonday.AddDate(0, 0, 7)
	rule.ValidUntil = &until

	slots := slices.Collect(service.ExpandSlots(tutorA, []model.AvailabilityRule{rule}, nil, nil, monday, until.AddDate(0, 0, 7), expandOpts))
	require.Len(t, slots, 2)
	assert.Equal(t, nextMonday, slots[0].Date)
	assert.Equal(t, until, slots[1].Date)
}

func TestExpandSlotsIsRestartable(t *testing.T) {
	rules := []model.AvailabilityRule{mondayRule(model.NewTimeOfDay(9, 0), model.NewTimeOfDay(17, 0))}
	seq := service.ExpandSlots(tutorA, rules, nil, nil, monday, nextMonday, expandOpts)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	var taken int
	for range seq {
		taken++
		if taken == 3 {
			break
		}
	}
	assert.Equal(t, 3, taken)
	assert.Equal(t, first, slices.Collect(seq))
}

func TestGenerateSlotsValidatesRange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.generator.GenerateSlots(ctx, tutorA, nextMonday, monday)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInterval))

	_, err = h.generator.GenerateSlots(ctx, tutorA, monday, monday.AddDate(0, 0, 90))
	assert.True(t, errors.Is(err, apperr.ErrInvalidInterval))

	_, err = h.generator.GenerateSlots(ctx, tutorA, monday, monday.AddDate(0, 0, 89))
	assert.NoError(t, err)
}

func TestGenerateSlotsHidesPastSlots(t *testing.T) {
	h := newHarness(t)
	h.addRule(t, tutorA, time.Monday, "09:00", "17:00")
	h.clock.Set(monday.Add(12*time.Hour + 30*time.Minute))

	seq, err := h.generator.GenerateSlots(context.Background(), tutorA, monday, monday)
	require.NoError(t, err)

	slots := slices.Collect(seq)
	require.Len(t, slots, 4)
	assert.Equal(t, model.NewTimeOfDay(13, 0), slots[0].StartTime)
}

func TestGenerateSlotsRoundTripAfterReserve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addRule(t, tutorA, time.Monday, "09:00", "17:00")

	seq, err := h.generator.GenerateSlots(ctx, tutorA, monday, monday)
	require.NoError(t, err)
	before := slices.Collect(seq)
	require.Len(t, before, 8)

	target := before[1]
	h.mustReserve(t, tutorA, studentX, target.Date, target.StartTime.String(), target.EndTime.String())
	assert.Equal(t, 1, h.cache.invalidations(tutorA))

	seq, err = h.generator.GenerateSlots(ctx, tutorA, monday, monday)
	require.NoError(t, err)
	after := slices.Collect(seq)
	assert.Len(t, after, 7)
	assert.NotContains(t, after, target)
}

func TestGenerateSlotsStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.FailWith(errors.New("connection reset"))

	_, err := h.generator.GenerateSlots(context.Background(), tutorA, monday, monday)
	assert.Equal(t, apperr.KindStoreUnavailable, apperr.KindOf(err))
}
