package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisefido-schedule/internal/domain"
	"wisefido-schedule/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccurrenceOffsets(t *testing.T) {
	tests := []struct {
		name      string
		frequency domain.Frequency
		wantCount int
		wantFirst int
		wantLast  int
	}{
		{"every day", domain.FrequencyEveryDay, 90, 1, 90},
		{"every week day", domain.FrequencyEveryWeekDay, 64, 1, 88},
		{"every week", domain.FrequencyEveryWeek, 12, 7, 84},
		{"every two weeks", domain.FrequencyEveryTwoWeeks, 6, 14, 84},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offsets, err := occurrenceOffsets(day0, tt.frequency)
			require.NoError(t, err)
			require.Len(t, offsets, tt.wantCount)
			assert.Equal(t, tt.wantFirst, offsets[0])
			assert.Equal(t, tt.wantLast, offsets[len(offsets)-1])
			for _, o := range offsets {
				assert.Greater(t, o, 0)
				assert.LessOrEqual(t, o, domain.SeriesHorizonDays)
			}
		})
	}
}

func TestOccurrenceOffsets_EveryWeekDaySkipsWeekends(t *testing.T) {
	// 周五开始
	friday := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	offsets, err := occurrenceOffsets(friday, domain.FrequencyEveryWeekDay)
	require.NoError(t, err)

	assert.Equal(t, 3, offsets[0], "first occurrence is the following Monday")
	for _, o := range offsets {
		wd := friday.AddDate(0, 0, o).Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
}

func TestOccurrenceOffsets_InvalidFrequency(t *testing.T) {
	_, err := occurrenceOffsets(day0, domain.FrequencyNever)
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)

	_, err = occurrenceOffsets(day0, domain.Frequency("every_month"))
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
}

func TestCalendarDaysBetween(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}
	// 跨夏令时（2024-03-31）仍按日历天计算
	from := time.Date(2024, 3, 30, 9, 0, 0, 0, paris)
	to := time.Date(2024, 4, 1, 9, 0, 0, 0, paris)
	assert.Equal(t, 2, calendarDaysBetween(from, to))
	assert.Equal(t, 0, calendarDaysBetween(from, from.Add(time.Hour)))
	assert.Equal(t, 1, calendarDaysBetween(from, to.UTC().AddDate(0, 0, -1)))
}

func TestGenerateSeries_WeeklyIntervention(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createSeries(t, intervention(auxW1, day0, 2), domain.FrequencyEveryWeek)

	generated := resp.Series.Generated
	require.Len(t, generated.Created, 12)
	assert.Empty(t, generated.DetachedEventIDs)
	assert.Empty(t, generated.SuppressedStarts)

	groupID := resp.Series.Repetition.GroupID
	for i, e := range generated.Created {
		stored := env.mustGet(t, e.EventID)
		assert.Equal(t, day0.AddDate(0, 0, 7*(i+1)), stored.StartDate)
		assert.Equal(t, stored.StartDate.Add(2*time.Hour), stored.EndDate)
		assert.Equal(t, auxW1, stored.AuxiliaryID)
		assert.Equal(t, "customer-1", stored.CustomerID)
		assert.Equal(t, "12 rue de la Paix", stored.Address)
		assert.Equal(t, domain.Repetition{Frequency: domain.FrequencyEveryWeek, GroupID: groupID}, stored.Repetition)
		assert.False(t, stored.IsBilled)
	}

	// 种子 + 12
	assert.Len(t, env.allEvents(t), 13)
	requireNoSelfOverlap(t, env.allEvents(t))
}

func TestGenerateSeries_InterventionConflictIsDetached(t *testing.T) {
	env := newTestEnv(t)
	blocker := env.createSingle(t, intervention(auxW1, day0.AddDate(0, 0, 7).Add(time.Hour), 2))

	resp := env.createSeries(t, intervention(auxW1, day0, 2), domain.FrequencyEveryWeek)
	generated := resp.Series.Generated

	require.Len(t, generated.Created, 12)
	require.Len(t, generated.DetachedEventIDs, 1)

	detached := env.mustGet(t, generated.DetachedEventIDs[0])
	assert.Equal(t, day0.AddDate(0, 0, 7), detached.StartDate)
	assert.Empty(t, detached.AuxiliaryID)
	assert.Equal(t, domain.FrequencyNever, detached.Repetition.Frequency)
	assert.False(t, detached.InLiveSeries())

	for _, e := range generated.Created {
		if e.EventID == detached.EventID {
			continue
		}
		assert.Equal(t, auxW1, env.mustGet(t, e.EventID).AuxiliaryID)
	}

	assert.Equal(t, auxW1, env.mustGet(t, blocker.EventID).AuxiliaryID)
	requireNoSelfOverlap(t, env.allEvents(t))
}

func TestGenerateSeries_InternalHourConflictIsSuppressed(t *testing.T) {
	for _, eventType := range []domain.EventType{domain.EventTypeInternalHour, domain.EventTypeUnavailability} {
		t.Run(string(eventType), func(t *testing.T) {
			env := newTestEnv(t)
			env.createSingle(t, intervention(auxW1, day0.AddDate(0, 0, 7).Add(time.Hour), 2))

			seed := intervention(auxW1, day0, 2)
			seed.EventType = eventType
			seed.CustomerID = ""
			seed.InternalHourName = "Team meeting"
			resp := env.createSeries(t, seed, domain.FrequencyEveryWeek)
			generated := resp.Series.Generated

			require.Len(t, generated.Created, 11)
			assert.Empty(t, generated.DetachedEventIDs)
			require.Len(t, generated.SuppressedStarts, 1)
			assert.Equal(t, day0.AddDate(0, 0, 7), generated.SuppressedStarts[0])

			for _, e := range generated.Created {
				assert.NotEqual(t, day0.AddDate(0, 0, 7), e.StartDate)
				assert.Equal(t, auxW1, e.AuxiliaryID)
			}
			requireNoSelfOverlap(t, env.allEvents(t))
		})
	}
}

func TestGenerateSeries_LongSeedDoesNotOverlapItself(t *testing.T) {
	env := newTestEnv(t)
	// 30 小时的每日事件：相邻两天必然重叠
	resp := env.createSeries(t, intervention(auxW1, day0, 30), domain.FrequencyEveryDay)
	generated := resp.Series.Generated

	require.Len(t, generated.Created, 90)
	assert.Len(t, generated.DetachedEventIDs, 45)
	assert.Empty(t, generated.SuppressedStarts)

	for _, e := range generated.Created {
		offset := calendarDaysBetween(day0, e.StartDate)
		stored := env.mustGet(t, e.EventID)
		if offset%2 == 1 {
			assert.Empty(t, stored.AuxiliaryID, "day +%d", offset)
			assert.Equal(t, domain.FrequencyNever, stored.Repetition.Frequency)
		} else {
			assert.Equal(t, auxW1, stored.AuxiliaryID, "day +%d", offset)
		}
	}
	assert.Len(t, env.allEvents(t), 91)
	requireNoSelfOverlap(t, env.allEvents(t))
}

func TestGenerateSeries_LongSuppressedSeedSkipsOverlappingWeeks(t *testing.T) {
	env := newTestEnv(t)
	seed := window(auxW1, day0, day0.AddDate(0, 0, 8))
	seed.EventType = domain.EventTypeUnavailability
	seed.CustomerID = ""

	resp := env.createSeries(t, seed, domain.FrequencyEveryWeek)
	generated := resp.Series.Generated

	require.Len(t, generated.Created, 6)
	require.Len(t, generated.SuppressedStarts, 6)
	assert.Empty(t, generated.DetachedEventIDs)
	for i, e := range generated.Created {
		assert.Equal(t, day0.AddDate(0, 0, 14*(i+1)), e.StartDate)
		assert.Equal(t, auxW1, e.AuxiliaryID)
	}
	for i, start := range generated.SuppressedStarts {
		assert.Equal(t, day0.AddDate(0, 0, 7+14*i), start)
	}
	requireNoSelfOverlap(t, env.allEvents(t))
}

func TestGenerateSeries_UnassignedSeedSkipsConflictCheck(t *testing.T) {
	counting := &countingEventsRepo{MemoryEventsRepo: repository.NewMemoryEventsRepo()}
	env := newTestEnv(t, withEventsRepo(counting))

	seed := intervention("", day0, 1)
	seed.EventID = "seed-unassigned"
	seed.Repetition = domain.Repetition{Frequency: domain.FrequencyEveryTwoWeeks, GroupID: "g-1"}
	seed.TenantID = testTenant

	result, err := env.svc.GenerateSeries(context.Background(), testTenant, seed, domain.FrequencyEveryTwoWeeks)
	require.NoError(t, err)
	assert.Len(t, result.Created, 6)
	assert.Zero(t, counting.overlapCalls)
	for _, e := range result.Created {
		assert.Empty(t, e.AuxiliaryID)
		assert.Equal(t, "g-1", e.Repetition.GroupID)
	}
}

func TestGenerateSeries_HorizonBound(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createSeries(t, intervention(auxW1, day0, 1), domain.FrequencyEveryDay)

	limit := day0.AddDate(0, 0, domain.SeriesHorizonDays)
	require.Len(t, resp.Series.Generated.Created, 90)
	for _, e := range env.allEvents(t) {
		assert.False(t, e.StartDate.After(limit), "event %s starts after horizon", e.EventID)
	}
}

func TestGenerateSeries_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.GenerateSeries(ctx, testTenant, nil, domain.FrequencyEveryWeek)
	assert.Error(t, err)

	seed := intervention(auxW1, day0, 1)
	_, err = env.svc.GenerateSeries(ctx, testTenant, seed, domain.FrequencyNever)
	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)

	bad := intervention(auxW1, day0, 1)
	bad.EndDate = bad.StartDate
	_, err = env.svc.GenerateSeries(ctx, testTenant, bad, domain.FrequencyEveryWeek)
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	unknown := intervention(auxW1, day0, 1)
	unknown.EventType = "visit"
	_, err = env.svc.GenerateSeries(ctx, testTenant, unknown, domain.FrequencyEveryWeek)
	assert.ErrorIs(t, err, domain.ErrInvalidEventType)

	assert.Empty(t, env.allEvents(t))
}

func TestGenerateSeries_BulkInsertFailureReportsAllCandidates(t *testing.T) {
	failing := &failingEventsRepo{
		MemoryEventsRepo: repository.NewMemoryEventsRepo(),
		createEventsErr:  errors.New("connection reset"),
	}
	env := newTestEnv(t, withEventsRepo(failing))

	seed := intervention(auxW1, day0, 1)
	seed.EventID = "seed-1"
	seed.Repetition = domain.Repetition{Frequency: domain.FrequencyEveryWeek, GroupID: "g-1"}

	result, err := env.svc.GenerateSeries(context.Background(), testTenant, seed, domain.FrequencyEveryWeek)
	require.Error(t, err)

	failure, ok := domain.IsPartialBatchFailure(err)
	require.True(t, ok)
	assert.Equal(t, "generate_series", failure.Operation)
	assert.Len(t, failure.EventIDs(), 12)
	assert.ErrorContains(t, failure.Cause(), "connection reset")

	require.NotNil(t, result)
	assert.Empty(t, result.Created)
}

// countingEventsRepo 统计冲突查询次数
type countingEventsRepo struct {
	*repository.MemoryEventsRepo
	overlapCalls int
}

func (r *countingEventsRepo) CountOverlapping(ctx context.Context, tenantID, auxiliaryID string, start, end time.Time, excludeEventID string) (int, error) {
	r.overlapCalls++
	return r.MemoryEventsRepo.CountOverlapping(ctx, tenantID, auxiliaryID, start, end, excludeEventID)
}

// failingEventsRepo 在指定操作上注入写入失败
type failingEventsRepo struct {
	*repository.MemoryEventsRepo
	createEventsErr  error
	updateFailIDs    map[string]error
	deleteErr        error
	setRepetitionErr error
}

func (r *failingEventsRepo) SetRepetition(ctx context.Context, tenantID, eventID string, repetition domain.Repetition) error {
	if r.setRepetitionErr != nil {
		return r.setRepetitionErr
	}
	return r.MemoryEventsRepo.SetRepetition(ctx, tenantID, eventID, repetition)
}

func (r *failingEventsRepo) CreateEvents(ctx context.Context, tenantID string, events []*domain.Event) error {
	if r.createEventsErr != nil {
		return r.createEventsErr
	}
	return r.MemoryEventsRepo.CreateEvents(ctx, tenantID, events)
}

func (r *failingEventsRepo) UpdateSchedule(ctx context.Context, tenantID, eventID string, start, end time.Time, auxiliaryID string) error {
	if err, ok := r.updateFailIDs[eventID]; ok {
		return err
	}
	return r.MemoryEventsRepo.UpdateSchedule(ctx, tenantID, eventID, start, end, auxiliaryID)
}

func (r *failingEventsRepo) DeleteUnbilledEvents(ctx context.Context, tenantID string, eventIDs []string) ([]string, error) {
	if r.deleteErr != nil {
		return nil, r.deleteErr
	}
	return r.MemoryEventsRepo.DeleteUnbilledEvents(ctx, tenantID, eventIDs)
}
