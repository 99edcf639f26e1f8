package service

import (
	"context"
	"fmt"
	"time"

	"wisefido-schedule/internal/domain"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
)

// projectionOutcome 单次投影的结果
type projectionOutcome int

const (
	projectedAssigned   projectionOutcome = iota // 保留护理员
	projectedUnassigned                          // 种子本身未分配
	projectedDetached                            // 冲突：取消分配并脱离系列
	projectedSuppressed                          // 冲突：不生成
)

// occurrenceOffsets 返回种子之后、90 天窗口内（含边界）需要生成的天数偏移
// 种子当天不包含在内
func occurrenceOffsets(seedStart time.Time, frequency domain.Frequency) ([]int, error) {
	opt := rrule.ROption{
		Dtstart: seedStart,
		Until:   seedStart.AddDate(0, 0, domain.SeriesHorizonDays),
	}
	switch frequency {
	case domain.FrequencyEveryDay:
		opt.Freq = rrule.DAILY
	case domain.FrequencyEveryWeekDay:
		opt.Freq = rrule.DAILY
		opt.Byweekday = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
	case domain.FrequencyEveryWeek:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 1
	case domain.FrequencyEveryTwoWeeks:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, frequency)
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence rule: %w", err)
	}

	offsets := []int{}
	for _, t := range rule.All() {
		days := calendarDaysBetween(seedStart, t)
		if days <= 0 || days > domain.SeriesHorizonDays {
			continue
		}
		offsets = append(offsets, days)
	}
	return offsets, nil
}

// calendarDaysBetween 按种子所在时区计算日历天数差
func calendarDaysBetween(from, to time.Time) int {
	to = to.In(from.Location())
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// projectOccurrence 将种子平移 dayOffset 天，并按事件类型的冲突策略处理
// accepted 为同一批次中已接受的投影，同样参与冲突判断
// 返回的事件未持久化；projectedSuppressed 时返回 nil
func (s *seriesService) projectOccurrence(ctx context.Context, tenantID string, seed *domain.Event, dayOffset int, policy domain.TypePolicy, accepted []*domain.Event) (*domain.Event, projectionOutcome, error) {
	occ := seed.Clone()
	occ.EventID = uuid.NewString()
	occ.StartDate = seed.StartDate.AddDate(0, 0, dayOffset)
	occ.EndDate = seed.EndDate.AddDate(0, 0, dayOffset)
	occ.IsBilled = false
	occ.CreatedAt = time.Time{}
	occ.UpdatedAt = time.Time{}

	if !occ.IsAssigned() {
		return occ, projectedUnassigned, nil
	}

	conflict := overlapsBatch(occ, accepted)
	if !conflict {
		var err error
		conflict, err = s.HasConflict(ctx, tenantID, occ, "")
		if err != nil {
			return nil, 0, err
		}
	}
	if !conflict {
		return occ, projectedAssigned, nil
	}

	switch policy.OnConflict {
	case domain.ConflictDetach:
		// 保留 group_id 方便追溯，但频率置为 never，不再参与系列传播
		occ.AuxiliaryID = ""
		occ.Repetition.Frequency = domain.FrequencyNever
		return occ, projectedDetached, nil
	default:
		return nil, projectedSuppressed, nil
	}
}

// overlapsBatch 候选是否与批次中同一护理员的事件重叠
// 种子时长不短于重复间隔时，相邻投影会彼此重叠
func overlapsBatch(occ *domain.Event, batch []*domain.Event) bool {
	for _, e := range batch {
		if e.AuxiliaryID == occ.AuxiliaryID && e.Overlaps(occ.StartDate, occ.EndDate) {
			return true
		}
	}
	return false
}

// GenerateSeries 对外入口：持有种子护理员的锁后生成
func (s *seriesService) GenerateSeries(ctx context.Context, tenantID string, seed *domain.Event, frequency domain.Frequency) (*GenerateSeriesResult, error) {
	if seed == nil {
		return nil, fmt.Errorf("seed event is required")
	}
	unlock, err := s.locker.Lock(ctx, tenantID, seed.AuxiliaryID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.generateSeries(ctx, tenantID, seed, frequency)
}

// generateSeries 调用方需持有种子护理员的锁
// 所有投影结果一次性批量写入；写入失败时返回 PartialBatchFailure，列出全部候选 event_id
func (s *seriesService) generateSeries(ctx context.Context, tenantID string, seed *domain.Event, frequency domain.Frequency) (*GenerateSeriesResult, error) {
	if !frequency.IsRepeating() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, frequency)
	}
	if err := seed.ValidateWindow(); err != nil {
		return nil, err
	}
	policy, err := domain.PolicyFor(seed.EventType)
	if err != nil {
		return nil, err
	}

	offsets, err := occurrenceOffsets(seed.StartDate, frequency)
	if err != nil {
		return nil, err
	}

	result := &GenerateSeriesResult{
		Created:          []*domain.Event{},
		DetachedEventIDs: []string{},
		SuppressedStarts: []time.Time{},
	}
	batch := make([]*domain.Event, 0, len(offsets))

	for _, offset := range offsets {
		occ, outcome, err := s.projectOccurrence(ctx, tenantID, seed, offset, policy, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to project occurrence (day +%d): %w", offset, err)
		}
		switch outcome {
		case projectedSuppressed:
			result.SuppressedStarts = append(result.SuppressedStarts, seed.StartDate.AddDate(0, 0, offset))
			continue
		case projectedDetached:
			result.DetachedEventIDs = append(result.DetachedEventIDs, occ.EventID)
		}
		batch = append(batch, occ)
	}

	if len(batch) == 0 {
		s.logger.Info("Series generation produced no occurrences",
			zap.String("tenant_id", tenantID),
			zap.String("group_id", seed.Repetition.GroupID),
			zap.Int("suppressed", len(result.SuppressedStarts)),
		)
		return result, nil
	}

	if err := s.eventsRepo.CreateEvents(ctx, tenantID, batch); err != nil {
		failure := &domain.PartialBatchFailure{Operation: "generate_series"}
		failure.AddAll(eventIDs(batch), err)
		s.logger.Error("Failed to insert generated occurrences",
			zap.String("tenant_id", tenantID),
			zap.String("group_id", seed.Repetition.GroupID),
			zap.Int("count", len(batch)),
			zap.Error(err),
		)
		result.DetachedEventIDs = []string{}
		return result, failure
	}

	result.Created = batch
	s.logger.Info("Series generated",
		zap.String("tenant_id", tenantID),
		zap.String("group_id", seed.Repetition.GroupID),
		zap.String("frequency", string(frequency)),
		zap.Int("created", len(batch)),
		zap.Int("detached", len(result.DetachedEventIDs)),
		zap.Int("suppressed", len(result.SuppressedStarts)),
	)
	return result, nil
}
