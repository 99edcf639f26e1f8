package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"wisefido-schedule/internal/domain"

	"go.uber.org/zap"
)

// UpdateSeries 将锚点的时间/护理员修改传播到锚点及其之后的有效系列事件
//   - 开始/结束的偏移量分别相对锚点原窗口计算，并原样作用于每个成员
//   - 已计费事件跳过
//   - 成员在新位置存在冲突时取消分配并脱离系列（所有事件类型一致）
//   - 锚点不在有效系列中时只修改锚点本身
//   - 最后更新模板，使之后的生成与修改保持一致
func (s *seriesService) UpdateSeries(ctx context.Context, req UpdateSeriesRequest) (*UpdateSeriesResponse, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if err := domain.ValidateWindow(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	anchor, err := s.eventsRepo.GetEvent(ctx, req.TenantID, req.AnchorEventID)
	if err != nil {
		return nil, err
	}

	members := []*domain.Event{anchor}
	live := anchor.InLiveSeries()
	if live {
		members, err = s.eventsRepo.ListSeriesEventsFrom(ctx, req.TenantID, anchor.Repetition.GroupID, anchor.StartDate, true)
		if err != nil {
			return nil, fmt.Errorf("failed to load series events: %w", err)
		}
		if !containsEvent(members, anchor.EventID) {
			members = append(members, anchor)
		}
	}

	startDelta := req.StartDate.Sub(anchor.StartDate)
	endDelta := req.EndDate.Sub(anchor.EndDate)

	targetAuxiliary := func(e *domain.Event) string {
		if req.AuxiliaryID == nil {
			return e.AuxiliaryID
		}
		return strings.TrimSpace(*req.AuxiliaryID)
	}

	workers := make([]string, 0, len(members)+1)
	for _, m := range members {
		workers = append(workers, m.AuxiliaryID, targetAuxiliary(m))
	}
	unlock, err := s.locker.Lock(ctx, req.TenantID, workers...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 向后平移时从最晚的成员开始，向前平移时从最早的开始，
	// 避免成员在新位置与尚未移动的兄弟事件互相冲突
	sort.SliceStable(members, func(i, j int) bool {
		if startDelta > 0 {
			return members[i].StartDate.After(members[j].StartDate)
		}
		return members[i].StartDate.Before(members[j].StartDate)
	})

	resp := &UpdateSeriesResponse{
		GroupID:          anchor.Repetition.GroupID,
		UpdatedEventIDs:  []string{},
		DetachedEventIDs: []string{},
		SkippedBilledIDs: []string{},
	}
	failures := &domain.PartialBatchFailure{Operation: "update_series"}

	for _, m := range members {
		if m.IsBilled {
			resp.SkippedBilledIDs = append(resp.SkippedBilledIDs, m.EventID)
			continue
		}

		start, end := shiftWindow(m.StartDate, m.EndDate, startDelta, endDelta)
		if err := domain.ValidateWindow(start, end); err != nil {
			failures.Add(m.EventID, err)
			continue
		}

		moved := m.Clone()
		moved.StartDate = start
		moved.EndDate = end
		moved.AuxiliaryID = targetAuxiliary(m)

		detached, err := s.moveMember(ctx, req.TenantID, moved)
		if err != nil {
			failures.Add(m.EventID, err)
			continue
		}
		if detached {
			resp.DetachedEventIDs = append(resp.DetachedEventIDs, m.EventID)
		} else {
			resp.UpdatedEventIDs = append(resp.UpdatedEventIDs, m.EventID)
		}
	}

	if live {
		seedAuxiliary := targetAuxiliary(anchor)
		err := s.repetitionsRepo.UpdateRepetitionSeed(ctx, req.TenantID, anchor.Repetition.GroupID,
			req.StartDate, req.EndDate, seedAuxiliary)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("Repetition template missing, seed not updated",
				zap.String("tenant_id", req.TenantID),
				zap.String("group_id", anchor.Repetition.GroupID),
			)
		default:
			failures.Add(anchor.EventID, fmt.Errorf("failed to update repetition %s: %w", anchor.Repetition.GroupID, err))
		}

		touched := append(append([]string{}, resp.UpdatedEventIDs...), resp.DetachedEventIDs...)
		s.publish(ctx, domain.SeriesActionUpdated, req.TenantID, anchor.Repetition.GroupID, touched)
	}

	s.logger.Info("Series updated",
		zap.String("tenant_id", req.TenantID),
		zap.String("anchor_event_id", anchor.EventID),
		zap.String("group_id", anchor.Repetition.GroupID),
		zap.Duration("start_delta", startDelta),
		zap.Duration("end_delta", endDelta),
		zap.Int("updated", len(resp.UpdatedEventIDs)),
		zap.Int("detached", len(resp.DetachedEventIDs)),
		zap.Int("skipped_billed", len(resp.SkippedBilledIDs)),
		zap.Int("failed", len(failures.Failures)),
	)
	return resp, failures.ErrOrNil()
}

// moveMember 写入新窗口；冲突时改为取消分配并脱离系列
// 存储层的排他约束（并发写入）也按冲突处理
func (s *seriesService) moveMember(ctx context.Context, tenantID string, moved *domain.Event) (bool, error) {
	conflict, err := s.HasConflict(ctx, tenantID, moved, moved.EventID)
	if err != nil {
		return false, err
	}
	if !conflict {
		err = s.eventsRepo.UpdateSchedule(ctx, tenantID, moved.EventID, moved.StartDate, moved.EndDate, moved.AuxiliaryID)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, domain.ErrConflictUnresolved) {
			return false, err
		}
	}

	if err := s.eventsRepo.DetachEvent(ctx, tenantID, moved.EventID, moved.StartDate, moved.EndDate); err != nil {
		return false, fmt.Errorf("failed to detach event: %w", err)
	}
	s.logger.Info("Event detached from series on conflict",
		zap.String("tenant_id", tenantID),
		zap.String("event_id", moved.EventID),
		zap.String("auxiliary_id", moved.AuxiliaryID),
		zap.Time("start_date", moved.StartDate),
	)
	return true, nil
}

func containsEvent(events []*domain.Event, eventID string) bool {
	for _, e := range events {
		if e.EventID == eventID {
			return true
		}
	}
	return false
}

// shiftWindow 开始、结束分别按各自的偏移量平移
func shiftWindow(start, end time.Time, startDelta, endDelta time.Duration) (time.Time, time.Time) {
	return start.Add(startDelta), end.Add(endDelta)
}
