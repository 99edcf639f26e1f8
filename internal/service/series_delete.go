package service

import (
	"context"
	"errors"
	"fmt"

	"wisefido-schedule/internal/domain"

	"go.uber.org/zap"
)

// DeleteSeries 删除锚点及之后的系列事件（已计费的保留）并删除模板
//   - 缺勤类型与非系列事件不做任何处理，原样返回锚点
//   - 先写历史记录，失败则中止，不删除任何数据
//   - 以锚点开始时间快照系列成员，用一条语句按 event_id 删除
func (s *seriesService) DeleteSeries(ctx context.Context, req DeleteSeriesRequest) (*DeleteSeriesResponse, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	anchor, err := s.eventsRepo.GetEvent(ctx, req.TenantID, req.AnchorEventID)
	if err != nil {
		return nil, err
	}

	resp := &DeleteSeriesResponse{
		Anchor:             anchor,
		DeletedEventIDs:    []string{},
		PreservedBilledIDs: []string{},
	}

	policy, err := domain.PolicyFor(anchor.EventType)
	if err != nil {
		return nil, err
	}
	if !policy.SeriesDeletable || !anchor.InLiveSeries() {
		resp.Skipped = true
		s.logger.Debug("Series deletion skipped",
			zap.String("tenant_id", req.TenantID),
			zap.String("event_id", anchor.EventID),
			zap.String("event_type", string(anchor.EventType)),
			zap.String("frequency", string(anchor.Repetition.Frequency)),
		)
		return resp, nil
	}

	groupID := anchor.Repetition.GroupID
	history := domain.NewSeriesDeletionHistory(anchor, req.ActorID, s.now())
	history.TenantID = req.TenantID
	if err := s.history.Record(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to record series deletion history: %w", err)
	}

	members, err := s.eventsRepo.ListSeriesEventsFrom(ctx, req.TenantID, groupID, anchor.StartDate, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load series events: %w", err)
	}

	toDelete := make([]string, 0, len(members))
	for _, m := range members {
		if m.IsBilled {
			resp.PreservedBilledIDs = append(resp.PreservedBilledIDs, m.EventID)
			continue
		}
		toDelete = append(toDelete, m.EventID)
	}

	failures := &domain.PartialBatchFailure{Operation: "delete_series"}
	if len(toDelete) > 0 {
		deleted, err := s.eventsRepo.DeleteUnbilledEvents(ctx, req.TenantID, toDelete)
		if err != nil {
			failures.AddAll(toDelete, err)
		} else {
			resp.DeletedEventIDs = deleted
		}
	}

	if err := s.repetitionsRepo.DeleteRepetition(ctx, req.TenantID, groupID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Repetition template already removed",
				zap.String("tenant_id", req.TenantID),
				zap.String("group_id", groupID),
			)
		} else {
			failures.Add(anchor.EventID, fmt.Errorf("failed to delete repetition %s: %w", groupID, err))
		}
	}

	s.publish(ctx, domain.SeriesActionDeleted, req.TenantID, groupID, resp.DeletedEventIDs)

	s.logger.Info("Series deleted",
		zap.String("tenant_id", req.TenantID),
		zap.String("anchor_event_id", anchor.EventID),
		zap.String("group_id", groupID),
		zap.String("actor_id", req.ActorID),
		zap.Int("deleted", len(resp.DeletedEventIDs)),
		zap.Int("preserved_billed", len(resp.PreservedBilledIDs)),
	)
	return resp, failures.ErrOrNil()
}
