package service

import (
	"context"
	"fmt"

	"wisefido-schedule/internal/domain"
)

// HasConflict 未分配护理员的候选事件直接返回 false，不查询数据库
func (s *seriesService) HasConflict(ctx context.Context, tenantID string, candidate *domain.Event, excludeEventID string) (bool, error) {
	if candidate == nil || !candidate.IsAssigned() {
		return false, nil
	}
	if err := candidate.ValidateWindow(); err != nil {
		return false, err
	}

	count, err := s.eventsRepo.CountOverlapping(ctx, tenantID, candidate.AuxiliaryID,
		candidate.StartDate, candidate.EndDate, excludeEventID)
	if err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return count > 0, nil
}
