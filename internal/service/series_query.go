package service

import (
	"context"
	"fmt"
	"time"

	"wisefido-schedule/internal/domain"
	"wisefido-schedule/internal/repository"
)

// GetEvent 获取单个事件
func (s *seriesService) GetEvent(ctx context.Context, tenantID, eventID string) (*domain.Event, error) {
	return s.eventsRepo.GetEvent(ctx, tenantID, eventID)
}

// ListEvents 查询事件
func (s *seriesService) ListEvents(ctx context.Context, req ListEventsRequest) ([]*domain.Event, error) {
	if req.StartTime != nil && req.EndTime != nil {
		if err := domain.ValidateWindow(*req.StartTime, *req.EndTime); err != nil {
			return nil, err
		}
	}
	return s.eventsRepo.ListEvents(ctx, req.TenantID, &repository.EventFilters{
		AuxiliaryID: req.AuxiliaryID,
		CustomerID:  req.CustomerID,
		GroupID:     req.GroupID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
}

// GetSeries 获取系列模板及其有效事件（从模板种子开始）
func (s *seriesService) GetSeries(ctx context.Context, tenantID, groupID string) (*GetSeriesResponse, error) {
	tpl, err := s.repetitionsRepo.GetRepetition(ctx, tenantID, groupID)
	if err != nil {
		return nil, err
	}
	events, err := s.eventsRepo.ListSeriesEventsFrom(ctx, tenantID, groupID, time.Time{}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load series events: %w", err)
	}
	return &GetSeriesResponse{Repetition: tpl, Events: events}, nil
}
