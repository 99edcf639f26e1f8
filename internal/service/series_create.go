package service

import (
	"context"
	"fmt"
	"strings"

	"wisefido-schedule/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateEvent 创建单个事件
// 已分配护理员且存在冲突时直接拒绝（ErrConflictUnresolved），不产生任何写入
func (s *seriesService) CreateEvent(ctx context.Context, req CreateEventRequest) (*CreateEventResponse, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if req.Event == nil {
		return nil, fmt.Errorf("event is required")
	}
	event := req.Event.Clone()
	if _, err := domain.PolicyFor(event.EventType); err != nil {
		return nil, err
	}
	if err := event.ValidateWindow(); err != nil {
		return nil, err
	}
	frequency := req.Frequency
	if frequency == "" {
		frequency = domain.FrequencyNever
	}
	if frequency != domain.FrequencyNever && !frequency.IsRepeating() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, frequency)
	}
	if event.EventType == domain.EventTypeInternalHour && strings.TrimSpace(event.InternalHourName) == "" {
		return nil, fmt.Errorf("internal_hour_name is required for internal_hour events")
	}

	event.TenantID = req.TenantID
	event.AuxiliaryID = strings.TrimSpace(event.AuxiliaryID)
	event.IsBilled = false
	event.Repetition = domain.Repetition{Frequency: domain.FrequencyNever}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	unlock, err := s.locker.Lock(ctx, req.TenantID, event.AuxiliaryID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conflict, err := s.HasConflict(ctx, req.TenantID, event, "")
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, fmt.Errorf("auxiliary %s: %w", event.AuxiliaryID, domain.ErrConflictUnresolved)
	}

	if _, err := s.eventsRepo.CreateEvent(ctx, req.TenantID, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.logger.Info("Event created",
		zap.String("tenant_id", req.TenantID),
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
		zap.String("auxiliary_id", event.AuxiliaryID),
	)

	resp := &CreateEventResponse{Event: event}
	if !frequency.IsRepeating() {
		return resp, nil
	}

	series, err := s.createSeriesLocked(ctx, req.TenantID, event, frequency)
	resp.Series = series
	if series != nil && series.Seed != nil {
		resp.Event = series.Seed
	}
	return resp, err
}

// CreateSeries 以已存在的事件为种子创建系列
func (s *seriesService) CreateSeries(ctx context.Context, req CreateSeriesRequest) (*CreateSeriesResponse, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if !req.Frequency.IsRepeating() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, req.Frequency)
	}

	seed, err := s.eventsRepo.GetEvent(ctx, req.TenantID, req.SeedEventID)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, req.TenantID, seed.AuxiliaryID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.createSeriesLocked(ctx, req.TenantID, seed, req.Frequency)
}

// createSeriesLocked 保存模板、挂接种子并生成后续事件；调用方需持有种子护理员的锁
// 种子已属于其他有效系列时改挂到新模板，原系列的其他成员不受影响
func (s *seriesService) createSeriesLocked(ctx context.Context, tenantID string, seed *domain.Event, frequency domain.Frequency) (*CreateSeriesResponse, error) {
	if _, err := domain.PolicyFor(seed.EventType); err != nil {
		return nil, err
	}
	if err := seed.ValidateWindow(); err != nil {
		return nil, err
	}

	resp := &CreateSeriesResponse{Seed: seed}
	if seed.InLiveSeries() {
		resp.Reparented = true
		resp.PreviousGroupID = seed.Repetition.GroupID
	}

	groupID := uuid.NewString()
	tpl := domain.NewRepetitionTemplate(groupID, seed, frequency)
	if err := s.repetitionsRepo.CreateRepetition(ctx, tenantID, tpl); err != nil {
		return nil, fmt.Errorf("failed to create repetition: %w", err)
	}
	resp.Repetition = tpl

	repetition := domain.Repetition{Frequency: frequency, GroupID: groupID}
	if err := s.eventsRepo.SetRepetition(ctx, tenantID, seed.EventID, repetition); err != nil {
		// 种子未挂接时模板无人引用，撤销
		if delErr := s.repetitionsRepo.DeleteRepetition(ctx, tenantID, groupID); delErr != nil {
			s.logger.Warn("Failed to remove unlinked repetition",
				zap.String("tenant_id", tenantID),
				zap.String("group_id", groupID),
				zap.Error(delErr),
			)
		}
		failure := &domain.PartialBatchFailure{Operation: "create_series"}
		failure.Add(seed.EventID, fmt.Errorf("failed to link seed event to repetition: %w", err))
		return nil, failure
	}
	seed.Repetition = repetition

	if resp.Reparented {
		s.logger.Info("Seed event moved to a new series",
			zap.String("tenant_id", tenantID),
			zap.String("event_id", seed.EventID),
			zap.String("previous_group_id", resp.PreviousGroupID),
			zap.String("group_id", groupID),
		)
	}

	generated, err := s.generateSeries(ctx, tenantID, seed, frequency)
	resp.Generated = generated
	if err != nil {
		return resp, err
	}

	ids := append([]string{seed.EventID}, eventIDs(generated.Created)...)
	s.publish(ctx, domain.SeriesActionCreated, tenantID, groupID, ids)
	return resp, nil
}
