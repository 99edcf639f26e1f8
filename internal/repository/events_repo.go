package repository

import (
	"context"
	"time"

	"wisefido-schedule/internal/domain"
)

// EventFilters 排班事件查询过滤器
type EventFilters struct {
	AuxiliaryID string
	CustomerID  string
	EventType   domain.EventType
	GroupID     string
	StartTime   *time.Time // 事件结束时间 > StartTime
	EndTime     *time.Time // 事件开始时间 < EndTime
}

// EventsRepository 排班事件Repository接口
// 所有方法均按 tenant_id 隔离；不存在时返回 domain.ErrNotFound
type EventsRepository interface {
	// GetEvent 获取单个事件
	GetEvent(ctx context.Context, tenantID, eventID string) (*domain.Event, error)

	// ListEvents 按条件查询事件（按 start_date 升序）
	ListEvents(ctx context.Context, tenantID string, filters *EventFilters) ([]*domain.Event, error)

	// CreateEvent 创建事件（EventID 为空时生成）
	CreateEvent(ctx context.Context, tenantID string, event *domain.Event) (string, error)

	// CreateEvents 批量插入（单条 INSERT 语句）
	CreateEvents(ctx context.Context, tenantID string, events []*domain.Event) error

	// CountOverlapping 统计同一护理员与 [start, end) 相交的事件数（排除 excludeEventID）
	CountOverlapping(ctx context.Context, tenantID, auxiliaryID string, start, end time.Time, excludeEventID string) (int, error)

	// ListSeriesEventsFrom 查询系列中 start_date >= from 的事件
	// liveOnly=true 时只返回 repetition_frequency != 'never' 的事件
	ListSeriesEventsFrom(ctx context.Context, tenantID, groupID string, from time.Time, liveOnly bool) ([]*domain.Event, error)

	// UpdateSchedule 字段级更新：仅修改时间窗口与护理员，不触碰 is_billed 等其它字段
	UpdateSchedule(ctx context.Context, tenantID, eventID string, start, end time.Time, auxiliaryID string) error

	// DetachEvent 更新时间窗口，同时清空护理员与系列信息（事件永久脱离系列）
	DetachEvent(ctx context.Context, tenantID, eventID string, start, end time.Time) error

	// SetRepetition 修改事件所属系列（种子事件挂到新模板）
	SetRepetition(ctx context.Context, tenantID, eventID string, repetition domain.Repetition) error

	// DeleteUnbilledEvents 删除指定事件中未计费的部分，返回实际删除的ID
	DeleteUnbilledEvents(ctx context.Context, tenantID string, eventIDs []string) ([]string, error)
}
