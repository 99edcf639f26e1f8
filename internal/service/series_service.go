package service

import (
	"context"
	"time"

	"wisefido-schedule/internal/domain"
	"wisefido-schedule/internal/repository"
	"wisefido-schedule/internal/store"

	"go.uber.org/zap"
)

// SeriesService 排班系列服务接口（重复事件引擎）
type SeriesService interface {
	// HasConflict 候选事件是否与同一护理员的已有事件重叠（excludeEventID 用于编辑时排除自身）
	HasConflict(ctx context.Context, tenantID string, candidate *domain.Event, excludeEventID string) (bool, error)

	// GetEvent 获取单个事件
	GetEvent(ctx context.Context, tenantID, eventID string) (*domain.Event, error)

	// ListEvents 查询事件
	ListEvents(ctx context.Context, req ListEventsRequest) ([]*domain.Event, error)

	// GetSeries 获取系列模板及其有效事件
	GetSeries(ctx context.Context, tenantID, groupID string) (*GetSeriesResponse, error)

	// CreateEvent 创建单个事件；指定重复频率时继续创建系列
	CreateEvent(ctx context.Context, req CreateEventRequest) (*CreateEventResponse, error)

	// CreateSeries 以已存在的事件为种子创建系列
	CreateSeries(ctx context.Context, req CreateSeriesRequest) (*CreateSeriesResponse, error)

	// GenerateSeries 按频率在 90 天窗口内生成种子之后的事件（单次批量插入）
	GenerateSeries(ctx context.Context, tenantID string, seed *domain.Event, frequency domain.Frequency) (*GenerateSeriesResult, error)

	// UpdateSeries 将锚点事件的修改传播到系列中所有未来的有效事件
	UpdateSeries(ctx context.Context, req UpdateSeriesRequest) (*UpdateSeriesResponse, error)

	// DeleteSeries 删除锚点之后未计费的系列事件与模板
	DeleteSeries(ctx context.Context, req DeleteSeriesRequest) (*DeleteSeriesResponse, error)
}

// HistorySink 排班历史记录（破坏性操作前调用）
type HistorySink interface {
	Record(ctx context.Context, history *domain.EventHistory) error
}

// SeriesEventPublisher 系列变更通知
type SeriesEventPublisher interface {
	PublishSeriesEvent(ctx context.Context, event domain.SeriesEvent) error
}

// NoopSeriesPublisher Redis 未启用时使用
type NoopSeriesPublisher struct{}

func (NoopSeriesPublisher) PublishSeriesEvent(context.Context, domain.SeriesEvent) error { return nil }

// seriesService 排班系列服务实现
type seriesService struct {
	eventsRepo      repository.EventsRepository
	repetitionsRepo repository.RepetitionsRepository
	history         HistorySink
	locker          store.WorkerLocker
	publisher       SeriesEventPublisher
	logger          *zap.Logger
	now             func() time.Time
}

// NewSeriesService 创建排班系列服务
// locker 为空时使用进程内锁；publisher 为空时不发布变更通知
func NewSeriesService(
	eventsRepo repository.EventsRepository,
	repetitionsRepo repository.RepetitionsRepository,
	history HistorySink,
	locker store.WorkerLocker,
	publisher SeriesEventPublisher,
	logger *zap.Logger,
) SeriesService {
	if locker == nil {
		locker = store.NewLocalWorkerLocker()
	}
	if publisher == nil {
		publisher = NoopSeriesPublisher{}
	}
	return &seriesService{
		eventsRepo:      eventsRepo,
		repetitionsRepo: repetitionsRepo,
		history:         history,
		locker:          locker,
		publisher:       publisher,
		logger:          logger,
		now:             time.Now,
	}
}

// ListEventsRequest 查询事件请求
type ListEventsRequest struct {
	TenantID    string
	AuxiliaryID string
	CustomerID  string
	GroupID     string
	StartTime   *time.Time
	EndTime     *time.Time
}

// GetSeriesResponse 系列详情
type GetSeriesResponse struct {
	Repetition *domain.RepetitionTemplate
	Events     []*domain.Event
}

// CreateEventRequest 创建事件请求
type CreateEventRequest struct {
	TenantID  string
	Event     *domain.Event
	Frequency domain.Frequency // 空或 never 表示单次事件
}

// CreateEventResponse 创建事件响应
type CreateEventResponse struct {
	Event  *domain.Event
	Series *CreateSeriesResponse // 非重复事件为 nil
}

// CreateSeriesRequest 创建系列请求
type CreateSeriesRequest struct {
	TenantID    string
	SeedEventID string
	Frequency   domain.Frequency
}

// CreateSeriesResponse 创建系列响应
type CreateSeriesResponse struct {
	Repetition *domain.RepetitionTemplate
	Seed       *domain.Event
	// Reparented 种子原本属于另一个有效系列，本次改挂到新模板
	Reparented      bool
	PreviousGroupID string
	Generated       *GenerateSeriesResult
}

// GenerateSeriesResult 生成结果
type GenerateSeriesResult struct {
	Created []*domain.Event
	// DetachedEventIDs 因冲突被取消分配并脱离系列的事件（已生成，需人工重新排班）
	DetachedEventIDs []string
	// SuppressedStarts 因冲突未生成的日期（按种子时间平移后的开始时间）
	SuppressedStarts []time.Time
}

// UpdateSeriesRequest 修改系列请求（StartDate/EndDate 为锚点事件的新时间窗口）
type UpdateSeriesRequest struct {
	TenantID      string
	AnchorEventID string
	StartDate     time.Time
	EndDate       time.Time
	// AuxiliaryID 为 nil 表示不修改；指向空字符串表示取消分配
	AuxiliaryID *string
}

// UpdateSeriesResponse 修改系列响应
type UpdateSeriesResponse struct {
	GroupID          string   `json:"group_id"`
	UpdatedEventIDs  []string `json:"updated_event_ids"`
	DetachedEventIDs []string `json:"detached_event_ids"`
	// SkippedBilledIDs 已计费事件不被修改
	SkippedBilledIDs []string `json:"skipped_billed_ids"`
}

// DeleteSeriesRequest 删除系列请求
type DeleteSeriesRequest struct {
	TenantID      string
	AnchorEventID string
	ActorID       string
}

// DeleteSeriesResponse 删除系列响应（Anchor 原样返回）
type DeleteSeriesResponse struct {
	Anchor *domain.Event
	// Skipped 为 true 表示未执行任何删除（缺勤事件或非系列事件）
	Skipped            bool
	DeletedEventIDs    []string
	PreservedBilledIDs []string
}

func (s *seriesService) publish(ctx context.Context, action domain.SeriesAction, tenantID, groupID string, eventIDs []string) {
	event := domain.SeriesEvent{
		Action:     action,
		TenantID:   tenantID,
		GroupID:    groupID,
		EventIDs:   eventIDs,
		OccurredAt: s.now(),
	}
	if err := s.publisher.PublishSeriesEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish series event",
			zap.String("action", string(action)),
			zap.String("tenant_id", tenantID),
			zap.String("group_id", groupID),
			zap.Error(err),
		)
	}
}

func eventIDs(events []*domain.Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.EventID)
	}
	return ids
}
