package repository

import (
	"context"
	"time"

	"wisefido-schedule/internal/domain"
)

// RepetitionsRepository 重复模板Repository接口
type RepetitionsRepository interface {
	// GetRepetition 获取模板
	GetRepetition(ctx context.Context, tenantID, groupID string) (*domain.RepetitionTemplate, error)

	// CreateRepetition 创建模板
	CreateRepetition(ctx context.Context, tenantID string, tpl *domain.RepetitionTemplate) error

	// UpdateRepetitionSeed 更新模板的种子时间窗口与护理员（供后续补齐生成使用）
	UpdateRepetitionSeed(ctx context.Context, tenantID, groupID string, start, end time.Time, auxiliaryID string) error

	// DeleteRepetition 删除模板
	DeleteRepetition(ctx context.Context, tenantID, groupID string) error
}

// EventHistoriesRepository 排班历史Repository接口
type EventHistoriesRepository interface {
	// CreateEventHistory 写入历史记录，返回 history_id
	CreateEventHistory(ctx context.Context, tenantID string, history *domain.EventHistory) (string, error)
}
