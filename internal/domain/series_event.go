package domain

import "time"

// SeriesAction 系列变更动作
type SeriesAction string

const (
	SeriesActionCreated SeriesAction = "series_created"
	SeriesActionUpdated SeriesAction = "series_updated"
	SeriesActionDeleted SeriesAction = "series_deleted"
)

// SeriesEvent 系列变更通知（发布到 Redis Streams，供下游服务刷新缓存）
type SeriesEvent struct {
	Action     SeriesAction `json:"action"`
	TenantID   string       `json:"tenant_id"`
	GroupID    string       `json:"group_id"`
	EventIDs   []string     `json:"event_ids"`
	OccurredAt time.Time    `json:"occurred_at"`
}
