package domain

import "time"

// HistoryAction 历史记录动作
type HistoryAction string

const (
	HistoryActionSeriesDeletion HistoryAction = "series_deletion"
)

// EventHistory 排班历史记录（对应 event_histories 表）
// 仅记录排班引擎在破坏性操作前必须留下的最小信息
type EventHistory struct {
	HistoryID string        `db:"history_id" json:"history_id"` // UUID, PRIMARY KEY
	TenantID  string        `db:"tenant_id" json:"tenant_id"`   // UUID, NOT NULL
	Action    HistoryAction `db:"action" json:"action"`         // VARCHAR(50), NOT NULL

	// 锚点事件快照
	EventID     string    `db:"event_id" json:"event_id"`
	GroupID     string    `db:"group_id" json:"group_id"`
	EventType   EventType `db:"event_type" json:"event_type"`
	AuxiliaryID string    `db:"auxiliary_id" json:"auxiliary_id"`
	CustomerID  string    `db:"customer_id" json:"customer_id"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`

	ActorID   string    `db:"actor_id" json:"actor_id"` // 操作人
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewSeriesDeletionHistory 构建系列删除历史记录
func NewSeriesDeletionHistory(anchor *Event, actorID string, at time.Time) *EventHistory {
	return &EventHistory{
		TenantID:    anchor.TenantID,
		Action:      HistoryActionSeriesDeletion,
		EventID:     anchor.EventID,
		GroupID:     anchor.Repetition.GroupID,
		EventType:   anchor.EventType,
		AuxiliaryID: anchor.AuxiliaryID,
		CustomerID:  anchor.CustomerID,
		StartDate:   anchor.StartDate,
		EndDate:     anchor.EndDate,
		ActorID:     actorID,
		CreatedAt:   at,
	}
}
