package domain

import "time"

// SeriesHorizonDays 系列生成窗口（自种子事件开始时间起，单位：天）
const SeriesHorizonDays = 90

// RepetitionTemplate 重复模板（对应 repetitions 表）
// 每个有效系列一条记录，保存种子事件属性，供生成器和周期性补齐任务使用
type RepetitionTemplate struct {
	GroupID   string    `db:"group_id"`  // UUID, PRIMARY KEY
	TenantID  string    `db:"tenant_id"` // UUID, NOT NULL
	Frequency Frequency `db:"frequency"` // VARCHAR(20), NOT NULL, != 'never'

	// 种子属性
	EventType        EventType `db:"event_type"`
	AuxiliaryID      string    `db:"auxiliary_id"` // nullable
	CustomerID       string    `db:"customer_id"`  // nullable
	StartDate        time.Time `db:"start_date"`
	EndDate          time.Time `db:"end_date"`
	Misc             string    `db:"misc"`
	Address          string    `db:"address"`
	InternalHourName string    `db:"internal_hour_name"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewRepetitionTemplate 根据种子事件构建模板
func NewRepetitionTemplate(groupID string, seed *Event, frequency Frequency) *RepetitionTemplate {
	return &RepetitionTemplate{
		GroupID:          groupID,
		TenantID:         seed.TenantID,
		Frequency:        frequency,
		EventType:        seed.EventType,
		AuxiliaryID:      seed.AuxiliaryID,
		CustomerID:       seed.CustomerID,
		StartDate:        seed.StartDate,
		EndDate:          seed.EndDate,
		Misc:             seed.Misc,
		Address:          seed.Address,
		InternalHourName: seed.InternalHourName,
	}
}
