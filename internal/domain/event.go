package domain

import "time"

// EventType 排班事件类型
type EventType string

const (
	EventTypeIntervention   EventType = "intervention"   // 护理服务（上门照护）
	EventTypeInternalHour   EventType = "internal_hour"  // 内部工时（培训、会议等）
	EventTypeAbsence        EventType = "absence"        // 缺勤（请假、病假）
	EventTypeUnavailability EventType = "unavailability" // 不可用时段
)

// Frequency 重复频率
type Frequency string

const (
	FrequencyNever         Frequency = "never"
	FrequencyEveryDay      Frequency = "every_day"
	FrequencyEveryWeekDay  Frequency = "every_week_day" // 周一至周五
	FrequencyEveryWeek     Frequency = "every_week"
	FrequencyEveryTwoWeeks Frequency = "every_two_weeks"
)

// IsRepeating 是否为有效的重复频率（never 之外的已知值）
func (f Frequency) IsRepeating() bool {
	switch f {
	case FrequencyEveryDay, FrequencyEveryWeekDay, FrequencyEveryWeek, FrequencyEveryTwoWeeks:
		return true
	}
	return false
}

// Repetition 事件所属系列信息
// Frequency != never 表示仍在系列中；Frequency == never 且 GroupID 非空表示已脱离系列（历史标记）
type Repetition struct {
	Frequency Frequency `db:"repetition_frequency"` // VARCHAR(20), NOT NULL, DEFAULT 'never'
	GroupID   string    `db:"repetition_group_id"`  // UUID, nullable
}

// Event 排班事件领域模型（对应 events 表）
type Event struct {
	// 主键
	EventID string `db:"event_id"` // UUID, PRIMARY KEY（由应用层生成，批量失败时可定位）

	// 租户
	TenantID string `db:"tenant_id"` // UUID, NOT NULL

	EventType EventType `db:"event_type"` // VARCHAR(20), NOT NULL

	// 时间窗口 [StartDate, EndDate)
	StartDate time.Time `db:"start_date"` // TIMESTAMPTZ, NOT NULL
	EndDate   time.Time `db:"end_date"`   // TIMESTAMPTZ, NOT NULL, > start_date

	// 执行人（护理员），空字符串表示未分配
	AuxiliaryID string `db:"auxiliary_id"` // UUID, nullable

	// 服务对象，仅 intervention 有意义
	CustomerID string `db:"customer_id"` // UUID, nullable

	// 已计费的事件对排班引擎只读
	IsBilled bool `db:"is_billed"` // BOOLEAN, NOT NULL, DEFAULT FALSE

	Repetition Repetition

	Misc             string `db:"misc"`               // TEXT, nullable
	Address          string `db:"address"`            // TEXT, nullable
	InternalHourName string `db:"internal_hour_name"` // VARCHAR(100), nullable

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsAssigned 是否已分配护理员
func (e *Event) IsAssigned() bool {
	return e.AuxiliaryID != ""
}

// InLiveSeries 是否仍属于一个有效系列
func (e *Event) InLiveSeries() bool {
	return e.Repetition.GroupID != "" && e.Repetition.Frequency != FrequencyNever && e.Repetition.Frequency != ""
}

// ValidateWindow 校验时间窗口 end > start
func (e *Event) ValidateWindow() error {
	return ValidateWindow(e.StartDate, e.EndDate)
}

// ValidateWindow 校验时间窗口 end > start
func ValidateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return ErrInvalidWindow
	}
	return nil
}

// Overlaps 半开区间 [start, end) 是否相交
func (e *Event) Overlaps(start, end time.Time) bool {
	return e.StartDate.Before(end) && e.EndDate.After(start)
}

// Clone 浅拷贝（字段均为值类型）
func (e *Event) Clone() *Event {
	c := *e
	return &c
}
