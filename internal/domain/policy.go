package domain

// ConflictAction 生成系列时遇到时间冲突的处理方式
type ConflictAction int

const (
	// ConflictDetach 保留事件，但取消分配并脱离系列，待人工重新排班
	ConflictDetach ConflictAction = iota + 1
	// ConflictSuppress 当天不生成该事件
	ConflictSuppress
)

// TypePolicy 按事件类型区分的排班策略
type TypePolicy struct {
	OnConflict ConflictAction
	// SeriesDeletable=false 的类型不参与系列删除级联
	SeriesDeletable bool
}

// 新增事件类型必须在此登记策略，否则生成/删除会返回 ErrInvalidEventType
var typePolicies = map[EventType]TypePolicy{
	EventTypeIntervention:   {OnConflict: ConflictDetach, SeriesDeletable: true},
	EventTypeInternalHour:   {OnConflict: ConflictSuppress, SeriesDeletable: true},
	EventTypeUnavailability: {OnConflict: ConflictSuppress, SeriesDeletable: true},
	EventTypeAbsence:        {OnConflict: ConflictSuppress, SeriesDeletable: false},
}

// PolicyFor 获取事件类型对应的策略
func PolicyFor(t EventType) (TypePolicy, error) {
	p, ok := typePolicies[t]
	if !ok {
		return TypePolicy{}, ErrInvalidEventType
	}
	return p, nil
}
