package domain

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

var (
	// ErrInvalidFrequency 创建系列时频率为 never 或不支持的值
	ErrInvalidFrequency = errors.New("invalid repetition frequency")
	// ErrInvalidWindow 结束时间不晚于开始时间
	ErrInvalidWindow = errors.New("invalid time window: end_date must be after start_date")
	// ErrConflictUnresolved 冲突必须阻断操作（而非自动取消分配）的场景
	ErrConflictUnresolved = errors.New("auxiliary has a conflicting event")
	// ErrNotFound 事件或模板不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidEventType 未登记策略的事件类型
	ErrInvalidEventType = errors.New("invalid event type")
)

// BatchFailure 单个事件的写入失败
type BatchFailure struct {
	EventID string
	Err     error
}

// PartialBatchFailure 批量写入中部分事件失败（已成功的写入不回滚）
type PartialBatchFailure struct {
	Operation string
	Failures  []BatchFailure
}

// Add 记录一个失败
func (p *PartialBatchFailure) Add(eventID string, err error) {
	p.Failures = append(p.Failures, BatchFailure{EventID: eventID, Err: err})
}

// AddAll 同一个错误导致多个事件失败（如一次批量插入）
func (p *PartialBatchFailure) AddAll(eventIDs []string, err error) {
	for _, id := range eventIDs {
		p.Add(id, err)
	}
}

// EventIDs 失败事件ID列表
func (p *PartialBatchFailure) EventIDs() []string {
	ids := make([]string, 0, len(p.Failures))
	for _, f := range p.Failures {
		ids = append(ids, f.EventID)
	}
	return ids
}

// ErrOrNil 无失败时返回 nil，便于直接 return
func (p *PartialBatchFailure) ErrOrNil() error {
	if p == nil || len(p.Failures) == 0 {
		return nil
	}
	return p
}

func (p *PartialBatchFailure) Error() string {
	ids := p.EventIDs()
	if len(ids) > 5 {
		ids = append(ids[:5], fmt.Sprintf("... (%d more)", len(p.Failures)-5))
	}
	return fmt.Sprintf("%s: %d event(s) failed [%s]: %v",
		p.Operation, len(p.Failures), strings.Join(ids, ", "), p.Cause())
}

// Cause 合并所有底层错误，相同消息只保留一次
func (p *PartialBatchFailure) Cause() error {
	var err error
	seen := make(map[string]struct{}, len(p.Failures))
	for _, f := range p.Failures {
		if f.Err == nil {
			continue
		}
		if _, dup := seen[f.Err.Error()]; dup {
			continue
		}
		seen[f.Err.Error()] = struct{}{}
		err = multierr.Append(err, f.Err)
	}
	return err
}

// Unwrap 支持 errors.Is / errors.As 检查底层错误
func (p *PartialBatchFailure) Unwrap() []error {
	errs := make([]error, 0, len(p.Failures))
	for _, f := range p.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// IsPartialBatchFailure 判断并取出 PartialBatchFailure
func IsPartialBatchFailure(err error) (*PartialBatchFailure, bool) {
	var p *PartialBatchFailure
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}
