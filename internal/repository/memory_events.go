package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wisefido-schedule/internal/domain"

	"github.com/google/uuid"
)

// MemoryEventsRepo: 用于 DB 未就绪时的联测和 service 单元测试
// - 按 tenant_id 隔离
// - 与 events_no_overlap 约束一致：同一护理员的已分配事件不允许重叠
type MemoryEventsRepo struct {
	mu     sync.RWMutex
	events map[string]map[string]*domain.Event // tenantID -> eventID -> event
}

func NewMemoryEventsRepo() *MemoryEventsRepo {
	return &MemoryEventsRepo{
		events: map[string]map[string]*domain.Event{},
	}
}

var _ EventsRepository = (*MemoryEventsRepo)(nil)

func (r *MemoryEventsRepo) tenant(tenantID string) map[string]*domain.Event {
	if r.events[tenantID] == nil {
		r.events[tenantID] = map[string]*domain.Event{}
	}
	return r.events[tenantID]
}

// overlapsLocked 调用方需持有锁
func (r *MemoryEventsRepo) overlapsLocked(tenantID, auxiliaryID string, start, end time.Time, excludeIDs ...string) bool {
	if auxiliaryID == "" {
		return false
	}
	skip := map[string]bool{}
	for _, id := range excludeIDs {
		skip[id] = true
	}
	for id, e := range r.events[tenantID] {
		if skip[id] || e.AuxiliaryID != auxiliaryID {
			continue
		}
		if e.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func sortByStart(events []*domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartDate.Before(events[j].StartDate)
	})
}

func (r *MemoryEventsRepo) GetEvent(_ context.Context, tenantID, eventID string) (*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[tenantID][eventID]
	if !ok {
		return nil, fmt.Errorf("event %w", domain.ErrNotFound)
	}
	return e.Clone(), nil
}

func (r *MemoryEventsRepo) ListEvents(_ context.Context, tenantID string, filters *EventFilters) ([]*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Event{}
	for _, e := range r.events[tenantID] {
		if filters != nil {
			if filters.AuxiliaryID != "" && e.AuxiliaryID != filters.AuxiliaryID {
				continue
			}
			if filters.CustomerID != "" && e.CustomerID != filters.CustomerID {
				continue
			}
			if filters.EventType != "" && e.EventType != filters.EventType {
				continue
			}
			if filters.GroupID != "" && e.Repetition.GroupID != filters.GroupID {
				continue
			}
			if filters.StartTime != nil && !e.EndDate.After(*filters.StartTime) {
				continue
			}
			if filters.EndTime != nil && !e.StartDate.Before(*filters.EndTime) {
				continue
			}
		}
		out = append(out, e.Clone())
	}
	sortByStart(out)
	return out, nil
}

func (r *MemoryEventsRepo) CreateEvent(_ context.Context, tenantID string, event *domain.Event) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tenantID == "" {
		return "", fmt.Errorf("tenant_id is required")
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if r.overlapsLocked(tenantID, event.AuxiliaryID, event.StartDate, event.EndDate) {
		return "", fmt.Errorf("failed to create event: %w", domain.ErrConflictUnresolved)
	}
	r.putLocked(tenantID, event)
	return event.EventID, nil
}

func (r *MemoryEventsRepo) putLocked(tenantID string, event *domain.Event) {
	stored := event.Clone()
	stored.TenantID = tenantID
	if stored.Repetition.Frequency == "" {
		stored.Repetition.Frequency = domain.FrequencyNever
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.tenant(tenantID)[stored.EventID] = stored
}

// CreateEvents 与单条 INSERT 一致：任一冲突则整批失败
func (r *MemoryEventsRepo) CreateEvents(_ context.Context, tenantID string, events []*domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	for i, e := range events {
		if e.EventID == "" {
			e.EventID = uuid.NewString()
		}
		if r.overlapsLocked(tenantID, e.AuxiliaryID, e.StartDate, e.EndDate) {
			return fmt.Errorf("failed to bulk insert events: %w", domain.ErrConflictUnresolved)
		}
		for _, prev := range events[:i] {
			if e.AuxiliaryID != "" && prev.AuxiliaryID == e.AuxiliaryID && prev.Overlaps(e.StartDate, e.EndDate) {
				return fmt.Errorf("failed to bulk insert events: %w", domain.ErrConflictUnresolved)
			}
		}
	}
	for _, e := range events {
		r.putLocked(tenantID, e)
	}
	return nil
}

func (r *MemoryEventsRepo) CountOverlapping(_ context.Context, tenantID, auxiliaryID string, start, end time.Time, excludeEventID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for id, e := range r.events[tenantID] {
		if id == excludeEventID || e.AuxiliaryID != auxiliaryID {
			continue
		}
		if e.Overlaps(start, end) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryEventsRepo) ListSeriesEventsFrom(_ context.Context, tenantID, groupID string, from time.Time, liveOnly bool) ([]*domain.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Event{}
	if groupID == "" {
		return out, nil
	}
	for _, e := range r.events[tenantID] {
		if e.Repetition.GroupID != groupID || e.StartDate.Before(from) {
			continue
		}
		if liveOnly && e.Repetition.Frequency == domain.FrequencyNever {
			continue
		}
		out = append(out, e.Clone())
	}
	sortByStart(out)
	return out, nil
}

func (r *MemoryEventsRepo) unbilledLocked(tenantID, eventID string) (*domain.Event, error) {
	e, ok := r.events[tenantID][eventID]
	if !ok || e.IsBilled {
		return nil, fmt.Errorf("unbilled event %w", domain.ErrNotFound)
	}
	return e, nil
}

func (r *MemoryEventsRepo) UpdateSchedule(_ context.Context, tenantID, eventID string, start, end time.Time, auxiliaryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.unbilledLocked(tenantID, eventID)
	if err != nil {
		return err
	}
	if r.overlapsLocked(tenantID, auxiliaryID, start, end, eventID) {
		return fmt.Errorf("failed to update event schedule: %w", domain.ErrConflictUnresolved)
	}
	e.StartDate = start
	e.EndDate = end
	e.AuxiliaryID = auxiliaryID
	e.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryEventsRepo) DetachEvent(_ context.Context, tenantID, eventID string, start, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.unbilledLocked(tenantID, eventID)
	if err != nil {
		return err
	}
	e.StartDate = start
	e.EndDate = end
	e.AuxiliaryID = ""
	e.Repetition = domain.Repetition{Frequency: domain.FrequencyNever}
	e.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryEventsRepo) SetRepetition(_ context.Context, tenantID, eventID string, repetition domain.Repetition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[tenantID][eventID]
	if !ok {
		return fmt.Errorf("event %w", domain.ErrNotFound)
	}
	e.Repetition = repetition
	e.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryEventsRepo) DeleteUnbilledEvents(_ context.Context, tenantID string, eventIDs []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := make([]string, 0, len(eventIDs))
	for _, id := range eventIDs {
		e, ok := r.events[tenantID][id]
		if !ok || e.IsBilled {
			continue
		}
		delete(r.events[tenantID], id)
		deleted = append(deleted, id)
	}
	return deleted, nil
}
