package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wisefido-schedule/internal/domain"

	"github.com/google/uuid"
)

// MemoryRepetitionsRepo 内存版重复模板（DB 未就绪 / 单元测试）
type MemoryRepetitionsRepo struct {
	mu    sync.RWMutex
	items map[string]map[string]*domain.RepetitionTemplate // tenantID -> groupID -> template
}

func NewMemoryRepetitionsRepo() *MemoryRepetitionsRepo {
	return &MemoryRepetitionsRepo{items: map[string]map[string]*domain.RepetitionTemplate{}}
}

var _ RepetitionsRepository = (*MemoryRepetitionsRepo)(nil)

func (r *MemoryRepetitionsRepo) GetRepetition(_ context.Context, tenantID, groupID string) (*domain.RepetitionTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.items[tenantID][groupID]
	if !ok {
		return nil, fmt.Errorf("repetition %w", domain.ErrNotFound)
	}
	c := *tpl
	return &c, nil
}

func (r *MemoryRepetitionsRepo) CreateRepetition(_ context.Context, tenantID string, tpl *domain.RepetitionTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tenantID == "" || tpl.GroupID == "" {
		return fmt.Errorf("tenant_id and group_id are required")
	}
	if r.items[tenantID] == nil {
		r.items[tenantID] = map[string]*domain.RepetitionTemplate{}
	}
	if _, exists := r.items[tenantID][tpl.GroupID]; exists {
		return fmt.Errorf("repetition %s already exists", tpl.GroupID)
	}
	c := *tpl
	c.TenantID = tenantID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.items[tenantID][tpl.GroupID] = &c
	return nil
}

func (r *MemoryRepetitionsRepo) UpdateRepetitionSeed(_ context.Context, tenantID, groupID string, start, end time.Time, auxiliaryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tpl, ok := r.items[tenantID][groupID]
	if !ok {
		return fmt.Errorf("repetition %w", domain.ErrNotFound)
	}
	tpl.StartDate = start
	tpl.EndDate = end
	tpl.AuxiliaryID = auxiliaryID
	tpl.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepetitionsRepo) DeleteRepetition(_ context.Context, tenantID, groupID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[tenantID][groupID]; !ok {
		return fmt.Errorf("repetition %w", domain.ErrNotFound)
	}
	delete(r.items[tenantID], groupID)
	return nil
}

// MemoryEventHistoriesRepo 内存版排班历史
type MemoryEventHistoriesRepo struct {
	mu      sync.Mutex
	entries []domain.EventHistory
}

func NewMemoryEventHistoriesRepo() *MemoryEventHistoriesRepo {
	return &MemoryEventHistoriesRepo{}
}

var _ EventHistoriesRepository = (*MemoryEventHistoriesRepo)(nil)

func (r *MemoryEventHistoriesRepo) CreateEventHistory(_ context.Context, tenantID string, history *domain.EventHistory) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if history.HistoryID == "" {
		history.HistoryID = uuid.NewString()
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now()
	}
	c := *history
	c.TenantID = tenantID
	r.entries = append(r.entries, c)
	return history.HistoryID, nil
}

// Entries 返回已写入的历史记录（测试用）
func (r *MemoryEventHistoriesRepo) Entries() []domain.EventHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventHistory, len(r.entries))
	copy(out, r.entries)
	return out
}
