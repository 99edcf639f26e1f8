package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-schedule/internal/domain"

	"github.com/google/uuid"
)

// PostgresEventHistoriesRepository 排班历史Repository实现
type PostgresEventHistoriesRepository struct {
	db *sql.DB
}

// NewPostgresEventHistoriesRepository 创建排班历史Repository
func NewPostgresEventHistoriesRepository(db *sql.DB) *PostgresEventHistoriesRepository {
	return &PostgresEventHistoriesRepository{db: db}
}

var _ EventHistoriesRepository = (*PostgresEventHistoriesRepository)(nil)

// CreateEventHistory 写入历史记录
func (r *PostgresEventHistoriesRepository) CreateEventHistory(ctx context.Context, tenantID string, history *domain.EventHistory) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("tenant_id is required")
	}
	if history.HistoryID == "" {
		history.HistoryID = uuid.NewString()
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO event_histories (
			history_id,
			tenant_id,
			action,
			event_id,
			group_id,
			event_type,
			auxiliary_id,
			customer_id,
			start_date,
			end_date,
			actor_id,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		history.HistoryID,
		tenantID,
		string(history.Action),
		history.EventID,
		nullableString(history.GroupID),
		string(history.EventType),
		nullableString(history.AuxiliaryID),
		nullableString(history.CustomerID),
		history.StartDate,
		history.EndDate,
		nullableString(history.ActorID),
		history.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create event history: %w", err)
	}
	return history.HistoryID, nil
}
