package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-schedule/internal/domain"
)

// PostgresRepetitionsRepository 重复模板Repository实现
type PostgresRepetitionsRepository struct {
	db *sql.DB
}

// NewPostgresRepetitionsRepository 创建重复模板Repository
func NewPostgresRepetitionsRepository(db *sql.DB) *PostgresRepetitionsRepository {
	return &PostgresRepetitionsRepository{db: db}
}

var _ RepetitionsRepository = (*PostgresRepetitionsRepository)(nil)

// GetRepetition 获取模板
func (r *PostgresRepetitionsRepository) GetRepetition(ctx context.Context, tenantID, groupID string) (*domain.RepetitionTemplate, error) {
	if tenantID == "" || groupID == "" {
		return nil, fmt.Errorf("repetition %w", domain.ErrNotFound)
	}

	query := `
		SELECT
			group_id::text,
			tenant_id::text,
			frequency,
			event_type,
			auxiliary_id::text,
			customer_id::text,
			start_date,
			end_date,
			misc,
			address,
			internal_hour_name,
			created_at,
			updated_at
		FROM repetitions
		WHERE tenant_id = $1 AND group_id = $2
	`

	var tpl domain.RepetitionTemplate
	var frequency, eventType string
	var auxiliaryID, customerID, misc, address, internalHourName sql.NullString

	err := r.db.QueryRowContext(ctx, query, tenantID, groupID).Scan(
		&tpl.GroupID,
		&tpl.TenantID,
		&frequency,
		&eventType,
		&auxiliaryID,
		&customerID,
		&tpl.StartDate,
		&tpl.EndDate,
		&misc,
		&address,
		&internalHourName,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if err != nil {
		return nil, mapNoRows(err, "repetition")
	}

	tpl.Frequency = domain.Frequency(frequency)
	tpl.EventType = domain.EventType(eventType)
	tpl.AuxiliaryID = auxiliaryID.String
	tpl.CustomerID = customerID.String
	tpl.Misc = misc.String
	tpl.Address = address.String
	tpl.InternalHourName = internalHourName.String
	return &tpl, nil
}

// CreateRepetition 创建模板
func (r *PostgresRepetitionsRepository) CreateRepetition(ctx context.Context, tenantID string, tpl *domain.RepetitionTemplate) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if tpl.GroupID == "" {
		return fmt.Errorf("group_id is required")
	}

	query := `
		INSERT INTO repetitions (
			group_id,
			tenant_id,
			frequency,
			event_type,
			auxiliary_id,
			customer_id,
			start_date,
			end_date,
			misc,
			address,
			internal_hour_name
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		tpl.GroupID,
		tenantID,
		string(tpl.Frequency),
		string(tpl.EventType),
		nullableString(tpl.AuxiliaryID),
		nullableString(tpl.CustomerID),
		tpl.StartDate,
		tpl.EndDate,
		nullableString(tpl.Misc),
		nullableString(tpl.Address),
		nullableString(tpl.InternalHourName),
	)
	if err != nil {
		return fmt.Errorf("failed to create repetition: %w", err)
	}
	return nil
}

// UpdateRepetitionSeed 更新模板种子
func (r *PostgresRepetitionsRepository) UpdateRepetitionSeed(ctx context.Context, tenantID, groupID string, start, end time.Time, auxiliaryID string) error {
	query := `
		UPDATE repetitions
		SET start_date = $3,
		    end_date = $4,
		    auxiliary_id = $5,
		    updated_at = NOW()
		WHERE tenant_id = $1 AND group_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, tenantID, groupID, start, end, nullableString(auxiliaryID))
	if err != nil {
		return fmt.Errorf("failed to update repetition: %w", err)
	}
	return requireAffected(result, "repetition")
}

// DeleteRepetition 删除模板
func (r *PostgresRepetitionsRepository) DeleteRepetition(ctx context.Context, tenantID, groupID string) error {
	query := `
		DELETE FROM repetitions
		WHERE tenant_id = $1 AND group_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, tenantID, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete repetition: %w", err)
	}
	return requireAffected(result, "repetition")
}
