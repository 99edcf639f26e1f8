package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"wisefido-schedule/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresEventsRepository 排班事件Repository实现
type PostgresEventsRepository struct {
	db *sql.DB
}

// NewPostgresEventsRepository 创建排班事件Repository
func NewPostgresEventsRepository(db *sql.DB) *PostgresEventsRepository {
	return &PostgresEventsRepository{db: db}
}

// 确保实现了接口
var _ EventsRepository = (*PostgresEventsRepository)(nil)

const eventColumns = `
	event_id::text,
	tenant_id::text,
	event_type,
	start_date,
	end_date,
	auxiliary_id::text,
	customer_id::text,
	is_billed,
	repetition_frequency,
	repetition_group_id::text,
	misc,
	address,
	internal_hour_name,
	created_at,
	updated_at`

// 每行插入的参数个数（与 insertEventColumns 保持一致）
const insertEventArgs = 13

const insertEventColumns = `
	event_id, tenant_id, event_type, start_date, end_date,
	auxiliary_id, customer_id, is_billed,
	repetition_frequency, repetition_group_id,
	misc, address, internal_hour_name`

func scanEvent(row rowScanner) (*domain.Event, error) {
	var e domain.Event
	var eventType, frequency string
	var auxiliaryID, customerID, groupID, misc, address, internalHourName sql.NullString

	if err := row.Scan(
		&e.EventID,
		&e.TenantID,
		&eventType,
		&e.StartDate,
		&e.EndDate,
		&auxiliaryID,
		&customerID,
		&e.IsBilled,
		&frequency,
		&groupID,
		&misc,
		&address,
		&internalHourName,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.EventType = domain.EventType(eventType)
	e.Repetition.Frequency = domain.Frequency(frequency)
	e.AuxiliaryID = auxiliaryID.String
	e.CustomerID = customerID.String
	e.Repetition.GroupID = groupID.String
	e.Misc = misc.String
	e.Address = address.String
	e.InternalHourName = internalHourName.String
	return &e, nil
}

func eventInsertValues(tenantID string, e *domain.Event) []any {
	frequency := e.Repetition.Frequency
	if frequency == "" {
		frequency = domain.FrequencyNever
	}
	return []any{
		e.EventID,
		tenantID,
		string(e.EventType),
		e.StartDate,
		e.EndDate,
		nullableString(e.AuxiliaryID),
		nullableString(e.CustomerID),
		e.IsBilled,
		string(frequency),
		nullableString(e.Repetition.GroupID),
		nullableString(e.Misc),
		nullableString(e.Address),
		nullableString(e.InternalHourName),
	}
}

func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// GetEvent 获取单个事件
func (r *PostgresEventsRepository) GetEvent(ctx context.Context, tenantID, eventID string) (*domain.Event, error) {
	if tenantID == "" || eventID == "" {
		return nil, fmt.Errorf("event %w", domain.ErrNotFound)
	}

	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE tenant_id = $1 AND event_id = $2`

	e, err := scanEvent(r.db.QueryRowContext(ctx, query, tenantID, eventID))
	if err != nil {
		return nil, mapNoRows(err, "event")
	}
	return e, nil
}

// ListEvents 按条件查询事件
func (r *PostgresEventsRepository) ListEvents(ctx context.Context, tenantID string, filters *EventFilters) ([]*domain.Event, error) {
	if tenantID == "" {
		return []*domain.Event{}, nil
	}

	where := []string{"tenant_id = $1"}
	args := []any{tenantID}
	argN := 2

	if filters != nil {
		if filters.AuxiliaryID != "" {
			where = append(where, fmt.Sprintf("auxiliary_id = $%d", argN))
			args = append(args, filters.AuxiliaryID)
			argN++
		}
		if filters.CustomerID != "" {
			where = append(where, fmt.Sprintf("customer_id = $%d", argN))
			args = append(args, filters.CustomerID)
			argN++
		}
		if filters.EventType != "" {
			where = append(where, fmt.Sprintf("event_type = $%d", argN))
			args = append(args, string(filters.EventType))
			argN++
		}
		if filters.GroupID != "" {
			where = append(where, fmt.Sprintf("repetition_group_id = $%d", argN))
			args = append(args, filters.GroupID)
			argN++
		}
		if filters.StartTime != nil {
			where = append(where, fmt.Sprintf("end_date > $%d", argN))
			args = append(args, *filters.StartTime)
			argN++
		}
		if filters.EndTime != nil {
			where = append(where, fmt.Sprintf("start_date < $%d", argN))
			args = append(args, *filters.EndTime)
			argN++
		}
	}

	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY start_date ASC`

	return r.queryEvents(ctx, query, args...)
}

func (r *PostgresEventsRepository) queryEvents(ctx context.Context, query string, args ...any) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// CreateEvent 创建事件
func (r *PostgresEventsRepository) CreateEvent(ctx context.Context, tenantID string, event *domain.Event) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("tenant_id is required")
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	query := `INSERT INTO events (` + insertEventColumns + `)
		VALUES ` + placeholders(1, insertEventArgs)

	if _, err := r.db.ExecContext(ctx, query, eventInsertValues(tenantID, event)...); err != nil {
		return "", fmt.Errorf("failed to create event: %w", mapWriteError(err))
	}
	return event.EventID, nil
}

// CreateEvents 批量插入（单条语句，要么全部成功要么全部失败）
func (r *PostgresEventsRepository) CreateEvents(ctx context.Context, tenantID string, events []*domain.Event) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if len(events) == 0 {
		return nil
	}

	values := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*insertEventArgs)
	for i, e := range events {
		if e.EventID == "" {
			e.EventID = uuid.NewString()
		}
		values = append(values, placeholders(i*insertEventArgs+1, insertEventArgs))
		args = append(args, eventInsertValues(tenantID, e)...)
	}

	query := `INSERT INTO events (` + insertEventColumns + `)
		VALUES ` + strings.Join(values, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk insert events: %w", mapWriteError(err))
	}
	return nil
}

// CountOverlapping 统计同一护理员与 [start, end) 相交的事件数
func (r *PostgresEventsRepository) CountOverlapping(ctx context.Context, tenantID, auxiliaryID string, start, end time.Time, excludeEventID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM events
		WHERE tenant_id = $1
		  AND auxiliary_id = $2
		  AND start_date < $3
		  AND end_date > $4
		  AND ($5::text = '' OR event_id::text <> $5::text)
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, tenantID, auxiliaryID, end, start, excludeEventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count overlapping events: %w", err)
	}
	return count, nil
}

// ListSeriesEventsFrom 查询系列中 start_date >= from 的事件
func (r *PostgresEventsRepository) ListSeriesEventsFrom(ctx context.Context, tenantID, groupID string, from time.Time, liveOnly bool) ([]*domain.Event, error) {
	if tenantID == "" || groupID == "" {
		return []*domain.Event{}, nil
	}

	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE tenant_id = $1
		  AND repetition_group_id = $2
		  AND start_date >= $3`
	if liveOnly {
		query += ` AND repetition_frequency <> 'never'`
	}
	query += ` ORDER BY start_date ASC`

	return r.queryEvents(ctx, query, tenantID, groupID, from)
}

// UpdateSchedule 字段级更新时间窗口与护理员（已计费事件不会被命中）
func (r *PostgresEventsRepository) UpdateSchedule(ctx context.Context, tenantID, eventID string, start, end time.Time, auxiliaryID string) error {
	query := `
		UPDATE events
		SET start_date = $3,
		    end_date = $4,
		    auxiliary_id = $5,
		    updated_at = NOW()
		WHERE tenant_id = $1 AND event_id = $2 AND is_billed = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, tenantID, eventID, start, end, nullableString(auxiliaryID))
	if err != nil {
		return fmt.Errorf("failed to update event schedule: %w", mapWriteError(err))
	}
	return requireAffected(result, "unbilled event")
}

// DetachEvent 更新时间窗口并清空护理员与系列信息
func (r *PostgresEventsRepository) DetachEvent(ctx context.Context, tenantID, eventID string, start, end time.Time) error {
	query := `
		UPDATE events
		SET start_date = $3,
		    end_date = $4,
		    auxiliary_id = NULL,
		    repetition_frequency = 'never',
		    repetition_group_id = NULL,
		    updated_at = NOW()
		WHERE tenant_id = $1 AND event_id = $2 AND is_billed = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, tenantID, eventID, start, end)
	if err != nil {
		return fmt.Errorf("failed to detach event: %w", err)
	}
	return requireAffected(result, "unbilled event")
}

// SetRepetition 修改事件所属系列
func (r *PostgresEventsRepository) SetRepetition(ctx context.Context, tenantID, eventID string, repetition domain.Repetition) error {
	query := `
		UPDATE events
		SET repetition_frequency = $3,
		    repetition_group_id = $4,
		    updated_at = NOW()
		WHERE tenant_id = $1 AND event_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, tenantID, eventID,
		string(repetition.Frequency), nullableString(repetition.GroupID))
	if err != nil {
		return fmt.Errorf("failed to set event repetition: %w", err)
	}
	return requireAffected(result, "event")
}

// DeleteUnbilledEvents 删除指定事件中未计费的部分
func (r *PostgresEventsRepository) DeleteUnbilledEvents(ctx context.Context, tenantID string, eventIDs []string) ([]string, error) {
	if len(eventIDs) == 0 {
		return []string{}, nil
	}

	query := `
		DELETE FROM events
		WHERE tenant_id = $1
		  AND event_id = ANY($2::uuid[])
		  AND is_billed = FALSE
		RETURNING event_id::text
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(eventIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to delete events: %w", err)
	}
	defer rows.Close()

	deleted := make([]string, 0, len(eventIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted event id: %w", err)
		}
		deleted = append(deleted, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted events: %w", err)
	}
	return deleted, nil
}
