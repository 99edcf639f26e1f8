package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-schedule/internal/domain"
	"wisefido-schedule/internal/repository"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ============================================
// 数据库（event_histories 表）
// ============================================

// RepositoryHistorySink 写入 event_histories 表
type RepositoryHistorySink struct {
	repo repository.EventHistoriesRepository
}

func NewRepositoryHistorySink(repo repository.EventHistoriesRepository) *RepositoryHistorySink {
	return &RepositoryHistorySink{repo: repo}
}

var _ HistorySink = (*RepositoryHistorySink)(nil)

func (h *RepositoryHistorySink) Record(ctx context.Context, history *domain.EventHistory) error {
	if _, err := h.repo.CreateEventHistory(ctx, history.TenantID, history); err != nil {
		return err
	}
	return nil
}

// ============================================
// 外部审计服务（HTTP）
// ============================================

// auditResponse 审计服务响应
type auditResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// HTTPHistorySink 将历史记录推送到独立的审计服务
type HTTPHistorySink struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPHistorySink 创建审计服务客户端
func NewHTTPHistorySink(baseURL string, logger *zap.Logger) *HTTPHistorySink {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPHistorySink{httpClient: client, logger: logger}
}

var _ HistorySink = (*HTTPHistorySink)(nil)

func (h *HTTPHistorySink) Record(ctx context.Context, history *domain.EventHistory) error {
	var response auditResponse
	resp, err := h.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Tenant-Id", history.TenantID).
		SetBody(history).
		SetResult(&response).
		SetError(&response).
		Post("/audit/api/v1/event-histories")
	if err != nil {
		return fmt.Errorf("failed to call audit service: %w", err)
	}
	if resp.IsError() {
		h.logger.Error("Audit service rejected event history",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("msg", response.Message),
			zap.String("event_id", history.EventID),
		)
		return fmt.Errorf("audit service error: %s (status: %d)", response.Message, resp.StatusCode())
	}
	return nil
}

// ============================================
// 仅日志（开发环境）
// ============================================

// LogHistorySink 只写结构化日志
type LogHistorySink struct {
	logger *zap.Logger
}

func NewLogHistorySink(logger *zap.Logger) *LogHistorySink {
	return &LogHistorySink{logger: logger}
}

var _ HistorySink = (*LogHistorySink)(nil)

func (h *LogHistorySink) Record(_ context.Context, history *domain.EventHistory) error {
	h.logger.Info("Event history",
		zap.String("action", string(history.Action)),
		zap.String("tenant_id", history.TenantID),
		zap.String("event_id", history.EventID),
		zap.String("group_id", history.GroupID),
		zap.String("event_type", string(history.EventType)),
		zap.String("actor_id", history.ActorID),
		zap.Time("start_date", history.StartDate),
	)
	return nil
}
