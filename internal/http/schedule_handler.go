package httpapi

import (
	"net/http"
	"strings"
	"time"

	"wisefido-schedule/internal/domain"
	"wisefido-schedule/internal/service"

	"go.uber.org/zap"
)

const (
	eventsBasePath = "/schedule/api/v1/events"
	seriesBasePath = "/schedule/api/v1/series"
)

// EventHandler 排班事件与系列 Handler
type EventHandler struct {
	seriesService service.SeriesService
	logger        *zap.Logger
}

// NewEventHandler 创建排班 Handler
func NewEventHandler(seriesService service.SeriesService, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		seriesService: seriesService,
		logger:        logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	switch {
	case path == eventsBasePath && r.Method == http.MethodGet:
		h.ListEvents(w, r)
	case path == eventsBasePath && r.Method == http.MethodPost:
		h.CreateEvent(w, r)
	case path == eventsBasePath+"/conflicts" && r.Method == http.MethodPost:
		h.CheckConflict(w, r)

	case strings.HasPrefix(path, eventsBasePath+"/") && strings.HasSuffix(path, "/series"):
		eventID := strings.TrimSuffix(strings.TrimPrefix(path, eventsBasePath+"/"), "/series")
		if eventID == "" || strings.Contains(eventID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodPost:
			h.CreateSeries(w, r, eventID)
		case http.MethodPut:
			h.UpdateSeries(w, r, eventID)
		case http.MethodDelete:
			h.DeleteSeries(w, r, eventID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case strings.HasPrefix(path, seriesBasePath+"/") && r.Method == http.MethodGet:
		groupID := strings.TrimPrefix(path, seriesBasePath+"/")
		if groupID == "" || strings.Contains(groupID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.GetSeries(w, r, groupID)

	case strings.HasPrefix(path, eventsBasePath+"/") && r.Method == http.MethodGet:
		eventID := strings.TrimPrefix(path, eventsBasePath+"/")
		if eventID == "" || strings.Contains(eventID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.GetEvent(w, r, eventID)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ============================================
// 请求结构
// ============================================

type createEventRequest struct {
	EventType        string    `json:"event_type" validate:"required,oneof=intervention internal_hour absence unavailability"`
	StartDate        time.Time `json:"start_date" validate:"required"`
	EndDate          time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	AuxiliaryID      string    `json:"auxiliary_id" validate:"omitempty,uuid"`
	CustomerID       string    `json:"customer_id" validate:"omitempty,uuid"`
	Misc             string    `json:"misc" validate:"max=2000"`
	Address          string    `json:"address" validate:"max=500"`
	InternalHourName string    `json:"internal_hour_name" validate:"required_if=EventType internal_hour,max=100"`
	Frequency        string    `json:"frequency" validate:"omitempty,oneof=never every_day every_week_day every_week every_two_weeks"`
}

type createSeriesRequest struct {
	Frequency string `json:"frequency" validate:"required,oneof=every_day every_week_day every_week every_two_weeks"`
}

type updateSeriesRequest struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	// 省略表示不修改；空字符串表示取消分配
	AuxiliaryID *string `json:"auxiliary_id"`
}

type conflictCheckRequest struct {
	AuxiliaryID    string    `json:"auxiliary_id" validate:"required,uuid"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	ExcludeEventID string    `json:"exclude_event_id" validate:"omitempty,uuid"`
}

// ============================================
// 事件
// ============================================

// ListEvents 查询事件列表
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}
	startTime, err := parseTimeParam(r, "start_time")
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	endTime, err := parseTimeParam(r, "end_time")
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	q := r.URL.Query()
	events, err := h.seriesService.ListEvents(r.Context(), service.ListEventsRequest{
		TenantID:    tenantID,
		AuxiliaryID: q.Get("auxiliary_id"),
		CustomerID:  q.Get("customer_id"),
		GroupID:     q.Get("group_id"),
		StartTime:   startTime,
		EndTime:     endTime,
	})
	if err != nil {
		h.logger.Error("ListEvents failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, eventToJSON(e))
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": out, "total": len(out)}))
}

// GetEvent 获取单个事件
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request, eventID string) {
	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}
	event, err := h.seriesService.GetEvent(r.Context(), tenantID, eventID)
	if err != nil {
		h.writeServiceError(w, "GetEvent", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, Ok(eventToJSON(event)))
}

// CreateEvent 创建事件（可选 frequency 同时创建系列）
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}
	var req createEventRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	resp, err := h.seriesService.CreateEvent(r.Context(), service.CreateEventRequest{
		TenantID: tenantID,
		Event: &domain.Event{
			EventType:        domain.EventType(req.EventType),
			StartDate:        req.StartDate,
			EndDate:          req.EndDate,
			AuxiliaryID:      req.AuxiliaryID,
			CustomerID:       req.CustomerID,
			Misc:             req.Misc,
			Address:          req.Address,
			InternalHourName: req.InternalHourName,
		},
		Frequency: domain.Frequency(req.Frequency),
	})
	if err != nil {
		var partial any
		if resp != nil {
			partial = createEventToJSON(resp)
		}
		h.writeServiceError(w, "CreateEvent", err, partial)
		return
	}
	writeJSON(w, http.StatusOK, Ok(createEventToJSON(resp)))
}

// CheckConflict 检查护理员在给定时间窗口内是否已有事件
func (h *EventHandler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}
	var req conflictCheckRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	candidate := &domain.Event{
		AuxiliaryID: req.AuxiliaryID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	conflict, err := h.seriesService.HasConflict(r.Context(), tenantID, candidate, req.ExcludeEventID)
	if err != nil {
		h.writeServiceError(w, "CheckConflict", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"has_conflict": conflict}))
}

// ============================================
// 系列
// ============================================

// GetSeries 获取系列模板及有效事件
func (h *EventHandler) GetSeries(w http.ResponseWriter, r *http.Request, groupID string) {
	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}
	resp, err := h.seriesService.GetSeries(r.Context(), tenantID, groupID)
	if err != nil {
		h.writeServiceError(w, "GetSeries", err, nil)
		return
	}
	events := make([]map[string]any, 0, len(resp.Events))
	for _, e := range resp.Events {
		events = append(events, eventToJSON(e))
	}
	tpl := resp.Repetition
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"group_id":     tpl.GroupID,
		"frequency":    string(tpl.Frequency),
		"event_type":   string(tpl.EventType),
		"auxiliary_id": tpl.AuxiliaryID,
		"start_date":   tpl.StartDate.Format(time.RFC3339),
		"end_date":     tpl.EndDate.Format(time.RFC3339),
		"events":       events,
	}))
}

// CreateSeries 以事件为种子创建系列
func (h *EventHandler) CreateSeries(w http.ResponseWriter, r *http.Request, eventID string) {
	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}
	var req createSeriesRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	resp, err := h.seriesService.CreateSeries(r.Context(), service.CreateSeriesRequest{
		TenantID:    tenantID,
		SeedEventID: eventID,
		Frequency:   domain.Frequency(req.Frequency),
	})
	if err != nil {
		var partial any
		if resp != nil {
			partial = createSeriesToJSON(resp)
		}
		h.writeServiceError(w, "CreateSeries", err, partial)
		return
	}
	writeJSON(w, http.StatusOK, Ok(createSeriesToJSON(resp)))
}

// UpdateSeries 修改锚点及之后的系列事件
func (h *EventHandler) UpdateSeries(w http.ResponseWriter, r *http.Request, eventID string) {
	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}
	var req updateSeriesRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	if req.AuxiliaryID != nil && *req.AuxiliaryID != "" {
		if err := validate.Var(*req.AuxiliaryID, "uuid"); err != nil {
			writeJSON(w, http.StatusOK, Fail("validation failed: auxiliary_id: uuid"))
			return
		}
	}

	resp, err := h.seriesService.UpdateSeries(r.Context(), service.UpdateSeriesRequest{
		TenantID:      tenantID,
		AnchorEventID: eventID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		AuxiliaryID:   req.AuxiliaryID,
	})
	if err != nil {
		h.writeServiceError(w, "UpdateSeries", err, resp)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// DeleteSeries 删除锚点及之后未计费的系列事件
func (h *EventHandler) DeleteSeries(w http.ResponseWriter, r *http.Request, eventID string) {
	tenantID, ok := tenantIDFromReq(w, r)
	if !ok {
		return
	}
	resp, err := h.seriesService.DeleteSeries(r.Context(), service.DeleteSeriesRequest{
		TenantID:      tenantID,
		AnchorEventID: eventID,
		ActorID:       r.Header.Get("X-User-Id"),
	})
	if err != nil {
		var partial any
		if resp != nil {
			partial = deleteSeriesToJSON(resp)
		}
		h.writeServiceError(w, "DeleteSeries", err, partial)
		return
	}
	writeJSON(w, http.StatusOK, Ok(deleteSeriesToJSON(resp)))
}

// writeServiceError 部分失败返回 warning 并带上失败的 event_id，其余错误统一 Fail
func (h *EventHandler) writeServiceError(w http.ResponseWriter, op string, err error, partial any) {
	if p, ok := domain.IsPartialBatchFailure(err); ok {
		h.logger.Warn(op+" partially failed",
			zap.Strings("failed_event_ids", p.EventIDs()),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Partial(err.Error(), map[string]any{
			"failed_event_ids": p.EventIDs(),
			"completed":        partial,
		}))
		return
	}
	h.logger.Error(op+" failed", zap.Error(err))
	writeJSON(w, http.StatusOK, Fail(err.Error()))
}

// ============================================
// 响应转换
// ============================================

func eventToJSON(e *domain.Event) map[string]any {
	out := map[string]any{
		"event_id":             e.EventID,
		"tenant_id":            e.TenantID,
		"event_type":           string(e.EventType),
		"start_date":           e.StartDate.Format(time.RFC3339),
		"end_date":             e.EndDate.Format(time.RFC3339),
		"is_billed":            e.IsBilled,
		"repetition_frequency": string(e.Repetition.Frequency),
	}
	if e.AuxiliaryID != "" {
		out["auxiliary_id"] = e.AuxiliaryID
	}
	if e.CustomerID != "" {
		out["customer_id"] = e.CustomerID
	}
	if e.Repetition.GroupID != "" {
		out["repetition_group_id"] = e.Repetition.GroupID
	}
	if e.Misc != "" {
		out["misc"] = e.Misc
	}
	if e.Address != "" {
		out["address"] = e.Address
	}
	if e.InternalHourName != "" {
		out["internal_hour_name"] = e.InternalHourName
	}
	return out
}

func createEventToJSON(resp *service.CreateEventResponse) map[string]any {
	out := map[string]any{}
	if resp.Event != nil {
		out["event"] = eventToJSON(resp.Event)
	}
	if resp.Series != nil {
		out["series"] = createSeriesToJSON(resp.Series)
	}
	return out
}

func createSeriesToJSON(resp *service.CreateSeriesResponse) map[string]any {
	out := map[string]any{
		"reparented": resp.Reparented,
	}
	if resp.PreviousGroupID != "" {
		out["previous_group_id"] = resp.PreviousGroupID
	}
	if resp.Repetition != nil {
		out["group_id"] = resp.Repetition.GroupID
		out["frequency"] = string(resp.Repetition.Frequency)
	}
	if resp.Seed != nil {
		out["seed"] = eventToJSON(resp.Seed)
	}
	if g := resp.Generated; g != nil {
		created := make([]string, 0, len(g.Created))
		for _, e := range g.Created {
			created = append(created, e.EventID)
		}
		suppressed := make([]string, 0, len(g.SuppressedStarts))
		for _, t := range g.SuppressedStarts {
			suppressed = append(suppressed, t.Format(time.RFC3339))
		}
		out["created_event_ids"] = created
		out["detached_event_ids"] = g.DetachedEventIDs
		out["suppressed_starts"] = suppressed
	}
	return out
}

func deleteSeriesToJSON(resp *service.DeleteSeriesResponse) map[string]any {
	return map[string]any{
		"anchor":               eventToJSON(resp.Anchor),
		"skipped":              resp.Skipped,
		"deleted_event_ids":    resp.DeletedEventIDs,
		"preserved_billed_ids": resp.PreservedBilledIDs,
	}
}
