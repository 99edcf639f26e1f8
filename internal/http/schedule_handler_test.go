package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wisefido-schedule/internal/repository"
	"wisefido-schedule/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testTenantID = "00000000-0000-0000-0000-000000000999"
	testAuxW1    = "11111111-1111-1111-1111-111111111111"
)

type apiResult struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// setupTestRouter 使用内存 Repository 构建完整路由
func setupTestRouter(t *testing.T) (*Router, *repository.MemoryEventHistoriesRepo) {
	t.Helper()
	histories := repository.NewMemoryEventHistoriesRepo()
	svc := service.NewSeriesService(
		repository.NewMemoryEventsRepo(),
		repository.NewMemoryRepetitionsRepo(),
		service.NewRepositoryHistorySink(histories),
		nil, nil, zap.NewNop(),
	)
	router := NewRouter(zap.NewNop())
	router.RegisterHealthRoutes()
	router.RegisterScheduleRoutes(NewEventHandler(svc, zap.NewNop()))
	return router, histories
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) apiResult {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", testTenantID)
	req.Header.Set("X-User-Id", "22222222-2222-2222-2222-222222222222")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	var res apiResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), "body: %s", w.Body.String())
	return res
}

func decodeResult[T any](t *testing.T, res apiResult) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Result, &out))
	return out
}

type seriesJSON struct {
	GroupID          string   `json:"group_id"`
	Frequency        string   `json:"frequency"`
	Reparented       bool     `json:"reparented"`
	CreatedEventIDs  []string `json:"created_event_ids"`
	DetachedEventIDs []string `json:"detached_event_ids"`
	SuppressedStarts []string `json:"suppressed_starts"`
}

type eventJSON struct {
	EventID             string `json:"event_id"`
	EventType           string `json:"event_type"`
	StartDate           string `json:"start_date"`
	AuxiliaryID         string `json:"auxiliary_id"`
	RepetitionFrequency string `json:"repetition_frequency"`
	RepetitionGroupID   string `json:"repetition_group_id"`
}

type createEventJSON struct {
	Event  eventJSON   `json:"event"`
	Series *seriesJSON `json:"series"`
}

var seedStart = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func createWeeklySeries(t *testing.T, router http.Handler) createEventJSON {
	t.Helper()
	res := doRequest(t, router, http.MethodPost, eventsBasePath, map[string]any{
		"event_type":   "intervention",
		"start_date":   seedStart,
		"end_date":     seedStart.Add(2 * time.Hour),
		"auxiliary_id": testAuxW1,
		"frequency":    "every_week",
	})
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	return decodeResult[createEventJSON](t, res)
}

func TestHealth(t *testing.T) {
	router, _ := setupTestRouter(t)
	res := doRequest(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, ResultSuccess, res.Code)
}

func TestEventHandler_CreateEventWithSeries(t *testing.T) {
	router, _ := setupTestRouter(t)
	created := createWeeklySeries(t, router)

	require.NotNil(t, created.Series)
	assert.Equal(t, "every_week", created.Series.Frequency)
	assert.Len(t, created.Series.CreatedEventIDs, 12)
	assert.Empty(t, created.Series.DetachedEventIDs)
	assert.Equal(t, created.Series.GroupID, created.Event.RepetitionGroupID)
	assert.Equal(t, "every_week", created.Event.RepetitionFrequency)

	res := doRequest(t, router, http.MethodGet, eventsBasePath+"/"+created.Series.CreatedEventIDs[0], nil)
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	first := decodeResult[eventJSON](t, res)
	assert.Equal(t, seedStart.AddDate(0, 0, 7).Format(time.RFC3339), first.StartDate)
	assert.Equal(t, testAuxW1, first.AuxiliaryID)

	res = doRequest(t, router, http.MethodGet, seriesBasePath+"/"+created.Series.GroupID, nil)
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	series := decodeResult[struct {
		GroupID string      `json:"group_id"`
		Events  []eventJSON `json:"events"`
	}](t, res)
	assert.Len(t, series.Events, 13)
}

func TestEventHandler_CreateEventConflict(t *testing.T) {
	router, _ := setupTestRouter(t)
	createWeeklySeries(t, router)

	res := doRequest(t, router, http.MethodPost, eventsBasePath, map[string]any{
		"event_type":   "intervention",
		"start_date":   seedStart.Add(time.Hour),
		"end_date":     seedStart.Add(3 * time.Hour),
		"auxiliary_id": testAuxW1,
	})
	assert.Equal(t, ResultError, res.Code)
	assert.Contains(t, res.Message, "conflicting event")
}

func TestEventHandler_Validation(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    map[string]any
		message string
	}{
		{
			name:   "end before start",
			method: http.MethodPost,
			path:   eventsBasePath,
			body: map[string]any{
				"event_type": "intervention",
				"start_date": seedStart,
				"end_date":   seedStart.Add(-time.Hour),
			},
			message: "EndDate: gtfield",
		},
		{
			name:   "unknown event type",
			method: http.MethodPost,
			path:   eventsBasePath,
			body: map[string]any{
				"event_type": "holiday",
				"start_date": seedStart,
				"end_date":   seedStart.Add(time.Hour),
			},
			message: "EventType: oneof",
		},
		{
			name:   "internal hour without name",
			method: http.MethodPost,
			path:   eventsBasePath,
			body: map[string]any{
				"event_type": "internal_hour",
				"start_date": seedStart,
				"end_date":   seedStart.Add(time.Hour),
			},
			message: "InternalHourName: required_if",
		},
		{
			name:    "series with never",
			method:  http.MethodPost,
			path:    eventsBasePath + "/some-event/series",
			body:    map[string]any{"frequency": "never"},
			message: "Frequency: oneof",
		},
		{
			name:   "conflict check without auxiliary",
			method: http.MethodPost,
			path:   eventsBasePath + "/conflicts",
			body: map[string]any{
				"start_date": seedStart,
				"end_date":   seedStart.Add(time.Hour),
			},
			message: "AuxiliaryID: required",
		},
		{
			name:   "update with invalid auxiliary",
			method: http.MethodPut,
			path:   eventsBasePath + "/some-event/series",
			body: map[string]any{
				"start_date":   seedStart,
				"end_date":     seedStart.Add(time.Hour),
				"auxiliary_id": "not-a-uuid",
			},
			message: "auxiliary_id: uuid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := doRequest(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, ResultError, res.Code)
			assert.Contains(t, res.Message, tt.message)
		})
	}
}

func TestEventHandler_MissingTenant(t *testing.T) {
	router, _ := setupTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, eventsBasePath, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var res apiResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, ResultError, res.Code)
	assert.Equal(t, "tenant_id is required", res.Message)
}

func TestEventHandler_ListEventsAndConflicts(t *testing.T) {
	router, _ := setupTestRouter(t)
	createWeeklySeries(t, router)

	from := seedStart.AddDate(0, 0, 10).Format(time.RFC3339)
	to := seedStart.AddDate(0, 0, 30).Format(time.RFC3339)
	res := doRequest(t, router, http.MethodGet,
		eventsBasePath+"?auxiliary_id="+testAuxW1+"&start_time="+from+"&end_time="+to, nil)
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	list := decodeResult[struct {
		Items []eventJSON `json:"items"`
		Total int         `json:"total"`
	}](t, res)
	assert.Equal(t, 3, list.Total)

	res = doRequest(t, router, http.MethodGet, eventsBasePath+"?start_time=yesterday", nil)
	assert.Equal(t, ResultError, res.Code)

	res = doRequest(t, router, http.MethodPost, eventsBasePath+"/conflicts", map[string]any{
		"auxiliary_id": testAuxW1,
		"start_date":   seedStart.AddDate(0, 0, 7).Add(time.Hour),
		"end_date":     seedStart.AddDate(0, 0, 7).Add(4 * time.Hour),
	})
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	assert.JSONEq(t, `{"has_conflict":true}`, string(res.Result))

	res = doRequest(t, router, http.MethodPost, eventsBasePath+"/conflicts", map[string]any{
		"auxiliary_id": testAuxW1,
		"start_date":   seedStart.AddDate(0, 0, 7).Add(2 * time.Hour),
		"end_date":     seedStart.AddDate(0, 0, 7).Add(4 * time.Hour),
	})
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	assert.JSONEq(t, `{"has_conflict":false}`, string(res.Result))
}

func TestEventHandler_UpdateSeries(t *testing.T) {
	router, _ := setupTestRouter(t)
	created := createWeeklySeries(t, router)

	res := doRequest(t, router, http.MethodPut, eventsBasePath+"/"+created.Event.EventID+"/series", map[string]any{
		"start_date": seedStart.Add(time.Hour),
		"end_date":   seedStart.Add(3 * time.Hour),
	})
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	updated := decodeResult[service.UpdateSeriesResponse](t, res)
	assert.Equal(t, created.Series.GroupID, updated.GroupID)
	assert.Len(t, updated.UpdatedEventIDs, 13)

	res = doRequest(t, router, http.MethodGet, eventsBasePath+"/"+created.Series.CreatedEventIDs[5], nil)
	e := decodeResult[eventJSON](t, res)
	assert.Equal(t, seedStart.AddDate(0, 0, 42).Add(time.Hour).Format(time.RFC3339), e.StartDate)
}

func TestEventHandler_CreateSeriesFromExistingEvent(t *testing.T) {
	router, _ := setupTestRouter(t)
	res := doRequest(t, router, http.MethodPost, eventsBasePath, map[string]any{
		"event_type":         "internal_hour",
		"start_date":         seedStart,
		"end_date":           seedStart.Add(time.Hour),
		"auxiliary_id":       testAuxW1,
		"internal_hour_name": "Team meeting",
	})
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	single := decodeResult[createEventJSON](t, res)
	assert.Nil(t, single.Series)
	assert.Equal(t, "never", single.Event.RepetitionFrequency)

	res = doRequest(t, router, http.MethodPost, eventsBasePath+"/"+single.Event.EventID+"/series",
		map[string]any{"frequency": "every_two_weeks"})
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	series := decodeResult[seriesJSON](t, res)
	assert.False(t, series.Reparented)
	assert.Len(t, series.CreatedEventIDs, 6)

	res = doRequest(t, router, http.MethodPost, eventsBasePath+"/missing/series",
		map[string]any{"frequency": "every_week"})
	assert.Equal(t, ResultError, res.Code)
	assert.Contains(t, res.Message, "not found")
}

func TestEventHandler_DeleteSeries(t *testing.T) {
	router, histories := setupTestRouter(t)
	created := createWeeklySeries(t, router)
	anchorID := created.Series.CreatedEventIDs[1] // Day14

	res := doRequest(t, router, http.MethodDelete, eventsBasePath+"/"+anchorID+"/series", nil)
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	deleted := decodeResult[struct {
		Anchor          eventJSON `json:"anchor"`
		Skipped         bool      `json:"skipped"`
		DeletedEventIDs []string  `json:"deleted_event_ids"`
	}](t, res)
	assert.False(t, deleted.Skipped)
	assert.Equal(t, anchorID, deleted.Anchor.EventID)
	assert.Len(t, deleted.DeletedEventIDs, 11)

	entries := histories.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", entries[0].ActorID)

	res = doRequest(t, router, http.MethodGet, eventsBasePath+"?group_id="+created.Series.GroupID, nil)
	list := decodeResult[struct {
		Total int `json:"total"`
	}](t, res)
	assert.Equal(t, 2, list.Total)

	res = doRequest(t, router, http.MethodGet, seriesBasePath+"/"+created.Series.GroupID, nil)
	assert.Equal(t, ResultError, res.Code)
}

func TestEventHandler_NotFoundRoutes(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPatch, eventsBasePath+"/abc/series", nil)
	req.Header.Set("X-Tenant-Id", testTenantID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	req = httptest.NewRequest(http.MethodGet, eventsBasePath+"/a/b", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
