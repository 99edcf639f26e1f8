package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wisefido-schedule/internal/domain"
	"wisefido-schedule/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleHistory() *domain.EventHistory {
	anchor := intervention(auxW1, day0, 1)
	anchor.EventID = "evt-1"
	anchor.TenantID = testTenant
	anchor.Repetition = domain.Repetition{Frequency: domain.FrequencyEveryWeek, GroupID: "g-1"}
	return domain.NewSeriesDeletionHistory(anchor, "user-42", day0)
}

func TestHTTPHistorySink_Record(t *testing.T) {
	var received domain.EventHistory
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/audit/api/v1/event-histories", r.URL.Path)
		assert.Equal(t, testTenant, r.Header.Get("X-Tenant-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":2000,"message":"ok","data":{"history_id":"h-1"}}`))
	}))
	defer server.Close()

	sink := NewHTTPHistorySink(server.URL, zap.NewNop())
	err := sink.Record(context.Background(), sampleHistory())
	require.NoError(t, err)

	assert.Equal(t, domain.HistoryActionSeriesDeletion, received.Action)
	assert.Equal(t, "evt-1", received.EventID)
	assert.Equal(t, "g-1", received.GroupID)
	assert.Equal(t, "user-42", received.ActorID)
	assert.True(t, received.StartDate.Equal(day0))
}

func TestHTTPHistorySink_RejectedByAuditService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":-1,"message":"audit store offline"}`))
	}))
	defer server.Close()

	sink := NewHTTPHistorySink(server.URL, zap.NewNop())
	err := sink.Record(context.Background(), sampleHistory())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit store offline")
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPHistorySink_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	sink := NewHTTPHistorySink(url, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := sink.Record(ctx, sampleHistory())
	assert.ErrorContains(t, err, "failed to call audit service")
}

func TestRepositoryHistorySink_Record(t *testing.T) {
	repo := repository.NewMemoryEventHistoriesRepo()
	sink := NewRepositoryHistorySink(repo)

	require.NoError(t, sink.Record(context.Background(), sampleHistory()))
	entries := repo.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, testTenant, entries[0].TenantID)
	assert.NotEmpty(t, entries[0].HistoryID)
}

func TestLogHistorySink_Record(t *testing.T) {
	sink := NewLogHistorySink(zap.NewNop())
	assert.NoError(t, sink.Record(context.Background(), sampleHistory()))
}
