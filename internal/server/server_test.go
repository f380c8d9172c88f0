package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Jgorzitza/hotdash/internal/config"
	"github.com/Jgorzitza/hotdash/internal/di"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	cfg := &config.Config{
		DataDir: t.TempDir(),
		Port:    8001,
		DevMode: true,
		Analytics: config.AnalyticsConfig{
			BaseURL: "http://127.0.0.1:1",
			Timeout: time.Second,
		},
		Reranking: config.RerankingConfig{
			Schedule:             "0 0 3 * * *",
			ProvenROIThreshold:   1.0,
			MaxAttempts:          1,
			MinDaysSinceExecuted: 7,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	container, jobs, err := di.Wire(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)

	s := New(Config{
		Log:       zerolog.Nop(),
		Config:    cfg,
		Container: container,
		Jobs:      jobs,
		BaseCtx:   ctx,
	})
	s.systemHandlers.systemStats = func() (float64, float64) { return 12.5, 40 }

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		container.Close()
	})
	return s, ts
}

const actionBody = `{
	"type": "seo_fix",
	"target": "/products/blue-widget",
	"draft_description": "Rewrite meta description",
	"evidence": {"request_ids": ["req-1"]},
	"expected_impact": {"metric": "revenue", "delta": 1200, "unit": "USD"},
	"confidence": 0.8,
	"ease": "simple",
	"risk_tier": "none",
	"rollback_plan": "Restore previous description",
	"freshness_label": "24h",
	"agent": "seo-specialist"
}`

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestSystemStatus(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/actions", "application/json", strings.NewReader(actionBody))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/system/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status SystemStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 1, status.ActionCounts["pending"])
	assert.Equal(t, 1, status.QueueSize)
	assert.False(t, status.RerankRunning)
	assert.Nil(t, status.LastRerank)
	assert.False(t, status.SnapshotArchival)
	assert.Equal(t, 12.5, status.CPUPercent)
	assert.Equal(t, 40.0, status.RAMPercent)
}

func TestDatabaseStats(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/system/database/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats DatabaseStatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, "growth", stats.Name)
	assert.True(t, strings.HasSuffix(stats.Path, "growth.db"))
}

func TestRoutesMounted(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/api/queue", "", http.StatusOK},
		{http.MethodGet, "/api/queue/snapshot", "", http.StatusNotFound},
		{http.MethodGet, "/api/actions/missing", "", http.StatusNotFound},
		{http.MethodGet, "/api/jobs/rerank", "", http.StatusOK},
		{http.MethodGet, "/api/jobs/rerank/runs", "", http.StatusOK},
		{http.MethodPost, "/api/attribution", `{"touchpoints":[],"model":"linear"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestQueueStream_ReceivesActionEvents(t *testing.T) {
	_, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/queue/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var msg map[string]interface{}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "connected", msg["type"])

	resp, err := http.Post(ts.URL+"/api/actions", "application/json", strings.NewReader(actionBody))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "ACTION_SUBMITTED", msg["type"])
	assert.NotNil(t, msg["data"])
}

func TestQueueStream_RejectsUnknownFilter(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/queue/stream?types=NOT_A_TYPE")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseTypeFilter(t *testing.T) {
	types := parseTypeFilter("QUEUE_RERANKED, bogus ,RERANK_FAILED")
	require.Len(t, types, 2)
	assert.Equal(t, "QUEUE_RERANKED", string(types[0]))
	assert.Equal(t, "RERANK_FAILED", string(types[1]))
}
