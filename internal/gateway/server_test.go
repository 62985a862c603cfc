package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dupctl/dupctl/internal/config"
	"github.com/dupctl/dupctl/internal/jobserver"
	"github.com/dupctl/dupctl/internal/store"
	"github.com/dupctl/dupctl/models"
)

func newTestGateway(t *testing.T) (*Gateway, *jobserver.Server) {
	t.Helper()
	db, err := store.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	jobStore := store.NewJobStore(db)
	retryStore := store.NewRetryStore(db)
	srv := jobserver.New(jobStore, retryStore, jobserver.Options{MaxConcurrent: 2})
	srv.RegisterHandler(jobserver.HandlerFunc{
		Type: "noop",
		Fn: func(ctx context.Context, job *models.Job) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		},
	})

	gw := New(config.GatewayConfig{Port: 0, RateLimitPerSecond: 1000, RateLimitBurst: 1000}, db, srv, Deps{JobStore: jobStore})
	return gw, srv
}

func TestHandleCreateAndGetJob(t *testing.T) {
	gw, _ := newTestGateway(t)
	mux := gw.buildHandler()

	body := `{"id":"job-1","jobType":"noop","pipelineId":"p1"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created models.Job
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&created))
	require.Equal(t, "job-1", created.ID)
	require.Equal(t, models.JobQueued, created.Status)

	rr2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1", nil)
	mux.ServeHTTP(rr2, req2)
	require.Equal(t, http.StatusOK, rr2.Code)
}

func TestHandleCreateJobRejectsInvalidID(t *testing.T) {
	gw, _ := newTestGateway(t)
	mux := gw.buildHandler()

	body := `{"id":"../escape","jobType":"noop"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlePauseUnknownJobReturnsConflict(t *testing.T) {
	gw, _ := newTestGateway(t)
	mux := gw.buildHandler()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/does-not-exist/pause", nil)
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)

	var result models.OpResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	require.False(t, result.Success)
}

func TestHandleListJobsPaginates(t *testing.T) {
	gw, srv := newTestGateway(t)
	mux := gw.buildHandler()

	for i := 0; i < 5; i++ {
		_, err := srv.CreateJob(context.Background(), "job-"+string(rune('a'+i)), "noop", "p1", nil)
		require.NoError(t, err)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs?limit=2&offset=1", nil)
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Items []*models.Job `json:"items"`
		Total int           `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Equal(t, 5, resp.Total)
	require.Len(t, resp.Items, 2)
}

func TestHandleActivityFeedRecordsJobEvents(t *testing.T) {
	gw, srv := newTestGateway(t)
	_, err := srv.CreateJob(context.Background(), "job-activity", "noop", "p1", nil)
	require.NoError(t, err)

	mux := gw.buildHandler()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/activity", nil)
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Items []ActivityEntry `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(t, resp.Items)
}

func TestRateLimiterRejectsBurstButExemptsDashboardReads(t *testing.T) {
	limiter := newRateLimiter(0.001, 1)
	called := 0
	h := rateLimitMiddleware(limiter, func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
	req.RemoteAddr = "10.0.0.1:1111"

	rr1 := httptest.NewRecorder()
	h(rr1, req)
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	h(rr2, req)
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, 1, called)

	dashboardReq := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	dashboardReq.RemoteAddr = "10.0.0.1:1111"
	rr3 := httptest.NewRecorder()
	h(rr3, dashboardReq)
	require.Equal(t, http.StatusOK, rr3.Code)
}
