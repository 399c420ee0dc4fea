package airflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/config"
)

type fakeAirflow struct {
	dagRunPosts atomic.Int32
	lastRun     map[string]any
}

func (f *fakeAirflow) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in["username"] != "admin" || in["password"] != "pw" {
			http.Error(w, `{"detail":"Invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"access_token":"af-token"}`)
	})
	authed := func(r *http.Request) bool {
		if r.Header.Get("Authorization") == "Bearer af-token" {
			return true
		}
		u, p, ok := r.BasicAuth()
		return ok && u == "admin" && p == "pw"
	}
	mux.HandleFunc("GET /api/v1/dags", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"dags":[
			{"dag_id":"etl_sales","description":"Sales ETL","timetable_description":"At 02:00","is_paused":false,"is_active":true,"file_token":"ft1","owners":["x"]},
			{"dag_id":"etl_ops","description":null,"is_paused":true}
		],"total_entries":7}`)
	})
	mux.HandleFunc("POST /api/v1/dags/{id}/dagRuns", func(w http.ResponseWriter, r *http.Request) {
		f.dagRunPosts.Add(1)
		if !authed(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.PathValue("id") == "missing" {
			http.Error(w, `{"title":"DAG not found"}`, http.StatusNotFound)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastRun))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"dag_run_id":   f.lastRun["dag_run_id"],
			"logical_date": f.lastRun["logical_date"],
			"state":        "queued",
		})
	})
	return mux
}

func newClient(t *testing.T, mode string) (*fakeAirflow, *Client) {
	t.Helper()
	f := &fakeAirflow{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c := New(config.AirflowConfig{URL: srv.URL + "/", Username: "admin", Password: "pw", AuthMode: mode}, srv.Client(), time.Second)
	c.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	return f, c
}

func TestListPipelines(t *testing.T) {
	for _, mode := range []string{config.AirflowAuthToken, config.AirflowAuthBasic} {
		t.Run(mode, func(t *testing.T) {
			_, c := newClient(t, mode)
			got, err := c.ListPipelines(context.Background())
			require.NoError(t, err)
			require.Len(t, got.Dags, 2)
			assert.Equal(t, 7, got.TotalEntries)
			assert.Equal(t, 2, got.TotalReturned)
			assert.Equal(t, "etl_sales", got.Dags[0].ID)
			assert.Equal(t, "At 02:00", got.Dags[0].TimetableDescription)
			assert.Equal(t, "ft1", got.Dags[0].FileToken)
			assert.True(t, got.Dags[1].IsPaused)
			assert.True(t, got.Dags[1].IsActive, "is_active defaults to true")
		})
	}
}

func TestTriggerRun(t *testing.T) {
	f, c := newClient(t, config.AirflowAuthToken)

	run, err := c.TriggerRun(context.Background(), "etl_sales")
	require.NoError(t, err)
	assert.Equal(t, "Pipeline refreshed successfully", run.Message)
	assert.Equal(t, "manual__20250304T050607", run.DagRunID)
	assert.Equal(t, "2025-03-04T05:06:07Z", run.LogicalDate)
	assert.Equal(t, "queued", run.State)
	assert.Equal(t, map[string]any{}, f.lastRun["conf"])

	_, err = c.TriggerRun(context.Background(), "missing")
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, e.HTTPStatus())
	assert.Contains(t, e.Detail, "DAG not found")
}

func TestTriggerRun_TokenEndpointUnreachable(t *testing.T) {
	f := &fakeAirflow{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	// token requests go to a closed port; the dag run endpoint is live
	c := New(config.AirflowConfig{URL: "http://127.0.0.1:1", Username: "admin", Password: "pw"}, srv.Client(), 500*time.Millisecond)
	_, err := c.TriggerRun(context.Background(), "etl_sales")
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindUpstream, e.Kind)
	assert.Equal(t, http.StatusBadGateway, e.HTTPStatus())
	assert.Zero(t, f.dagRunPosts.Load(), "no dag run may be created")
}

func TestTriggerRun_RejectedCredentialsSendNoRun(t *testing.T) {
	f := &fakeAirflow{}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	c := New(config.AirflowConfig{URL: srv.URL, Username: "admin", Password: "nope"}, srv.Client(), time.Second)
	_, err := c.TriggerRun(context.Background(), "etl_sales")
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, e.HTTPStatus())
	assert.Zero(t, f.dagRunPosts.Load())

	unconfigured := New(config.AirflowConfig{}, nil, time.Second)
	_, err = unconfigured.ListPipelines(context.Background())
	assert.True(t, apperrors.IsUpstream(err))
}
