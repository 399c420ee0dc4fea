package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/auth"
	"hopperGateway/internal/config"
	"hopperGateway/internal/logger"
	"hopperGateway/internal/powerbi"
	"hopperGateway/internal/recordstore"
	"hopperGateway/internal/resolver"
	"hopperGateway/internal/testutil"
	"hopperGateway/models"
	"hopperGateway/repository"
)

type fakeBI struct {
	dashboards []models.Dashboard
	groups     []models.BIGroup
	err        error
	panics     bool
	calls      int
	deleted    []string
}

func (f *fakeBI) ListGroups(context.Context) ([]models.BIGroup, error) {
	if f.panics {
		panic("boom")
	}
	return f.groups, f.err
}

func (f *fakeBI) ListReports(_ context.Context, groupID string) ([]powerbi.RawReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []powerbi.RawReport{powerbi.RawReport(`{"id":"r1","name":"Revenue","webUrl":"https://bi/r1"}`)}, nil
}

func (f *fakeBI) GetReport(_ context.Context, groupID, reportID string) (powerbi.RawReport, error) {
	if reportID != "r1" {
		return nil, apperrors.NotFound("Report not found")
	}
	return powerbi.RawReport(`{"id":"r1","name":"Revenue"}`), nil
}

func (f *fakeBI) DeleteReport(_ context.Context, groupID, reportID, datasetID string) error {
	f.deleted = append(f.deleted, groupID+"/"+reportID+"/"+datasetID)
	return f.err
}

func (f *fakeBI) ListDashboards(context.Context) ([]models.Dashboard, error) {
	f.calls++
	return f.dashboards, f.err
}

type fakeOrchestrator struct {
	triggered []string
}

func (f *fakeOrchestrator) ListPipelines(context.Context) (*models.PipelineList, error) {
	dags := []models.Pipeline{{ID: "etl_sales", IsActive: true}}
	return &models.PipelineList{Dags: dags, TotalEntries: 1, TotalReturned: 1}, nil
}

func (f *fakeOrchestrator) TriggerRun(_ context.Context, id string) (*models.DagRun, error) {
	f.triggered = append(f.triggered, id)
	return &models.DagRun{Message: "Pipeline refreshed successfully", DagRunID: "manual__x", State: "queued"}, nil
}

type env struct {
	h      http.Handler
	store  *recordstore.SQLite
	bi     *fakeBI
	orch   *fakeOrchestrator
	userID string
	token  string
}

func newEnv(t *testing.T, name string) *env {
	t.Helper()
	store := testutil.NewStore(t, name)
	users := repository.NewUserRepository(store)
	groups := repository.NewGroupRepository(store)
	assoc := repository.NewAssociationRepository(store)
	bi := &fakeBI{dashboards: []models.Dashboard{
		{ID: "d1", Name: "Revenue", GroupID: "w1", GroupName: "Sales"},
		{ID: "d2", Name: "Churn", GroupID: "w1", GroupName: "Sales"},
		{ID: "d3", Name: "Uptime", GroupID: "w2", GroupName: "Ops"},
	}}
	orch := &fakeOrchestrator{}
	log := logger.NewNoopLogger()

	h := NewHandler(Deps{
		Auth:               auth.NewService(store, users, log),
		Users:              users,
		Groups:             groups,
		Resolver:           resolver.New(users, groups, assoc, bi, log, resolver.Options{MaxGoroutines: 2, UniqueAssociations: true}),
		BI:                 bi,
		Orchestrator:       orch,
		Logger:             log,
		CORSAllowedOrigins: config.DefaultCORSAllowedOrigins,
	})
	id := testutil.MustCreateUser(t, store, "alice", "alice@example.com", "s3cret-pass")
	return &env{
		h:      h,
		store:  store,
		bi:     bi,
		orch:   orch,
		userID: id,
		token:  testutil.GenerateJWTHS256(t, testutil.StoreSecret, id, time.Hour),
	}
}

func (e *env) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if e.token != "" {
		r.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, r)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestPublicRoutes(t *testing.T) {
	e := newEnv(t, "httpapi_public")
	e.token = ""

	w := e.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "World", decodeMap(t, w)["Hello"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = e.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hopper_http_requests_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	e := newEnv(t, "httpapi_reqid")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, r)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	e := newEnv(t, "httpapi_bearer")
	good := e.token

	e.token = ""
	w := e.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.NotEmpty(t, decodeMap(t, w)["detail"])

	e.token = "not-a-jwt"
	w = e.do(t, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	e.token = testutil.GenerateJWTHS256(t, testutil.StoreSecret, e.userID, -time.Minute)
	w = e.do(t, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	e.token = testutil.GenerateJWTHS256(t, "other-secret", e.userID, time.Hour)
	w = e.do(t, http.MethodGet, "/users", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	e.token = good
	w = e.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeMap(t, w)["totalItems"])
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t, "httpapi_login")
	e.token = ""

	w := e.do(t, http.MethodPost, "/user/register",
		`{"username":"bob","email":"bob@example.com","password":"pw-123456","confirm_password":"nope","role":"user"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password and confirm password do not match", decodeMap(t, w)["detail"])

	w = e.do(t, http.MethodPost, "/user/register",
		`{"username":"bob","email":"bob@example.com","password":"pw-123456","confirm_password":"pw-123456","role":"user"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decodeMap(t, w)["user_id"])

	w = e.do(t, http.MethodPost, "/user/auth", `{"email":"bob@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/user/auth", `{"email":"bob@example.com","password":"pw-123456"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "bob", res.Record.Username)
	require.NotEmpty(t, res.Token)

	e.token = res.Token
	w = e.do(t, http.MethodPost, "/user/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logged out", decodeMap(t, w)["message"])

	w = e.do(t, http.MethodPost, "/user/auth", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserAdministration(t *testing.T) {
	e := newEnv(t, "httpapi_users")

	w := e.do(t, http.MethodPost, "/user?username=carol&email=carol@example.com&password=pw-abcdef&passwordConfirm=pw-abcdef&role=admin", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := decodeMap(t, w)["id"].(string)

	w = e.do(t, http.MethodPatch, "/user/"+id, `{"username":"caroline"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "caroline", decodeMap(t, w)["username"])

	w = e.do(t, http.MethodGet, "/users?page=1&perPage=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeMap(t, w)
	assert.EqualValues(t, 2, page["totalItems"])
	assert.EqualValues(t, 2, page["totalPages"])

	w = e.do(t, http.MethodGet, "/users?perPage=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodDelete, "/user/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User deleted successfully", decodeMap(t, w)["message"])

	w = e.do(t, http.MethodGet, "/user/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGroupMembership(t *testing.T) {
	e := newEnv(t, "httpapi_groups")

	w := e.do(t, http.MethodPost, "/app/groups?name=Sales&description=team", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	group := decodeMap(t, w)
	gid := group["id"].(string)
	assert.Equal(t, true, group["active"])

	w = e.do(t, http.MethodPut, "/app/groups/"+gid, `{"description":"sales team"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sales team", decodeMap(t, w)["description"])

	w = e.do(t, http.MethodPost, "/app/groups/"+gid+"/users/"+e.userID, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, e.userID, decodeMap(t, w)["user_id"])

	w = e.do(t, http.MethodPost, "/app/groups/"+gid+"/users/"+e.userID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/app/groups/"+gid+"/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	var members []models.GroupMember
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].Username)

	w = e.do(t, http.MethodGet, "/app/users/"+e.userID+"/groups", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeMap(t, w)["total"])

	w = e.do(t, http.MethodDelete, "/app/groups/"+gid+"/users/"+e.userID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User removed from group successfully", decodeMap(t, w)["message"])

	w = e.do(t, http.MethodDelete, "/app/groups/"+gid+"/users/"+e.userID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found in this group", decodeMap(t, w)["detail"])

	w = e.do(t, http.MethodDelete, "/app/groups/"+gid, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Group deleted successfully", decodeMap(t, w)["message"])

	w = e.do(t, http.MethodPost, "/app/groups", `{"description":"no name"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardVisibility(t *testing.T) {
	e := newEnv(t, "httpapi_dashboards")

	w := e.do(t, http.MethodGet, "/app/users/"+e.userID+"/dashboards", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeMap(t, w)["dashboards"])
	assert.Equal(t, 0, e.bi.calls)

	w = e.do(t, http.MethodPost, "/app/groups", `{"name":"Sales"}`)
	require.Equal(t, http.StatusOK, w.Code)
	gid := decodeMap(t, w)["id"].(string)
	for _, path := range []string{
		"/app/groups/" + gid + "/users/" + e.userID,
		"/app/groups/" + gid + "/dashboards/d2",
		"/app/groups/" + gid + "/dashboards/d1",
		"/app/groups/" + gid + "/dashboards/gone",
	} {
		require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, path, "").Code, path)
	}

	w = e.do(t, http.MethodGet, "/app/groups/"+gid+"/dashboards", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "d2", got[0].ID)
	assert.Equal(t, "d1", got[1].ID)

	w = e.do(t, http.MethodGet, "/app/users/"+e.userID+"/dashboards", "")
	require.Equal(t, http.StatusOK, w.Code)
	var visible struct {
		Dashboards []models.Dashboard `json:"dashboards"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &visible))
	require.Len(t, visible.Dashboards, 2)
	assert.Equal(t, "d1", visible.Dashboards[0].ID)
	assert.Equal(t, "d2", visible.Dashboards[1].ID)

	w = e.do(t, http.MethodDelete, "/app/groups/"+gid+"/dashboards/d3", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Dashboard not found in this group", decodeMap(t, w)["detail"])
}

func TestPipelineAssociations(t *testing.T) {
	e := newEnv(t, "httpapi_pipelines")

	w := e.do(t, http.MethodGet, "/app/dashboards/d1/pipeline", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	detail := decodeMap(t, w)["detail"].(map[string]any)
	assert.Equal(t, "d1", detail["dashboard_id"])

	w = e.do(t, http.MethodPost, "/app/pipelines/etl_sales/dashboard/d1", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/app/dashboards/d1/pipeline", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "etl_sales", decodeMap(t, w)["pipeline_id"])

	w = e.do(t, http.MethodGet, "/app/dashboards/pipelines", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeMap(t, w)["totalItems"])

	w = e.do(t, http.MethodGet, "/app/pipelines/etl_sales/dashboard", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeMap(t, w)["totalItems"])

	w = e.do(t, http.MethodDelete, "/app/dashboards/d1/pipeline", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pipeline association removed successfully", decodeMap(t, w)["message"])

	w = e.do(t, http.MethodDelete, "/app/dashboards/d1/pipeline", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/pipelines", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeMap(t, w)["total_entries"])

	w = e.do(t, http.MethodPost, "/app/pipeline/etl_sales/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pipeline refreshed successfully", decodeMap(t, w)["message"])
	assert.Equal(t, []string{"etl_sales"}, e.orch.triggered)
}

func TestBIRoutes(t *testing.T) {
	e := newEnv(t, "httpapi_bi")
	e.bi.groups = []models.BIGroup{{ID: "w1", Name: "Sales", Raw: []byte(`{"id":"w1","name":"Sales","isReadOnly":false}`)}}

	w := e.do(t, http.MethodGet, "/dashboards", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeMap(t, w)["dashboards"], 3)

	w = e.do(t, http.MethodGet, "/groups", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeMap(t, w)["groups"], 1)

	w = e.do(t, http.MethodGet, "/groups/w1/reports", "")
	require.Equal(t, http.StatusOK, w.Code)
	reports := decodeMap(t, w)["reports"].([]any)
	require.Len(t, reports, 1)
	assert.Equal(t, "https://bi/r1", reports[0].(map[string]any)["webUrl"])

	w = e.do(t, http.MethodGet, "/groups/w1/report/r1", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodGet, "/groups/w1/report/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodDelete, "/groups/w1/report/r1/dataset/ds1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Report deleted successfully", decodeMap(t, w)["message"])
	assert.Equal(t, []string{"w1/r1/ds1"}, e.bi.deleted)
}

func TestUpstreamFailuresPassThrough(t *testing.T) {
	e := newEnv(t, "httpapi_upstream")

	e.bi.err = apperrors.Upstream("Failed to retrieve dashboards", http.StatusServiceUnavailable, "maintenance")
	w := e.do(t, http.MethodGet, "/dashboards", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeMap(t, w)
	assert.Equal(t, "Failed to retrieve dashboards", body["error"])
	assert.Equal(t, "maintenance", body["detail"])

	e.bi.err = apperrors.Transport("Failed to retrieve groups", context.DeadlineExceeded)
	w = e.do(t, http.MethodGet, "/groups", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestPanicsBecomeInternalErrors(t *testing.T) {
	e := newEnv(t, "httpapi_panic")
	e.bi.panics = true

	w := e.do(t, http.MethodGet, "/groups", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeMap(t, w)["error"])
}

func TestCORSPreflight(t *testing.T) {
	e := newEnv(t, "httpapi_cors")

	r := httptest.NewRequest(http.MethodOptions, "/app/groups", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, r)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	r = httptest.NewRequest(http.MethodOptions, "/app/groups", nil)
	r.Header.Set("Origin", "https://evil.example")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	e.h.ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	e := newEnv(t, "httpapi_404")
	w := e.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", decodeMap(t, w)["detail"])
}
