// Package httpapi exposes the gateway's REST surface.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/auth"
	"hopperGateway/internal/logger"
	"hopperGateway/internal/powerbi"
	"hopperGateway/internal/resolver"
	"hopperGateway/models"
	"hopperGateway/repository"
)

// BIPlatform is the subset of the BI client used by the handlers.
type BIPlatform interface {
	ListGroups(ctx context.Context) ([]models.BIGroup, error)
	ListReports(ctx context.Context, groupID string) ([]powerbi.RawReport, error)
	GetReport(ctx context.Context, groupID, reportID string) (powerbi.RawReport, error)
	DeleteReport(ctx context.Context, groupID, reportID, datasetID string) error
	ListDashboards(ctx context.Context) ([]models.Dashboard, error)
}

// Orchestrator is the subset of the pipeline orchestrator client used by the handlers.
type Orchestrator interface {
	ListPipelines(ctx context.Context) (*models.PipelineList, error)
	TriggerRun(ctx context.Context, pipelineID string) (*models.DagRun, error)
}

// Deps are the collaborators the API dispatches to.
type Deps struct {
	Auth         *auth.Service
	Users        repository.UserRepositoryI
	Groups       repository.GroupRepositoryI
	Resolver     *resolver.Resolver
	BI           BIPlatform
	Orchestrator Orchestrator
	Logger       logger.Logger

	CORSAllowedOrigins []string
}

// API holds the handlers. It carries no per-request state.
type API struct {
	auth     *auth.Service
	users    repository.UserRepositoryI
	groups   repository.GroupRepositoryI
	resolver *resolver.Resolver
	bi       BIPlatform
	airflow  Orchestrator
	logger   logger.Logger
}

// NewHandler builds the router with every route and wraps it in CORS.
func NewHandler(d Deps) http.Handler {
	if d.Auth == nil || d.Users == nil || d.Groups == nil || d.Resolver == nil || d.BI == nil || d.Orchestrator == nil {
		panic("httpapi: missing dependency")
	}
	log := d.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}
	a := &API{
		auth:     d.Auth,
		users:    d.Users,
		groups:   d.Groups,
		resolver: d.Resolver,
		bi:       d.BI,
		airflow:  d.Orchestrator,
		logger:   log,
	}

	r := mux.NewRouter()
	r.Use(requestID)
	r.Use(a.logging)
	r.Use(a.recoverer)
	r.Use(instrument)
	r.NotFoundHandler = requestID(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		a.writeError(w, req, apperrors.NotFound("Not Found"))
	}))
	r.MethodNotAllowedHandler = requestID(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
	}))

	// public
	r.HandleFunc("/", a.hello).Methods(http.MethodGet)
	r.HandleFunc("/healthz", a.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/user/auth", a.login).Methods(http.MethodPost)
	r.HandleFunc("/user/register", a.register).Methods(http.MethodPost)

	p := r.NewRoute().Subrouter()
	p.Use(auth.NewHTTPMiddleware(a.auth, a.writeError))

	p.HandleFunc("/user/logout", a.logout).Methods(http.MethodPost)
	p.HandleFunc("/users", a.listUsers).Methods(http.MethodGet)
	p.HandleFunc("/user", a.createUser).Methods(http.MethodPost)
	p.HandleFunc("/user/{id}", a.getUser).Methods(http.MethodGet)
	p.HandleFunc("/user/{id}", a.updateUser).Methods(http.MethodPatch)
	p.HandleFunc("/user/{id}", a.deleteUser).Methods(http.MethodDelete)

	app := p.PathPrefix("/app").Subrouter()
	app.HandleFunc("/groups", a.listGroups).Methods(http.MethodGet)
	app.HandleFunc("/groups", a.createGroup).Methods(http.MethodPost)
	app.HandleFunc("/groups/{id}", a.getGroup).Methods(http.MethodGet)
	app.HandleFunc("/groups/{id}", a.updateGroup).Methods(http.MethodPatch, http.MethodPut)
	app.HandleFunc("/groups/{id}", a.deleteGroup).Methods(http.MethodDelete)
	app.HandleFunc("/groups/{id}/users", a.groupUsers).Methods(http.MethodGet)
	app.HandleFunc("/groups/{id}/dashboards", a.groupDashboards).Methods(http.MethodGet)
	app.HandleFunc("/groups/{id}/users/{userId}", a.addGroupUser).Methods(http.MethodPost)
	app.HandleFunc("/groups/{id}/users/{userId}", a.removeGroupUser).Methods(http.MethodDelete)
	app.HandleFunc("/groups/{id}/dashboards/{dashboardId}", a.addGroupDashboard).Methods(http.MethodPost)
	app.HandleFunc("/groups/{id}/dashboards/{dashboardId}", a.removeGroupDashboard).Methods(http.MethodDelete)
	app.HandleFunc("/users/{id}/groups", a.userGroups).Methods(http.MethodGet)
	app.HandleFunc("/users/{id}/dashboards", a.userDashboards).Methods(http.MethodGet)

	// the literal route must be registered before the {id} one
	app.HandleFunc("/dashboards/pipelines", a.pipelineAssociations).Methods(http.MethodGet)
	app.HandleFunc("/dashboards/{id}/pipeline", a.dashboardPipeline).Methods(http.MethodGet)
	app.HandleFunc("/dashboards/{id}/pipeline", a.removeDashboardPipeline).Methods(http.MethodDelete)
	app.HandleFunc("/pipelines/{id}/dashboard", a.pipelineDashboards).Methods(http.MethodGet)
	app.HandleFunc("/pipelines/{id}/dashboard/{dashboardId}", a.addPipelineDashboard).Methods(http.MethodPost)
	app.HandleFunc("/pipeline/{id}/refresh", a.refreshPipeline).Methods(http.MethodPost)

	p.HandleFunc("/pipelines", a.listPipelines).Methods(http.MethodGet)
	p.HandleFunc("/dashboards", a.listDashboards).Methods(http.MethodGet)
	p.HandleFunc("/groups", a.listBIGroups).Methods(http.MethodGet)
	p.HandleFunc("/groups/{id}/reports", a.listReports).Methods(http.MethodGet)
	p.HandleFunc("/groups/{id}/report/{reportId}", a.getReport).Methods(http.MethodGet)
	p.HandleFunc("/groups/{id}/report/{reportId}/dataset/{datasetId}", a.deleteReport).Methods(http.MethodDelete)

	origins := d.CORSAllowedOrigins
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost,
			http.MethodHead, http.MethodPatch, http.MethodDelete, http.MethodPut,
		},
	}).Handler(r)
}

func (a *API) hello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"Hello": "World"})
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func message(msg string) map[string]string {
	return map[string]string{"message": msg}
}
