package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"hopperGateway/models"
)

// rowList mirrors the record store's list envelope for unpaged join rows.
type rowList struct {
	Items      []models.PipelineDashboard `json:"items"`
	TotalItems int                        `json:"totalItems"`
}

func (a *API) listPipelines(w http.ResponseWriter, r *http.Request) {
	res, err := a.airflow.ListPipelines(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) pipelineAssociations(w http.ResponseWriter, r *http.Request) {
	rows, err := a.resolver.PipelineAssociations(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowList{Items: rows, TotalItems: len(rows)})
}

func (a *API) dashboardPipeline(w http.ResponseWriter, r *http.Request) {
	row, err := a.resolver.DashboardPipeline(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (a *API) pipelineDashboards(w http.ResponseWriter, r *http.Request) {
	rows, err := a.resolver.PipelineDashboards(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowList{Items: rows, TotalItems: len(rows)})
}

func (a *API) addPipelineDashboard(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	a.addAssociation(w, r, models.KindPipelineDashboard, v["id"], v["dashboardId"])
}

// removeDashboardPipeline is keyed by the dashboard alone.
func (a *API) removeDashboardPipeline(w http.ResponseWriter, r *http.Request) {
	a.removeAssociation(w, r, models.KindPipelineDashboard, "", mux.Vars(r)["id"], "Pipeline association removed successfully")
}

func (a *API) refreshPipeline(w http.ResponseWriter, r *http.Request) {
	run, err := a.airflow.TriggerRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
