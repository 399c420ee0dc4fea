package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (a *API) listDashboards(w http.ResponseWriter, r *http.Request) {
	res, err := a.bi.ListDashboards(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dashboards": res})
}

func (a *API) listBIGroups(w http.ResponseWriter, r *http.Request) {
	res, err := a.bi.ListGroups(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": res})
}

func (a *API) listReports(w http.ResponseWriter, r *http.Request) {
	res, err := a.bi.ListReports(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": res})
}

func (a *API) getReport(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	res, err := a.bi.GetReport(r.Context(), v["id"], v["reportId"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) deleteReport(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := a.bi.DeleteReport(r.Context(), v["id"], v["reportId"], v["datasetId"]); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message("Report deleted successfully"))
}
