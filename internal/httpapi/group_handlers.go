package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"hopperGateway/internal/apperrors"
	"hopperGateway/models"
)

func (a *API) listGroups(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := pageParams(r.URL.Query())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.groups.List(r.Context(), page, perPage)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) getGroup(w http.ResponseWriter, r *http.Request) {
	g, err := a.groups.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// createGroup accepts a JSON body or query parameters; active defaults to true.
func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	in := models.GroupInput{Active: true}
	if len(b) > 0 {
		if err := unmarshalBody(b, &in); err != nil {
			a.writeError(w, r, err)
			return
		}
	} else {
		q := r.URL.Query()
		in.Name = q.Get("name")
		in.Description = q.Get("description")
		if s := q.Get("active"); s != "" {
			active, err := strconv.ParseBool(s)
			if err != nil {
				a.writeError(w, r, apperrors.Validation("active must be a boolean"))
				return
			}
			in.Active = active
		}
	}
	g, err := a.groups.Create(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) updateGroup(w http.ResponseWriter, r *http.Request) {
	var in models.GroupUpdate
	if err := decodeJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	g, err := a.groups.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) deleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := a.groups.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message("Group deleted successfully"))
}

func (a *API) groupUsers(w http.ResponseWriter, r *http.Request) {
	members, err := a.resolver.GroupUsers(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (a *API) groupDashboards(w http.ResponseWriter, r *http.Request) {
	all, err := a.bi.ListDashboards(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.resolver.GroupDashboards(r.Context(), mux.Vars(r)["id"], all)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) addGroupUser(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	a.addAssociation(w, r, models.KindGroupUser, v["id"], v["userId"])
}

func (a *API) removeGroupUser(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	a.removeAssociation(w, r, models.KindGroupUser, v["id"], v["userId"], "User removed from group successfully")
}

func (a *API) addGroupDashboard(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	a.addAssociation(w, r, models.KindGroupDashboard, v["id"], v["dashboardId"])
}

func (a *API) removeGroupDashboard(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	a.removeAssociation(w, r, models.KindGroupDashboard, v["id"], v["dashboardId"], "Dashboard removed from group successfully")
}

// addAssociation answers 201 for a new row and 200 when the row already existed.
func (a *API) addAssociation(w http.ResponseWriter, r *http.Request, kind models.AssociationKind, left, right string) {
	row, created, err := a.resolver.AddAssociation(r.Context(), kind, left, right)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, row)
}

func (a *API) removeAssociation(w http.ResponseWriter, r *http.Request, kind models.AssociationKind, left, right, msg string) {
	if _, err := a.resolver.RemoveAssociation(r.Context(), kind, left, right); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message(msg))
}
