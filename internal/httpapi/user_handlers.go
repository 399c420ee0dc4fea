package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/auth"
	"hopperGateway/models"
)

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var in models.Credentials
	if err := decodeJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		a.writeError(w, r, apperrors.Validation("email and password are required"))
		return
	}
	res, err := a.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var in models.Registration
	if err := decodeJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.auth.Register(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// logout is stateless: the token simply stops being sent.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.logger.InfoWithContext(r.Context(), "user logged out", zap.String("user_id", p.User.ID))
	writeJSON(w, http.StatusOK, message("Logged out"))
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	page, perPage, err := pageParams(r.URL.Query())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.users.List(r.Context(), page, perPage)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// createUser accepts a JSON body or, failing that, query parameters.
// Accounts created here are marked verified.
func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var in models.UserInput
	if len(b) > 0 {
		if err := unmarshalBody(b, &in); err != nil {
			a.writeError(w, r, err)
			return
		}
	} else {
		q := r.URL.Query()
		in = models.UserInput{
			Username:        q.Get("username"),
			Email:           q.Get("email"),
			Password:        q.Get("password"),
			PasswordConfirm: q.Get("passwordConfirm"),
			Role:            models.Role(q.Get("role")),
		}
	}
	u, err := a.users.Create(r.Context(), in, true)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	var in models.UserUpdate
	if err := decodeJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	u, err := a.users.Update(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.users.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message("User deleted successfully"))
}

func (a *API) userGroups(w http.ResponseWriter, r *http.Request) {
	res, err := a.resolver.UserGroups(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) userDashboards(w http.ResponseWriter, r *http.Request) {
	res, err := a.resolver.UserVisibleDashboards(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dashboards": res})
}

// pageParams reads optional page and perPage; zero means the store default.
func pageParams(q url.Values) (page, perPage int, err error) {
	parse := func(name string) (int, error) {
		s := q.Get(name)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return 0, apperrors.Validation(name + " must be a positive integer")
		}
		return n, nil
	}
	if page, err = parse("page"); err != nil {
		return 0, 0, err
	}
	if perPage, err = parse("perPage"); err != nil {
		return 0, 0, err
	}
	return page, perPage, nil
}
