// Package recordstore is the contract for the record store that owns users,
// groups and the association join rows, with a remote REST implementation and
// an embedded SQLite one.
package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"hopperGateway/internal/apperrors"
)

// Collections held by the store.
const (
	CollectionUsers              = "auth_users"
	CollectionGroups             = "groups"
	CollectionGroupUsers         = "groups_users"
	CollectionGroupDashboards    = "groups_dashboards"
	CollectionPipelineDashboards = "pipelines_dashboards"
)

const (
	DefaultPerPage = 30
	MaxPerPage     = 500
)

// Store is a collection-oriented document store. Records travel as raw JSON
// objects carrying at least "id", "created" and "updated".
type Store interface {
	List(ctx context.Context, collection string, opts ListOptions) (*ListResult, error)
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Create(ctx context.Context, collection string, body any) (json.RawMessage, error)
	// Update merges body into the record.
	Update(ctx context.Context, collection, id string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, collection, id string) error

	AuthWithPassword(ctx context.Context, identity, password string) (*AuthResult, error)
	AuthRefresh(ctx context.Context, token string) (*AuthResult, error)
}

// ListOptions selects one page of a collection.
type ListOptions struct {
	Filter  Eq
	Page    int
	PerPage int
}

func (o ListOptions) normalized() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = DefaultPerPage
	}
	if o.PerPage > MaxPerPage {
		o.PerPage = MaxPerPage
	}
	return o
}

// ListResult is one page of records.
type ListResult struct {
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
	Items      []json.RawMessage `json:"items"`
}

// AuthResult is a session token with the authenticated auth_users record.
type AuthResult struct {
	Token  string          `json:"token"`
	Record json.RawMessage `json:"record"`
}

var fieldRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Eq is a conjunction of field equalities.
type Eq map[string]string

func (e Eq) keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e Eq) validate() error {
	for k := range e {
		if !fieldRe.MatchString(k) {
			return apperrors.Validation(fmt.Sprintf("invalid filter field %q", k))
		}
	}
	return nil
}

// Expression renders the filter in the store's query syntax, e.g.
// (group_id='g1' && user_id='u1'). Field order is stable.
func (e Eq) Expression() (string, error) {
	if len(e) == 0 {
		return "", nil
	}
	if err := e.validate(); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(e))
	for _, k := range e.keys() {
		parts = append(parts, k+"='"+quote(e[k])+"'")
	}
	return "(" + strings.Join(parts, " && ") + ")", nil
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}

// ListAll walks every page of the filtered collection.
func ListAll(ctx context.Context, s Store, collection string, filter Eq) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for page := 1; ; page++ {
		res, err := s.List(ctx, collection, ListOptions{Filter: filter, Page: page, PerPage: MaxPerPage})
		if err != nil {
			return nil, err
		}
		out = append(out, res.Items...)
		if len(res.Items) == 0 || page >= res.TotalPages {
			return out, nil
		}
	}
}
