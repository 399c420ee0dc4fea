package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/httpclient"
)

// Remote talks to a PocketBase-style REST API:
//
//	GET    /api/collections/{c}/records?filter=&page=&perPage=
//	GET    /api/collections/{c}/records/{id}
//	POST   /api/collections/{c}/records
//	PATCH  /api/collections/{c}/records/{id}
//	DELETE /api/collections/{c}/records/{id}
//	POST   /api/collections/auth_users/auth-with-password
//	POST   /api/collections/auth_users/auth-refresh
type Remote struct {
	baseURL string
	client  *httpclient.Client
}

var _ Store = (*Remote)(nil)

// NewRemote returns a Store backed by the API at baseURL. Every call is
// bounded by timeout.
func NewRemote(baseURL string, hc *http.Client, timeout time.Duration) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.New("recordstore", hc, timeout),
	}
}

func (r *Remote) recordsURL(collection string) string {
	return r.baseURL + "/api/collections/" + url.PathEscape(collection) + "/records"
}

func (r *Remote) recordURL(collection, id string) string {
	return r.recordsURL(collection) + "/" + url.PathEscape(id)
}

// check converts a non-2xx answer: 404 is a missing record, anything else
// is passed through with the upstream body.
func check(resp *httpclient.Response, what string) error {
	switch {
	case resp.OK():
		return nil
	case resp.Status == http.StatusNotFound:
		return apperrors.NotFound(what + ": not found")
	default:
		return resp.Err(what)
	}
}

func (r *Remote) List(ctx context.Context, collection string, opts ListOptions) (*ListResult, error) {
	opts = opts.normalized()
	q := url.Values{}
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("perPage", strconv.Itoa(opts.PerPage))
	expr, err := opts.Filter.Expression()
	if err != nil {
		return nil, err
	}
	if expr != "" {
		q.Set("filter", expr)
	}

	resp, err := r.client.Do(ctx, "list", http.MethodGet, r.recordsURL(collection)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if err := check(resp, "list "+collection); err != nil {
		return nil, err
	}
	var out ListResult
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []json.RawMessage{}
	}
	return &out, nil
}

func (r *Remote) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	resp, err := r.client.Do(ctx, "get", http.MethodGet, r.recordURL(collection, id), nil)
	if err != nil {
		return nil, err
	}
	if err := check(resp, fmt.Sprintf("get %s/%s", collection, id)); err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

func (r *Remote) Create(ctx context.Context, collection string, body any) (json.RawMessage, error) {
	resp, err := r.client.Do(ctx, "create", http.MethodPost, r.recordsURL(collection), body)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.Err("create " + collection)
	}
	return json.RawMessage(resp.Body), nil
}

func (r *Remote) Update(ctx context.Context, collection, id string, body any) (json.RawMessage, error) {
	resp, err := r.client.Do(ctx, "update", http.MethodPatch, r.recordURL(collection, id), body)
	if err != nil {
		return nil, err
	}
	if err := check(resp, fmt.Sprintf("update %s/%s", collection, id)); err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body), nil
}

func (r *Remote) Delete(ctx context.Context, collection, id string) error {
	resp, err := r.client.Do(ctx, "delete", http.MethodDelete, r.recordURL(collection, id), nil)
	if err != nil {
		return err
	}
	return check(resp, fmt.Sprintf("delete %s/%s", collection, id))
}

func (r *Remote) AuthWithPassword(ctx context.Context, identity, password string) (*AuthResult, error) {
	body := map[string]string{"identity": identity, "password": password}
	resp, err := r.client.Do(ctx, "auth_with_password", http.MethodPost,
		r.baseURL+"/api/collections/"+CollectionUsers+"/auth-with-password", body)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, apperrors.Unauthenticated("invalid credentials", resp.Err("auth-with-password"))
	}
	return decodeAuth(resp)
}

func (r *Remote) AuthRefresh(ctx context.Context, token string) (*AuthResult, error) {
	resp, err := r.client.Do(ctx, "auth_refresh", http.MethodPost,
		r.baseURL+"/api/collections/"+CollectionUsers+"/auth-refresh", nil, httpclient.WithBearer(token))
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, apperrors.Unauthenticated("invalid or expired token", resp.Err("auth-refresh"))
	}
	return decodeAuth(resp)
}

func decodeAuth(resp *httpclient.Response) (*AuthResult, error) {
	var out AuthResult
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Token == "" || len(out.Record) == 0 {
		return nil, apperrors.Unauthenticated("invalid credentials", nil)
	}
	return &out, nil
}
