// Package powerbi is a client for the BI platform REST API, authenticated
// as a service principal through the OAuth2 client credentials flow.
package powerbi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/config"
	"hopperGateway/internal/httpclient"
	"hopperGateway/models"
)

const Scope = "https://analysis.windows.net/powerbi/api/.default"

// TokenURL returns the token endpoint of an Azure AD tenant.
func TokenURL(tenantID string) string {
	return "https://login.microsoftonline.com/" + url.PathEscape(tenantID) + "/oauth2/v2.0/token"
}

type Client struct {
	apiURL string
	tokens oauth2.TokenSource // nil when no credentials are configured
	http   *httpclient.Client
}

// New builds a client from cfg. Every upstream call, token requests
// included, is bounded by timeout. The access token is reused until it
// expires.
func New(cfg config.PowerBIConfig, hc *http.Client, timeout time.Duration) *Client {
	c := &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		http:   httpclient.New("powerbi", hc, timeout),
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return c
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = TokenURL(cfg.TenantID)
	}
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{Scope},
	}
	// token exchanges run outside any request context; the client timeout bounds them
	tokenHTTP := *c.http.HTTPClient()
	tokenHTTP.Timeout = c.http.Timeout()
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &tokenHTTP)
	c.tokens = oauth2.ReuseTokenSource(nil, creds.TokenSource(ctx))
	return c
}

// token returns the cached access token, exchanging credentials when it is
// missing or expired.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", apperrors.Upstream("BI platform credentials are not configured", 0, "")
	}
	if err := ctx.Err(); err != nil {
		return "", apperrors.Transport("acquire BI token", err)
	}
	tok, err := c.tokens.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", apperrors.Upstream("acquire BI token", re.Response.StatusCode, string(re.Body))
		}
		return "", apperrors.Transport("acquire BI token", err)
	}
	return tok.AccessToken, nil
}

func (c *Client) call(ctx context.Context, op, method, path string) (*httpclient.Response, error) {
	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, op, method, c.apiURL+path, nil, httpclient.WithBearer(tok))
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, apperrors.NotFound(op + ": not found")
	}
	if !resp.OK() {
		return nil, resp.Err(op)
	}
	return resp, nil
}

func groupPath(groupID string) string {
	return "/groups/" + url.PathEscape(groupID)
}

// values returns the raw elements of the "value" array of an OData list.
func values(body []byte) []gjson.Result {
	return gjson.GetBytes(body, "value").Array()
}

// ListGroups returns the workspaces visible to the service principal.
func (c *Client) ListGroups(ctx context.Context) ([]models.BIGroup, error) {
	resp, err := c.call(ctx, "list_groups", http.MethodGet, "/groups")
	if err != nil {
		return nil, err
	}
	out := []models.BIGroup{}
	for _, g := range values(resp.Body) {
		out = append(out, models.BIGroup{
			ID:   g.Get("id").String(),
			Name: g.Get("name").String(),
			Raw:  []byte(g.Raw),
		})
	}
	return out, nil
}

// ListReports returns the reports of a workspace as the upstream sent them.
func (c *Client) ListReports(ctx context.Context, groupID string) ([]RawReport, error) {
	resp, err := c.call(ctx, "list_reports", http.MethodGet, groupPath(groupID)+"/reports")
	if err != nil {
		return nil, err
	}
	out := []RawReport{}
	for _, r := range values(resp.Body) {
		out = append(out, RawReport(r.Raw))
	}
	return out, nil
}

// GetReport returns one report as the upstream sent it.
func (c *Client) GetReport(ctx context.Context, groupID, reportID string) (RawReport, error) {
	resp, err := c.call(ctx, "get_report", http.MethodGet, groupPath(groupID)+"/reports/"+url.PathEscape(reportID))
	if err != nil {
		return nil, err
	}
	return RawReport(resp.Body), nil
}

// DeleteReport deletes a report and its dataset. Both deletions are
// attempted; a dataset failure is reported before a report failure.
func (c *Client) DeleteReport(ctx context.Context, groupID, reportID, datasetID string) error {
	_, reportErr := c.call(ctx, "delete_report", http.MethodDelete, groupPath(groupID)+"/reports/"+url.PathEscape(reportID))
	_, datasetErr := c.call(ctx, "delete_dataset", http.MethodDelete, groupPath(groupID)+"/datasets/"+url.PathEscape(datasetID))
	if datasetErr != nil {
		return datasetErr
	}
	return reportErr
}

// ListDashboards flattens every report of every workspace into dashboards.
// Any failed workspace listing fails the whole call.
func (c *Client) ListDashboards(ctx context.Context) ([]models.Dashboard, error) {
	groups, err := c.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Dashboard{}
	for _, g := range groups {
		reports, err := c.ListReports(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range reports {
			out = append(out, r.Dashboard(g))
		}
	}
	return out, nil
}
