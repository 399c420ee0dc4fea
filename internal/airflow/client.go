// Package airflow is a client for the workflow orchestrator's REST API v1.
package airflow

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/config"
	"hopperGateway/internal/httpclient"
	"hopperGateway/models"
)

const listLimit = 100

type Client struct {
	cfg  config.AirflowConfig
	http *httpclient.Client
	now  func() time.Time
}

func New(cfg config.AirflowConfig, hc *http.Client, timeout time.Duration) *Client {
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.AuthMode == "" {
		cfg.AuthMode = config.AirflowAuthToken
	}
	return &Client{cfg: cfg, http: httpclient.New("airflow", hc, timeout), now: time.Now}
}

// authorize returns the credential option for API calls. In token mode it
// exchanges the configured username and password at /auth/token first.
func (c *Client) authorize(ctx context.Context) (httpclient.Option, error) {
	if c.cfg.URL == "" || c.cfg.Username == "" || c.cfg.Password == "" {
		return nil, apperrors.Upstream("Failed to retrieve Airflow credentials", 0, "")
	}
	if c.cfg.AuthMode == config.AirflowAuthBasic {
		return httpclient.WithBasicAuth(c.cfg.Username, c.cfg.Password), nil
	}

	body := map[string]string{"username": c.cfg.Username, "password": c.cfg.Password}
	resp, err := c.http.Do(ctx, "token", http.MethodPost, c.cfg.URL+"/auth/token", body)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.Err("Failed to acquire Airflow token")
	}
	tok := gjson.GetBytes(resp.Body, "access_token").String()
	if tok == "" {
		return nil, apperrors.Upstream("Failed to acquire Airflow token", resp.Status, string(resp.Body))
	}
	return httpclient.WithBearer(tok), nil
}

// ListPipelines returns every DAG, paused or not.
func (c *Client) ListPipelines(ctx context.Context) (*models.PipelineList, error) {
	auth, err := c.authorize(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := c.cfg.URL + "/api/v1/dags?limit=" + strconv.Itoa(listLimit)
	resp, err := c.http.Do(ctx, "list_dags", http.MethodGet, endpoint, nil, auth)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.Err("Failed to retrieve DAGs")
	}

	root := gjson.ParseBytes(resp.Body)
	out := &models.PipelineList{Dags: []models.Pipeline{}}
	for _, d := range root.Get("dags").Array() {
		p := models.Pipeline{
			ID:                   d.Get("dag_id").String(),
			Description:          d.Get("description").String(),
			TimetableDescription: d.Get("timetable_description").String(),
			IsPaused:             d.Get("is_paused").Bool(),
			IsActive:             true,
			FileToken:            d.Get("file_token").String(),
		}
		if v := d.Get("is_active"); v.Exists() && v.Type != gjson.Null {
			p.IsActive = v.Bool()
		}
		out.Dags = append(out.Dags, p)
	}
	out.TotalReturned = len(out.Dags)
	out.TotalEntries = out.TotalReturned
	if v := root.Get("total_entries"); v.Exists() {
		out.TotalEntries = int(v.Int())
	}
	return out, nil
}

// TriggerRun starts a manual run of the pipeline. Nothing is sent to the
// dagRuns endpoint unless authorization succeeded.
func (c *Client) TriggerRun(ctx context.Context, pipelineID string) (*models.DagRun, error) {
	auth, err := c.authorize(ctx)
	if err != nil {
		return nil, err
	}
	now := c.now().UTC()
	body := map[string]any{
		"dag_run_id":   "manual__" + now.Format("20060102T150405"),
		"logical_date": now.Format(time.RFC3339Nano),
		"conf":         map[string]any{},
	}
	endpoint := c.cfg.URL + "/api/v1/dags/" + url.PathEscape(pipelineID) + "/dagRuns"
	resp, err := c.http.Do(ctx, "trigger_dag_run", http.MethodPost, endpoint, body, auth)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, resp.Err("Failed to refresh pipeline")
	}
	res := gjson.ParseBytes(resp.Body)
	return &models.DagRun{
		Message:     "Pipeline refreshed successfully",
		DagRunID:    res.Get("dag_run_id").String(),
		LogicalDate: res.Get("logical_date").String(),
		State:       res.Get("state").String(),
	}, nil
}
