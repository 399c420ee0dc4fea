// Package httpclient performs single-attempt JSON calls against the
// upstream systems. Every call gets its own timeout; nothing is retried.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hopperGateway/internal/apperrors"
)

const maxBodyBytes = 16 << 20

var (
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hopper_upstream_requests_total",
		Help: "Outbound calls to upstream systems by system, operation and status code.",
	}, []string{"system", "operation", "code"})

	upstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hopper_upstream_request_duration_seconds",
		Help:    "Latency of outbound calls to upstream systems.",
		Buckets: prometheus.DefBuckets,
	}, []string{"system", "operation"})
)

// Client is a thin wrapper over *http.Client bound to one upstream system.
type Client struct {
	system  string
	http    *http.Client
	timeout time.Duration
}

// New returns a Client. A nil hc uses a fresh http.Client.
func New(system string, hc *http.Client, timeout time.Duration) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{system: system, http: hc, timeout: timeout}
}

// HTTPClient exposes the underlying client, e.g. for oauth2 token sources.
func (c *Client) HTTPClient() *http.Client { return c.http }

// Timeout is the per-call bound.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Response is a fully read upstream response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apperrors.Internal("decode upstream response", err)
	}
	return nil
}

// Err converts a non-2xx response into an upstream error carrying the body.
func (r *Response) Err(msg string) error {
	return apperrors.Upstream(msg, r.Status, string(r.Body))
}

// Option customizes an outgoing request.
type Option func(*http.Request)

// WithBearer sets an Authorization: Bearer header.
func WithBearer(token string) Option {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

// WithBasicAuth sets HTTP basic credentials.
func WithBasicAuth(username, password string) Option {
	return func(r *http.Request) { r.SetBasicAuth(username, password) }
}

// Do sends one request. body, when non-nil, is JSON encoded. A transport
// failure (including the timeout) is returned as an upstream error with no
// status; any HTTP answer, 2xx or not, is returned as a Response.
func (c *Client) Do(ctx context.Context, op, method, url string, body any, opts ...Option) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Internal("encode request body", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, apperrors.Internal("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	upstreamLatency.WithLabelValues(c.system, op).Observe(time.Since(start).Seconds())
	if err != nil {
		upstreamRequests.WithLabelValues(c.system, op, "error").Inc()
		return nil, apperrors.Transport(fmt.Sprintf("%s %s", c.system, op), err)
	}
	defer resp.Body.Close()
	upstreamRequests.WithLabelValues(c.system, op, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.Transport(fmt.Sprintf("%s %s: read body", c.system, op), err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
