// Package connect is a read-only client for the Prusa Connect dashboard API.
package connect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"printer_history/exporter-go/internal/metrics"
)

const (
	DefaultBaseURL = "https://connect.prusa3d.com"

	PrintersLimit = 50
	JobsLimit     = 1000
	Offset        = 0

	printersSort = "+state,+name,+remaining_time"
)

// JobStates are the job states requested for history: finished, failed,
// stopped and unknown.
var JobStates = []string{"FIN_OK", "FIN_ERROR", "FIN_STOPPED", "UNKNOWN"}

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return "HTTP error! Status: " + strconv.Itoa(e.Status)
}

type Client struct {
	log     zerolog.Logger
	base    *url.URL
	http    *http.Client
	metrics *metrics.Metrics
}

type Options struct {
	BaseURL string
	// SessionCookie is a Cookie header value copied from a logged-in browser
	// session, e.g. "SESSID=abc; other=1".
	SessionCookie string
	// Timeout bounds each request. Zero means no timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
}

func New(log zerolog.Logger, opts Options, m *metrics.Metrics) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	if base.Path == "" {
		base.Path = "/"
	}

	hc := &http.Client{Timeout: opts.Timeout}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		hc = &copied
	}

	if cookie := strings.TrimSpace(opts.SessionCookie); cookie != "" {
		cookies, err := http.ParseCookie(cookie)
		if err != nil {
			return nil, fmt.Errorf("parse session cookie: %w", err)
		}
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		jar.SetCookies(base, cookies)
		hc.Jar = jar
	}

	return &Client{log: log, base: base, http: hc, metrics: m}, nil
}

type printersResponse struct {
	Printers []Device `json:"printers"`
}

type jobsResponse struct {
	Jobs []Job `json:"jobs"`
}

// FetchDevices lists the first page of printers in dashboard order.
func (c *Client) FetchDevices(ctx context.Context) ([]Device, error) {
	u := c.base.JoinPath("app", "printers")
	q := url.Values{}
	q.Set("limit", strconv.Itoa(PrintersLimit))
	q.Set("offset", strconv.Itoa(Offset))
	q.Set("sort_by", printersSort)
	u.RawQuery = q.Encode()

	var resp printersResponse
	if err := c.get(ctx, "printers", u, &resp); err != nil {
		return nil, err
	}
	return resp.Printers, nil
}

// FetchJobs lists up to JobsLimit finished jobs of one printer.
func (c *Client) FetchJobs(ctx context.Context, uuid string) ([]Job, error) {
	u := c.base.JoinPath("app", "printers", uuid, "jobs")
	q := url.Values{}
	q.Set("limit", strconv.Itoa(JobsLimit))
	q.Set("offset", strconv.Itoa(Offset))
	for _, s := range JobStates {
		q.Add("state", s)
	}
	u.RawQuery = q.Encode()

	var resp jobsResponse
	if err := c.get(ctx, "jobs", u, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *Client) get(ctx context.Context, endpoint string, u *url.URL, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstreamRequest(endpoint, 0, time.Since(start))
		return fmt.Errorf("GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveUpstreamRequest(endpoint, resp.StatusCode, time.Since(start))
	c.log.Debug().
		Str("endpoint", endpoint).
		Str("path", u.Path).
		Int("status", resp.StatusCode).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("upstream_request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// IsHTTPStatus reports whether err carries an HTTPError with the given status.
func IsHTTPStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == status
}
