// Package backend is the REST client of the mission backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roverops/missionctl/internal/metrics"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/log"
	"github.com/roverops/missionctl/pkg/options"
)

const (
	opStart    = "start mission"
	opSchedule = "schedule mission"
	opStatus   = "get mission status"
	opReport   = "get mission report"
	opAPOD     = "get APOD"
)

// Client calls the mission backend. It does not retry.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a Client for baseURL, e.g. http://localhost:8000.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if err := options.ValidateURL(baseURL, "http", "https"); err != nil {
		return nil, err
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// NewClientFromOptions creates a Client from command-line options.
func NewClientFromOptions(o *options.APIOptions) (*Client, error) {
	return NewClient(o.URL, WithHTTPClient(&http.Client{Timeout: o.Timeout}))
}

// StartMission asks the backend to plan and execute goal.
func (c *Client) StartMission(ctx context.Context, goal string) (*v1.StartMissionResponse, error) {
	var out v1.StartMissionResponse
	if err := c.do(ctx, opStart, http.MethodPost, "/api/mission/start", v1.StartMissionRequest{Goal: goal}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScheduleMission asks the backend to start goal at the given time.
func (c *Client) ScheduleMission(ctx context.Context, goal string, at time.Time) (*v1.ScheduleMissionResponse, error) {
	req := v1.ScheduleMissionRequest{Goal: goal, ScheduledTime: at.Format(v1.ScheduleTimeLayout)}

	var out v1.ScheduleMissionResponse
	if err := c.do(ctx, opSchedule, http.MethodPost, "/api/mission/schedule", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMission fetches the full state snapshot of a mission.
func (c *Client) GetMission(ctx context.Context, missionID string) (*v1.MissionStatusResponse, error) {
	var out v1.MissionStatusResponse
	if err := c.do(ctx, opStatus, http.MethodGet, "/api/mission/"+url.PathEscape(missionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMissionReport fetches the backend's summary of a mission.
func (c *Client) GetMissionReport(ctx context.Context, missionID string) (*v1.MissionReport, error) {
	var out v1.MissionReport
	if err := c.do(ctx, opReport, http.MethodGet, "/api/mission/"+url.PathEscape(missionID)+"/report", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAPOD fetches the astronomy picture of the day metadata.
func (c *Client) GetAPOD(ctx context.Context) (v1.APOD, error) {
	var out v1.APOD
	if err := c.do(ctx, opAPOD, http.MethodGet, "/api/apod", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (err error) {
	start := time.Now()
	code := "error"
	defer func() {
		metrics.BackendRequestsTotal.WithLabelValues(op, code).Inc()
		metrics.BackendRequestLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			log.Debug("Backend request failed", "op", op, "path", path, "err", err)
		}
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to %s: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()
	code = strconv.Itoa(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return newStatusError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to %s: decode response: %w", op, err)
	}
	return nil
}
