// Package brokerclient talks to the broker's HTTP API with bounded timeouts.
package brokerclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/models"
	http_utils "github.com/benmeehan/link-failover/pkg/httpUtils"
)

// Client is a broker API client. Every call is bounded by the client timeout.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// New creates a Client for the broker at baseURL.
func New(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
	}
}

// PushHeartbeat sends a heartbeat; the client's secret is filled in.
func (c *Client) PushHeartbeat(ctx context.Context, req models.HeartbeatRequest) (*models.HeartbeatResponse, error) {
	req.Secret = c.secret
	var resp models.HeartbeatResponse
	if err := http_utils.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/heartbeat", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PushCommand issues an enable or disable command.
func (c *Client) PushCommand(ctx context.Context, action constants.Action) (*models.CommandResponse, error) {
	var resp models.CommandResponse
	endpoint := c.baseURL + "/api/command/" + url.PathEscape(string(action))
	if err := http_utils.DoJSON(ctx, c.http, http.MethodPost, endpoint, nil, models.SecretRequest{Secret: c.secret}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Acknowledge marks the current command as handled.
func (c *Client) Acknowledge(ctx context.Context) (*models.AckResponse, error) {
	var resp models.AckResponse
	if err := http_utils.DoJSON(ctx, c.http, http.MethodPost, c.baseURL+"/api/acknowledge", nil, models.SecretRequest{Secret: c.secret}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStatus fetches the broker's status, sending the secret in a header.
func (c *Client) GetStatus(ctx context.Context) (*models.StatusResponse, error) {
	header := http.Header{}
	if c.secret != "" {
		header.Set(constants.SecretHeader, c.secret)
	}
	var resp models.StatusResponse
	if err := http_utils.DoJSON(ctx, c.http, http.MethodGet, c.baseURL+"/api/status", header, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
