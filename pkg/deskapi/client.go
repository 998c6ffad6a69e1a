package deskapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running deskd control API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Livez(ctx context.Context) (*HealthResponse, error) {
	return getJSON[HealthResponse](ctx, c, "/livez")
}

func (c *Client) Readyz(ctx context.Context) (*HealthResponse, error) {
	return getJSON[HealthResponse](ctx, c, "/readyz")
}

func (c *Client) Session(ctx context.Context) (*SessionResponse, error) {
	return getJSON[SessionResponse](ctx, c, "/v1/session")
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*SessionResponse, error) {
	return postJSON[SessionResponse](ctx, c, "/v1/session/login", req, http.StatusOK)
}

func (c *Client) Refresh(ctx context.Context) (*SessionResponse, error) {
	return postJSON[SessionResponse](ctx, c, "/v1/session/refresh", nil, http.StatusOK)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.postNoContent(ctx, "/v1/session/logout", nil)
}

func (c *Client) Realtime(ctx context.Context) (*RealtimeResponse, error) {
	return getJSON[RealtimeResponse](ctx, c, "/v1/realtime")
}

func (c *Client) Connect(ctx context.Context) (*RealtimeResponse, error) {
	return postJSON[RealtimeResponse](ctx, c, "/v1/realtime/connect", nil, http.StatusAccepted)
}

func (c *Client) Disconnect(ctx context.Context) error {
	return c.postNoContent(ctx, "/v1/realtime/disconnect", nil)
}

func (c *Client) Subscribe(ctx context.Context, destination string) (*SubscriptionView, error) {
	return postJSON[SubscriptionView](ctx, c, "/v1/realtime/subscriptions",
		SubscribeRequest{Destination: destination}, http.StatusCreated)
}

func (c *Client) Unsubscribe(ctx context.Context, id string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/realtime/subscriptions/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

func (c *Client) Send(ctx context.Context, req SendRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/realtime/send", req)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusAccepted {
		return resp.Body.Close()
	}
	return decodeJSON(resp, &struct{}{}, http.StatusAccepted)
}

func (c *Client) Notifications(ctx context.Context) (*NotificationsResponse, error) {
	return getJSON[NotificationsResponse](ctx, c, "/v1/notifications")
}

func (c *Client) MarkNotificationsRead(ctx context.Context) (*MarkReadResponse, error) {
	return postJSON[MarkReadResponse](ctx, c, "/v1/notifications/read", nil, http.StatusOK)
}

func (c *Client) postNoContent(ctx context.Context, path string, body any) error {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

func getJSON[T any](ctx context.Context, c *Client, path string) (*T, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out T
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func postJSON[T any](ctx context.Context, c *Client, path string, body any, status int) (*T, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	var out T
	if err := decodeJSON(resp, &out, status); err != nil {
		return nil, err
	}
	return &out, nil
}
