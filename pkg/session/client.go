package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrorReporter presents a classified request failure to the user. It is
// never called for 401s; those belong to the retry-then-logout path.
type ErrorReporter interface {
	ReportError(ctx context.Context, err *RequestError)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(ctx context.Context, err *RequestError)

func (f ErrorReporterFunc) ReportError(ctx context.Context, err *RequestError) { f(ctx, err) }

type APIClientConfig struct {
	BaseURL       string
	Authenticator *Authenticator
	Timeout       time.Duration
	Reporter      ErrorReporter
	Logger        *slog.Logger
}

// APIClient performs authenticated JSON calls against the helpdesk REST
// API and classifies failures.
type APIClient struct {
	baseURL  string
	http     *http.Client
	reporter ErrorReporter
	log      *slog.Logger
}

func NewAPIClient(cfg APIClientConfig) *APIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var rt http.RoundTripper = http.DefaultTransport
	if cfg.Authenticator != nil {
		rt = cfg.Authenticator
	}
	return &APIClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Transport: rt, Timeout: cfg.Timeout},
		reporter: cfg.Reporter,
		log:      cfg.Logger.With("component", "api_client"),
	}
}

// HTTPClient exposes the authenticated client for callers that need raw
// responses.
func (c *APIClient) HTTPClient() *http.Client { return c.http }

// GetJSON decodes the response of GET path into out.
func (c *APIClient) GetJSON(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// PostJSON sends in as JSON and decodes the response into out.
func (c *APIClient) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

// PutJSON sends in as the body of a PUT and decodes the response into out.
func (c *APIClient) PutJSON(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

// Delete sends a DELETE and discards the response body.
func (c *APIClient) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do performs one call. in is JSON encoded when non-nil; out is decoded
// from a 2xx response when non-nil. Non-2xx responses come back as
// *RequestError.
func (c *APIClient) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return c.decodeJSON(ctx, req, resp, out)
}

// decodeJSON reads the response once, turning non-2xx into a classified
// error and reporting it.
func (c *APIClient) decodeJSON(ctx context.Context, req *http.Request, resp *http.Response, out any) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := parseErrorResponse(req, resp, bodyBytes)
		c.report(ctx, reqErr)
		return reqErr
	}

	if out == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *APIClient) report(ctx context.Context, err *RequestError) {
	if err.StatusCode == http.StatusUnauthorized {
		return
	}
	c.log.Info("request failed",
		"method", err.Method,
		"path", err.Path,
		"status", err.StatusCode,
		"kind", err.Kind,
	)
	if c.reporter != nil {
		c.reporter.ReportError(ctx, err)
	}
}

// errorBody covers the error shapes the backend is known to send.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Code             string `json:"code"`
	Message          string `json:"message"`
}

// parseErrorResponse builds a RequestError from a non-2xx response.
func parseErrorResponse(req *http.Request, resp *http.Response, body []byte) *RequestError {
	reqErr := &RequestError{
		StatusCode: resp.StatusCode,
		Kind:       classifyStatus(resp.StatusCode),
		Method:     req.Method,
		Path:       req.URL.Path,
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		reqErr.Code = firstNonEmpty(eb.Code, eb.Error)
		reqErr.Message = firstNonEmpty(eb.Message, eb.ErrorDescription)
	}
	return reqErr
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// AsRequestError unwraps err into a *RequestError.
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	ok := errors.As(err, &reqErr)
	return reqErr, ok
}
