// Package http wraps the transport: one place that attaches credentials,
// retries transient failures, classifies responses into the error taxonomy,
// and performs the single expiry-triggered refresh and replay.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/sfapi/internal/auth"
	"github.com/fivetwenty-io/sfapi/internal/constants"
	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/hashicorp/go-retryablehttp"
)

// Request describes one API call. A Path starting with "/" is used as-is
// against the instance URL; anything else is resolved under the versioned
// data root, so resource clients write "sobjects/Account" and composite
// sub-request URLs still work verbatim.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        interface{}
	RawBody     []byte
	ContentType string
	Headers     map[string]string
}

// Response wraps an API response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON unmarshals the response body.
func (r *Response) JSON(v interface{}) error {
	if len(r.Body) == 0 {
		return sfapi.ErrResponseBodyExpected
	}

	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}

	return nil
}

// Client dispatches requests with the shared session attached. All
// sub-clients funnel through one Client, so they share the session, the
// retry policy, and the refresh collapse in the auth manager.
type Client struct {
	sessions   *auth.Manager
	httpClient *http.Client
	apiVersion string
	userAgent  string
	logger     sfapi.Logger
	debug      bool

	requestInterceptors  []sfapi.RequestInterceptor
	responseInterceptors []sfapi.ResponseInterceptor
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger sfapi.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithAPIVersion sets the data API version segment.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithHTTPClient replaces the underlying HTTP client, bypassing the
// default retrying transport. Intended for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRequestInterceptors appends interceptors that run before each
// request is sent, in registration order.
func WithRequestInterceptors(interceptors ...sfapi.RequestInterceptor) Option {
	return func(c *Client) {
		c.requestInterceptors = append(c.requestInterceptors, interceptors...)
	}
}

// WithResponseInterceptors appends interceptors that run after each
// response is received, in registration order.
func WithResponseInterceptors(interceptors ...sfapi.ResponseInterceptor) Option {
	return func(c *Client) {
		c.responseInterceptors = append(c.responseInterceptors, interceptors...)
	}
}

// RetryConfig tunes the transport-level retry policy. It only covers
// transient failures (connection errors, 429 and 5xx); application-level
// rejections are never retried here.
type RetryConfig struct {
	Max     int
	WaitMin time.Duration
	WaitMax time.Duration
	Timeout time.Duration
}

// WithRetryConfig installs a retrying transport with the given policy.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) {
		c.httpClient = newRetryingHTTPClient(cfg)
	}
}

// NewClient creates a transport client on top of a session manager.
func NewClient(sessions *auth.Manager, opts ...Option) *Client {
	client := &Client{
		sessions:   sessions,
		apiVersion: sfapi.DefaultAPIVersion,
		userAgent:  "sfapi-client/1.0",
		logger:     sfapi.NoopLogger{},
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		client.httpClient = newRetryingHTTPClient(RetryConfig{})
	}

	return client
}

func newRetryingHTTPClient(cfg RetryConfig) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout

	if cfg.Max > 0 {
		retryClient.RetryMax = cfg.Max
	}

	if cfg.WaitMin > 0 {
		retryClient.RetryWaitMin = cfg.WaitMin
	}

	if cfg.WaitMax > 0 {
		retryClient.RetryWaitMax = cfg.WaitMax
	}

	if cfg.Timeout > 0 {
		retryClient.HTTPClient.Timeout = cfg.Timeout
	}

	return retryClient.StandardClient()
}

// APIVersion returns the configured data API version segment.
func (c *Client) APIVersion() string {
	return c.apiVersion
}

// Do executes the request against the current session. On the service's
// distinguished expiry signal it refreshes the credential once and replays
// the request exactly once; every other failure passes straight through.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	session, err := c.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.execute(ctx, session, req)
	if err == nil || !sfapi.IsSessionExpired(err) {
		return resp, err
	}

	c.logger.Debug("session expired, refreshing and replaying once", map[string]interface{}{
		"method": req.Method,
		"path":   req.Path,
	})

	session, err = c.sessions.Refresh(ctx, session)
	if err != nil {
		return nil, err
	}

	return c.execute(ctx, session, req)
}

func (c *Client) execute(ctx context.Context, session *sfapi.Session, req *Request) (*Response, error) {
	fullURL, err := c.buildURL(session.InstanceURL, req)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+session.AccessToken)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	info := &sfapi.RequestInfo{
		Method:  req.Method,
		Path:    req.Path,
		Headers: httpReq.Header,
	}

	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, info); err != nil {
			return nil, fmt.Errorf("request interceptor: %w", err)
		}
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &sfapi.NetworkError{Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &sfapi.NetworkError{Err: err}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
			"status": httpResp.StatusCode,
		})
	}

	for _, interceptor := range c.responseInterceptors {
		err := interceptor(ctx, info, &sfapi.ResponseInfo{
			StatusCode: httpResp.StatusCode,
			Headers:    httpResp.Header,
		})
		if err != nil {
			return resp, fmt.Errorf("response interceptor: %w", err)
		}
	}

	if httpResp.StatusCode >= 400 {
		return resp, sfapi.ParseAPIError(httpResp.StatusCode, respBody)
	}

	return resp, nil
}

func (c *Client) buildURL(instanceURL string, req *Request) (string, error) {
	base, err := url.Parse(instanceURL)
	if err != nil {
		return "", fmt.Errorf("parsing instance URL: %w", err)
	}

	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/services/data/" + c.apiVersion + "/" + path
	}

	base.Path = path

	if req.Query != nil {
		base.RawQuery = req.Query.Encode()
	}

	return base.String(), nil
}

func encodeBody(req *Request) (io.Reader, string, error) {
	if req.RawBody != nil {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		return bytes.NewReader(req.RawBody), contentType, nil
	}

	if req.Body == nil {
		return nil, "", nil
	}

	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("encoding request body: %w", err)
	}

	return bytes.NewReader(data), "application/json", nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Put performs a PUT request with a raw body, for bulk data uploads.
func (c *Client) Put(ctx context.Context, path, contentType string, data []byte) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, RawBody: data, ContentType: contentType})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Query: query})
}
