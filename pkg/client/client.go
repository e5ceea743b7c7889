// Package client provides the Soundcharts HTTP client: authentication headers,
// request pacing, quota gating, JSON decoding and typed remote errors. It
// performs one logical request per call and is the page fetcher used by the
// pagination and window packages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/soundcharts-client/pkg/quota"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcharts_requests_total",
		Help: "Total Soundcharts requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "soundcharts_request_duration_seconds",
		Help:    "Soundcharts request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundcharts_errors_total",
		Help: "Total Soundcharts errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// DefaultBaseURL is the production Soundcharts API endpoint.
const DefaultBaseURL = "https://customer.api.soundcharts.com"

// Object is a decoded JSON object. Numbers are decoded as json.Number.
type Object = map[string]any

// Request describes one call to the API.
type Request struct {
	// Method defaults to GET.
	Method string

	// Path is the resource path including its version prefix,
	// e.g. "/api/v2.8/playlist/{uuid}".
	Path string

	// Params are the query parameters.
	Params url.Values

	// Body is JSON-encoded when non-nil.
	Body any
}

// Config holds the client configuration.
type Config struct {
	// AppID and APIKey are sent as x-app-id / x-api-key (REQUIRED).
	AppID  string
	APIKey string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Language is sent as Accept-Language when set.
	Language string

	// UserAgent header.
	UserAgent string

	// Timeout is the per-request deadline.
	Timeout time.Duration

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client

	// RateLimit paces requests (requests per second). 0 disables pacing.
	RateLimit float64
	Burst     int

	// QuotaStore holds x-quota-remaining state. nil keeps it in memory.
	QuotaStore quota.Store

	// QuotaBlockDuration is how long a critical quota report blocks requests.
	// Default: quota.DefaultBlockDuration
	QuotaBlockDuration time.Duration

	// Retry. MaxRetries 0 means every Fetch is exactly one round trip.
	MaxRetries     int
	InitialBackoff time.Duration

	// LogResponses logs decoded response bodies at debug level.
	LogResponses bool

	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(appID, apiKey string) Config {
	return Config{
		AppID:          appID,
		APIKey:         apiKey,
		BaseURL:        DefaultBaseURL,
		UserAgent:      "soundcharts-client/0.1.0",
		Timeout:        5 * time.Second,
		RateLimit:      0,
		Burst:          1,
		MaxRetries:     0,
		InitialBackoff: 1 * time.Second,
	}
}

// Client is the Soundcharts API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	quota      *quota.Tracker
	retry      RetryConfig
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.AppID == "" {
		return nil, fmt.Errorf("app id is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	logger := log.With().Str("component", "soundcharts-client").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		retry.InitialBackoff = cfg.InitialBackoff
	}

	tracker := quota.NewTracker(cfg.QuotaStore, logger)
	if cfg.QuotaBlockDuration > 0 {
		tracker.SetBlockDuration(cfg.QuotaBlockDuration)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    limiter,
		quota:      tracker,
		retry:      retry,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Fetch performs one logical request and returns the decoded JSON object.
// A successful response whose body is not a JSON object yields (nil, nil).
// Any non-2xx status yields a *RemoteError.
func (c *Client) Fetch(ctx context.Context, req Request) (Object, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if !strings.HasPrefix(req.Path, "/") {
		return nil, fmt.Errorf("invalid resource path %q: must start with /", req.Path)
	}

	endpoint := req.Path
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	if err := c.quota.Allow(ctx); err != nil {
		requestsTotal.WithLabelValues(endpoint, "quota_blocked").Inc()
		return nil, fmt.Errorf("quota check: %w", err)
	}

	target := c.buildURL(req.Path, req.Params)

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", target).
		Int("body_bytes", len(payload)).
		Msg("Sending Soundcharts request")

	var result Object
	err := retryWithBackoff(ctx, c.retry, c.logger, func() (ErrorClass, error) {
		var class ErrorClass
		var attemptErr error
		result, class, attemptErr = c.roundTrip(ctx, req.Method, endpoint, target, payload)
		return class, attemptErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FetchObject fetches a single-object response ({"type": ..., "object": {...}})
// and returns the object. objType is checked when non-empty. A missing or
// null object yields ErrNotFound.
func (c *Client) FetchObject(ctx context.Context, req Request, objType string) (Object, error) {
	resp, err := c.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, ErrNotFound
	}

	if objType != "" {
		received, _ := resp["type"].(string)
		if received != objType {
			return nil, &UnexpectedTypeError{Expected: objType, Received: received}
		}
	}

	obj, ok := resp["object"].(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, ErrNotFound
	}
	return obj, nil
}

// roundTrip performs exactly one HTTP exchange.
func (c *Client) roundTrip(ctx context.Context, method, endpoint, target string, payload []byte) (Object, ErrorClass, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		class := c.classifyError(nil, err)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, class, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.quota.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		class := c.classifyError(nil, err)
		errorsTotal.WithLabelValues(string(class)).Inc()
		return nil, class, fmt.Errorf("read response body: %w", err)
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := c.classifyError(resp, nil)
		errorsTotal.WithLabelValues(string(class)).Inc()

		remote := &RemoteError{
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Errors:     parseErrorBody(data),
		}

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Strs("messages", remote.Messages()).
			Msg("Soundcharts request error")

		return nil, class, remote
	}

	obj, err := decodeObject(data)
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("endpoint", endpoint).
			Int("body_bytes", len(data)).
			Msg("Response body is not a JSON object, treating as no content")
		return nil, "", nil
	}

	if c.config.LogResponses {
		c.logger.Debug().
			Str("url", resp.Request.URL.String()).
			RawJSON("response", data).
			Msg("Response from API")
	}

	return obj, "", nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-app-id", c.config.AppID)
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.Language != "" {
		req.Header.Set("Accept-Language", c.config.Language)
	}
}

func (c *Client) buildURL(path string, params url.Values) string {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	return target
}

// classifyError categorizes an error for observability and retry handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// Quota returns the quota tracker.
func (c *Client) Quota() *quota.Tracker {
	return c.quota
}

// Logger returns the client's logger so higher layers can derive from it.
func (c *Client) Logger() zerolog.Logger {
	return c.logger
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func decodeObject(data []byte) (Object, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj Object
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("null body")
	}
	return obj, nil
}

func parseErrorBody(data []byte) []ErrorDetail {
	var body struct {
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return []ErrorDetail{}
	}
	if body.Errors == nil {
		return []ErrorDetail{}
	}
	return body.Errors
}
