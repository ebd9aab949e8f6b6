// Package client provides the authenticated HTTP client for the forms API:
// bearer-token requests, OAuth refresh-token exchange, a typed failure
// taxonomy, and two stacked exponential-backoff retry policies.
package client

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/formtap/pkg/config"
	ftErrors "github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/jsonutil"
	"github.com/ajitpratap0/formtap/pkg/logger"
	"github.com/ajitpratap0/formtap/pkg/metrics"
)

// DefaultBaseURL is the production forms API endpoint.
const DefaultBaseURL = "https://api.typeform.com"

// statusMessages maps response codes to the operator-facing explanation
// embedded in the typed error.
var statusMessages = map[int]string{
	http.StatusBadRequest:          "A validation exception has occurred.",
	http.StatusUnauthorized:        "Invalid authorization credentials.",
	http.StatusForbidden:           "User doesn't have permission to access the resource.",
	http.StatusNotFound:            "The resource you have specified cannot be found.",
	http.StatusTooManyRequests:     "The API rate limit for your organisation/application pairing has been exceeded",
	http.StatusInternalServerError: "An unhandled error with the forms API. Contact API support if problems persist.",
	http.StatusServiceUnavailable:  "API service is currently unavailable.",
}

var statusErrorTypes = map[int]ftErrors.ErrorType{
	http.StatusBadRequest:          ftErrors.ErrorTypeBadRequest,
	http.StatusUnauthorized:        ftErrors.ErrorTypeUnauthorized,
	http.StatusForbidden:           ftErrors.ErrorTypeForbidden,
	http.StatusNotFound:            ftErrors.ErrorTypeNotFound,
	http.StatusTooManyRequests:     ftErrors.ErrorTypeRateLimit,
	http.StatusInternalServerError: ftErrors.ErrorTypeInternal,
	http.StatusServiceUnavailable:  ftErrors.ErrorTypeUnavailable,
}

// Client makes authenticated REST calls to the forms API.
type Client struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	// TransportRetry and ServiceRetry are the two stacked backoff layers.
	TransportRetry *RetryPolicy
	ServiceRetry   *RetryPolicy

	httpClient *http.Client
	logger     *zap.Logger

	store *config.Store // nil when no durable config store is attached

	accessToken  string
	refreshToken string
	clientID     string
	clientSecret string
	devMode      bool

	pageSize       int
	formPageSize   int
	requestTimeout time.Duration
}

// New builds a client from the connector config, validating page sizes and
// resolving the request timeout, and performs the OAuth refresh exchange
// when a refresh token is configured. store carries refreshed token pairs
// back to disk; it may be nil when no persistence is wanted.
func New(ctx context.Context, cfg *config.Config, store *config.Store, devMode bool) (*Client, error) {
	pageSize, formPageSize, err := cfg.ResolvePageSizes()
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	log := logger.With(zap.String("component", "http_client"))
	if err := http2.ConfigureTransport(transport); err != nil {
		log.Warn("failed to configure HTTP/2", zap.Error(err))
	}

	c := &Client{
		BaseURL:        DefaultBaseURL,
		TransportRetry: TransportRetryPolicy(),
		ServiceRetry:   ServiceRetryPolicy(),
		httpClient:     &http.Client{Transport: transport},
		logger:         log,
		store:          store,
		accessToken:    cfg.Token,
		refreshToken:   cfg.RefreshToken,
		clientID:       cfg.ClientID,
		clientSecret:   cfg.ClientSecret,
		devMode:        devMode,
		pageSize:       pageSize,
		formPageSize:   formPageSize,
		requestTimeout: cfg.ResolveRequestTimeout(),
	}

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// PageSize returns the validated page size for submission endpoints.
func (c *Client) PageSize() int { return c.pageSize }

// FormPageSize returns the validated page size for the form-list endpoint.
func (c *Client) FormPageSize() int { return c.formPageSize }

// BuildURL returns the full URL for a given endpoint.
func (c *Client) BuildURL(endpoint string) string {
	return c.BaseURL + "/" + strings.TrimPrefix(endpoint, "/")
}

// Request performs a GET against the API and returns the decoded JSON
// object, applying both retry layers. Any non-2xx response or transport
// fault surfaces as a typed error.
func (c *Client) Request(ctx context.Context, rawURL string, params url.Values) (map[string]interface{}, error) {
	var result map[string]interface{}

	err := c.withRetries(ctx, func() error {
		res, err := c.get(ctx, rawURL, params)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// withRetries stacks the two backoff layers: the service policy retries
// transient upstream failures, and the transport policy around it retries
// timeouts and connection faults.
func (c *Client) withRetries(ctx context.Context, fn func() error) error {
	return c.TransportRetry.ExecuteWithCondition(ctx, func() error {
		err := c.ServiceRetry.ExecuteWithCondition(ctx, fn, func(err error) bool {
			if ftErrors.IsServiceError(err) {
				metrics.HTTPRetries.WithLabelValues("service").Inc()
				return true
			}
			return false
		})
		return err
	}, func(err error) bool {
		if ftErrors.IsTransportError(err) {
			metrics.HTTPRetries.WithLabelValues("transport").Inc()
			return true
		}
		return false
	})
}

// get performs one request attempt.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values) (map[string]interface{}, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, ftErrors.Wrap(err, ftErrors.ErrorTypeValidation, "failed to build request")
	}
	if params != nil {
		req.URL.RawQuery = params.Encode()
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	c.logger.Info("requesting",
		zap.String("url", rawURL),
		zap.String("params", params.Encode()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.HTTPRequests.WithLabelValues(req.URL.Path, "retryable").Inc()
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		metrics.HTTPRequests.WithLabelValues(req.URL.Path, "retryable").Inc()
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := classifyResponse(resp, body)
		outcome := "fatal"
		if ftErrors.IsServiceError(err) {
			outcome = "retryable"
		}
		metrics.HTTPRequests.WithLabelValues(req.URL.Path, outcome).Inc()
		return nil, err
	}

	var result map[string]interface{}
	if err := jsonutil.Unmarshal(body, &result); err != nil {
		metrics.HTTPRequests.WithLabelValues(req.URL.Path, "fatal").Inc()
		return nil, ftErrors.Wrap(err, ftErrors.ErrorTypeData, "failed to decode API response")
	}

	metrics.HTTPRequests.WithLabelValues(req.URL.Path, "success").Inc()
	if total, ok := result["total_items"]; ok {
		c.logger.Info("raw data items", zap.Any("total_items", total))
	}
	return result, nil
}

// readBody drains a response, flagging a body cut off mid-transfer as a
// retryable truncation.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ftErrors.Wrap(err, ftErrors.ErrorTypeTruncated, "response body cut off mid-transfer")
	}
	return body, nil
}

// classifyTransportError distinguishes timeouts from other connection-level
// faults so the transport retry policy can pick them up.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ftErrors.Wrap(err, ftErrors.ErrorTypeTimeout, "request timed out")
	}
	return ftErrors.Wrap(err, ftErrors.ErrorTypeConnection, "connection failed")
}

// classifyResponse maps a non-2xx response onto the typed error taxonomy.
// Every message carries the "HTTP-error-code: {code}, Error: {message}"
// shape; 429 additionally surfaces the server's Retry-After hint.
func classifyResponse(resp *http.Response, body []byte) error {
	code := resp.StatusCode

	message, known := statusMessages[code]
	if !known {
		// Fall back to the API's own description when the code is not
		// in the fixed mapping.
		var payload map[string]interface{}
		message = "Unknown Error"
		if err := jsonutil.Unmarshal(body, &payload); err == nil {
			if desc, ok := payload["description"].(string); ok && desc != "" {
				message = desc
			}
		}
	}

	errType, ok := statusErrorTypes[code]
	if !ok {
		errType = ftErrors.ErrorTypeHTTP
	}

	var e *ftErrors.Error
	if code == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		e = ftErrors.Newf(errType, "HTTP-error-code: %d, Error: %s. Please retry after %s seconds",
			code, message, retryAfter)
		e = e.WithDetail("retry_after", retryAfter)
	} else {
		e = ftErrors.Newf(errType, "HTTP-error-code: %d, Error: %s", code, message)
	}

	return e.
		WithDetail("status_code", code).
		WithDetail("body", string(body))
}
