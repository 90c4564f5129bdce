// Package dtapi implements the outbound platform API client. Every call
// attaches the cached bearer token, classifies the response into the
// bridge's error taxonomy, and retries transient failures with exponential
// backoff inside the invocation's context budget.
package dtapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"twin-bridge/internal/circuitbreaker"
	"twin-bridge/internal/common/errors"
	"twin-bridge/internal/common/logging"
	"twin-bridge/internal/common/utils"
)

// TokenSource supplies bearer credentials for outbound calls. Invalidate
// forces the next call to fetch a fresh token.
type TokenSource interface {
	AuthorizationHeader(ctx context.Context) (string, error)
	Invalidate()
}

// Options configures a Client.
type Options struct {
	// APIBaseURL is the REST API base for real devices
	APIBaseURL string
	// EmulatorBaseURL is the API base for emulated (twin) devices
	EmulatorBaseURL string
	// HTTPClient is the underlying HTTP client; a default is used when nil
	HTTPClient *http.Client
	// Retry overrides the outbound retry policy; zero value uses defaults
	Retry utils.RetryConfig
	// Logger overrides the global logger
	Logger logging.Logger
}

// Client executes authenticated calls against the platform API.
type Client struct {
	apiBase    string
	emuBase    string
	tokens     TokenSource
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
	retry      utils.RetryConfig
	logger     logging.Logger
}

// NewClient creates a platform API client using the given token source.
func NewClient(tokens TokenSource, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = utils.DefaultRetryConfig()
	}
	retry.RetryableErrors = errors.IsRetryable

	return &Client{
		apiBase:    opts.APIBaseURL,
		emuBase:    opts.EmulatorBaseURL,
		tokens:     tokens,
		httpClient: httpClient,
		breaker:    circuitbreaker.NewGoBreaker("platform-api", circuitbreaker.APIConfig, logger),
		retry:      retry,
		logger:     logger,
	}
}

// ListDevices returns all devices in the project, emulated ones included.
func (c *Client) ListDevices(ctx context.Context, projectID string) ([]Device, error) {
	u := fmt.Sprintf("%s/projects/%s/devices", c.apiBase, url.PathEscape(projectID))

	body, err := c.call(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var list deviceList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, errors.PermanentError("malformed device list response").WithContext("url", u)
	}

	return list.Devices, nil
}

// CreateEmulatedDevice spawns a new emulated device in the project.
func (c *Client) CreateEmulatedDevice(ctx context.Context, projectID string, req CreateDeviceRequest) (*Device, error) {
	u := fmt.Sprintf("%s/projects/%s/devices", c.emuBase, url.PathEscape(projectID))

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.InternalError("failed to encode device request", err)
	}

	body, err := c.call(ctx, http.MethodPost, u, payload)
	if err != nil {
		return nil, err
	}

	var device Device
	if err := json.Unmarshal(body, &device); err != nil {
		return nil, errors.PermanentError("malformed device response").WithContext("url", u)
	}

	return &device, nil
}

// DeleteEmulatedDevice removes an emulated device.
func (c *Client) DeleteEmulatedDevice(ctx context.Context, projectID, deviceID string) error {
	u := fmt.Sprintf("%s/projects/%s/devices/%s",
		c.emuBase, url.PathEscape(projectID), url.PathEscape(deviceID))

	_, err := c.call(ctx, http.MethodDelete, u, nil)
	return err
}

// SetDeviceLabel sets a single label on a device.
func (c *Client) SetDeviceLabel(ctx context.Context, projectID, deviceID, key, value string) error {
	u := fmt.Sprintf("%s/projects/%s/devices/%s/labels/%s?updateMask=value",
		c.apiBase, url.PathEscape(projectID), url.PathEscape(deviceID), url.PathEscape(key))

	payload, err := json.Marshal(labelValue{Value: value})
	if err != nil {
		return errors.InternalError("failed to encode label value", err)
	}

	_, err = c.call(ctx, http.MethodPatch, u, payload)
	return err
}

// PublishEvent emits an event payload through an emulated device.
func (c *Client) PublishEvent(ctx context.Context, projectID, deviceID string, payload interface{}) error {
	u := fmt.Sprintf("%s/projects/%s/devices/%s:publish",
		c.emuBase, url.PathEscape(projectID), url.PathEscape(deviceID))

	encoded, err := json.Marshal(payload)
	if err != nil {
		return errors.InternalError("failed to encode event payload", err)
	}

	_, err = c.call(ctx, http.MethodPost, u, encoded)
	return err
}

// call runs one logical API call: transient failures are retried with
// backoff, and a credential rejection triggers exactly one forced token
// refresh followed by a final attempt.
func (c *Client) call(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	body, err := c.attemptWithRetry(ctx, method, rawURL, payload)

	if err != nil && errors.GetType(err) == errors.ErrTypeAuth {
		c.logger.Info("Cached token rejected, forcing refresh",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: rawURL},
		)
		c.tokens.Invalidate()
		body, err = c.once(ctx, method, rawURL, payload)
	}

	return body, err
}

func (c *Client) attemptWithRetry(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	var body []byte

	attempt := 0
	err := utils.RetryWithBackoff(ctx, c.retry, func() error {
		attempt++
		var onceErr error
		body, onceErr = c.once(ctx, method, rawURL, payload)
		if onceErr != nil {
			c.logger.Warn("Platform API call failed",
				logging.Field{Key: "method", Value: method},
				logging.Field{Key: "url", Value: rawURL},
				logging.Field{Key: "attempt", Value: attempt},
				logging.Field{Key: "error", Value: onceErr.Error()},
			)
		}
		return onceErr
	})

	if err != nil && ctx.Err() != nil {
		return nil, errors.TimeoutError("platform API call")
	}

	return body, err
}

// once performs a single request/response cycle.
func (c *Client) once(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	auth, err := c.tokens.AuthorizationHeader(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, errors.PermanentError("failed to create request").WithContext("url", rawURL)
	}

	req.Header.Set("Authorization", auth)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var resp *http.Response
	err = c.breaker.Execute(ctx, func() error {
		var httpErr error
		resp, httpErr = c.httpClient.Do(req)
		return httpErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.TimeoutError("platform API call")
		}
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr
		}
		return nil, errors.TransientError("platform API unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.TransientError("failed to read response body", err)
	}

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err.WithContext("status", resp.StatusCode).WithContext("url", rawURL)
	}

	return respBody, nil
}

// classifyStatus maps an HTTP status to the error taxonomy: 2xx success,
// 401/403 auth, 429 and 5xx transient, any other 4xx permanent.
func classifyStatus(status int) *errors.AppError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.AuthError("platform API rejected credentials", nil)
	case status == http.StatusTooManyRequests || status >= 500:
		return errors.TransientError(fmt.Sprintf("platform API returned status %d", status), nil)
	default:
		return errors.PermanentError(fmt.Sprintf("platform API returned status %d", status))
	}
}
