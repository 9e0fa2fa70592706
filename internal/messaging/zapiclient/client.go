// Package zapiclient wraps the Z-API WhatsApp gateway endpoints used by the
// platform. Each tenant owns a gateway instance; credentials are passed per
// call so one client serves every tenant.
package zapiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/agendadigital/agenda-platform/internal/tenancy"
)

const (
	defaultBaseURL   = "https://api.z-api.io"
	defaultUserAgent = "agenda-messaging/0.1"
)

// Config controls how the client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Client issues requests against the gateway REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		userAgent:  userAgent,
	}
}

// SendTextRequest is one outbound text message.
type SendTextRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (r SendTextRequest) validate() error {
	if strings.TrimSpace(r.Phone) == "" {
		return errors.New("zapiclient: phone is required")
	}
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("zapiclient: message is required")
	}
	return nil
}

// SendTextResponse is the gateway's acknowledgement.
type SendTextResponse struct {
	ZaapID    string `json:"zaapId"`
	MessageID string `json:"messageId"`
}

// SendText posts one text message through the tenant's gateway instance.
func (c *Client) SendText(ctx context.Context, creds tenancy.GatewayCredentials, req SendTextRequest) (*SendTextResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(creds.InstanceID) == "" || strings.TrimSpace(creds.Token) == "" {
		return nil, errors.New("zapiclient: gateway credentials required")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("zapiclient: marshal send body: %w", err)
	}
	path := fmt.Sprintf("/instances/%s/token/%s/send-text", creds.InstanceID, creds.Token)
	data, err := c.invoke(ctx, http.MethodPost, path, creds.ClientToken, body)
	if err != nil {
		return nil, err
	}
	var out SendTextResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("zapiclient: decode send response: %w", err)
	}
	return &out, nil
}

func (c *Client) invoke(ctx context.Context, method, path, clientToken string, body []byte) ([]byte, error) {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("zapiclient: build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		if clientToken != "" {
			req.Header.Set("Client-Token", clientToken)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("zapiclient: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("zapiclient: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("zapiclient: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn("gateway retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 && status <= 599 {
		return true
	}
	return false
}

type apiError struct {
	StatusCode int    `json:"-"`
	Err        string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("zapiclient: %s (status=%d)", e.Message, e.StatusCode)
	}
	if e.Err != "" {
		return fmt.Sprintf("zapiclient: %s (status=%d)", e.Err, e.StatusCode)
	}
	return fmt.Sprintf("zapiclient: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &apiError{StatusCode: status, Message: string(body)}
	}
	parsed.StatusCode = status
	return &parsed
}
