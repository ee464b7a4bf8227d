package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/colabtools/colabctl/internal/core/constants"
	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/core/ports"
	"github.com/colabtools/colabctl/internal/logger"
)

const DefaultTimeout = 30 * time.Second

// Client is the authenticated HTTP transport under the Colab API
// client. It injects the bearer token and surfaces typed errors; it
// never retries, that is the layer above's job.
type Client struct {
	http   *http.Client
	tokens ports.AccessTokenSource
	logger *logger.StyledLogger
}

func New(tokens ports.AccessTokenSource, timeout time.Duration, log *logger.StyledLogger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		tokens: tokens,
		logger: log,
	}
}

// Do performs one authenticated request. A non-nil body is sent as
// JSON. Responses with no content (204, or any DELETE) return nil.
// Non-2xx responses return *domain.HTTPError.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	token, err := c.tokens.Token(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("acquire access token: %w", err)
	}
	req.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
	req.Header.Set(constants.HeaderUserAgent, constants.UserAgent)
	if body != nil {
		req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(rc io.ReadCloser) {
		_ = rc.Close()
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("upstream request failed", "method", method, "url", url, "status", resp.StatusCode)
		return nil, &domain.HTTPError{
			StatusCode: resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       truncate(string(data), 512),
			URL:        url,
		}
	}

	if resp.StatusCode == http.StatusNoContent || method == http.MethodDelete {
		return nil, nil
	}

	return data, nil
}

// Validator lets response types assert their own required fields
type Validator interface {
	Validate() error
}

// Decode parses a JSON payload into T. Parse failures and failed
// validation both surface as *domain.SchemaError with the payload.
func Decode[T any](payload []byte, url string) (*T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &domain.SchemaError{Err: err, URL: url, Payload: truncate(string(payload), 512)}
	}
	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, &domain.SchemaError{Err: err, URL: url, Payload: truncate(string(payload), 512)}
		}
	}
	return &out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
