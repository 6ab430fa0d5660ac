package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prepfox/prepfox-ops/internal/core/retry"
)

// HTTPInvoker calls functions as POST {baseURL}/{name} with a JSON body.
type HTTPInvoker struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPInvoker creates a new HTTP function invoker.
func NewHTTPInvoker(baseURL, apiKey string, timeout time.Duration) *HTTPInvoker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPInvoker{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Invoke calls the function and decodes its JSON response into out.
func (i *HTTPInvoker) Invoke(ctx context.Context, name string, payload any, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return retry.NewError("marshal request", err, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/"+name, bytes.NewReader(jsonData))
	if err != nil {
		return retry.NewError("create request", err, false)
	}
	req.Header.Set("Content-Type", "application/json")
	if i.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+i.apiKey)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("invoke %s: %w", name, err)
		}
		return retry.NewError("network error invoking "+name, err, true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.NewError("read response", err, true)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.NewError(
			fmt.Sprintf("function %s rate limited (429), retry after: %s", name, resp.Header.Get("Retry-After")),
			nil,
			true,
		)
	case resp.StatusCode >= 500:
		return retry.NewError(fmt.Sprintf("function %s: http %d: %s", name, resp.StatusCode, string(body)), nil, true)
	case resp.StatusCode >= 400:
		return retry.NewError(fmt.Sprintf("function %s: http %d: %s", name, resp.StatusCode, string(body)), nil, false)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return retry.NewError("parse response", err, false)
	}
	return nil
}

// Close cleans up resources.
func (i *HTTPInvoker) Close() error {
	i.httpClient.CloseIdleConnections()
	return nil
}
