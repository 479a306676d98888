// Package portal is a client for the account portal, which owns billing
// accounts on hosted deployments.
package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const apiKeyHeader = "x-api-key"

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// AccountHolder returns the holder of the account that email belongs to. The
// boolean is false when email is not an account holder.
func (c *Client) AccountHolder(ctx context.Context, email string) (domain.AccountHolder, bool, error) {
	u := c.BaseURL + "/api/accounts/holder?email=" + url.QueryEscape(email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.AccountHolder{}, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return domain.AccountHolder{}, false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.AccountHolder{}, false, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.AccountHolder{}, false, fmt.Errorf("account portal: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var holder domain.AccountHolder
	if err := json.NewDecoder(resp.Body).Decode(&holder); err != nil {
		return domain.AccountHolder{}, false, fmt.Errorf("failed to decode response: %w", err)
	}
	return holder, true, nil
}
