package accountsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// InternalAPIKeyHeader carries the shared key on service-to-service calls.
const InternalAPIKeyHeader = "X-Internal-Api-Key"

// SDKClient is a client for the accounts service. It provides the
// unauthenticated operations and creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login opens a session for a password user.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	var tok LoginResponse
	if err := c.send(ctx, http.MethodPost, "/v1/auth/login", "", nil, req, &tok, http.StatusOK); err != nil {
		return nil, err
	}
	return &Session{client: c, token: tok}, nil
}

// NewSessionFromToken wraps an access token obtained elsewhere.
func (c *SDKClient) NewSessionFromToken(accessToken string) *Session {
	return &Session{client: c, token: LoginResponse{AccessToken: accessToken, TokenType: "Bearer"}}
}

// InitAdmin creates the first admin of a tenant.
func (c *SDKClient) InitAdmin(ctx context.Context, internalKey string, req InitAdminRequest) (*User, error) {
	var u User
	headers := map[string]string{InternalAPIKeyHeader: internalKey}
	if err := c.send(ctx, http.MethodPost, "/v1/users/init", "", headers, req, &u, http.StatusOK); err != nil {
		return nil, err
	}
	return &u, nil
}

// AcceptInvite redeems an invitation code and returns the new user.
func (c *SDKClient) AcceptInvite(ctx context.Context, req AcceptInviteRequest) (*User, error) {
	var u User
	if err := c.send(ctx, http.MethodPost, "/v1/users/invite/accept", "", nil, req, &u, http.StatusOK); err != nil {
		return nil, err
	}
	return &u, nil
}

// TenantUser resolves a user id or email to its tenant.
func (c *SDKClient) TenantUser(ctx context.Context, internalKey, idOrEmail string) (*TenantUser, error) {
	var tu TenantUser
	headers := map[string]string{InternalAPIKeyHeader: internalKey}
	path := "/v1/tenants/users/" + url.PathEscape(idOrEmail)
	if err := c.send(ctx, http.MethodGet, path, "", headers, nil, &tu, http.StatusOK); err != nil {
		return nil, err
	}
	return &tu, nil
}

func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	if err := c.send(ctx, http.MethodGet, "/livez", "", nil, nil, &h, http.StatusOK); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	if err := c.send(ctx, http.MethodGet, "/readyz", "", nil, nil, &h, http.StatusOK); err != nil {
		return nil, err
	}
	return &h, nil
}

// send performs one JSON round trip. body and target may be nil.
func (c *SDKClient) send(
	ctx context.Context,
	method, path, token string,
	headers map[string]string,
	body, target any,
	expectedStatus int,
) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	h := map[string]string{"Accept": "application/json"}
	if reader != nil {
		h["Content-Type"] = "application/json"
	}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	for k, v := range headers {
		h[k] = v
	}

	resp, err := c.doRequest(ctx, method, path, reader, h)
	if err != nil {
		return err
	}

	if target == nil {
		return checkStatus(resp, expectedStatus)
	}
	return decodeJSON(resp, target, expectedStatus)
}
