package accountsdk_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/accounts/pkg/accountsdk"
	"github.com/stretchr/testify/require"
)

func TestLoginAndSelf(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req accountsdk.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "a@x.com", req.Email)
		_ = json.NewEncoder(w).Encode(accountsdk.LoginResponse{AccessToken: "tok", TokenType: "Bearer", SessionID: "se_1"})
	})
	mux.HandleFunc("GET /v1/self", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(accountsdk.Self{User: accountsdk.User{ID: "us_1"}, PlatformAccess: true})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	client := accountsdk.NewSDKClient(srv.URL + "/")

	session, err := client.Login(ctx, accountsdk.LoginRequest{Email: "a@x.com", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "se_1", session.SessionID())

	self, err := session.Self(ctx)
	require.NoError(t, err)
	require.Equal(t, "us_1", self.ID)
	require.True(t, self.PlatformAccess)
}

func TestErrorsAreTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/users":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"validation_error","error_description":"validation failed","fields":{"email":"email must be a valid email address"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html>bad gateway</html>`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	session := accountsdk.NewSDKClient(srv.URL).NewSessionFromToken("tok")

	_, err := session.SaveUser(ctx, accountsdk.SaveUserRequest{Email: "nope"})
	var apiErr *accountsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, accountsdk.ErrorCodeValidation, apiErr.Code)
	require.Contains(t, apiErr.Fields, "email")
	require.True(t, accountsdk.IsCode(err, accountsdk.ErrorCodeValidation))

	_, err = session.ListUsers(ctx)
	require.True(t, errors.Is(err, &accountsdk.APIError{Code: accountsdk.ErrorCodeServerError}))
	require.False(t, errors.Is(err, &accountsdk.APIError{Code: accountsdk.ErrorCodeServerError, StatusCode: http.StatusInternalServerError}))
}

func TestFindUserMissingReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	u, err := accountsdk.NewSDKClient(srv.URL).NewSessionFromToken("tok").FindUser(context.Background(), "us_x")
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestInternalKeyHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k", r.Header.Get(accountsdk.InternalAPIKeyHeader))
		require.Equal(t, "/v1/tenants/users/a@x.com", r.URL.Path)
		_, _ = w.Write([]byte(`{"user_id":"us_1","email":"a@x.com","tenant_id":"default"}`))
	}))
	defer srv.Close()

	tu, err := accountsdk.NewSDKClient(srv.URL).TenantUser(context.Background(), "k", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, "default", tu.TenantID)
}
