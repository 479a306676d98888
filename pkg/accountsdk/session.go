package accountsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Session performs operations on behalf of a signed-in user.
type Session struct {
	client *SDKClient
	token  LoginResponse
}

func (s *Session) AccessToken() string { return s.token.AccessToken }
func (s *Session) SessionID() string   { return s.token.SessionID }

func (s *Session) do(ctx context.Context, method, path string, body, target any, expectedStatus int) error {
	return s.client.send(ctx, method, path, s.token.AccessToken, nil, body, target, expectedStatus)
}

// Logout revokes this session. The Session must not be used afterwards.
func (s *Session) Logout(ctx context.Context) error {
	return s.do(ctx, http.MethodPost, "/v1/auth/logout", nil, nil, http.StatusNoContent)
}

func (s *Session) Self(ctx context.Context) (*Self, error) {
	var self Self
	if err := s.do(ctx, http.MethodGet, "/v1/self", nil, &self, http.StatusOK); err != nil {
		return nil, err
	}
	return &self, nil
}

// UpdateSelf changes the signed-in user's profile. A new password logs out
// every other session of the user.
func (s *Session) UpdateSelf(ctx context.Context, req UpdateSelfRequest) (*UpdateSelfResponse, error) {
	var res UpdateSelfResponse
	if err := s.do(ctx, http.MethodPost, "/v1/self", req, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

// Admin operations

func (s *Session) SaveUser(ctx context.Context, req SaveUserRequest) (*SaveUserResponse, error) {
	var res SaveUserResponse
	if err := s.do(ctx, http.MethodPost, "/v1/users", req, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Session) DeleteUser(ctx context.Context, userID string) (*MessageResponse, error) {
	var res MessageResponse
	if err := s.do(ctx, http.MethodDelete, "/v1/users/"+url.PathEscape(userID), nil, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveAppRole strips appID from the roles of every user in the tenant.
func (s *Session) RemoveAppRole(ctx context.Context, appID string) (*MessageResponse, error) {
	var res MessageResponse
	if err := s.do(ctx, http.MethodDelete, "/v1/users/roles/"+url.PathEscape(appID), nil, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Session) Invite(ctx context.Context, req InviteRequest) (*MessageResponse, error) {
	var res MessageResponse
	if err := s.do(ctx, http.MethodPost, "/v1/users/invite", req, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

// Tenant reads

func (s *Session) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.do(ctx, http.MethodGet, "/v1/users", nil, &users, http.StatusOK); err != nil {
		return nil, err
	}
	return users, nil
}

// FindUser returns nil without error when the user does not exist.
func (s *Session) FindUser(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := s.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID), nil, &u, http.StatusOK); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, nil
	}
	return &u, nil
}

// Datasources

func (s *Session) ListDatasources(ctx context.Context) ([]Datasource, error) {
	var dss []Datasource
	if err := s.do(ctx, http.MethodGet, "/v1/datasources", nil, &dss, http.StatusOK); err != nil {
		return nil, err
	}
	return dss, nil
}

func (s *Session) CreateDatasource(ctx context.Context, req CreateDatasourceRequest) (*Datasource, error) {
	var ds Datasource
	if err := s.do(ctx, http.MethodPost, "/v1/datasources", req, &ds, http.StatusCreated); err != nil {
		return nil, err
	}
	return &ds, nil
}

func (s *Session) UpdateDatasource(ctx context.Context, id string, req UpdateDatasourceRequest) (*Datasource, error) {
	var ds Datasource
	if err := s.do(ctx, http.MethodPut, "/v1/datasources/"+url.PathEscape(id), req, &ds, http.StatusOK); err != nil {
		return nil, err
	}
	return &ds, nil
}

// DeleteDatasource deletes id. sel is what the builder has open, the
// response says where to navigate when that view was part of the datasource.
func (s *Session) DeleteDatasource(ctx context.Context, id string, sel Selection) (*DeleteDatasourceResponse, error) {
	var res DeleteDatasourceResponse
	if err := s.do(ctx, http.MethodPost, "/v1/datasources/"+url.PathEscape(id)+"/delete", sel, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Session) CreateTable(ctx context.Context, datasourceID, name string) (*Child, error) {
	var t Child
	body := map[string]string{"name": name}
	if err := s.do(ctx, http.MethodPost, "/v1/datasources/"+url.PathEscape(datasourceID)+"/tables", body, &t, http.StatusCreated); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Session) CreateQuery(ctx context.Context, datasourceID, name string) (*Child, error) {
	var q Child
	body := map[string]string{"name": name}
	if err := s.do(ctx, http.MethodPost, "/v1/datasources/"+url.PathEscape(datasourceID)+"/queries", body, &q, http.StatusCreated); err != nil {
		return nil, err
	}
	return &q, nil
}
