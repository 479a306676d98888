package accountsdk

import "time"

type Capability struct {
	Global bool     `json:"global"`
	Apps   []string `json:"apps,omitempty"`
}

type User struct {
	ID        string            `json:"id"`
	Rev       string            `json:"rev,omitempty"`
	TenantID  string            `json:"tenant_id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Roles     map[string]string `json:"roles"`
	Builder   *Capability       `json:"builder,omitempty"`
	Admin     *Capability       `json:"admin,omitempty"`
	Status    string            `json:"status,omitempty"`
	SSOID     string            `json:"sso_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Self is the signed-in user with the access flags of the session.
type Self struct {
	User
	AccountPortalAccess bool `json:"account_portal_access"`
	PlatformAccess      bool `json:"platform_access"`
}

type TenantUser struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenant_id,omitempty"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	SessionID   string `json:"session_id"`
}

type InitAdminRequest struct {
	Email               string `json:"email"`
	Password            string `json:"password,omitempty"`
	TenantID            string `json:"tenant_id,omitempty"`
	HashedPassword      bool   `json:"hashed_password,omitempty"`
	PasswordNotRequired bool   `json:"password_not_required,omitempty"`
	SSOID               string `json:"sso_id,omitempty"`
}

// SaveUserRequest creates a user when ID is empty and updates it otherwise.
// Updates must carry the Rev that was read.
type SaveUserRequest struct {
	ID        string            `json:"id,omitempty"`
	Rev       string            `json:"rev,omitempty"`
	Email     string            `json:"email"`
	Password  string            `json:"password,omitempty"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Roles     map[string]string `json:"roles,omitempty"`
	Builder   *Capability       `json:"builder,omitempty"`
	Admin     *Capability       `json:"admin,omitempty"`
	Status    string            `json:"status,omitempty"`
	SSOID     string            `json:"sso_id,omitempty"`
}

type SaveUserResponse struct {
	ID    string `json:"id"`
	Rev   string `json:"rev"`
	Email string `json:"email"`
}

// UpdateSelfRequest only carries what a user may change about themselves.
type UpdateSelfRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Password  *string `json:"password,omitempty"`
}

type UpdateSelfResponse struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

type InviteInfo struct {
	Roles   map[string]string `json:"roles,omitempty"`
	Admin   *Capability       `json:"admin,omitempty"`
	Builder *Capability       `json:"builder,omitempty"`
}

type InviteRequest struct {
	Email string     `json:"email"`
	Info  InviteInfo `json:"info"`
}

type AcceptInviteRequest struct {
	InviteCode string `json:"invite_code"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Datasource struct {
	ID        string         `json:"id"`
	Rev       string         `json:"rev,omitempty"`
	TenantID  string         `json:"tenant_id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Config    map[string]any `json:"config,omitempty"`
	Tables    []Child        `json:"tables,omitempty"`
	Queries   []Child        `json:"queries,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Child is a table or query of a datasource.
type Child struct {
	ID           string    `json:"id"`
	DatasourceID string    `json:"datasource_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateDatasourceRequest struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

type UpdateDatasourceRequest struct {
	Rev    string         `json:"rev"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}

// Selection is what the builder has open when it deletes a datasource.
type Selection struct {
	DatasourceID string `json:"selected_datasource_id,omitempty"`
	QueryID      string `json:"selected_query_id,omitempty"`
	TableID      string `json:"selected_table_id,omitempty"`
}

type DeleteDatasourceResponse struct {
	Message    string `json:"message"`
	NavigateTo string `json:"navigate_to"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
