package domain

import "time"

// InviteInfo is the registration payload carried by an invite. The grants
// are applied to the user created on acceptance.
type InviteInfo struct {
	Roles   map[string]string `json:"roles,omitempty"`
	Admin   *Capability       `json:"admin,omitempty"`
	Builder *Capability       `json:"builder,omitempty"`
}

// Invite is a pending registration. The raw code is only ever sent to the
// invitee, we keep its fingerprint.
type Invite struct {
	CodeHash  string
	Email     string
	TenantID  string
	InvitedBy string
	Info      InviteInfo
	ExpiresAt time.Time
	CreatedAt time.Time
}

// InviteEmail is the templated invitation handed to the email dispatcher.
type InviteEmail struct {
	To        string    `json:"to" msgpack:"to"`
	TenantID  string    `json:"tenant_id" msgpack:"tenant_id"`
	InvitedBy string    `json:"invited_by" msgpack:"invited_by"`
	Code      string    `json:"code" msgpack:"code"`
	AcceptURL string    `json:"accept_url" msgpack:"accept_url"`
	ExpiresAt time.Time `json:"expires_at" msgpack:"expires_at"`
}
