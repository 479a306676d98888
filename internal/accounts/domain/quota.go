package domain

import "time"

type QuotaCounts struct {
	Users int `json:"users"`
	Apps  int `json:"apps"`
}

// UsageQuota is the per-tenant metering singleton on hosted deployments.
type UsageQuota struct {
	ID        string      `json:"id"`
	Rev       string      `json:"rev,omitempty"`
	TenantID  string      `json:"tenant_id"`
	Usage     QuotaCounts `json:"usage"`
	Limits    QuotaCounts `json:"limits"`
	CreatedAt time.Time   `json:"created_at"`
}
