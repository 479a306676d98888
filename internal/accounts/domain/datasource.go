package domain

import "time"

type Datasource struct {
	ID        string         `json:"id"`
	Rev       string         `json:"rev,omitempty"`
	TenantID  string         `json:"tenant_id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Config    map[string]any `json:"config,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Table struct {
	ID           string    `json:"id"`
	DatasourceID string    `json:"datasource_id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

type Query struct {
	ID           string    `json:"id"`
	DatasourceID string    `json:"datasource_id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Selection is what the builder UI currently has open. Any field may be
// empty.
type Selection struct {
	DatasourceID string `json:"selected_datasource_id"`
	QueryID      string `json:"selected_query_id"`
	TableID      string `json:"selected_table_id"`
}
