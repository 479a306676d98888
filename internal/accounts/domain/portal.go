package domain

// AccountHolder is the owner of a hosted account as reported by the
// account portal.
type AccountHolder struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}
