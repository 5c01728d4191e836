package model

import "time"

// Well-known configuration keys.
const (
	ConfigVatType      = "vat_type"
	ConfigVatRate      = "vat_rate"
	ConfigTerminalID   = "terminal_id"
	ConfigAPIBaseURL   = "api_base_url"
	ConfigBranchCode   = "branch_code"
	ConfigCurrency     = "currency"
	ConfigWarehouseKey = "warehouse_key"
)

// Configuration is a terminal-local key/value setting (VAT defaults, terminal
// identity, sync endpoint). Keyed by name, no surrogate ID.
type Configuration struct {
	Key         string    `gorm:"type:varchar(100);primaryKey" json:"key"`
	Value       string    `gorm:"type:text;not null" json:"value"`
	Description string    `gorm:"type:text" json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}
