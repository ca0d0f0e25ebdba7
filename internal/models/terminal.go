package models

import (
	"time"
)

// Terminal statuses
const (
	TerminalStatusActive      = "active"
	TerminalStatusInactive    = "inactive"
	TerminalStatusMaintenance = "maintenance"
)

// Terminal connection statuses
const (
	ConnectionOnline  = "online"
	ConnectionOffline = "offline"
)

// Terminal represents a physical point-of-sale device at a vendor location.
type Terminal struct {
	ID               int        `json:"id" db:"id"`
	TerminalID       string     `json:"terminal_id" db:"terminal_id"`
	SerialNumber     string     `json:"serial_number" db:"serial_number"`
	Model            string     `json:"model" db:"model"`
	Gateway          string     `json:"gateway" db:"gateway"`
	VendorID         string     `json:"vendor_id" db:"vendor_id"`
	SchoolID         string     `json:"school_id" db:"school_id"`
	Status           string     `json:"status" db:"status"`
	ConnectionStatus string     `json:"connection_status" db:"connection_status"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`
	FirmwareVersion  string     `json:"firmware_version,omitempty" db:"firmware_version"`
	BatteryLevel     *int       `json:"battery_level,omitempty" db:"battery_level"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// TerminalFilter narrows Terminal listings.
type TerminalFilter struct {
	VendorID string
	SchoolID string
}

// TerminalStatusFields carries the optional fields of a merge update. Nil
// fields are left untouched.
type TerminalStatusFields struct {
	FirmwareVersion  *string `json:"firmware_version,omitempty"`
	BatteryLevel     *int    `json:"battery_level,omitempty"`
	ConnectionStatus *string `json:"connection_status,omitempty"`
}
