package models

import (
	"time"

	"gorm.io/gorm"
)

// Profile represents a user of the system (admin or client)
type Profile struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"not null" json:"name"`
	Email   string `gorm:"uniqueIndex;not null" json:"email"`
	Role    string `gorm:"not null;default:'client'" json:"role"` // "admin" or "client"
	Company string `json:"company"`
	Phone   string `json:"phone"`

	// Admin shipping address: where clients send their coffee for processing.
	ShippingAddress string         `json:"shipping_address"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Profile model
func (Profile) TableName() string {
	return "profiles"
}

// IsAdmin reports whether the profile carries the admin role
func (p *Profile) IsAdmin() bool {
	return p.Role == "admin"
}

// AdminClient links an admin to a client, granting the admin visibility into
// the client's orders. Created manually or the first time a client selects
// that admin when submitting an order.
type AdminClient struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AdminID   uint      `gorm:"not null;uniqueIndex:idx_admin_client" json:"admin_id"`
	ClientID  uint      `gorm:"not null;uniqueIndex:idx_admin_client" json:"client_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the AdminClient model
func (AdminClient) TableName() string {
	return "admin_clients"
}
