package models

import "time"

// OrderLog is an immutable audit entry recorded on every order transition.
// Entries are append-only: nothing in the codebase updates or deletes them.
type OrderLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	UserID    *uint     `json:"user_id"` // nil for system-generated entries (webhooks)
	Action    string    `gorm:"not null" json:"action"`
	FromStage Stage     `json:"from_stage"`
	ToStage   Stage     `json:"to_stage"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the OrderLog model
func (OrderLog) TableName() string {
	return "order_logs"
}
