package models

import (
	"time"

	"gorm.io/gorm"
)

// MachineStatus represents the availability of a freeze-drying machine
type MachineStatus string

const (
	MachineAvailable   MachineStatus = "available"
	MachineInUse       MachineStatus = "in_use"
	MachineMaintenance MachineStatus = "maintenance"
	MachineOffline     MachineStatus = "offline"
)

// Machine represents a physical freeze-drying unit
type Machine struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"not null" json:"name"`
	Code       string         `gorm:"uniqueIndex;not null" json:"code"`
	CapacityKg float64        `gorm:"not null" json:"capacity_kg"`
	Status     MachineStatus  `gorm:"not null;default:'available'" json:"status"`
	Notes      string         `json:"notes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Machine model
func (Machine) TableName() string {
	return "machines"
}

// Assignable reports whether new orders may be placed on this machine.
// Machines under maintenance or offline are never assignable.
func (m *Machine) Assignable() bool {
	return m.Status == MachineAvailable
}
