package models

import (
	"time"

	"gorm.io/gorm"
)

// Stage is the fine-grained processing step of a freeze-drying order.
// It is the single stored state value; the coarse Status is derived from it.
type Stage string

const (
	StagePendingConfirmation Stage = "pending_confirmation"
	StageAwaitingShipment    Stage = "awaiting_shipment"
	StagePackageInTransit    Stage = "package_in_transit"
	StagePreFreezePrep       Stage = "pre_freeze_prep"
	StageFreezing            Stage = "freezing"
	StagePostFreeze          Stage = "post_freeze"
	StagePackaging           Stage = "packaging"
	StageCompleted           Stage = "completed"
	StagePaymentPending      Stage = "payment_pending"
	StagePaymentCompleted    Stage = "payment_completed"
	StageShippedToCustomer   Stage = "shipped_to_customer"
	StageCancelled           Stage = "cancelled"
)

// Status is the coarse order state used in admin dashboards and by the
// machine-assignment rules. It is never persisted; StatusForStage computes it.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// stageStatus maps every stage to its coarse status. Package receipt keeps the
// order in "confirmed": it only becomes "in_progress" once a machine is
// assigned and processing starts.
var stageStatus = map[Stage]Status{
	StagePendingConfirmation: StatusPending,
	StageAwaitingShipment:    StatusConfirmed,
	StagePackageInTransit:    StatusConfirmed,
	StagePreFreezePrep:       StatusConfirmed,
	StageFreezing:            StatusInProgress,
	StagePostFreeze:          StatusInProgress,
	StagePackaging:           StatusInProgress,
	StageCompleted:           StatusCompleted,
	StagePaymentPending:      StatusCompleted,
	StagePaymentCompleted:    StatusCompleted,
	StageShippedToCustomer:   StatusCompleted,
	StageCancelled:           StatusCancelled,
}

// clientStageLabels translates internal stage names into the wording shown to
// clients. Stages not listed here display under their internal name.
var clientStageLabels = map[Stage]string{
	StagePreFreezePrep: "package_received",
	StageFreezing:      "freeze_drying",
	StagePackaging:     "final_packaging",
	StageCompleted:     "ready_for_payment",
}

// StatusForStage returns the coarse status derived from a stage.
func StatusForStage(stage Stage) Status {
	if s, ok := stageStatus[stage]; ok {
		return s
	}
	return StatusPending
}

// KnownStage reports whether stage is one of the defined pipeline stages.
func KnownStage(stage Stage) bool {
	_, ok := stageStatus[stage]
	return ok
}

// ProcessingStage reports whether stage is an active processing step that
// should trigger a progress notification to the client.
func ProcessingStage(stage Stage) bool {
	switch stage {
	case StagePreFreezePrep, StageFreezing, StagePostFreeze, StagePackaging:
		return true
	}
	return false
}

// Order represents a coffee freeze-drying processing order
type Order struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OrderNumber string `gorm:"uniqueIndex;not null" json:"order_number"`

	ClientID  uint     `gorm:"not null;index" json:"client_id"`
	Client    Profile  `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	AdminID   *uint    `gorm:"index" json:"admin_id"` // nullable, set when an admin confirms
	MachineID *uint    `gorm:"index" json:"machine_id"`
	Machine   *Machine `gorm:"foreignKey:MachineID" json:"machine,omitempty"`

	CoffeeType          string     `gorm:"not null" json:"coffee_type"`
	QuantityKg          float64    `gorm:"not null;check:quantity_kg > 0" json:"quantity_kg"`
	RoastLevel          *string    `json:"roast_level"`
	GrindSize           *string    `json:"grind_size"`
	SpecialInstructions *string    `json:"special_instructions"`
	ShippingAddress     *string    `json:"shipping_address"` // where the finished product ships back to
	OrderDate           time.Time  `json:"order_date"`
	RequestedCompletion *time.Time `json:"requested_completion_date"`
	ActualCompletion    *time.Time `json:"actual_completion_date"`

	// Single stored state value. Status, OrderStage and UnifiedStatus are all
	// derived views of it, filled in by the AfterFind/AfterSave hooks.
	Stage         Stage  `gorm:"not null;default:'pending_confirmation';index" json:"-"`
	Status        Status `gorm:"-" json:"status"`
	OrderStage    Stage  `gorm:"-" json:"order_stage"`    // admin-facing label
	UnifiedStatus string `gorm:"-" json:"unified_status"` // client-facing label

	TrackingNumber      *string    `json:"tracking_number"`
	TrackingConfirmedAt *time.Time `json:"tracking_confirmed_at"`
	PackageReceived     bool       `gorm:"not null;default:false" json:"package_received"`
	PackageReceivedAt   *time.Time `json:"package_received_at"`

	DraftOrderID       *string    `gorm:"index" json:"draft_order_id"`
	CheckoutURL        *string    `json:"checkout_url"`
	PaymentCompleted   bool       `gorm:"not null;default:false" json:"payment_completed"`
	PaymentCompletedAt *time.Time `json:"payment_completed_at"`
	ExternalOrderID    *string    `gorm:"index" json:"external_order_id"`

	// Client snapshot captured at creation time so order history survives
	// later profile edits.
	ClientName    string `json:"client_name"`
	ClientEmail   string `json:"client_email"`
	ClientCompany string `json:"client_company"`
	ClientPhone   string `json:"client_phone"`

	Version   uint           `gorm:"not null;default:0" json:"-"` // optimistic lock counter
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// SyncDerived recomputes the derived status fields from the stored stage.
func (o *Order) SyncDerived() {
	o.Status = StatusForStage(o.Stage)
	o.OrderStage = o.Stage
	if label, ok := clientStageLabels[o.Stage]; ok {
		o.UnifiedStatus = label
	} else {
		o.UnifiedStatus = string(o.Stage)
	}
}

// AfterFind fills in the derived status fields on every load
func (o *Order) AfterFind(tx *gorm.DB) error {
	o.SyncDerived()
	return nil
}

// AfterSave keeps the derived fields in sync when a record is written back
func (o *Order) AfterSave(tx *gorm.DB) error {
	o.SyncDerived()
	return nil
}
