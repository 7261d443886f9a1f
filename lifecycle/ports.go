package lifecycle

import "github.com/frostbean/freezedry-api/models"

// NotifyEvent identifies a notification template
type NotifyEvent string

const (
	EventOrderConfirmed    NotifyEvent = "order_confirmed"
	EventTrackingSubmitted NotifyEvent = "tracking_submitted"
	EventPackageReceived   NotifyEvent = "package_received"
	EventProcessingStage   NotifyEvent = "processing_stage"
	EventPaymentReady      NotifyEvent = "payment_ready"
	EventPaymentCompleted  NotifyEvent = "payment_completed"
)

// NotifyResult reports whether a notification was accepted for delivery.
// Notification is advisory: implementations must never return an error that
// would abort the transition that triggered it.
type NotifyResult struct {
	Success bool
}

// Notifier dispatches a notification for an order event. Implementations
// resolve the recipient (client email, or admin email via the assigned-admin /
// admin-client-relation chain) and deliver asynchronously.
type Notifier interface {
	Notify(event NotifyEvent, order *models.Order, extra map[string]string) NotifyResult
}

// DraftOrderRequest carries the order details sent to the commerce backend
// when creating a payable draft order
type DraftOrderRequest struct {
	OrderNumber     string
	CoffeeType      string
	QuantityKg      float64
	Email           string
	ShippingAddress string
	Note            string
}

// DraftOrder is the provisional unpaid order created in the commerce backend
type DraftOrder struct {
	ID          string
	CheckoutURL string
}

// Gateway creates draft orders against the external commerce backend.
// Implementations return *GatewayError on non-2xx responses.
type Gateway interface {
	CreateDraftOrder(req DraftOrderRequest) (*DraftOrder, error)
}
