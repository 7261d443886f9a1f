package lifecycle

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/frostbean/freezedry-api/models"
	"github.com/frostbean/freezedry-api/store"
	"github.com/frostbean/freezedry-api/utils"
)

// Controller is the single authority for mutating order stage and machine
// fields. Every transition runs inside a store transaction guarded by the
// order's version, appends an audit log entry, and dispatches its
// notifications only after the transaction has committed.
type Controller struct {
	store    store.Store
	notifier Notifier
	gateway  Gateway
}

// NewController creates a lifecycle controller
func NewController(st store.Store, notifier Notifier, gateway Gateway) *Controller {
	return &Controller{store: st, notifier: notifier, gateway: gateway}
}

var controllerInstance *Controller

// Init initializes the global controller instance
func Init(st store.Store, notifier Notifier, gateway Gateway) *Controller {
	controllerInstance = NewController(st, notifier, gateway)
	return controllerInstance
}

// GetController returns the initialized controller instance
func GetController() *Controller {
	return controllerInstance
}

// SetController sets the controller instance (primarily for testing)
func SetController(c *Controller) {
	controllerInstance = c
}

// CreateOrderInput carries the client-supplied fields for a new order
type CreateOrderInput struct {
	ClientID            uint
	AdminID             *uint // provider selected by the client, optional
	CoffeeType          string
	QuantityKg          float64
	RoastLevel          *string
	GrindSize           *string
	SpecialInstructions *string
	ShippingAddress     *string
	RequestedCompletion *time.Time
}

// Create validates the input, generates a unique order number, snapshots the
// client's contact details, and inserts the order in stage
// pending_confirmation. If the client selected a provider and no admin-client
// relation exists yet, the relation is created and logged as its own step.
func (c *Controller) Create(in CreateOrderInput) (*models.Order, error) {
	if in.CoffeeType == "" {
		return nil, &ValidationError{Message: "coffee_type is required"}
	}
	if in.QuantityKg <= 0 {
		return nil, &ValidationError{Message: "quantity_kg must be positive"}
	}

	client, err := c.store.GetProfile(in.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{Resource: "profile", ID: idStr(in.ClientID)}
		}
		return nil, err
	}

	if in.AdminID != nil {
		admin, err := c.store.GetProfile(*in.AdminID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, &NotFoundError{Resource: "profile", ID: idStr(*in.AdminID)}
			}
			return nil, err
		}
		if !admin.IsAdmin() {
			return nil, &ValidationError{Message: "selected provider is not an admin"}
		}
	}

	orderNumber, err := c.uniqueOrderNumber()
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber:         orderNumber,
		ClientID:            client.ID,
		CoffeeType:          in.CoffeeType,
		QuantityKg:          in.QuantityKg,
		RoastLevel:          in.RoastLevel,
		GrindSize:           in.GrindSize,
		SpecialInstructions: in.SpecialInstructions,
		ShippingAddress:     in.ShippingAddress,
		RequestedCompletion: in.RequestedCompletion,
		OrderDate:           time.Now().UTC(),
		Stage:               models.StagePendingConfirmation,
		ClientName:          client.Name,
		ClientEmail:         client.Email,
		ClientCompany:       client.Company,
		ClientPhone:         client.Phone,
	}

	err = c.store.Transact(func(tx store.Store) error {
		if err := tx.CreateOrder(order); err != nil {
			return err
		}
		if err := tx.AppendLog(&models.OrderLog{
			OrderID: order.ID,
			UserID:  &client.ID,
			Action:  "order_created",
			ToStage: models.StagePendingConfirmation,
		}); err != nil {
			return err
		}
		if in.AdminID != nil {
			created, err := tx.EnsureAdminClient(*in.AdminID, client.ID)
			if err != nil {
				return err
			}
			if created {
				// Explicit, separately-logged step rather than a silent
				// side effect of order submission.
				if err := tx.AppendLog(&models.OrderLog{
					OrderID: order.ID,
					UserID:  &client.ID,
					Action:  "admin_client_linked",
					ToStage: models.StagePendingConfirmation,
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.SyncDerived()
	return order, nil
}

// Confirm moves a pending order to awaiting_shipment, assigns the acting
// admin if no admin is assigned yet, and notifies the client with the
// address their coffee should ship to. Notification failure never rolls back
// the transition.
func (c *Controller) Confirm(orderID uint, actingAdminID uint) (*models.Order, error) {
	var order *models.Order
	err := c.store.Transact(func(tx store.Store) error {
		var err error
		order, err = c.loadOrderFor(tx, orderID, actingAdminID, "admin")
		if err != nil {
			return err
		}
		if order.Stage != models.StagePendingConfirmation {
			return &InvalidTransitionError{From: string(order.Stage), To: string(models.StageAwaitingShipment)}
		}
		from := order.Stage
		order.Stage = models.StageAwaitingShipment
		if order.AdminID == nil {
			order.AdminID = &actingAdminID
		}
		if err := c.updateOrder(tx, order); err != nil {
			return err
		}
		return tx.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			UserID:    &actingAdminID,
			Action:    "order_confirmed",
			FromStage: from,
			ToStage:   order.Stage,
		})
	})
	if err != nil {
		return nil, err
	}

	extra := map[string]string{}
	if profile, err := c.store.GetProfile(*order.AdminID); err == nil {
		extra["ship_to_address"] = profile.ShippingAddress
	}
	c.notify(EventOrderConfirmed, order, extra)
	return order, nil
}

// Reject cancels a pending order. No notification is sent.
func (c *Controller) Reject(orderID uint, actingAdminID uint) (*models.Order, error) {
	var order *models.Order
	err := c.store.Transact(func(tx store.Store) error {
		var err error
		order, err = c.loadOrderFor(tx, orderID, actingAdminID, "admin")
		if err != nil {
			return err
		}
		if order.Stage != models.StagePendingConfirmation {
			return &InvalidTransitionError{From: string(order.Stage), To: string(models.StageCancelled)}
		}
		from := order.Stage
		order.Stage = models.StageCancelled
		if err := c.updateOrder(tx, order); err != nil {
			return err
		}
		return tx.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			UserID:    &actingAdminID,
			Action:    "order_rejected",
			FromStage: from,
			ToStage:   order.Stage,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SubmitTracking records the client's inbound tracking number and moves the
// order to package_in_transit. An existing tracking number is never
// overwritten. The assigned admin is notified best-effort; if no admin can be
// resolved the notification is skipped without failing the request.
func (c *Controller) SubmitTracking(orderID uint, actingUserID uint, trackingNumber string) (*models.Order, error) {
	if trackingNumber == "" {
		return nil, &ValidationError{Message: "tracking_number is required"}
	}

	var order *models.Order
	err := c.store.Transact(func(tx store.Store) error {
		var err error
		order, err = c.loadOrderFor(tx, orderID, actingUserID, "client")
		if err != nil {
			return err
		}
		if order.Stage != models.StageAwaitingShipment {
			return &InvalidTransitionError{From: string(order.Stage), To: string(models.StagePackageInTransit)}
		}
		if order.TrackingNumber != nil {
			return &ValidationError{Message: "tracking number already submitted"}
		}
		now := time.Now().UTC()
		from := order.Stage
		order.TrackingNumber = &trackingNumber
		order.TrackingConfirmedAt = &now
		order.Stage = models.StagePackageInTransit
		if err := c.updateOrder(tx, order); err != nil {
			return err
		}
		return tx.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			UserID:    &actingUserID,
			Action:    "tracking_submitted",
			FromStage: from,
			ToStage:   order.Stage,
			Notes:     &trackingNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	c.notify(EventTrackingSubmitted, order, map[string]string{"tracking_number": trackingNumber})
	return order, nil
}

// ConfirmPackageReceived marks the client's coffee as received at the
// facility and moves the stage to pre_freeze_prep. The coarse status stays
// "confirmed": an order only becomes in_progress once a machine is assigned
// through UpdateStatusAndStage, so the machine invariant holds on every path.
func (c *Controller) ConfirmPackageReceived(orderID uint, actingAdminID uint) (*models.Order, error) {
	var order *models.Order
	err := c.store.Transact(func(tx store.Store) error {
		var err error
		order, err = c.loadOrderFor(tx, orderID, actingAdminID, "admin")
		if err != nil {
			return err
		}
		if order.TrackingNumber == nil {
			return &PreconditionError{Message: "tracking number required before package can be received"}
		}
		if order.PackageReceived {
			return &PreconditionError{Message: "package already received"}
		}
		if order.Stage != models.StagePackageInTransit {
			return &InvalidTransitionError{From: string(order.Stage), To: string(models.StagePreFreezePrep)}
		}
		now := time.Now().UTC()
		from := order.Stage
		order.PackageReceived = true
		order.PackageReceivedAt = &now
		order.Stage = models.StagePreFreezePrep
		if err := c.updateOrder(tx, order); err != nil {
			return err
		}
		return tx.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			UserID:    &actingAdminID,
			Action:    "package_received",
			FromStage: from,
			ToStage:   order.Stage,
		})
	})
	if err != nil {
		return nil, err
	}

	c.notify(EventPackageReceived, order, nil)
	return order, nil
}

// StatusUpdateInput carries the fields for the general-purpose transition
type StatusUpdateInput struct {
	// Status is optional; when provided it must agree with the coarse status
	// derived from Stage.
	Status    models.Status
	Stage     models.Stage
	MachineID *uint
	Notes     *string
}

// UpdateStatusAndStage is the general-purpose admin transition. It validates
// the stage change against the transition table, enforces the machine
// preconditions for active processing, synchronizes machine availability in
// the same transaction, and appends an audit entry. A call that changes
// nothing is rejected with ErrNoChange.
func (c *Controller) UpdateStatusAndStage(orderID uint, actingAdminID uint, in StatusUpdateInput) (*models.Order, error) {
	if !models.KnownStage(in.Stage) {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown stage %q", in.Stage)}
	}
	if in.Status != "" && in.Status != models.StatusForStage(in.Stage) {
		return nil, &ValidationError{Message: fmt.Sprintf("status %q does not match stage %q", in.Status, in.Stage)}
	}

	var order *models.Order
	err := c.store.Transact(func(tx store.Store) error {
		var err error
		order, err = c.loadOrderFor(tx, orderID, actingAdminID, "admin")
		if err != nil {
			return err
		}

		stageChanged := order.Stage != in.Stage
		machineChanged := in.MachineID != nil && (order.MachineID == nil || *order.MachineID != *in.MachineID)
		if !stageChanged && !machineChanged {
			return ErrNoChange
		}
		if stageChanged && !CanTransition(order.Stage, in.Stage) {
			return &InvalidTransitionError{From: string(order.Stage), To: string(in.Stage)}
		}

		if machineChanged {
			// Keeping the invariant an iff: a machine is held exactly while
			// the order is in progress.
			if models.StatusForStage(in.Stage) != models.StatusInProgress {
				return &PreconditionError{Message: "machine can only be assigned when the order enters active processing"}
			}
			machine, err := tx.GetMachine(*in.MachineID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return &NotFoundError{Resource: "machine", ID: idStr(*in.MachineID)}
				}
				return err
			}
			if !machine.Assignable() {
				return &PreconditionError{Message: fmt.Sprintf("machine %s is not available", machine.Code)}
			}
			// Release the previously assigned machine before switching.
			if order.MachineID != nil {
				if err := tx.UpdateMachineStatus(*order.MachineID, models.MachineAvailable); err != nil {
					return err
				}
			}
			order.MachineID = in.MachineID
		}

		oldStatus := models.StatusForStage(order.Stage)
		newStatus := models.StatusForStage(in.Stage)

		if newStatus == models.StatusInProgress && order.MachineID == nil {
			return &PreconditionError{Message: "machine required before entering in_progress"}
		}

		from := order.Stage
		order.Stage = in.Stage

		if newStatus == models.StatusInProgress && (oldStatus != models.StatusInProgress || machineChanged) {
			if err := tx.UpdateMachineStatus(*order.MachineID, models.MachineInUse); err != nil {
				return err
			}
		}
		// Completing or cancelling releases the machine in the same
		// transaction, restoring the status/machine invariant.
		if (newStatus == models.StatusCompleted || newStatus == models.StatusCancelled) && order.MachineID != nil {
			if err := tx.UpdateMachineStatus(*order.MachineID, models.MachineAvailable); err != nil {
				return err
			}
			order.MachineID = nil
		}
		if in.Stage == models.StageCompleted {
			now := time.Now().UTC()
			order.ActualCompletion = &now
		}

		if err := c.updateOrder(tx, order); err != nil {
			return err
		}
		return tx.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			UserID:    &actingAdminID,
			Action:    "status_updated",
			FromStage: from,
			ToStage:   order.Stage,
			Notes:     in.Notes,
		})
	})
	if err != nil {
		return nil, err
	}

	if models.ProcessingStage(order.Stage) {
		c.notify(EventProcessingStage, order, map[string]string{"stage": order.UnifiedStatus})
	}
	return order, nil
}

// CreateExternalCheckout creates a draft order in the commerce backend and
// moves the order to payment_pending with the returned checkout URL. The
// gateway call happens before the store transaction: if persisting fails,
// nothing is written locally and the caller may retry.
func (c *Controller) CreateExternalCheckout(orderID uint, actingAdminID uint) (*models.Order, error) {
	order, err := c.loadOrderFor(c.store, orderID, actingAdminID, "admin")
	if err != nil {
		return nil, err
	}
	if order.Stage != models.StageCompleted {
		return nil, &PreconditionError{Message: "order must be completed before checkout can be created"}
	}
	if order.CheckoutURL != nil {
		return nil, &PreconditionError{Message: "checkout already created for this order"}
	}

	draft, err := c.gateway.CreateDraftOrder(DraftOrderRequest{
		OrderNumber:     order.OrderNumber,
		CoffeeType:      order.CoffeeType,
		QuantityKg:      order.QuantityKg,
		Email:           order.ClientEmail,
		ShippingAddress: c.resolveShippingAddress(order),
		Note:            fmt.Sprintf("Freeze-dry processing for order %s", order.OrderNumber),
	})
	if err != nil {
		return nil, err
	}

	err = c.store.Transact(func(tx store.Store) error {
		var err error
		order, err = c.loadOrderFor(tx, orderID, actingAdminID, "admin")
		if err != nil {
			return err
		}
		// Re-check under the transaction: an admin or webhook may have raced
		// us between the gateway call and now.
		if order.Stage != models.StageCompleted || order.CheckoutURL != nil {
			return &PreconditionError{Message: "order state changed while creating checkout"}
		}
		from := order.Stage
		order.DraftOrderID = &draft.ID
		order.CheckoutURL = &draft.CheckoutURL
		order.Stage = models.StagePaymentPending
		if err := c.updateOrder(tx, order); err != nil {
			return err
		}
		return tx.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			UserID:    &actingAdminID,
			Action:    "checkout_created",
			FromStage: from,
			ToStage:   order.Stage,
			Notes:     &draft.CheckoutURL,
		})
	})
	if err != nil {
		return nil, err
	}

	c.notify(EventPaymentReady, order, map[string]string{"checkout_url": draft.CheckoutURL})
	return order, nil
}

// WebhookEvent is the parsed payload of an inbound commerce webhook
type WebhookEvent struct {
	DraftOrderID   string `json:"draft_order_id"`
	OrderID        string `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	TrackingNumber string `json:"tracking_number"`
}

// Webhook topics delivered by the commerce backend
const (
	TopicOrdersPaid      = "orders/paid"
	TopicOrdersFulfilled = "orders/fulfilled"
)

// HandlePaymentWebhook applies an authenticated commerce webhook. Delivery is
// at-least-once and may arrive out of order, so the handler is idempotent:
// events that do not match an order, or that match an order already past the
// target stage, are ignored without error and without writing a log entry.
func (c *Controller) HandlePaymentWebhook(topic string, event WebhookEvent) error {
	switch topic {
	case TopicOrdersPaid:
		return c.handleOrderPaid(event)
	case TopicOrdersFulfilled:
		return c.handleOrderFulfilled(event)
	default:
		log.Printf("Ignoring webhook with unknown topic %q", topic)
		return nil
	}
}

func (c *Controller) handleOrderPaid(event WebhookEvent) error {
	matched, err := c.matchOrder(event.DraftOrderID, event.OrderNumber)
	if err != nil || matched == nil {
		return err
	}

	var order *models.Order
	err = c.store.Transact(func(tx store.Store) error {
		var err error
		order, err = c.loadOrder(tx, matched.ID)
		if err != nil {
			return err
		}
		if order.PaymentCompleted || order.Stage != models.StagePaymentPending {
			// Duplicate or out-of-order delivery.
			order = nil
			return nil
		}
		now := time.Now().UTC()
		from := order.Stage
		order.PaymentCompleted = true
		order.PaymentCompletedAt = &now
		if event.OrderID != "" {
			order.ExternalOrderID = &event.OrderID
		}
		order.Stage = models.StagePaymentCompleted
		if err := c.updateOrder(tx, order); err != nil {
			return err
		}
		return tx.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			Action:    "payment_completed",
			FromStage: from,
			ToStage:   order.Stage,
		})
	})
	if err != nil {
		return err
	}
	if order != nil {
		extra := map[string]string{}
		if event.TrackingNumber != "" {
			extra["tracking_number"] = event.TrackingNumber
		}
		c.notify(EventPaymentCompleted, order, extra)
	}
	return nil
}

func (c *Controller) handleOrderFulfilled(event WebhookEvent) error {
	if event.OrderID == "" {
		return nil
	}
	matched, err := c.store.GetOrderByExternalOrderID(event.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	return c.store.Transact(func(tx store.Store) error {
		order, err := c.loadOrder(tx, matched.ID)
		if err != nil {
			return err
		}
		if order.Stage != models.StagePaymentCompleted {
			return nil
		}
		from := order.Stage
		order.Stage = models.StageShippedToCustomer
		if err := c.updateOrder(tx, order); err != nil {
			return err
		}
		return tx.AppendLog(&models.OrderLog{
			OrderID:   order.ID,
			Action:    "order_shipped",
			FromStage: from,
			ToStage:   order.Stage,
		})
	})
}

// matchOrder locates an order by draft-order id, falling back to the order
// number. A nil order with nil error means no match (the event is ignored).
func (c *Controller) matchOrder(draftOrderID, orderNumber string) (*models.Order, error) {
	if draftOrderID != "" {
		order, err := c.store.GetOrderByDraftID(draftOrderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if orderNumber != "" {
		order, err := c.store.GetOrderByNumber(orderNumber)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// resolveShippingAddress picks the destination for the finished product:
// order-level address, then the client profile's address, then a placeholder
// the admin corrects in the commerce backend.
func (c *Controller) resolveShippingAddress(order *models.Order) string {
	if order.ShippingAddress != nil && *order.ShippingAddress != "" {
		return *order.ShippingAddress
	}
	if profile, err := c.store.GetProfile(order.ClientID); err == nil && profile.ShippingAddress != "" {
		return profile.ShippingAddress
	}
	return "Address to be confirmed"
}

// uniqueOrderNumber generates an order number and verifies it is unused,
// retrying on the (unlikely) collision. The unique index on order_number is
// the final guard.
func (c *Controller) uniqueOrderNumber() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		candidate := utils.NewOrderNumber()
		exists, err := c.store.OrderNumberExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique order number")
}

// loadOrder is the unscoped load used by webhook handlers, which act as the
// system rather than on behalf of a profile.
func (c *Controller) loadOrder(tx store.Store, orderID uint) (*models.Order, error) {
	order, err := tx.GetOrder(orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{Resource: "order", ID: idStr(orderID)}
		}
		return nil, err
	}
	return order, nil
}

// loadOrderFor loads an order through the store's row-level authorization
// scope: clients reach only their own orders, admins only orders assigned to
// them or belonging to a related client. A scope miss reads the same as a
// missing order so ids do not leak across tenants.
func (c *Controller) loadOrderFor(tx store.Store, orderID, actorID uint, role string) (*models.Order, error) {
	order, err := tx.GetOrderForUser(orderID, actorID, role)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{Resource: "order", ID: idStr(orderID)}
		}
		return nil, err
	}
	return order, nil
}

func (c *Controller) updateOrder(tx store.Store, order *models.Order) error {
	if err := tx.UpdateOrder(order); err != nil {
		if errors.Is(err, store.ErrStaleWrite) {
			return ErrConflict
		}
		return err
	}
	order.SyncDerived()
	return nil
}

// notify dispatches best-effort: failures are logged, never propagated.
func (c *Controller) notify(event NotifyEvent, order *models.Order, extra map[string]string) {
	if c.notifier == nil {
		return
	}
	if result := c.notifier.Notify(event, order, extra); !result.Success {
		log.Printf("Notification %s for order %s was not delivered", event, order.OrderNumber)
	}
}

func idStr(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
