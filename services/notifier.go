package services

import (
	"fmt"
	"log"
	"sync"

	"github.com/frostbean/freezedry-api/lifecycle"
	"github.com/frostbean/freezedry-api/models"
	"github.com/frostbean/freezedry-api/store"
)

// Message is a formatted notification ready for delivery
type Message struct {
	Event       lifecycle.NotifyEvent `json:"event"`
	Recipient   string                `json:"recipient"`
	Subject     string                `json:"subject"`
	Body        string                `json:"body"`
	OrderNumber string                `json:"order_number"`
}

// Sender delivers a formatted notification message
type Sender interface {
	Send(msg Message) error
}

// LogSender writes notifications to the application log. Used in development
// and as the fallback when no AMQP broker is configured.
type LogSender struct{}

// Send logs the message instead of delivering it
func (LogSender) Send(msg Message) error {
	log.Printf("NOTIFY [%s] to=%s subject=%q", msg.Event, msg.Recipient, msg.Subject)
	return nil
}

// template holds the subject and body format for one event type. Body formats
// receive the order number plus one event-specific detail.
type template struct {
	subject string
	body    string
	toAdmin bool
}

var templates = map[lifecycle.NotifyEvent]template{
	lifecycle.EventOrderConfirmed: {
		subject: "Your freeze-dry order %s is confirmed",
		body:    "Order %s has been confirmed. Please ship your coffee to: %s",
	},
	lifecycle.EventTrackingSubmitted: {
		subject: "Inbound package for order %s",
		body:    "The client submitted tracking number %s for order %s.",
		toAdmin: true,
	},
	lifecycle.EventPackageReceived: {
		subject: "We received your coffee for order %s",
		body:    "Your package for order %s arrived at the facility and is being prepared for freezing.",
	},
	lifecycle.EventProcessingStage: {
		subject: "Order %s update",
		body:    "Order %s has moved to stage: %s",
	},
	lifecycle.EventPaymentReady: {
		subject: "Order %s is ready for payment",
		body:    "Processing for order %s is complete. Pay here to arrange return shipping: %s",
	},
	lifecycle.EventPaymentCompleted: {
		subject: "Payment received for order %s",
		body:    "Payment for order %s is confirmed. %s",
	},
}

// Dispatcher implements lifecycle.Notifier. Notify resolves the recipient and
// template synchronously, then hands the message to a background worker so
// delivery never blocks (or fails) the transition that triggered it.
type Dispatcher struct {
	store  store.Store
	sender Sender

	queue chan Message
	done  chan struct{}
	once  sync.Once
}

// NewDispatcher creates a notification dispatcher and starts its delivery
// worker
func NewDispatcher(st store.Store, sender Sender) *Dispatcher {
	d := &Dispatcher{
		store:  st,
		sender: sender,
		queue:  make(chan Message, 64),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for msg := range d.queue {
		if err := d.sender.Send(msg); err != nil {
			// Delivery is advisory; the order state change already committed.
			log.Printf("Failed to deliver notification %s for order %s: %v", msg.Event, msg.OrderNumber, err)
		}
	}
	close(d.done)
}

// Close drains the queue and stops the worker
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
		<-d.done
	})
}

// Notify formats and enqueues a notification. It never returns an error: a
// failure to resolve a recipient or a full queue yields Success=false and the
// caller's transition proceeds regardless.
func (d *Dispatcher) Notify(event lifecycle.NotifyEvent, order *models.Order, extra map[string]string) lifecycle.NotifyResult {
	tmpl, ok := templates[event]
	if !ok {
		log.Printf("No notification template for event %q", event)
		return lifecycle.NotifyResult{Success: false}
	}

	recipient := d.resolveRecipient(tmpl, order)
	if recipient == "" {
		log.Printf("No recipient for notification %s on order %s, skipping", event, order.OrderNumber)
		return lifecycle.NotifyResult{Success: false}
	}

	msg := Message{
		Event:       event,
		Recipient:   recipient,
		Subject:     fmt.Sprintf(tmpl.subject, order.OrderNumber),
		Body:        formatBody(event, tmpl, order, extra),
		OrderNumber: order.OrderNumber,
	}

	select {
	case d.queue <- msg:
		return lifecycle.NotifyResult{Success: true}
	default:
		log.Printf("Notification queue full, dropping %s for order %s", event, order.OrderNumber)
		return lifecycle.NotifyResult{Success: false}
	}
}

// resolveRecipient picks the client snapshot email, or for admin-facing
// events walks the chain: assigned admin, then any related admin, then skip.
func (d *Dispatcher) resolveRecipient(tmpl template, order *models.Order) string {
	if !tmpl.toAdmin {
		return order.ClientEmail
	}
	if order.AdminID != nil {
		if profile, err := d.store.GetProfile(*order.AdminID); err == nil {
			return profile.Email
		}
	}
	if profile, err := d.store.GetAdminForClient(order.ClientID); err == nil {
		return profile.Email
	}
	return ""
}

func formatBody(event lifecycle.NotifyEvent, tmpl template, order *models.Order, extra map[string]string) string {
	switch event {
	case lifecycle.EventOrderConfirmed:
		return fmt.Sprintf(tmpl.body, order.OrderNumber, extra["ship_to_address"])
	case lifecycle.EventTrackingSubmitted:
		return fmt.Sprintf(tmpl.body, extra["tracking_number"], order.OrderNumber)
	case lifecycle.EventProcessingStage:
		return fmt.Sprintf(tmpl.body, order.OrderNumber, extra["stage"])
	case lifecycle.EventPaymentReady:
		return fmt.Sprintf(tmpl.body, order.OrderNumber, extra["checkout_url"])
	case lifecycle.EventPaymentCompleted:
		detail := ""
		if tn := extra["tracking_number"]; tn != "" {
			detail = fmt.Sprintf("Return shipping tracking number: %s", tn)
		}
		return fmt.Sprintf(tmpl.body, order.OrderNumber, detail)
	default:
		return fmt.Sprintf(tmpl.body, order.OrderNumber)
	}
}

var notifierInstance lifecycle.Notifier

// InitNotifier initializes the global notifier instance
func InitNotifier(n lifecycle.Notifier) lifecycle.Notifier {
	notifierInstance = n
	return n
}

// GetNotifier returns the initialized notifier instance
func GetNotifier() lifecycle.Notifier {
	return notifierInstance
}

// SetNotifier sets the notifier instance (primarily for testing)
func SetNotifier(n lifecycle.Notifier) {
	notifierInstance = n
}
