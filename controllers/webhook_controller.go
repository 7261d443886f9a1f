package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/frostbean/freezedry-api/lifecycle"
	"github.com/frostbean/freezedry-api/services"
)

// Webhook headers set by the commerce backend
const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTopic     = "X-Webhook-Topic"
)

// HandleCommerceWebhook handles POST /api/v1/webhooks/commerce - inbound
// payment and fulfillment events. The HMAC signature over the raw body is
// required: a missing or mismatched signature is rejected with 401 before any
// processing happens. Matched events apply idempotently; unmatched events are
// acknowledged with 200 so the sender stops retrying them.
func HandleCommerceWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Could not read request body")
		return
	}

	signature := c.GetHeader(HeaderWebhookSignature)
	if !services.GetGateway().VerifyWebhookSignature(rawBody, signature) {
		writeError(c, http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature missing or invalid")
		return
	}

	var event lifecycle.WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid webhook payload")
		return
	}

	topic := c.GetHeader(HeaderWebhookTopic)
	if err := lifecycle.GetController().HandlePaymentWebhook(topic, event); err != nil {
		// Non-2xx makes the sender redeliver; the handler is idempotent so a
		// retry after partial failure is safe.
		log.Printf("Webhook %s processing failed: %v", topic, err)
		writeError(c, http.StatusInternalServerError, "WEBHOOK_ERROR", "Failed to process webhook")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
