package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostbean/freezedry-api/lifecycle"
	"github.com/frostbean/freezedry-api/models"
)

// setupPaidOrder walks a fresh order all the way to payment_pending so the
// webhook under test has something to match against
func setupPaidOrder(t *testing.T, env *testEnv) *models.Order {
	t.Helper()
	order := createTestOrder(t, env)
	ctrl := lifecycle.GetController()

	_, err := ctrl.Confirm(order.ID, env.admin.ID)
	require.NoError(t, err)
	_, err = ctrl.SubmitTracking(order.ID, env.client.ID, "TRACK-123")
	require.NoError(t, err)
	_, err = ctrl.ConfirmPackageReceived(order.ID, env.admin.ID)
	require.NoError(t, err)
	_, err = ctrl.UpdateStatusAndStage(order.ID, env.admin.ID, lifecycle.StatusUpdateInput{
		Stage: models.StageCompleted,
	})
	require.NoError(t, err)
	order, err = ctrl.CreateExternalCheckout(order.ID, env.admin.ID)
	require.NoError(t, err)
	require.NotNil(t, order.DraftOrderID)
	return order
}

func postWebhook(router http.Handler, topic, signature string, payload map[string]interface{}) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, "/webhooks/commerce", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if topic != "" {
		req.Header.Set(HeaderWebhookTopic, topic)
	}
	if signature != "" {
		req.Header.Set(HeaderWebhookSignature, signature)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func webhookRouter() http.Handler {
	router := setupTestRouter()
	router.POST("/webhooks/commerce", HandleCommerceWebhook)
	return router
}

func countOrderLogs(t *testing.T, env *testEnv, orderID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, env.db.Model(&models.OrderLog{}).Where("order_id = ?", orderID).Count(&count).Error)
	return count
}

func TestWebhookSignatureRejection(t *testing.T) {
	env := setupTestEnv(t)
	order := setupPaidOrder(t, env)
	logsBefore := countOrderLogs(t, env, order.ID)

	router := webhookRouter()
	payload := map[string]interface{}{"draft_order_id": *order.DraftOrderID}

	tests := []struct {
		name      string
		signature string
	}{
		{name: "missing signature", signature: ""},
		{name: "wrong signature", signature: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(router, lifecycle.TopicOrdersPaid, tt.signature, payload)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assertErrorCode(t, response, "INVALID_SIGNATURE")
		})
	}

	// The rejected deliveries left no trace: no stage change, no log entries.
	var reloaded models.Order
	require.NoError(t, env.db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.StagePaymentPending, reloaded.Stage)
	assert.False(t, reloaded.PaymentCompleted)
	assert.Equal(t, logsBefore, countOrderLogs(t, env, order.ID))
}

func TestWebhookOrderPaid(t *testing.T) {
	env := setupTestEnv(t)
	order := setupPaidOrder(t, env)
	logsBefore := countOrderLogs(t, env, order.ID)

	router := webhookRouter()
	payload := map[string]interface{}{
		"draft_order_id": *order.DraftOrderID,
		"order_id":       "778899",
	}

	w := postWebhook(router, lifecycle.TopicOrdersPaid, env.gateway.ValidSignature, payload)
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Order
	require.NoError(t, env.db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.StagePaymentCompleted, reloaded.Stage)
	assert.True(t, reloaded.PaymentCompleted)
	require.NotNil(t, reloaded.ExternalOrderID)
	assert.Equal(t, "778899", *reloaded.ExternalOrderID)
	assert.Equal(t, logsBefore+1, countOrderLogs(t, env, order.ID))

	// Redelivery of the same event is acknowledged without any new writes
	firstPaidAt := reloaded.PaymentCompletedAt
	w = postWebhook(router, lifecycle.TopicOrdersPaid, env.gateway.ValidSignature, payload)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, env.db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.StagePaymentCompleted, reloaded.Stage)
	assert.Equal(t, firstPaidAt, reloaded.PaymentCompletedAt)
	assert.Equal(t, logsBefore+1, countOrderLogs(t, env, order.ID))
}

func TestWebhookMatchByOrderNumber(t *testing.T) {
	env := setupTestEnv(t)
	order := setupPaidOrder(t, env)

	w := postWebhook(webhookRouter(), lifecycle.TopicOrdersPaid, env.gateway.ValidSignature, map[string]interface{}{
		"order_number": order.OrderNumber,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Order
	require.NoError(t, env.db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.StagePaymentCompleted, reloaded.Stage)
}

func TestWebhookUnmatchedEventAcknowledged(t *testing.T) {
	env := setupTestEnv(t)
	order := setupPaidOrder(t, env)
	logsBefore := countOrderLogs(t, env, order.ID)

	// An event for a draft order this service never created is acknowledged
	// with 200 so the sender stops retrying, but nothing is written.
	w := postWebhook(webhookRouter(), lifecycle.TopicOrdersPaid, env.gateway.ValidSignature, map[string]interface{}{
		"draft_order_id": "does-not-exist",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, logsBefore, countOrderLogs(t, env, order.ID))
}

func TestWebhookUnknownTopicIgnored(t *testing.T) {
	env := setupTestEnv(t)
	order := setupPaidOrder(t, env)

	w := postWebhook(webhookRouter(), "orders/refunded", env.gateway.ValidSignature, map[string]interface{}{
		"draft_order_id": *order.DraftOrderID,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Order
	require.NoError(t, env.db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.StagePaymentPending, reloaded.Stage)
}

func TestWebhookOrderFulfilled(t *testing.T) {
	env := setupTestEnv(t)
	order := setupPaidOrder(t, env)
	router := webhookRouter()

	// Pay first, then fulfill
	w := postWebhook(router, lifecycle.TopicOrdersPaid, env.gateway.ValidSignature, map[string]interface{}{
		"draft_order_id": *order.DraftOrderID,
		"order_id":       "778899",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = postWebhook(router, lifecycle.TopicOrdersFulfilled, env.gateway.ValidSignature, map[string]interface{}{
		"order_id":        "778899",
		"tracking_number": "OUT-789",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Order
	require.NoError(t, env.db.First(&reloaded, order.ID).Error)
	assert.Equal(t, models.StageShippedToCustomer, reloaded.Stage)
}

func TestWebhookInvalidPayload(t *testing.T) {
	env := setupTestEnv(t)

	req, _ := http.NewRequest(http.MethodPost, "/webhooks/commerce", bytes.NewBufferString("{not json"))
	req.Header.Set(HeaderWebhookTopic, lifecycle.TopicOrdersPaid)
	req.Header.Set(HeaderWebhookSignature, env.gateway.ValidSignature)

	w := httptest.NewRecorder()
	router := setupTestRouter()
	router.POST("/webhooks/commerce", HandleCommerceWebhook)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assertErrorCode(t, response, "VALIDATION_ERROR")
}
