package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/frostbean/freezedry-api/config"
	"github.com/frostbean/freezedry-api/lifecycle"
	"github.com/frostbean/freezedry-api/middleware"
	"github.com/frostbean/freezedry-api/models"
	"github.com/frostbean/freezedry-api/store"
)

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	CoffeeType          string     `json:"coffee_type" binding:"required"`
	QuantityKg          float64    `json:"quantity_kg" binding:"required,gt=0"`
	RoastLevel          *string    `json:"roast_level"`
	GrindSize           *string    `json:"grind_size"`
	SpecialInstructions *string    `json:"special_instructions"`
	ShippingAddress     *string    `json:"shipping_address"`
	AdminID             *uint      `json:"admin_id"` // provider selected by the client
	RequestedCompletion *time.Time `json:"requested_completion_date"`
}

// CreateOrder handles POST /api/v1/orders - submits a new processing order
// (clients only)
func CreateOrder(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data: "+err.Error())
		return
	}

	order, err := lifecycle.GetController().Create(lifecycle.CreateOrderInput{
		ClientID:            userID,
		AdminID:             req.AdminID,
		CoffeeType:          req.CoffeeType,
		QuantityKg:          req.QuantityKg,
		RoastLevel:          req.RoastLevel,
		GrindSize:           req.GrindSize,
		SpecialInstructions: req.SpecialInstructions,
		ShippingAddress:     req.ShippingAddress,
		RequestedCompletion: req.RequestedCompletion,
	})
	if err != nil {
		middleware.RecordOrderTransition("create", false)
		respondError(c, err)
		return
	}

	middleware.RecordOrderTransition("create", true)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// ListOrders handles GET /api/v1/orders - lists orders visible to the caller
func ListOrders(c *gin.Context) {
	userID, role, ok := callerIdentity(c)
	if !ok {
		return
	}

	st := store.NewGormStore(config.GetDB())
	orders, err := st.ListOrdersForUser(userID, role)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// GetOrder handles GET /api/v1/orders/:id - loads one order if the caller is
// allowed to see it
func GetOrder(c *gin.Context) {
	userID, role, ok := callerIdentity(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	st := store.NewGormStore(config.GetDB())
	order, err := st.GetOrderForUser(orderID, userID, role)
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// GetOrderLogs handles GET /api/v1/orders/:id/logs - returns the audit trail
func GetOrderLogs(c *gin.Context) {
	userID, role, ok := callerIdentity(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	st := store.NewGormStore(config.GetDB())
	// Row-level visibility check before exposing the timeline.
	if _, err := st.GetOrderForUser(orderID, userID, role); err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	logs, err := st.ListLogs(orderID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load order logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
	})
}

// ConfirmOrder handles POST /api/v1/orders/:id/confirm (admins only)
func ConfirmOrder(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := lifecycle.GetController().Confirm(orderID, userID)
	if err != nil {
		middleware.RecordOrderTransition("confirm", false)
		respondError(c, err)
		return
	}

	middleware.RecordOrderTransition("confirm", true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// RejectOrder handles POST /api/v1/orders/:id/reject (admins only)
func RejectOrder(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := lifecycle.GetController().Reject(orderID, userID)
	if err != nil {
		middleware.RecordOrderTransition("reject", false)
		respondError(c, err)
		return
	}

	middleware.RecordOrderTransition("reject", true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// SubmitTrackingRequest represents the request body for submitting tracking
type SubmitTrackingRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

// SubmitTracking handles POST /api/v1/orders/:id/tracking (clients only)
func SubmitTracking(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req SubmitTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "tracking_number is required")
		return
	}

	order, err := lifecycle.GetController().SubmitTracking(orderID, userID, req.TrackingNumber)
	if err != nil {
		middleware.RecordOrderTransition("submit_tracking", false)
		respondError(c, err)
		return
	}

	middleware.RecordOrderTransition("submit_tracking", true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// ConfirmPackageReceived handles POST /api/v1/orders/:id/package-received
// (admins only)
func ConfirmPackageReceived(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := lifecycle.GetController().ConfirmPackageReceived(orderID, userID)
	if err != nil {
		middleware.RecordOrderTransition("package_received", false)
		respondError(c, err)
		return
	}

	middleware.RecordOrderTransition("package_received", true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// UpdateOrderStatusRequest represents the request body for the general
// status/stage transition
type UpdateOrderStatusRequest struct {
	Status    string  `json:"status"`
	Stage     string  `json:"stage" binding:"required"`
	MachineID *uint   `json:"machine_id"`
	Notes     *string `json:"notes"`
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id/status (admins only)
func UpdateOrderStatus(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "stage is required")
		return
	}

	order, err := lifecycle.GetController().UpdateStatusAndStage(orderID, userID, lifecycle.StatusUpdateInput{
		Status:    models.Status(req.Status),
		Stage:     models.Stage(req.Stage),
		MachineID: req.MachineID,
		Notes:     req.Notes,
	})
	if err != nil {
		middleware.RecordOrderTransition("update_status", false)
		respondError(c, err)
		return
	}

	middleware.RecordOrderTransition("update_status", true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// CreateCheckout handles POST /api/v1/orders/:id/checkout (admins only) -
// creates the external draft order and payment link
func CreateCheckout(c *gin.Context) {
	userID, _, ok := callerIdentity(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, err := lifecycle.GetController().CreateExternalCheckout(orderID, userID)
	if err != nil {
		middleware.RecordOrderTransition("create_checkout", false)
		respondError(c, err)
		return
	}

	middleware.RecordOrderTransition("create_checkout", true)
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"checkout_url":   order.CheckoutURL,
		"draft_order_id": order.DraftOrderID,
		"data":           order,
	})
}

// callerIdentity extracts the authenticated profile id and role, writing the
// error response itself when the context is missing them
func callerIdentity(c *gin.Context) (uint, string, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
		return 0, "", false
	}
	role, err := middleware.GetRole(c)
	if err != nil {
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user role")
		return 0, "", false
	}
	return userID, role, true
}

// orderIDParam parses the :id path parameter
func orderIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return 0, false
	}
	return uint(id), true
}
