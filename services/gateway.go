package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/frostbean/freezedry-api/config"
	"github.com/frostbean/freezedry-api/lifecycle"
)

// Gateway is the full commerce-backend contract: draft-order creation for the
// lifecycle controller plus webhook signature verification for the webhook
// endpoint
type Gateway interface {
	lifecycle.Gateway
	VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool
}

// CommerceGateway talks to the external headless-commerce backend over HTTP
type CommerceGateway struct {
	baseURL    string
	token      string
	secret     string
	httpClient *http.Client
}

// NewCommerceGateway creates a gateway from the application configuration
func NewCommerceGateway(cfg *config.Config) *CommerceGateway {
	return &CommerceGateway{
		baseURL: strings.TrimSuffix(cfg.CommerceAPIURL, "/"),
		token:   cfg.CommerceAPIToken,
		secret:  cfg.WebhookSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type draftOrderPayload struct {
	DraftOrder struct {
		LineItems []draftLineItem `json:"line_items"`
		Email     string          `json:"email"`
		Note      string          `json:"note"`
		ShippingAddress struct {
			Address1 string `json:"address1"`
		} `json:"shipping_address"`
	} `json:"draft_order"`
}

type draftLineItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

type draftOrderResponse struct {
	DraftOrder struct {
		ID         int64  `json:"id"`
		InvoiceURL string `json:"invoice_url"`
	} `json:"draft_order"`
}

// CreateDraftOrder creates a provisional unpaid order in the commerce backend
// and returns its id and checkout URL. Non-2xx responses become a
// *lifecycle.GatewayError.
func (g *CommerceGateway) CreateDraftOrder(req lifecycle.DraftOrderRequest) (*lifecycle.DraftOrder, error) {
	var payload draftOrderPayload
	payload.DraftOrder.LineItems = []draftLineItem{{
		Title:    fmt.Sprintf("Freeze-dry processing: %.1f kg %s (%s)", req.QuantityKg, req.CoffeeType, req.OrderNumber),
		Quantity: 1,
	}}
	payload.DraftOrder.Email = req.Email
	payload.DraftOrder.Note = req.Note
	payload.DraftOrder.ShippingAddress.Address1 = req.ShippingAddress

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &lifecycle.GatewayError{Message: fmt.Sprintf("failed to encode draft order: %v", err)}
	}

	httpReq, err := http.NewRequest(http.MethodPost, g.baseURL+"/draft_orders.json", bytes.NewReader(body))
	if err != nil {
		return nil, &lifecycle.GatewayError{Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Commerce-Access-Token", g.token)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &lifecycle.GatewayError{Message: fmt.Sprintf("draft order request failed: %v", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &lifecycle.GatewayError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	var decoded draftOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &lifecycle.GatewayError{Message: fmt.Sprintf("failed to decode draft order response: %v", err)}
	}

	return &lifecycle.DraftOrder{
		ID:          fmt.Sprintf("%d", decoded.DraftOrder.ID),
		CheckoutURL: decoded.DraftOrder.InvoiceURL,
	}, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature the commerce
// backend computes over the raw request body. A missing signature is treated
// as invalid: unsigned webhooks are never trusted.
func (g *CommerceGateway) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

var gatewayInstance Gateway

// InitGateway initializes the global gateway instance
func InitGateway(g Gateway) Gateway {
	gatewayInstance = g
	return g
}

// GetGateway returns the initialized gateway instance
func GetGateway() Gateway {
	return gatewayInstance
}

// SetGateway sets the gateway instance (primarily for testing)
func SetGateway(g Gateway) {
	gatewayInstance = g
}
