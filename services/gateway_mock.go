package services

import (
	"sync"

	"github.com/frostbean/freezedry-api/lifecycle"
)

// MockGateway is a mock implementation of Gateway for testing
type MockGateway struct {
	mu sync.Mutex

	// CreatedDrafts records every CreateDraftOrder call
	CreatedDrafts []lifecycle.DraftOrderRequest
	// NextDraft is returned from the next CreateDraftOrder call
	NextDraft *lifecycle.DraftOrder
	// NextErr, when set, is returned instead of NextDraft
	NextErr error
	// ValidSignature is the only signature VerifyWebhookSignature accepts
	ValidSignature string
}

// NewMockGateway creates a mock gateway with a default draft order response
func NewMockGateway() *MockGateway {
	return &MockGateway{
		NextDraft: &lifecycle.DraftOrder{
			ID:          "990001",
			CheckoutURL: "https://checkout.example.com/invoice/990001",
		},
		ValidSignature: "valid-test-signature",
	}
}

// SetAsMockForTesting sets this mock as the global gateway instance
func (m *MockGateway) SetAsMockForTesting() {
	SetGateway(m)
}

// CreateDraftOrder records the request and returns the configured response
func (m *MockGateway) CreateDraftOrder(req lifecycle.DraftOrderRequest) (*lifecycle.DraftOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreatedDrafts = append(m.CreatedDrafts, req)
	if m.NextErr != nil {
		return nil, m.NextErr
	}
	return m.NextDraft, nil
}

// VerifyWebhookSignature accepts only the configured signature
func (m *MockGateway) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	return signatureHeader != "" && signatureHeader == m.ValidSignature
}
