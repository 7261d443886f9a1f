package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frostbean/freezedry-api/lifecycle"
	"github.com/frostbean/freezedry-api/models"
	"github.com/frostbean/freezedry-api/store"
)

// captureSender records delivered messages for assertions
type captureSender struct {
	mu       sync.Mutex
	messages []Message
	fail     bool
}

func (s *captureSender) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp unavailable")
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *captureSender) all() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func setupNotifierTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Profile{}, &models.AdminClient{}, &models.Order{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func TestDispatcherDeliversClientNotification(t *testing.T) {
	db := setupNotifierTestDB(t)
	sender := &captureSender{}
	dispatcher := NewDispatcher(store.NewGormStore(db), sender)

	order := &models.Order{
		OrderNumber: "FD-20260901-TEST0001",
		ClientEmail: "client@example.com",
	}
	result := dispatcher.Notify(lifecycle.EventOrderConfirmed, order, map[string]string{
		"ship_to_address": "99 Facility Road",
	})
	assert.True(t, result.Success)
	dispatcher.Close()

	messages := sender.all()
	require.Len(t, messages, 1)
	assert.Equal(t, "client@example.com", messages[0].Recipient)
	assert.Contains(t, messages[0].Subject, "FD-20260901-TEST0001")
	assert.Contains(t, messages[0].Body, "99 Facility Road")
}

func TestDispatcherResolvesAdminViaAssignment(t *testing.T) {
	db := setupNotifierTestDB(t)
	admin := models.Profile{Name: "Ada", Email: "ada@example.com", Role: "admin"}
	db.Create(&admin)

	sender := &captureSender{}
	dispatcher := NewDispatcher(store.NewGormStore(db), sender)

	order := &models.Order{
		OrderNumber: "FD-1",
		AdminID:     &admin.ID,
		ClientEmail: "client@example.com",
	}
	result := dispatcher.Notify(lifecycle.EventTrackingSubmitted, order, map[string]string{
		"tracking_number": "1Z999",
	})
	assert.True(t, result.Success)
	dispatcher.Close()

	messages := sender.all()
	require.Len(t, messages, 1)
	assert.Equal(t, "ada@example.com", messages[0].Recipient)
	assert.Contains(t, messages[0].Body, "1Z999")
}

func TestDispatcherFallsBackToRelatedAdmin(t *testing.T) {
	db := setupNotifierTestDB(t)
	admin := models.Profile{Name: "Ada", Email: "ada@example.com", Role: "admin"}
	db.Create(&admin)
	client := models.Profile{Name: "Carla", Email: "carla@example.com", Role: "client"}
	db.Create(&client)
	db.Create(&models.AdminClient{AdminID: admin.ID, ClientID: client.ID})

	sender := &captureSender{}
	dispatcher := NewDispatcher(store.NewGormStore(db), sender)

	order := &models.Order{OrderNumber: "FD-2", ClientID: client.ID}
	result := dispatcher.Notify(lifecycle.EventTrackingSubmitted, order, nil)
	assert.True(t, result.Success)
	dispatcher.Close()

	messages := sender.all()
	require.Len(t, messages, 1)
	assert.Equal(t, "ada@example.com", messages[0].Recipient)
}

func TestDispatcherSkipsWhenNoAdminResolvable(t *testing.T) {
	db := setupNotifierTestDB(t)
	sender := &captureSender{}
	dispatcher := NewDispatcher(store.NewGormStore(db), sender)
	defer dispatcher.Close()

	order := &models.Order{OrderNumber: "FD-3", ClientID: 42}
	result := dispatcher.Notify(lifecycle.EventTrackingSubmitted, order, nil)
	assert.False(t, result.Success)
}

func TestDispatcherNeverPropagatesDeliveryFailure(t *testing.T) {
	db := setupNotifierTestDB(t)
	sender := &captureSender{fail: true}
	dispatcher := NewDispatcher(store.NewGormStore(db), sender)

	order := &models.Order{OrderNumber: "FD-4", ClientEmail: "client@example.com"}
	// Enqueue succeeds; the delivery failure is logged by the worker and
	// never reaches the caller.
	result := dispatcher.Notify(lifecycle.EventPackageReceived, order, nil)
	assert.True(t, result.Success)
	dispatcher.Close()
}

func TestDispatcherUnknownEventSkipped(t *testing.T) {
	db := setupNotifierTestDB(t)
	sender := &captureSender{}
	dispatcher := NewDispatcher(store.NewGormStore(db), sender)
	defer dispatcher.Close()

	order := &models.Order{OrderNumber: "FD-5", ClientEmail: "client@example.com"}
	result := dispatcher.Notify(lifecycle.NotifyEvent("order_teleported"), order, nil)
	assert.False(t, result.Success)
}
