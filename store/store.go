package store

import (
	"errors"

	"github.com/frostbean/freezedry-api/models"
)

// ErrNotFound is returned by lookups when no matching record exists
var ErrNotFound = errors.New("record not found")

// ErrStaleWrite is returned by UpdateOrder when the record's version changed
// between read and write, meaning a concurrent writer got there first
var ErrStaleWrite = errors.New("stale write: record version changed")

// Store is the persistence contract consumed by the lifecycle controller.
// All order mutations go through UpdateOrder, which performs a compare-and-swap
// on the order's version so concurrent transitions cannot silently overwrite
// each other.
type Store interface {
	// Transact runs fn inside a database transaction. The Store passed to fn
	// is bound to that transaction; returning an error rolls everything back.
	Transact(fn func(Store) error) error

	CreateOrder(order *models.Order) error
	GetOrder(id uint) (*models.Order, error)
	GetOrderByNumber(orderNumber string) (*models.Order, error)
	GetOrderByDraftID(draftOrderID string) (*models.Order, error)
	GetOrderByExternalOrderID(externalOrderID string) (*models.Order, error)
	// UpdateOrder persists all fields of order if and only if the stored
	// version still matches order's version at read time. On success the
	// version is incremented; on a lost race it returns ErrStaleWrite.
	UpdateOrder(order *models.Order) error
	OrderNumberExists(orderNumber string) (bool, error)

	AppendLog(entry *models.OrderLog) error
	ListLogs(orderID uint) ([]models.OrderLog, error)

	GetMachine(id uint) (*models.Machine, error)
	UpdateMachineStatus(id uint, status models.MachineStatus) error
	ListAvailableMachines() ([]models.Machine, error)

	GetProfile(id uint) (*models.Profile, error)
	// GetAdminForClient resolves the first admin related to a client, used as
	// the notification fallback when an order has no assigned admin.
	GetAdminForClient(clientID uint) (*models.Profile, error)
	// EnsureAdminClient creates the admin-client relation if it does not
	// exist. Returns true when a new relation was created.
	EnsureAdminClient(adminID, clientID uint) (bool, error)

	// Row-level authorization scope: a client only reaches its own orders, an
	// admin only orders of clients it is related to (or orders assigned to
	// it). Read endpoints list and load through these, and the lifecycle
	// controller loads orders for every user-initiated mutation through
	// GetOrderForUser, so the scope is enforced by the store's queries rather
	// than per-handler checks.
	ListOrdersForUser(profileID uint, role string) ([]models.Order, error)
	GetOrderForUser(id uint, profileID uint, role string) (*models.Order, error)
}
