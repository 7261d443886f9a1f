package store

import (
	"errors"

	"gorm.io/gorm"

	"github.com/frostbean/freezedry-api/models"
)

// GormStore implements Store on top of a gorm connection (PostgreSQL in
// production, in-memory SQLite in tests)
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a Store backed by the given gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Transact runs fn inside a gorm transaction
func (s *GormStore) Transact(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// CreateOrder inserts a new order record
func (s *GormStore) CreateOrder(order *models.Order) error {
	return s.db.Create(order).Error
}

// GetOrder loads an order by primary key
func (s *GormStore) GetOrder(id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Machine").First(&order, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &order, nil
}

// GetOrderByNumber loads an order by its human-readable order number
func (s *GormStore) GetOrderByNumber(orderNumber string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &order, nil
}

// GetOrderByDraftID loads an order by the external draft-order id
func (s *GormStore) GetOrderByDraftID(draftOrderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Where("draft_order_id = ?", draftOrderID).First(&order).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &order, nil
}

// GetOrderByExternalOrderID loads an order by the external commerce order id
func (s *GormStore) GetOrderByExternalOrderID(externalOrderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Where("external_order_id = ?", externalOrderID).First(&order).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &order, nil
}

// UpdateOrder writes back all order fields guarded by a version
// compare-and-swap. RowsAffected == 0 means a concurrent writer bumped the
// version first and the caller must re-read and retry.
func (s *GormStore) UpdateOrder(order *models.Order) error {
	currentVersion := order.Version
	order.Version++

	res := s.db.Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, currentVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(order)
	if res.Error != nil {
		order.Version = currentVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		order.Version = currentVersion
		return ErrStaleWrite
	}
	return nil
}

// OrderNumberExists reports whether an order number is already taken
func (s *GormStore) OrderNumberExists(orderNumber string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Order{}).Where("order_number = ?", orderNumber).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AppendLog records an immutable audit entry
func (s *GormStore) AppendLog(entry *models.OrderLog) error {
	return s.db.Create(entry).Error
}

// ListLogs returns the audit trail for an order, oldest first
func (s *GormStore) ListLogs(orderID uint) ([]models.OrderLog, error) {
	var logs []models.OrderLog
	if err := s.db.Where("order_id = ?", orderID).Order("created_at asc, id asc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// GetMachine loads a machine by primary key
func (s *GormStore) GetMachine(id uint) (*models.Machine, error) {
	var machine models.Machine
	if err := s.db.First(&machine, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &machine, nil
}

// UpdateMachineStatus flips a machine's availability status
func (s *GormStore) UpdateMachineStatus(id uint, status models.MachineStatus) error {
	res := s.db.Model(&models.Machine{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAvailableMachines returns machines that can accept new orders
func (s *GormStore) ListAvailableMachines() ([]models.Machine, error) {
	var machines []models.Machine
	if err := s.db.Where("status = ?", models.MachineAvailable).Order("code asc").Find(&machines).Error; err != nil {
		return nil, err
	}
	return machines, nil
}

// GetProfile loads a profile by primary key
func (s *GormStore) GetProfile(id uint) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.First(&profile, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &profile, nil
}

// GetAdminForClient resolves the first admin related to a client
func (s *GormStore) GetAdminForClient(clientID uint) (*models.Profile, error) {
	var relation models.AdminClient
	if err := s.db.Where("client_id = ?", clientID).Order("created_at asc").First(&relation).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return s.GetProfile(relation.AdminID)
}

// EnsureAdminClient creates the admin-client relation if missing
func (s *GormStore) EnsureAdminClient(adminID, clientID uint) (bool, error) {
	var existing models.AdminClient
	err := s.db.Where("admin_id = ? AND client_id = ?", adminID, clientID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	relation := models.AdminClient{AdminID: adminID, ClientID: clientID}
	if err := s.db.Create(&relation).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ListOrdersForUser returns orders visible to a profile under the row-level
// authorization rules: clients see their own orders, admins see orders of
// related clients plus any order assigned to them.
func (s *GormStore) ListOrdersForUser(profileID uint, role string) ([]models.Order, error) {
	var orders []models.Order
	query := s.scopedQuery(profileID, role)
	if err := query.Preload("Machine").Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrderForUser loads one order if the profile is allowed to see it
func (s *GormStore) GetOrderForUser(id uint, profileID uint, role string) (*models.Order, error) {
	var order models.Order
	query := s.scopedQuery(profileID, role)
	if err := query.Preload("Machine").Where("orders.id = ?", id).First(&order).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &order, nil
}

func (s *GormStore) scopedQuery(profileID uint, role string) *gorm.DB {
	if role == "admin" {
		return s.db.Model(&models.Order{}).
			Where("admin_id = ? OR client_id IN (?)",
				profileID,
				s.db.Model(&models.AdminClient{}).Select("client_id").Where("admin_id = ?", profileID),
			)
	}
	return s.db.Model(&models.Order{}).Where("client_id = ?", profileID)
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
