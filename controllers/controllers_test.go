package controllers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frostbean/freezedry-api/config"
	"github.com/frostbean/freezedry-api/lifecycle"
	"github.com/frostbean/freezedry-api/models"
	"github.com/frostbean/freezedry-api/services"
	"github.com/frostbean/freezedry-api/store"
)

// testEnv bundles the database and mocks shared by the controller tests
type testEnv struct {
	db       *gorm.DB
	notifier *services.MockNotifier
	gateway  *services.MockGateway
	client   models.Profile
	admin    models.Profile
}

func setupControllerTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Profile{},
		&models.AdminClient{},
		&models.Machine{},
		&models.Order{},
		&models.OrderLog{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// setupTestEnv wires the database, the global singletons and two seeded
// profiles so each test starts from a clean, fully mocked stack.
func setupTestEnv(t *testing.T) *testEnv {
	db := setupControllerTestDB(t)
	config.SetDB(db)

	notifier := services.NewMockNotifier()
	notifier.SetAsMockForTesting()
	gateway := services.NewMockGateway()
	gateway.SetAsMockForTesting()

	lifecycle.Init(store.NewGormStore(db), notifier, gateway)

	env := &testEnv{db: db, notifier: notifier, gateway: gateway}

	env.client = models.Profile{
		Name:  "Client User",
		Email: "client@example.com",
		Role:  "client",
	}
	db.Create(&env.client)

	env.admin = models.Profile{
		Name:            "Admin User",
		Email:           "admin@example.com",
		Role:            "admin",
		ShippingAddress: "12 Roastery Lane, Portland",
	}
	db.Create(&env.admin)

	return env
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// mockAuthMiddleware mimics the JWT middleware by injecting the profile id
// and role directly into the context
func mockAuthMiddleware(userID uint, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Next()
	}
}
