package main

import (
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frostbean/freezedry-api/config"
	"github.com/frostbean/freezedry-api/controllers"
	"github.com/frostbean/freezedry-api/lifecycle"
	"github.com/frostbean/freezedry-api/middleware"
	"github.com/frostbean/freezedry-api/models"
	"github.com/frostbean/freezedry-api/services"
	"github.com/frostbean/freezedry-api/store"
)

func main() {
	log.Println("Starting Freeze-Dry Order API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := config.GetDB()
	if err := db.AutoMigrate(
		&models.Profile{},
		&models.AdminClient{},
		&models.Machine{},
		&models.Order{},
		&models.OrderLog{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	st := store.NewGormStore(db)

	// Notifications go out through RabbitMQ when a broker is configured,
	// otherwise they are written to the log.
	var sender services.Sender = services.LogSender{}
	if cfg.AMQPURL != "" {
		amqpSender, err := services.NewAMQPSender(cfg.AMQPURL, cfg.NotifyQueue)
		if err != nil {
			log.Fatalf("Failed to connect notification broker: %v", err)
		}
		defer amqpSender.Close()
		sender = amqpSender
	}
	dispatcher := services.NewDispatcher(st, sender)
	defer dispatcher.Close()
	services.InitNotifier(dispatcher)

	gateway := services.NewCommerceGateway(cfg)
	services.InitGateway(gateway)

	lifecycle.Init(st, dispatcher, gateway)

	router := gin.Default()
	router.Use(cors.Default())
	router.Use(middleware.PrometheusMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)

		// Inbound commerce webhooks authenticate via HMAC signature, not JWT.
		v1.POST("/webhooks/commerce", controllers.HandleCommerceWebhook)

		authed := v1.Group("", middleware.EnsureValidToken(cfg))
		{
			authed.GET("/profiles/me", controllers.GetMe)
			authed.GET("/admins", controllers.ListAdmins)

			authed.GET("/orders", controllers.ListOrders)
			authed.GET("/orders/:id", controllers.GetOrder)
			authed.GET("/orders/:id/logs", controllers.GetOrderLogs)

			client := authed.Group("", middleware.RequireRole("client"))
			{
				client.POST("/orders", controllers.CreateOrder)
				client.POST("/orders/:id/tracking", controllers.SubmitTracking)
			}

			admin := authed.Group("", middleware.RequireRole("admin"))
			{
				admin.POST("/orders/:id/confirm", controllers.ConfirmOrder)
				admin.POST("/orders/:id/reject", controllers.RejectOrder)
				admin.POST("/orders/:id/package-received", controllers.ConfirmPackageReceived)
				admin.PUT("/orders/:id/status", controllers.UpdateOrderStatus)
				admin.POST("/orders/:id/checkout", controllers.CreateCheckout)

				admin.GET("/machines", controllers.ListMachines)
				admin.POST("/machines", controllers.CreateMachine)
				admin.PUT("/machines/:id", controllers.UpdateMachine)
			}
		}
	}

	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Freeze-Dry Order API is running",
	})
}
