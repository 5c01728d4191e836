package main

import (
	"context"
	"log"
	"os"

	"poscore/internal/database"
	"poscore/internal/handler"
	"poscore/internal/middleware"
	"poscore/internal/repository"
	"poscore/internal/service"
	"poscore/internal/syncapi"
	"poscore/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	driver := envOr("DB_DRIVER", "sqlite")
	dsn := envOr("DB_DSN", "poscore.db")

	db, err := database.NewConnection(driver, dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	log.Printf("Connected to %s database successfully.", driver)

	terminalID := envOr("TERMINAL_ID", "POS01")
	apiClient := syncapi.NewClient(
		envOr("SYNC_API_URL", "http://localhost:3000"),
		os.Getenv("SYNC_API_KEY"),
		terminalID,
	)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	productRepo := repository.NewProductRepository(db)
	masterRepo := repository.NewMasterDataRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)
	configRepo := repository.NewConfigRepository(db)

	guard := service.NewGuard()
	userService := service.NewUserService(userRepo, middleware.GetJWTSecret())
	importService := service.NewImportService(db, txManager, wsHub, guard)
	txService := service.NewTransactionService(txRepo, productRepo, masterRepo, configRepo, txManager, terminalID)
	syncService := service.NewSyncService(apiClient, txRepo, productRepo, masterRepo, syncLogRepo, configRepo, txManager, wsHub, guard, terminalID)

	if err := userService.SeedAdmin(context.Background()); err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(userService)
	importHandler := handler.NewImportHandler(importService)
	txHandler := handler.NewTransactionHandler(txService)
	syncHandler := handler.NewSyncHandler(syncService)
	masterHandler := handler.NewMasterHandler(productRepo, masterRepo)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration; the desktop shell serves the UI from localhost
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	authHandler.RegisterRoutes(router.Group(""))
	importHandler.RegisterRoutes(router.Group(""))
	txHandler.RegisterRoutes(router.Group(""))
	syncHandler.RegisterRoutes(router.Group(""))
	masterHandler.RegisterRoutes(router.Group(""))

	port := envOr("PORT", "8080")
	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
