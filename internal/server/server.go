// Package server assembles the HTTP API: services, handlers and routes.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"pocketbook/internal/aggregation"
	"pocketbook/internal/config"
	"pocketbook/internal/filestore"
	"pocketbook/internal/handlers"
	"pocketbook/internal/integrity"
	"pocketbook/internal/middleware"
	"pocketbook/internal/notify"
	"pocketbook/internal/services"
	"pocketbook/internal/store"

	_ "pocketbook/internal/docs" // Import swagger docs
)

// NewRouter wires every service and handler on top of db and returns the
// gin engine serving the API.
func NewRouter(cfg *config.Config, db *gorm.DB, sender notify.Sender, files filestore.Store) *gin.Engine {
	// Storage and integrity
	s := store.New(db, store.Options{MaxAttempts: cfg.TxMaxAttempts})
	engine := integrity.NewEngine(s)
	agg := aggregation.NewService(s)
	tokens := middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpirationDur, cfg.JWTRefreshExpirationDur)

	// Services
	auditService := services.NewAuditService(db)
	userService := services.NewUserService(s, engine)
	resetService := services.NewPasswordResetService(s, userService, sender, cfg.ResetTokenTTL, cfg.ResetURLBase)
	walletService := services.NewWalletService(s, engine)
	categoryService := services.NewCategoryService(s, engine, agg)
	elementService := services.NewBudgetElementService(s, engine)
	exportService := services.NewExportService(s)
	maintenanceService := services.NewMaintenanceService(engine)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, resetService, auditService, tokens)
	profileHandler := handlers.NewProfileHandler(userService, files, auditService)
	walletHandler := handlers.NewWalletHandler(walletService, auditService)
	categoryHandler := handlers.NewCategoryHandler(categoryService, auditService)
	elementHandler := handlers.NewBudgetElementHandler(elementService, exportService, auditService)
	maintenanceHandler := handlers.NewMaintenanceHandler(maintenanceService, auditService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	// Multipart bodies above 1 MiB spill to temp files.
	router.MaxMultipartMemory = 1 << 20

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(tokens.AuthMiddleware())

	profile := protected.Group("/profile")
	profile.GET("", profileHandler.GetProfile)
	profile.PUT("", profileHandler.UpdateProfile)
	profile.DELETE("", profileHandler.DeleteProfile)
	profile.PUT("/avatar", profileHandler.UploadAvatar)
	profile.DELETE("/avatar", profileHandler.DeleteAvatar)

	wallets := protected.Group("/wallets")
	wallets.POST("", walletHandler.CreateWallet)
	wallets.GET("", walletHandler.GetUserWallets)
	wallets.GET("/:id", walletHandler.GetWalletByID)
	wallets.PUT("/:id", walletHandler.UpdateWallet)
	wallets.DELETE("/:id", walletHandler.DeleteWallet)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	elements := protected.Group("/budget-elements")
	elements.POST("", elementHandler.CreateBudgetElement)
	elements.GET("", elementHandler.GetUserBudgetElements)
	elements.GET("/export", elementHandler.ExportBudgetElements)
	elements.GET("/:id", elementHandler.GetBudgetElementByID)
	elements.PUT("/:id", elementHandler.UpdateBudgetElement)
	elements.DELETE("/:id", elementHandler.DeleteBudgetElement)

	// Internal maintenance routes
	internal := router.Group("/internal")
	internal.Use(middleware.ServiceKeyMiddleware(cfg.ServiceAPIKey))
	internal.POST("/users/:id/reindex", maintenanceHandler.RebuildIndex)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
