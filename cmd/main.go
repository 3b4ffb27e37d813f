package main

import (
	"ecowaste-service/internal/handler"
	"ecowaste-service/internal/middleware"
	"ecowaste-service/pkg/config"
	"ecowaste-service/pkg/database"
	"ecowaste-service/pkg/jwtutil"
	"ecowaste-service/pkg/logger"
	"ecowaste-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting ecowaste service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.POST("/logout", handler.Logout, middleware.AuthMiddleware)
	auth.GET("/me", handler.GetProfile, middleware.AuthMiddleware)

	// Public directory routes
	e.GET("/api/regions", handler.ListRegions)
	e.GET("/api/companies", handler.ListCompanies)

	// Authenticated routes
	api := e.Group("/api")

	users := api.Group("/users", middleware.AuthMiddleware)
	users.POST("/change-password", handler.ChangePassword)

	companies := api.Group("/companies", middleware.AuthMiddleware)
	companies.GET("/profile", handler.GetCompanyProfile)
	companies.PUT("/profile", handler.UpdateCompanyProfile)

	// Admin console - requires the admin role
	admin := api.Group("/admin", middleware.AuthMiddleware, middleware.RequireAdmin)
	admin.GET("/regions", handler.ListRegions)
	admin.POST("/regions", handler.CreateRegion)
	admin.PUT("/regions/:id", handler.UpdateRegion)
	admin.DELETE("/regions/:id", handler.DeleteRegion)
	admin.GET("/companies", handler.ListAllCompanies)
	admin.GET("/companies/export", handler.ExportCompanies)
	admin.PUT("/companies/:id", handler.UpdateCompany)
	admin.DELETE("/companies/:id", handler.DeleteCompany)
	admin.POST("/companies/:id/approve", handler.ApproveCompany)
	admin.POST("/companies/:id/reset-password", handler.ResetPassword)
	admin.GET("/stats", handler.GetStats)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
