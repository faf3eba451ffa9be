// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rentalregistry/strr-backend/internal/clients"
	"github.com/rentalregistry/strr-backend/internal/config"
	"github.com/rentalregistry/strr-backend/internal/handlers"
	"github.com/rentalregistry/strr-backend/internal/middleware"
	"github.com/rentalregistry/strr-backend/internal/services"
	"github.com/rentalregistry/strr-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, error) {
	// Initialize services
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}

	eventService := services.NewEventService(db)
	notificationService := services.NewNotificationService(db, cfg)
	authService := services.NewAuthService(db, cfg)
	registrationService := services.NewRegistrationService(db, cfg, eventService)
	applicationService := services.NewApplicationService(db, cfg, clients.NewPayClient(cfg.Pay), eventService, registrationService, notificationService)
	permitValidationService := services.NewPermitValidationService(db, cfg, storageService, notificationService, eventService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	applicationHandler := handlers.NewApplicationHandler(applicationService, authService, eventService)
	registrationHandler := handlers.NewRegistrationHandler(registrationService, eventService, storageService)
	permitHandler := handlers.NewPermitHandler(permitValidationService, registrationService, storageService)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
		}

		// Application routes
		applications := v1.Group("/applications")
		applications.Use(middleware.AuthRequired())
		{
			applications.POST("", applicationHandler.CreateApplication)
			applications.GET("", applicationHandler.SearchApplications)
			applications.GET("/:id", applicationHandler.GetApplication)
			applications.GET("/:id/events", applicationHandler.GetApplicationEvents)
			applications.POST("/:id/invoice", applicationHandler.CreateInvoice)
			applications.PUT("/:id/payment", applicationHandler.UpdatePaymentStatus)

			// Examiner-only actions
			staff := applications.Group("")
			staff.Use(middleware.ExaminerRequired())
			{
				staff.PUT("/:id/status", applicationHandler.UpdateApplicationStatus)
				staff.POST("/:id/notice-of-consideration", applicationHandler.SendNoticeOfConsideration)
				staff.POST("/:id/set-aside", applicationHandler.SetAside)
				staff.PUT("/:id/assign", applicationHandler.AssignReviewer)
				staff.PUT("/:id/unassign", applicationHandler.UnassignReviewer)
			}
		}

		// Registration routes
		registrations := v1.Group("/registrations")
		registrations.Use(middleware.AuthRequired())
		{
			registrations.GET("", registrationHandler.SearchRegistrations)
			registrations.GET("/:id", registrationHandler.GetRegistration)
			registrations.GET("/:id/events", registrationHandler.GetRegistrationEvents)
			registrations.GET("/:id/certificate", registrationHandler.GetCertificateURL)
			registrations.POST("/:id/documents", middleware.UploadRateLimit(), permitHandler.UploadDocument)

			// Examiner-only actions
			staff := registrations.Group("")
			staff.Use(middleware.ExaminerRequired())
			{
				staff.PUT("/:id/suspend", registrationHandler.SuspendRegistration)
				staff.PUT("/:id/cancel", registrationHandler.CancelRegistration)
				staff.PUT("/:id/reinstate", registrationHandler.ReinstateRegistration)
				staff.POST("/:id/notice-of-consideration", registrationHandler.SendNoticeOfConsideration)
				staff.POST("/:id/certificate", registrationHandler.IssueCertificate)
			}
		}

		// Permit validation (examiner)
		permits := v1.Group("/permits")
		permits.Use(middleware.AuthRequired(), middleware.ExaminerRequired())
		{
			permits.POST("/validate", middleware.UploadRateLimit(), permitHandler.ValidatePermits)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	return r, nil
}
