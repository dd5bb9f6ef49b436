// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"docuvault/internal/domain/access"
	"docuvault/internal/domain/audit"
	"docuvault/internal/domain/auth"
	"docuvault/internal/domain/document"
	"docuvault/internal/domain/folder"
	"docuvault/internal/infrastructure/http/v1/handlers"
	"docuvault/internal/infrastructure/http/v1/middleware"
	"docuvault/internal/infrastructure/storage/postgres"
	"docuvault/internal/obs"
	"docuvault/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Pool            *postgres.Pool
	Logger          *logger.Logger
	JWTValidator    middleware.JWTValidator
	AuthService     *auth.Service
	DocumentService *document.Service
	FolderService   *folder.Service
	AccessService   *access.Service
	AuditReader     audit.Reader
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(obs.HTTPMetrics())

	// Health and metrics endpoints, no auth required
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}
	router.GET("/metrics", gin.WrapH(obs.Handler()))

	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	documentHandler := handlers.NewDocumentHandler(cfg.DocumentService)
	folderHandler := handlers.NewFolderHandler(cfg.FolderService)
	auditHandler := handlers.NewAuditHandler(cfg.AuditReader, cfg.AccessService)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/auth/login", authHandler.Login)

		protected := apiV1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))
		{
			protected.POST("/auth/refresh", authHandler.Refresh)

			// Documents: CRUD, payload versions, lifecycle
			documents := protected.Group("/documents")
			{
				documents.POST("", documentHandler.Create)
				documents.GET("", documentHandler.List)
				documents.GET("/:id", documentHandler.Get)
				documents.PUT("/:id", documentHandler.Update)
				documents.DELETE("/:id", documentHandler.Delete)
				documents.POST("/:id/transition", documentHandler.Transition)
				documents.POST("/:id/revisions", documentHandler.CreateRevision)
				documents.POST("/:id/versions", documentHandler.AddVersion)
				documents.GET("/:id/versions", documentHandler.ListVersions)
			}

			// Folders and their ACL
			folders := protected.Group("/folders")
			{
				folders.POST("", folderHandler.Create)
				folders.GET("", folderHandler.List)
				folders.GET("/:id", folderHandler.Get)
				folders.POST("/:id/grants", folderHandler.Grant)
				folders.GET("/:id/grants", folderHandler.ListGrants)
				folders.DELETE("/:id/grants/:roleId", folderHandler.Revoke)
			}

			// Users and roles
			users := protected.Group("/users")
			{
				users.POST("", authHandler.Register)
				users.GET("/:id", authHandler.GetUser)
				users.POST("/:id/roles", authHandler.AssignRole)
				users.DELETE("/:id/roles/:roleId", authHandler.RevokeRole)
			}
			protected.GET("/roles", authHandler.ListRoles)

			// Audit trail
			protected.GET("/audit/:entityType/:id", auditHandler.ListByEntity)
		}
	}

	return router
}
