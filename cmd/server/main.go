// Package main is the entry point for the docuvault API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docuvault/internal/core/security"
	"docuvault/internal/domain/access"
	"docuvault/internal/domain/auth"
	"docuvault/internal/domain/document"
	"docuvault/internal/domain/folder"
	"docuvault/internal/domain/workflow"
	"docuvault/internal/infrastructure/cache"
	v1 "docuvault/internal/infrastructure/http/v1"
	"docuvault/internal/infrastructure/storage/postgres"
	"docuvault/internal/infrastructure/storage/postgres/auth_repo"
	"docuvault/internal/obs"
	"docuvault/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting docuvault server")

	obs.Init()

	// --- Database ---
	dsn := mustEnv("DATABASE_URL")
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	documentRepo := postgres.NewDocumentRepo(txManager)
	folderRepo := postgres.NewFolderRepo(txManager)
	auditStore, err := postgres.NewAuditStore(txManager)
	if err != nil {
		log.Fatalw("failed to create audit store", "error", err)
	}
	userRepo := auth_repo.NewUserRepo(txManager)
	roleRepo := auth_repo.NewRoleRepo(txManager)
	permRepo := auth_repo.NewPermissionRepo(txManager)

	// --- Access resolution ---
	accessService := access.NewService(folderRepo, auditStore)

	// --- Workflow engine ---
	var policy security.TransitionPolicy = security.OpenTransitionPolicy{}
	if getEnv("APPROVE_REQUIRES_MFA", "false") == "true" {
		policy, err = security.NewRulePolicy(map[string]string{
			"approve": "mfa",
		})
		if err != nil {
			log.Fatalw("failed to compile transition rules", "error", err)
		}
	}
	engine := workflow.NewEngine(documentRepo, auditStore, txManager, policy, workflow.DefaultConfig())

	// --- Domain services ---
	documentService := document.NewService(documentRepo, folderRepo, accessService, engine, auditStore, txManager)
	folderService := folder.NewService(folderRepo, accessService, auditStore, txManager)

	// --- Auth ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	identityCache, err := cache.NewIdentityCache(userRepo, 0, 0)
	if err != nil {
		log.Fatalw("failed to create identity cache", "error", err)
	}
	authService := auth.NewService(
		userRepo, roleRepo, permRepo,
		jwtService, accessService, auditStore, txManager, identityCache,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:            pool,
		Logger:          log,
		JWTValidator:    jwtService,
		AuthService:     authService,
		DocumentService: documentService,
		FolderService:   folderService,
		AccessService:   accessService,
		AuditReader:     auditStore,
	})

	// --- HTTP server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
