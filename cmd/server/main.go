package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/fields"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/handlers"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/query"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/repository"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/services"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/cache"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/database/postgres"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/middleware/requestid"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/pkg/log"
	platformconfig "github.com/HugoHasenbein/redmine-issue-attachments/internal/platform/config"
)

func main() {
	cfg, err := platformconfig.LoadFromEnv()
	if err != nil {
		log.Error("failed to load config: %v", err)
		os.Exit(1)
	}

	if cfg.Server.Debug {
		log.InfoStruct("plugin settings", cfg.Plugin)
	}

	ctx := context.Background()

	pgClient, err := postgres.NewClient(ctx, &postgres.Config{
		Host:               cfg.Database.Postgres.Host,
		Port:               cfg.Database.Postgres.Port,
		Username:           cfg.Database.Postgres.Username,
		Password:           cfg.Database.Postgres.Password,
		Database:           cfg.Database.Postgres.Database,
		SSLMode:            cfg.Database.Postgres.SSLMode,
		MaxOpenConnections: cfg.Database.Postgres.MaxOpenConns,
		MaxIdleConnections: cfg.Database.Postgres.MaxIdleConns,
		MaxLifetime:        int(cfg.Database.Postgres.ConnMaxLifetime.Seconds()),
		ConnectTimeout:     10,
	})
	if err != nil {
		log.Error("failed to connect to postgres: %v", err)
		os.Exit(1)
	}
	defer pgClient.Close()

	sessionCache := buildSessionCache(cfg)
	defer func() {
		if sessionCache != nil {
			_ = sessionCache.Close()
		}
	}()

	db := pgClient.DB()
	attachmentRepo := repository.NewPostgresAttachmentRepository(db)
	queryRepo := repository.NewPostgresQueryRepository(db)
	lookupRepo := repository.NewPostgresLookupRepository(db)
	scopeRepo := permissions.NewScopeRepository(db)

	catalog := fields.NewCatalog(lookupRepo, cfg.Plugin.CategoriesEnabled)
	builder := query.NewBuilder(query.NewCompiler(catalog), catalog)

	service := services.NewService(attachmentRepo, queryRepo, catalog, builder, sessionCache, services.Settings{
		DefaultColumns: cfg.Plugin.DefaultColumns,
		DefaultTotals:  cfg.Plugin.DefaultTotals,
		PerPageDefault: cfg.Plugin.PerPageDefault,
		PerPageMax:     cfg.Plugin.PerPageMax,
		SessionTTL:     cfg.Plugin.SessionTTL,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			// Handlers answer their own error shapes; this only catches
			// what escaped them.
			if len(c.Response().Body()) > 0 {
				return nil
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.WebDomain,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, " + handlers.HeaderSessionID,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := pgClient.HealthCheck(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	attachments.RegisterRoutes(app, &attachments.Handlers{
		AttachmentHandler: handlers.NewAttachmentHandler(service, scopeRepo),
		QueryHandler:      handlers.NewQueryHandler(service, scopeRepo),
	}, cfg)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Error("server stopped: %v", err)
		os.Exit(1)
	}
}

// buildSessionCache wires the configured session store. A broken or
// disabled cache degrades to stateless listings instead of failing boot.
func buildSessionCache(cfg *platformconfig.Config) *cache.GenericCacheService {
	cacheConfig := &cache.CacheConfig{
		Enabled:         cfg.Cache.Enabled,
		Backend:         cache.CacheType(cfg.Cache.Backend),
		Prefix:          cfg.Cache.Prefix,
		TTL:             cfg.Cache.TTL,
		MaxMemory:       cfg.Cache.MaxMemory,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Redis: cache.RedisConfig{
			Address:      cfg.Cache.Redis.Address,
			Password:     cfg.Cache.Redis.Password,
			Database:     cfg.Cache.Redis.Database,
			PoolSize:     cfg.Cache.Redis.PoolSize,
			MinIdleConns: cfg.Cache.Redis.MinIdleConns,
			MaxConnAge:   cfg.Cache.Redis.MaxConnAge,
		},
	}

	backend, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Warn("session cache unavailable, filter state will not persist: %v", err)
		return nil
	}
	return cache.NewGenericCacheService(backend, cacheConfig)
}
