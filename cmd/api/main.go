package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-pos-admin/internal/cache"
	"go-pos-admin/internal/config"
	"go-pos-admin/internal/handler"
	"go-pos-admin/internal/ledger"
	"go-pos-admin/internal/lock"
	"go-pos-admin/internal/metrics"
	"go-pos-admin/internal/middleware"
	"go-pos-admin/internal/model"
	"go-pos-admin/internal/repository"
	"go-pos-admin/internal/service"
	"go-pos-admin/internal/ws"
	"go-pos-admin/pkg/database"
	"go-pos-admin/pkg/jwt"
	"go-pos-admin/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	// 1. Load config (.env first, then the environment)
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "pos-admin"}).Error(context.Background(), "invalid configuration", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: cfg.App.Name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Setup Database
	db, err := database.Connect(ctx, cfg.DB, log)
	if err != nil {
		log.Error(ctx, "database connection failed", err)
		os.Exit(1)
	}
	defer func() { _ = database.Close(db) }()

	if cfg.DB.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
			log.Error(ctx, "auto-migrate failed", err)
			os.Exit(1)
		}
	}

	// 3. Seed default privileges, roles, and admin user
	seedPrivilegesRolesAndAdmin(ctx, db, cfg.Seed, log)

	// 4. Optional Redis for the product cache and cross-instance refund locks
	var redisClient *redis.Client
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled() {
		redisClient, err = connectRedis(ctx, cfg.Redis)
		if err != nil {
			log.Error(ctx, "redis unavailable, continuing without cache", err)
			redisClient = nil
		} else {
			locker = lock.RedisLocker{R: redisClient, RetryBackoff: cfg.Redis.LockRetryGap}
			defer func() { _ = redisClient.Close() }()
		}
	}
	productCache := cache.New(redisClient, cfg.Redis.CacheTTL)

	// 5. Setup WebSocket Hub
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	// 6. Dependency Injection (Wiring Layers)
	productRepo := repository.NewProductRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	refundRepo := repository.NewRefundRepo(db)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.New(registry)

	tokens := jwt.NewManager(cfg.JWT)
	authService := service.NewAuthService(userRepo, roleRepo, tokens, hub, log, cfg.Session.InactivityTimeout)
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo)
	catalogService := service.NewCatalogService(productRepo, categoryRepo, productCache, hub, log, cfg.Sales.StoreTimeout)
	customerService := service.NewCustomerService(db, customerRepo, hub, log, cfg.Sales.StoreTimeout)
	saleService := service.NewSaleService(db, service.SaleDeps{
		Products:     productRepo,
		Customers:    customerRepo,
		Transactions: txRepo,
		Refunds:      refundRepo,
		Pricer:       ledger.NewPricer(cfg.Sales.TaxRate),
		Locker:       locker,
		LockTTL:      cfg.Redis.LockTTL,
		Cache:        productCache,
		Notifier:     hub,
		Metrics:      ledgerMetrics,
		Log:          log,
		StoreTimeout: cfg.Sales.StoreTimeout,
	})
	dashService := service.NewDashboardService(txRepo, cfg.Sales.LowStockThreshold, cfg.Sales.StoreTimeout)

	checks := map[string]handler.Pinger{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	// 7. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: handler.ErrorHandler(log),
	})

	app.Use(recover.New()) // Panic recovery
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))
	app.Use(cors.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// 8. Routes
	handler.RegisterRoutes(app, handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		User:        handler.NewUserHandler(userService),
		Role:        handler.NewRoleHandler(userService),
		Dashboard:   handler.NewDashboardHandler(dashService),
		Product:     handler.NewProductHandler(catalogService),
		Customer:    handler.NewCustomerHandler(customerService),
		Transaction: handler.NewTransactionHandler(saleService),
		Health:      handler.NewHealthHandler(checks),
	}, authService, log)

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		hub.Register <- c
		defer func() { hub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 9. Graceful Shutdown
	go func() {
		log.Info(ctx, "server listening", logger.Field("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			log.Error(ctx, "server stopped", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error(context.Background(), "server forced to shutdown", err)
	}
	log.Info(context.Background(), "server exited")
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// seedPrivilegesRolesAndAdmin creates default privileges, roles, and admin user if they don't exist
func seedPrivilegesRolesAndAdmin(ctx context.Context, db *gorm.DB, seed config.SeedConfig, log *logger.Logger) {
	privilegeRepo := repository.NewPrivilegeRepo(db)
	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	// 1. Seed privileges first
	if err := privilegeRepo.SeedDefaults(ctx); err != nil {
		log.Warn(ctx, "failed to seed privileges", logger.Field("error", err.Error()))
	}

	// 2. Seed roles with their privileges
	if err := roleRepo.SeedDefaults(ctx); err != nil {
		log.Warn(ctx, "failed to seed roles", logger.Field("error", err.Error()))
	}

	// 3. Create default admin user with ADMIN role
	_, err := userRepo.FindByEmail(ctx, seed.AdminEmail)
	if err == nil {
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn(ctx, "failed to look up admin user", logger.Field("error", err.Error()))
		return
	}

	adminRole, err := roleRepo.FindByCode(ctx, model.RoleAdmin)
	if err != nil {
		log.Warn(ctx, "admin role missing, skipping admin seed", logger.Field("error", err.Error()))
		return
	}

	admin := &model.User{
		Email:      seed.AdminEmail,
		FullName:   "Administrator",
		RoleID:     &adminRole.ID,
		IsActive:   true,
		Privileges: adminRole.Privileges,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"

	if err := admin.SetPassword(seed.AdminPassword); err != nil {
		log.Warn(ctx, "failed to hash admin password", logger.Field("error", err.Error()))
		return
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		log.Warn(ctx, "failed to create admin user", logger.Field("error", err.Error()))
		return
	}
	log.Info(ctx, "admin user created", logger.Field("email", seed.AdminEmail))
}
