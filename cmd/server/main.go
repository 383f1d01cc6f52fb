package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grabngo/loaner/internal/action"
	"github.com/grabngo/loaner/internal/config"
	"github.com/grabngo/loaner/internal/cron"
	"github.com/grabngo/loaner/internal/directory"
	"github.com/grabngo/loaner/internal/event"
	"github.com/grabngo/loaner/internal/handler"
	"github.com/grabngo/loaner/internal/metrics"
	"github.com/grabngo/loaner/internal/middleware"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/search"
	"github.com/grabngo/loaner/internal/service"
	"github.com/grabngo/loaner/internal/settings"
	"github.com/grabngo/loaner/internal/taskqueue"
	"github.com/grabngo/loaner/internal/ws"
	"github.com/grabngo/loaner/migrations"
	"github.com/grabngo/loaner/pkg/auth"
	"github.com/grabngo/loaner/pkg/mailer"
	"github.com/grabngo/loaner/pkg/password"
	"github.com/grabngo/loaner/pkg/storage"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// @title           Grab n Go Loaner API
// @version         1.0
// @description     Chromebook loaner fleet: enrollment, loans, shelves, reminders and surveys.

// @license.name  Apache 2.0
// @license.url   https://www.apache.org/licenses/LICENSE-2.0

// @host      api.localhost
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// ==================== Load Config ====================
	cfg := config.Load()
	log.Printf("🚀 Starting Loaner API Server [env=%s]", cfg.App.Env)

	// ==================== Database (PostgreSQL) ====================
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Connected to PostgreSQL")

	// ==================== Run Migrations ====================
	if err := migrations.Run(cfg.DB.URL()); err != nil {
		log.Printf("⚠️  Migration warning: %v", err)
		log.Println("📦 Falling back to GORM AutoMigrate...")
		if err := db.AutoMigrate(model.All()...); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
	}
	log.Println("✅ Database migrated successfully")

	// ==================== Redis ====================
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	// ==================== Email (SMTP / Mailpit) ====================
	mailClient, err := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	})
	if err != nil {
		log.Fatalf("❌ Failed to load email templates: %v", err)
	}
	log.Printf("📧 SMTP configured: %s:%s", cfg.SMTP.Host, cfg.SMTP.Port)

	// ==================== Directory (Admin SDK) ====================
	dir, err := directory.NewAdminClient(ctx, directory.AdminConfig{
		CustomerID:      cfg.Directory.CustomerID,
		CredentialsFile: cfg.Directory.CredentialsFile,
		AdminEmail:      cfg.Directory.AdminEmail,
	})
	if err != nil {
		log.Fatalf("❌ Failed to create directory client: %v", err)
	}
	log.Println("✅ Directory client ready")

	// ==================== Backup storage ====================
	var objects storage.ObjectStore
	switch cfg.Storage.Backend {
	case "gcs":
		gcs, err := storage.NewGCS(ctx, cfg.Storage.GCSCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Cloud Storage not available: %v (backups disabled)", err)
		} else {
			objects = gcs
			log.Println("✅ Connected to Cloud Storage")
		}
	default:
		minioStorage, err := storage.NewMinIO(storage.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			PublicURL: cfg.MinIO.PublicURL,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			log.Printf("⚠️  MinIO not available: %v (backups disabled)", err)
		} else {
			objects = minioStorage
			log.Println("✅ Connected to MinIO")
		}
	}

	// ==================== Initialize Layers ====================
	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry)

	// Repositories
	deviceRepo := repository.NewDeviceRepository(db)
	shelfRepo := repository.NewShelfRepository(db)
	tagRepo := repository.NewTagRepository(db)
	userRepo := repository.NewUserRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	surveyRepo := repository.NewSurveyRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	bootstrapRepo := repository.NewBootstrapRepository(db)

	// Runtime configuration
	store, err := settings.New(settingRepo)
	if err != nil {
		log.Fatalf("❌ Failed to load default settings: %v", err)
	}
	if err := store.Upgrade(ctx); err != nil {
		log.Printf("⚠️  Settings upgrade failed: %v", err)
	}

	// Actions, queue and event bus
	registry, err := action.NewRegistry(action.Builtins(), !cfg.IsProduction())
	if err != nil {
		log.Fatalf("❌ Failed to load actions: %v", err)
	}
	dispatcher := action.NewDispatcher(registry, &action.Env{
		Devices:   deviceRepo,
		Shelves:   shelfRepo,
		Reminders: reminderRepo,
		Settings:  store,
		Directory: dir,
		Mail:      mailClient,
		ManageURL: cfg.App.ManageURL,
	})
	queue := taskqueue.NewRedisQueue(rdb, taskqueue.ProcessAction).WithVisibilityTimeout(2 * cfg.Worker.Deadline)

	// Live event feed (Redis Pub/Sub so every instance sees every event)
	hub := ws.NewHub(rdb)
	go hub.Run(ctx)

	bus := event.NewBus(subRepo, dispatcher, queue, hub, search.NewRedisIndexer(rdb))

	// Services
	userService := service.NewUserService(userRepo, dir, cfg.App.Superadmins)
	authService := service.NewAuthService(userService, jwtManager, rdb, cfg.Google.ClientID)
	deviceService := service.NewDeviceService(deviceRepo, shelfRepo, tagRepo, store, dir, bus)
	shelfService := service.NewShelfService(db, shelfRepo, deviceRepo, deviceService, store, bus)
	reminderService := service.NewReminderService(deviceRepo, reminderRepo, subRepo, registry, bus)
	surveyService := service.NewSurveyService(surveyRepo, store)
	tagService := service.NewTagService(tagRepo)
	configService := service.NewConfigService(store)
	bootstrapService := service.NewBootstrapService(bootstrapRepo, store, userService, reminderService, surveyService, tagService)
	backupService := service.NewBackupService(
		deviceRepo, shelfRepo, userRepo, tagRepo, reminderRepo,
		subRepo, surveyRepo, settingRepo, store, objects,
	)

	// ==================== Workers ====================
	worker := taskqueue.NewWorker(queue, dispatcher, taskqueue.WorkerOptions{
		Size:        cfg.Worker.Concurrency,
		MaxAttempts: cfg.Worker.MaxAttempts,
		Deadline:    cfg.Worker.Deadline,
	})
	worker.Start(ctx)
	log.Printf("✅ Started %d action workers", cfg.Worker.Concurrency)

	// ==================== Scheduler ====================
	scheduler := cron.NewScheduler(0)
	jobs := []struct {
		name, schedule string
		fn             cron.JobFunc
	}{
		{cron.JobReminders, cfg.Cron.Reminders, func(ctx context.Context) (interface{}, error) {
			return reminderService.Scan(ctx)
		}},
		{cron.JobAudit, cfg.Cron.Audit, func(ctx context.Context) (interface{}, error) {
			return shelfService.AuditScan(ctx)
		}},
		{cron.JobBackup, cfg.Cron.Backup, func(ctx context.Context) (interface{}, error) {
			return backupService.Run(ctx)
		}},
		{cron.JobRoleSync, cfg.Cron.RoleSync, func(ctx context.Context) (interface{}, error) {
			return userService.SyncRoles(ctx)
		}},
	}
	for _, j := range jobs {
		if err := scheduler.Add(j.name, j.schedule, j.fn); err != nil {
			log.Fatalf("❌ Failed to schedule %s: %v", j.name, err)
		}
	}
	scheduler.Start()

	cronToken := cfg.Cron.Token
	if cronToken == "" {
		if cronToken, err = password.Generate(32); err != nil {
			log.Fatalf("❌ Failed to generate cron token: %v", err)
		}
		log.Println("⚠️  CRON_TOKEN not set, external cron triggers use a per-process token")
	}

	// Handlers
	handlers := &handler.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Device: handler.NewDeviceHandler(deviceService),
		Shelf:  handler.NewShelfHandler(shelfService),
		Admin:  handler.NewAdminHandler(tagService, configService, userService, reminderService, bootstrapService),
		Survey: handler.NewSurveyHandler(surveyService),
		Cron:   handler.NewCronHandler(scheduler),
		WS:     handler.NewWSHandler(hub, jwtManager),
	}

	// ==================== Gin Router ====================
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Serve swagger.json at /docs/swagger.json to avoid conflict with /swagger/* wildcard
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
	url := ginSwagger.URL("/docs/swagger.json")
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, url))

	// Global middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.Origins, cfg.CORS.ExtensionIDs))
	router.Use(middleware.Metrics())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"service":        "loaner-api",
			"time":           time.Now().UTC().Format(time.RFC3339),
			"feed_clients":   hub.ConnectedCount(),
			"scheduled_jobs": scheduler.Names(),
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	handlers.Register(router, handler.RouteOptions{
		JWT:            jwtManager,
		Redis:          rdb,
		CronToken:      cronToken,
		HeartbeatRate:  1,
		HeartbeatBurst: 10,
	})

	// ==================== Start Server ====================
	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	log.Printf("🌐 Loaner API running on http://0.0.0.0:%s", cfg.App.Port)
	log.Printf("📋 API docs: http://0.0.0.0:%s/swagger/index.html", cfg.App.Port)
	log.Printf("🔌 Event feed: ws://0.0.0.0:%s/ws/events?token=<jwt>", cfg.App.Port)
	log.Printf("📈 Metrics: http://0.0.0.0:%s/metrics", cfg.App.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}
	scheduler.Stop(shutdownCtx)
	cancel()
	_ = rdb.Close()
	log.Println("✅ Server exited gracefully")
}
