package app

import (
	"context"
	"course_progress_backend/internal/config"
	"course_progress_backend/internal/controller"
	"course_progress_backend/internal/repository"
	"course_progress_backend/internal/service"
	"course_progress_backend/internal/util"
	"course_progress_backend/pkg/configwatcher"
	"course_progress_backend/pkg/database"
	"course_progress_backend/pkg/logger"
	"course_progress_backend/pkg/monitoring"
	"course_progress_backend/pkg/security"
	"course_progress_backend/pkg/tracing"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigPath      string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Settings        *service.Settings
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	progress    *repository.ProgressRepository
	session     *repository.SessionRepository
	interaction *repository.InteractionRepository
	catalog     *repository.CatalogRepository
	enrollment  *repository.EnrollmentRepository
}

type services struct {
	progress  *service.ProgressService
	session   *service.SessionService
	streak    *service.StreakService
	summary   *service.SummaryService
	analytics *service.AnalyticsService
	storage   *service.StorageService
	report    *service.ReportService
}

type controllers struct {
	learning  *controller.LearningController
	analytics *controller.AnalyticsController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		progress:    repository.NewProgressRepository(db),
		session:     repository.NewSessionRepository(db),
		interaction: repository.NewInteractionRepository(db),
		catalog:     repository.NewCatalogRepository(db),
		enrollment:  repository.NewEnrollmentRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client, now service.Clock) *services {
	s := &services{}

	s.streak = service.NewStreakService(repos.session, a.Settings, now)
	s.analytics = service.NewAnalyticsService(
		repos.progress,
		repos.session,
		repos.interaction,
		repos.catalog,
		repos.enrollment,
		service.NewRedisMetricsCache(rdb),
		a.Settings,
		now,
	)

	s.progress = service.NewProgressService(repos.progress, repos.catalog, repos.enrollment, a.Settings, now)
	s.progress.Invalidator = s.analytics

	s.session = service.NewSessionService(repos.session, repos.interaction, repos.catalog, repos.progress, s.progress, now)
	s.summary = service.NewSummaryService(repos.progress, repos.session, repos.catalog, s.streak)

	s.storage = service.NewStorageService(&cfg.Storage)
	s.report = service.NewReportService(s.analytics, s.storage, now)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		learning:  controller.NewLearningController(s.session, s.progress, s.summary, s.streak),
		analytics: controller.NewAnalyticsController(s.analytics, s.report),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New 在已建立的连接上组装仓库、服务、控制器与路由，now 为 nil 时使用系统时间
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, now service.Clock) *App {
	app := &App{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Settings: service.NewSettings(cfg.Analytics),
	}

	// 热更新：分析阈值与日志级别
	app.RegisterConfigCallback(func(c *config.Config) {
		app.Settings.Set(c.Analytics)
	})
	app.RegisterConfigCallback(func(c *config.Config) {
		logger.SetMode(c.Server.Mode)
	})

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb, now)
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func NewApp(cfg *config.Config, configPath string) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.InitDB(&cfg.Database, cfg.ForceMigrate || cfg.Server.Mode != "release")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := New(cfg, db, rdb, nil)
	app.ConfigPath = configPath

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	return app
}

func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.ConfigPath != "" {
		if err := configwatcher.WatchConfig(ctx, a.ConfigPath, a.applyConfig); err != nil {
			logger.Log.Warn("Config watcher disabled", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
